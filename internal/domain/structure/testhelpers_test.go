package structure

import (
	"math/rand"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
)

func atom(i int, element string, x, y, z float64) Atom {
	return Atom{Index: i, Element: element, Position: geometry.V(x, y, z), Occupancy: 1}
}

func residueAtom(i int, element, res string, seq int, x, y, z float64) Atom {
	a := atom(i, element, x, y, z)
	a.ResidueName = res
	a.ResidueSeq = seq
	return a
}

// randomCloud returns n atoms uniformly placed in a cube of the given edge.
func randomCloud(seed int64, n int, edge float64) []Atom {
	r := rand.New(rand.NewSource(seed))
	elements := []string{"C", "N", "O", "H", "S"}
	residues := []string{"LYS", "ASP", "GLU", "ARG", "ALA", "HIS"}
	atoms := make([]Atom, n)
	for i := range atoms {
		atoms[i] = residueAtom(i, elements[r.Intn(len(elements))], residues[r.Intn(len(residues))], i/10,
			r.Float64()*edge, r.Float64()*edge, r.Float64()*edge)
	}
	return atoms
}
