package structure

import (
	"math"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
)

// CellKey addresses one cell of the spatial grid.
type CellKey struct {
	X, Y, Z int
}

// SpatialIndex buckets atoms into a uniform cubic grid so that every atom
// within CellSize of a query atom lies in one of the 27 surrounding cells.
// An index is built for one atom array and is read-only afterwards.
type SpatialIndex struct {
	cellSize  float64
	cells     map[CellKey][]int
	atomCells []CellKey
}

// NewSpatialIndex builds the grid for atoms. The cell edge is the largest
// bounding-box extent divided by ceil(n/1000) (at least one division),
// never smaller than minCellSize.
func NewSpatialIndex(atoms []Atom, minCellSize float64) *SpatialIndex {
	return newSpatialIndex(atoms, minCellSize, 1000)
}

func newSpatialIndex(atoms []Atom, minCellSize float64, atomsPerAxis int) *SpatialIndex {
	if atomsPerAxis < 1 {
		atomsPerAxis = 1000
	}
	idx := &SpatialIndex{
		cellSize:  minCellSize,
		cells:     make(map[CellKey][]int),
		atomCells: make([]CellKey, len(atoms)),
	}
	if len(atoms) == 0 {
		return idx
	}

	cellsPerAxis := int(math.Ceil(float64(len(atoms)) / float64(atomsPerAxis)))
	if cellsPerAxis < 1 {
		cellsPerAxis = 1
	}
	size := geometry.MaxExtent(Positions(atoms)) / float64(cellsPerAxis)
	idx.cellSize = math.Max(size, minCellSize)

	for i := range atoms {
		key := idx.keyFor(atoms[i].Position)
		idx.atomCells[i] = key
		idx.cells[key] = append(idx.cells[key], i)
	}
	return idx
}

func (s *SpatialIndex) keyFor(p geometry.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(p.X / s.cellSize)),
		Y: int(math.Floor(p.Y / s.cellSize)),
		Z: int(math.Floor(p.Z / s.cellSize)),
	}
}

// NeighborCandidates returns the indices of all atoms in the 27 cells
// surrounding atom i, excluding i itself, each at most once. An index
// outside the array yields nil.
func (s *SpatialIndex) NeighborCandidates(i int) []int {
	if i < 0 || i >= len(s.atomCells) {
		return nil
	}
	c := s.atomCells[i]
	var out []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				for _, j := range s.cells[CellKey{c.X + dx, c.Y + dy, c.Z + dz}] {
					if j != i {
						out = append(out, j)
					}
				}
			}
		}
	}
	// Each atom lives in exactly one cell and the 27 keys are distinct, so
	// the candidates are already unique.
	return out
}

// CellSize returns the grid cell edge length in Angstrom.
func (s *SpatialIndex) CellSize() float64 { return s.cellSize }

// CellCount returns the number of occupied cells.
func (s *SpatialIndex) CellCount() int { return len(s.cells) }

// Len returns the number of indexed atoms.
func (s *SpatialIndex) Len() int { return len(s.atomCells) }

// CellOf returns the cell of atom i.
func (s *SpatialIndex) CellOf(i int) (CellKey, bool) {
	if i < 0 || i >= len(s.atomCells) {
		return CellKey{}, false
	}
	return s.atomCells[i], true
}
