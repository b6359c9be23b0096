package repositories

import (
	"context"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

var atomCopyColumns = []string{
	"structure_id", "atom_index", "serial", "name", "alt_loc", "res_name", "chain_id",
	"res_seq", "i_code", "x", "y", "z", "occupancy", "temp_factor", "element", "charge",
}

var bondCopyColumns = []string{
	"structure_id", "atom1_index", "atom2_index", "type", "bond_order", "distance",
}

// ReplaceAtoms deletes the stored atoms of the structure and bulk loads atoms.
func (r *postgresStructureRepo) ReplaceAtoms(ctx context.Context, structureID string, atoms []structure.Atom) error {
	if err := checkStructureID(structureID); err != nil {
		return err
	}
	err := r.inTx(ctx, func(ex queryExecutor) error {
		if _, err := ex.ExecContext(ctx, `DELETE FROM atoms WHERE structure_id = $1`, structureID); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear atoms")
		}
		if len(atoms) == 0 {
			return nil
		}
		return copyRows(ctx, ex, "atoms", atomCopyColumns, len(atoms), func(i int) []interface{} {
			a := atoms[i]
			return []interface{}{
				structureID, a.Index, a.Serial, a.Name, a.AltLoc, a.ResidueName, a.ChainID,
				a.ResidueSeq, a.InsertionCode, a.Position.X, a.Position.Y, a.Position.Z,
				a.Occupancy, a.TempFactor, a.Element, a.Charge,
			}
		})
	})
	if err != nil {
		return err
	}
	r.log.Debug("Atoms stored", logging.StructureID(structureID), logging.Int("count", len(atoms)))
	return nil
}

// ListAtoms returns the atoms of the structure in index order.
func (r *postgresStructureRepo) ListAtoms(ctx context.Context, structureID string) ([]structure.Atom, error) {
	if err := checkStructureID(structureID); err != nil {
		return nil, err
	}
	query := `
		SELECT atom_index, serial, name, alt_loc, res_name, chain_id, res_seq, i_code,
			x, y, z, occupancy, temp_factor, element, charge
		FROM atoms WHERE structure_id = $1 ORDER BY atom_index
	`
	rows, err := r.executor().QueryContext(ctx, query, structureID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query atoms")
	}
	defer rows.Close()

	atoms := []structure.Atom{}
	for rows.Next() {
		var (
			a       structure.Atom
			x, y, z float64
		)
		if err := rows.Scan(
			&a.Index, &a.Serial, &a.Name, &a.AltLoc, &a.ResidueName, &a.ChainID, &a.ResidueSeq, &a.InsertionCode,
			&x, &y, &z, &a.Occupancy, &a.TempFactor, &a.Element, &a.Charge,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan atom")
		}
		a.Position = geometry.Vec3{X: x, Y: y, Z: z}
		atoms = append(atoms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate atoms")
	}
	return atoms, nil
}

// ReplaceBonds deletes the stored bonds of the structure and bulk loads bonds.
func (r *postgresStructureRepo) ReplaceBonds(ctx context.Context, structureID string, bonds []structure.Bond) error {
	if err := checkStructureID(structureID); err != nil {
		return err
	}
	return r.inTx(ctx, func(ex queryExecutor) error {
		if _, err := ex.ExecContext(ctx, `DELETE FROM bonds WHERE structure_id = $1`, structureID); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear bonds")
		}
		if len(bonds) == 0 {
			return nil
		}
		return copyRows(ctx, ex, "bonds", bondCopyColumns, len(bonds), func(i int) []interface{} {
			b := bonds[i]
			return []interface{}{structureID, b.Atom1Index, b.Atom2Index, string(b.Type), b.Order, b.Distance}
		})
	})
}

// ListBonds returns the bonds of the structure ordered by atom pair.
func (r *postgresStructureRepo) ListBonds(ctx context.Context, structureID string) ([]structure.Bond, error) {
	if err := checkStructureID(structureID); err != nil {
		return nil, err
	}
	query := `
		SELECT atom1_index, atom2_index, type, bond_order, distance
		FROM bonds WHERE structure_id = $1 ORDER BY atom1_index, atom2_index
	`
	rows, err := r.executor().QueryContext(ctx, query, structureID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query bonds")
	}
	defer rows.Close()

	bonds := []structure.Bond{}
	for rows.Next() {
		var (
			b        structure.Bond
			bondType string
		)
		if err := rows.Scan(&b.Atom1Index, &b.Atom2Index, &bondType, &b.Order, &b.Distance); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan bond")
		}
		b.Type = structure.BondType(bondType)
		bonds = append(bonds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate bonds")
	}
	return bonds, nil
}
