package repositories

import (
	"context"
	"database/sql"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

var interactionCopyColumns = []string{
	"structure_id", "interaction_type", "atom1_index", "atom2_index", "distance", "angle",
	"atom1_residue", "atom1_residue_seq", "atom2_residue", "atom2_residue_seq",
	"is_predicted", "confidence",
}

// ReplaceInteractions deletes the stored interactions of the structure and
// bulk loads interactions.
func (r *postgresStructureRepo) ReplaceInteractions(ctx context.Context, structureID string, interactions []structure.Interaction) error {
	if err := checkStructureID(structureID); err != nil {
		return err
	}
	err := r.inTx(ctx, func(ex queryExecutor) error {
		if _, err := ex.ExecContext(ctx, `DELETE FROM interactions WHERE structure_id = $1`, structureID); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear interactions")
		}
		if len(interactions) == 0 {
			return nil
		}
		return copyRows(ctx, ex, "interactions", interactionCopyColumns, len(interactions), func(i int) []interface{} {
			in := interactions[i]
			var angle interface{}
			if in.Angle != nil {
				angle = *in.Angle
			}
			return []interface{}{
				structureID, string(in.Kind), in.Atom1Index, in.Atom2Index, in.Distance, angle,
				in.Atom1Residue, in.Atom1ResidueSeq, in.Atom2Residue, in.Atom2ResidueSeq,
				in.IsPredicted, in.Confidence,
			}
		})
	})
	if err != nil {
		return err
	}
	r.log.Debug("Interactions stored", logging.StructureID(structureID), logging.Int("count", len(interactions)))
	return nil
}

func (r *postgresStructureRepo) ListInteractions(ctx context.Context, structureID string, kind structure.InteractionKind) ([]structure.Interaction, error) {
	if err := checkStructureID(structureID); err != nil {
		return nil, err
	}
	query := `
		SELECT interaction_type, atom1_index, atom2_index, distance, angle,
			atom1_residue, atom1_residue_seq, atom2_residue, atom2_residue_seq, is_predicted, confidence
		FROM interactions WHERE structure_id = $1`
	args := []interface{}{structureID}
	if kind != "" {
		query += ` AND interaction_type = $2`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id`

	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query interactions")
	}
	defer rows.Close()

	out := []structure.Interaction{}
	for rows.Next() {
		var (
			in    structure.Interaction
			t     string
			angle sql.NullFloat64
		)
		if err := rows.Scan(
			&t, &in.Atom1Index, &in.Atom2Index, &in.Distance, &angle,
			&in.Atom1Residue, &in.Atom1ResidueSeq, &in.Atom2Residue, &in.Atom2ResidueSeq,
			&in.IsPredicted, &in.Confidence,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan interaction")
		}
		in.Kind = structure.InteractionKind(t)
		if angle.Valid {
			v := angle.Float64
			in.Angle = &v
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate interactions")
	}
	return out, nil
}
