// Package repositories implements the structure domain repositories over
// PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/postgres"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

const structureColumns = `id, file_name, file_type, file_size, file_hash, content_type, storage_key,
	stage, metadata, atom_count, bond_count, analysis_data, created_at, updated_at`

var _ structure.Repository = (*postgresStructureRepo)(nil)

type postgresStructureRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewPostgresStructureRepo returns the PostgreSQL implementation of
// structure.Repository.
func NewPostgresStructureRepo(conn *postgres.Connection, log logging.Logger) structure.Repository {
	return &postgresStructureRepo{
		conn: conn,
		log:  log,
	}
}

func (r *postgresStructureRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

func (r *postgresStructureRepo) WithTx(ctx context.Context, fn func(structure.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	txRepo := &postgresStructureRepo{conn: r.conn, tx: tx, log: r.log}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("Failed to roll back transaction", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// inTx runs fn on the bound transaction, or on a fresh one committed when fn
// succeeds.
func (r *postgresStructureRepo) inTx(ctx context.Context, fn func(queryExecutor) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

func (r *postgresStructureRepo) Create(ctx context.Context, s *structure.Structure) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Stage == "" {
		s.Stage = structure.StageUploaded
	}
	meta, err := jsonb(s.Metadata, s.Metadata == nil)
	if err != nil {
		return err
	}
	analysis, err := jsonb(s.Analysis, s.Analysis == nil)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO structures (
			id, file_name, file_type, file_size, file_hash, content_type, storage_key,
			stage, metadata, atom_count, bond_count, analysis_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING created_at, updated_at
	`
	err = r.executor().QueryRowContext(ctx, query,
		s.ID, s.FileName, string(s.FileType), s.FileSize, s.FileHash, s.ContentType, s.StorageKey,
		string(s.Stage), meta, s.AtomCount, s.BondCount, analysis,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(err, errors.ErrCodeStructureAlreadyExists, "structure already exists").
				WithDetail("file_hash=" + s.FileHash)
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create structure")
	}

	r.log.Debug("Structure created", logging.StructureID(s.ID), logging.String("file_type", string(s.FileType)))
	return nil
}

func (r *postgresStructureRepo) GetByID(ctx context.Context, id string) (*structure.Structure, error) {
	if err := checkStructureID(id); err != nil {
		return nil, err
	}
	query := `SELECT ` + structureColumns + ` FROM structures WHERE id = $1`
	s, err := scanStructure(r.executor().QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, structureNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresStructureRepo) GetByHash(ctx context.Context, fileHash string) (*structure.Structure, error) {
	query := `SELECT ` + structureColumns + ` FROM structures WHERE file_hash = $1`
	s, err := scanStructure(r.executor().QueryRowContext(ctx, query, fileHash))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeStructureNotFound, "structure not found").WithDetail("file_hash=" + fileHash)
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresStructureRepo) List(ctx context.Context, opts structure.ListOptions) ([]*structure.Structure, int64, error) {
	var (
		conds []string
		args  []interface{}
	)
	if opts.FileType != "" {
		args = append(args, string(opts.FileType))
		conds = append(conds, fmt.Sprintf("file_type = $%d", len(args)))
	}
	if opts.Stage != "" {
		args = append(args, string(opts.Stage))
		conds = append(conds, fmt.Sprintf("stage = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM structures`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count structures")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM structures%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		structureColumns, where, len(args)-1, len(args))

	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list structures")
	}
	defer rows.Close()

	out := make([]*structure.Structure, 0, limit)
	for rows.Next() {
		s, err := scanStructure(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate structures")
	}
	return out, total, nil
}

func (r *postgresStructureRepo) UpdateStage(ctx context.Context, id string, stage structure.Stage) error {
	if err := checkStructureID(id); err != nil {
		return err
	}
	res, err := r.executor().ExecContext(ctx,
		`UPDATE structures SET stage = $1, updated_at = NOW() WHERE id = $2`, string(stage), id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update structure stage")
	}
	return expectOneRow(res, id)
}

func (r *postgresStructureRepo) UpdateParseResult(ctx context.Context, id string, meta *structure.ParseMetadata, atomCount, bondCount int) error {
	if err := checkStructureID(id); err != nil {
		return err
	}
	metaJSON, err := jsonb(meta, meta == nil)
	if err != nil {
		return err
	}
	query := `
		UPDATE structures
		SET stage = $1, metadata = $2, atom_count = $3, bond_count = $4, updated_at = NOW()
		WHERE id = $5
	`
	res, err := r.executor().ExecContext(ctx, query, string(structure.StageParsed), metaJSON, atomCount, bondCount, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record parse result")
	}
	return expectOneRow(res, id)
}

func (r *postgresStructureRepo) UpdateAnalysis(ctx context.Context, id string, summary *structure.AnalysisSummary, bondCount int) error {
	if err := checkStructureID(id); err != nil {
		return err
	}
	data, err := jsonb(summary, summary == nil)
	if err != nil {
		return err
	}
	query := `
		UPDATE structures
		SET stage = $1, analysis_data = $2, bond_count = $3, updated_at = NOW()
		WHERE id = $4
	`
	res, err := r.executor().ExecContext(ctx, query, string(structure.StageAnalyzed), data, bondCount, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record analysis")
	}
	return expectOneRow(res, id)
}

func (r *postgresStructureRepo) Delete(ctx context.Context, id string) error {
	if err := checkStructureID(id); err != nil {
		return err
	}
	res, err := r.executor().ExecContext(ctx, `DELETE FROM structures WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete structure")
	}
	if err := expectOneRow(res, id); err != nil {
		return err
	}
	r.log.Info("Structure deleted", logging.StructureID(id))
	return nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read affected rows")
	}
	if n == 0 {
		return structureNotFound(id)
	}
	return nil
}

// scanStructure returns sql.ErrNoRows unwrapped so callers can attach the
// lookup key to the not-found error.
func scanStructure(row scanner) (*structure.Structure, error) {
	s := &structure.Structure{}
	var (
		fileType, stage string
		meta, analysis  []byte
	)
	err := row.Scan(
		&s.ID, &s.FileName, &fileType, &s.FileSize, &s.FileHash, &s.ContentType, &s.StorageKey,
		&stage, &meta, &s.AtomCount, &s.BondCount, &analysis, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan structure")
	}
	s.FileType = structure.FileType(fileType)
	s.Stage = structure.Stage(stage)
	s.FileHash = strings.TrimSpace(s.FileHash)

	if len(meta) > 0 {
		s.Metadata = &structure.ParseMetadata{}
		if err := json.Unmarshal(meta, s.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode structure metadata")
		}
	}
	if len(analysis) > 0 {
		s.Analysis = &structure.AnalysisSummary{}
		if err := json.Unmarshal(analysis, s.Analysis); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode analysis summary")
		}
	}
	return s, nil
}
