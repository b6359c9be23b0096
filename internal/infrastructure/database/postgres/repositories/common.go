package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// checkStructureID rejects ids that cannot be a stored key so a malformed id
// reads as not found instead of a driver cast error.
func checkStructureID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New(errors.ErrCodeStructureNotFound, "structure not found").WithDetail("id=" + id)
	}
	return nil
}

func structureNotFound(id string) error {
	return errors.New(errors.ErrCodeStructureNotFound, "structure not found").WithDetail("id=" + id)
}

// jsonb marshals v for a JSONB column; isNil stores SQL NULL.
func jsonb(v interface{}, isNil bool) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode jsonb column")
	}
	return b, nil
}

// copyRows streams rows into table with COPY FROM STDIN on ex, which must be
// a transaction.
func copyRows(ctx context.Context, ex queryExecutor, table string, columns []string, n int, row func(i int) []interface{}) error {
	stmt, err := ex.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to prepare copy into %s", table)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to copy row %d into %s", i, table)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to flush copy into %s", table)
	}
	return nil
}
