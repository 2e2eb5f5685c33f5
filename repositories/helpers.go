package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLExecutor is satisfied by both *sqlx.DB and *sqlx.Tx, so every
// repository method can run inside or outside a caller's transaction.
type SQLExecutor interface {
	sqlx.ExtContext
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError // Возвращаем переданную ошибку "не найдено"
	}
	return nil
}

func pqErrorCode(err error) (pq.ErrorCode, string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, pqErr.Constraint, true
	}
	return "", "", false
}

// isUniqueViolation reports a unique constraint failure from either driver.
func isUniqueViolation(err error) bool {
	if code, _, ok := pqErrorCode(err); ok {
		return code == pqUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// forUpdate adds a row lock where the driver supports one.
func forUpdate(exec SQLExecutor) string {
	if exec.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// execEach runs one statement per argument list.
func execEach(ctx context.Context, exec SQLExecutor, query string, rows [][]interface{}) error {
	query = exec.Rebind(query)
	for _, args := range rows {
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
