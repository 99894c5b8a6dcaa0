package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/revivephoto/revive-api/internal/store"
)

// PostgreSQL error codes relevant to our mapping.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	notNullViolationCode    = "23502"
	checkViolationCode      = "23514"
)

// MapError translates PostgreSQL driver errors into store-level sentinel
// errors so callers can use errors.Is without importing pgx.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if strings.Contains(pgErr.ConstraintName, "email") {
				return store.NewStoreError(store.ErrEmailExists, "constraint %q", pgErr.ConstraintName)
			}
			return store.NewStoreError(store.ErrDuplicateEntry, "constraint %q", pgErr.ConstraintName)
		case foreignKeyViolationCode:
			return store.NewStoreError(err, "foreign key violation on %q", pgErr.ConstraintName)
		case notNullViolationCode:
			return store.NewStoreError(err, "null value in column %q", pgErr.ColumnName)
		case checkViolationCode:
			return store.NewStoreError(err, "check violation on %q", pgErr.ConstraintName)
		}
	}

	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally restricted to a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// checkRowsAffected verifies an exec touched exactly one row, returning
// notFound when it touched none.
func checkRowsAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
