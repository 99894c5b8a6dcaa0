// Package postgres provides PostgreSQL implementations of the store
// interfaces, plus translation from pgx driver errors to the
// database-agnostic sentinels defined in internal/store.
package postgres
