// Package store defines the persistence interfaces for the application's
// entities along with database-agnostic error sentinels and transaction
// helpers. Concrete implementations live in internal/platform/postgres.
package store
