package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
)

// UserStore defines persistence operations for user accounts.
type UserStore interface {
	// Create saves a new user to the store, hashing the password first.
	// Returns ErrEmailExists if the email address is already registered.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if no user exists with the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if no user exists with the given email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// AdjustBalance atomically applies delta to the user's credit balance
	// and returns the new balance. A debit that would take the balance
	// negative returns domain.ErrInsufficientBalance and changes nothing.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error)

	// WithTx returns a UserStore bound to the given transaction.
	WithTx(tx *sql.Tx) UserStore
}
