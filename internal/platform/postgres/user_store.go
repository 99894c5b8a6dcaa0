package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/store"
)

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	db         store.DBTX
	bcryptCost int
}

var _ store.UserStore = (*UserStore)(nil)

// NewUserStore creates a UserStore backed by the given database handle.
// bcryptCost controls password hashing work factor; pass bcrypt.DefaultCost
// outside of tests.
func NewUserStore(db store.DBTX, bcryptCost int) *UserStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserStore{db: db, bcryptCost: bcryptCost}
}

// WithTx returns a UserStore bound to the given transaction.
func (s *UserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &UserStore{db: tx, bcryptCost: s.bcryptCost}
}

const userColumns = `id, email, hashed_password, balance, is_admin, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validating user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.HashedPassword = string(hashed)
	user.Password = ""

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.HashedPassword, user.Balance,
		user.Admin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return store.NewStoreError(MapError(err), "inserting user %s", user.ID)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// AdjustBalance applies delta atomically. The WHERE guard rejects debits
// that would overdraw the account without a read-modify-write race.
func (s *UserStore) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`

	var balance int64
	err := s.db.QueryRowContext(ctx, query, delta, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing user from an overdraw.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, domain.ErrInsufficientBalance
		}
		return 0, store.NewStoreError(err, "adjusting balance for user %s", id)
	}
	return balance, nil
}

func (s *UserStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.HashedPassword, &user.Balance,
		&user.Admin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrUserNotFound
		}
		return nil, store.NewStoreError(err, "scanning user row")
	}
	return &user, nil
}
