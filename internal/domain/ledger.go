package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LedgerDirection indicates whether a ledger entry moves balance out of
// (debit) or back into (credit) a user's account.
type LedgerDirection string

const (
	LedgerDirectionDebit  LedgerDirection = "debit"
	LedgerDirectionCredit LedgerDirection = "credit"
)

// Common validation errors for LedgerEntry.
var (
	ErrEmptyLedgerTaskID      = errors.New("ledger entry task ID cannot be empty")
	ErrEmptyLedgerUserID      = errors.New("ledger entry user ID cannot be empty")
	ErrInvalidLedgerDirection = errors.New("invalid ledger direction")
	ErrNonPositiveAmount      = errors.New("ledger amount must be positive")
)

// LedgerEntry is one immutable record of a balance movement tied to exactly
// one task. The store enforces uniqueness on (task_id, direction) so a given
// task can produce at most one debit over its whole retry history.
type LedgerEntry struct {
	ID        uuid.UUID       `json:"id"`
	TaskID    uuid.UUID       `json:"task_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Direction LedgerDirection `json:"direction"`
	Amount    int64           `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewLedgerEntry creates a validated ledger entry. Entries are never mutated
// after creation.
func NewLedgerEntry(taskID, userID uuid.UUID, direction LedgerDirection, amount int64, reason string) (*LedgerEntry, error) {
	e := &LedgerEntry{
		ID:        uuid.New(),
		TaskID:    taskID,
		UserID:    userID,
		Direction: direction,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks if the LedgerEntry has valid data.
func (e *LedgerEntry) Validate() error {
	if e.TaskID == uuid.Nil {
		return ErrEmptyLedgerTaskID
	}
	if e.UserID == uuid.Nil {
		return ErrEmptyLedgerUserID
	}
	if e.Direction != LedgerDirectionDebit && e.Direction != LedgerDirectionCredit {
		return ErrInvalidLedgerDirection
	}
	if e.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}
