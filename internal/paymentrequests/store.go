package paymentrequests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deliajin33/stablecoin/pkg/enums"
)

var (
	ErrNotFound          = errors.New("payment request not found")
	ErrDuplicateID       = errors.New("payment request id already exists")
	ErrConflict          = errors.New("payment request status changed")
	ErrInvalidTransition = errors.New("invalid payment request transition")
)

// ConflictError reports that a compare-and-transition lost: the stored status
// was no longer the expected one.
type ConflictError struct {
	ID       uuid.UUID
	Expected enums.PaymentRequestStatus
	Observed enums.PaymentRequestStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment request %s: expected %s, observed %s", e.ID, e.Expected, e.Observed)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Mutator edits a copy of the record during a transition. Returning an error
// vetoes the transition and leaves the stored record untouched.
type Mutator func(*PaymentRequest) error

// Store persists payment requests and their transactions. All lifecycle
// mutation goes through CompareAndTransition.
type Store interface {
	Insert(ctx context.Context, req PaymentRequest) error
	Get(ctx context.Context, id uuid.UUID) (PaymentRequest, error)
	CompareAndTransition(ctx context.Context, id uuid.UUID, expected enums.PaymentRequestStatus, mutate Mutator) (PaymentRequest, error)
	List(ctx context.Context, filter ListFilter) ([]PaymentRequest, error)
	InsertTransaction(ctx context.Context, tx Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// checkTransition enforces the lifecycle invariants on a mutated record.
func checkTransition(before, after PaymentRequest) error {
	if after.ID != before.ID || !after.CreatedAt.Equal(before.CreatedAt) || !after.ExpiresAt.Equal(before.ExpiresAt) {
		return fmt.Errorf("%w: immutable field changed", ErrInvalidTransition)
	}
	if !before.Status.CanTransitionTo(after.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, before.Status, after.Status)
	}
	paid := after.Status == enums.PaymentRequestStatusPaid
	if paid != (after.SettledTransactionID != "") {
		return fmt.Errorf("%w: settled transaction id must be set only when paid", ErrInvalidTransition)
	}
	return nil
}
