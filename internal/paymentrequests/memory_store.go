package paymentrequests

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deliajin33/stablecoin/pkg/enums"
)

type record struct {
	mu  sync.Mutex
	req PaymentRequest
}

// MemoryStore keeps requests in process memory. The map lock only guards
// membership; each record carries its own lock so transitions on different
// requests never contend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*record

	txMu sync.RWMutex
	txs  []Transaction
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*record)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Insert(ctx context.Context, req PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[req.ID]; ok {
		return ErrDuplicateID
	}
	s.records[req.ID] = &record{req: req.clone()}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (PaymentRequest, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return PaymentRequest{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.req.clone(), nil
}

// CompareAndTransition applies mutate atomically when the stored status equals
// expected. The returned request is the stored state after the call, also on
// a *ConflictError.
func (s *MemoryStore) CompareAndTransition(ctx context.Context, id uuid.UUID, expected enums.PaymentRequestStatus, mutate Mutator) (PaymentRequest, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return PaymentRequest{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.req.Status != expected {
		return rec.req.clone(), &ConflictError{ID: id, Expected: expected, Observed: rec.req.Status}
	}
	next := rec.req.clone()
	if err := mutate(&next); err != nil {
		return rec.req.clone(), err
	}
	if err := checkTransition(rec.req, next); err != nil {
		return rec.req.clone(), err
	}
	rec.req = next
	return next.clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]PaymentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]PaymentRequest, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		req := rec.req.clone()
		rec.mu.Unlock()
		if filter.matches(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStore) InsertTransaction(ctx context.Context, tx Transaction) error {
	s.txMu.Lock()
	s.txs = append(s.txs, tx)
	s.txMu.Unlock()
	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	s.txMu.RLock()
	out := make([]Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if filter.matches(tx) {
			out = append(out, tx)
		}
	}
	s.txMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CompletedAt, out[i].ID, out[j].CompletedAt, out[j].ID)
	})
	return out, nil
}

// DeleteClosedBefore removes requests that left pending before cutoff.
// Transactions are kept.
func (s *MemoryStore) DeleteClosedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned []uuid.UUID
	for id, rec := range s.records {
		rec.mu.Lock()
		closed := rec.req.Status.IsTerminal() && rec.req.ClosedAt != nil && rec.req.ClosedAt.Before(cutoff)
		rec.mu.Unlock()
		if closed {
			delete(s.records, id)
			pruned = append(pruned, id)
		}
	}
	return pruned, nil
}

// Len returns the number of stored requests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) lookup(id uuid.UUID) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// newerFirst orders by time descending, then id descending, matching the
// pagination cursor order.
func newerFirst(at time.Time, id uuid.UUID, otherAt time.Time, otherID uuid.UUID) bool {
	if !at.Equal(otherAt) {
		return at.After(otherAt)
	}
	return strings.Compare(id.String(), otherID.String()) > 0
}
