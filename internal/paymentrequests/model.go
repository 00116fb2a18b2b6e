package paymentrequests

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deliajin33/stablecoin/pkg/enums"
	"github.com/deliajin33/stablecoin/pkg/paycode"
)

// MaxDescriptionLength bounds the free-text note shown to the payer.
const MaxDescriptionLength = 140

// PaymentRequest is an invoice that can be settled at most once.
type PaymentRequest struct {
	ID         uuid.UUID
	MerchantID string
	Kind       enums.PaymentRequestKind
	// Amount is nil for open-amount requests.
	Amount               *decimal.Decimal
	Currency             enums.Currency
	Description          string
	Network              string
	Status               enums.PaymentRequestStatus
	CreatedAt            time.Time
	ExpiresAt            time.Time
	ClosedAt             *time.Time
	SettledTransactionID string
}

// HasFixedAmount reports whether the payer must pay exactly Amount.
func (r PaymentRequest) HasFixedAmount() bool {
	return r.Amount != nil
}

// DeadlinePassed reports whether now is at or after the expiry instant.
// Expiry wins ties, so a request exactly at ExpiresAt is past its deadline.
func (r PaymentRequest) DeadlinePassed(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// NeedsExpiry reports whether the request is still pending past its deadline.
func (r PaymentRequest) NeedsExpiry(now time.Time) bool {
	return r.Status == enums.PaymentRequestStatusPending && r.DeadlinePassed(now)
}

// SecondsRemaining is the whole seconds left before expiry, rounded up. It is
// zero once the request has left pending or the deadline passed.
func (r PaymentRequest) SecondsRemaining(now time.Time) int64 {
	if r.Status != enums.PaymentRequestStatusPending || r.DeadlinePassed(now) {
		return 0
	}
	return int64(math.Ceil(r.ExpiresAt.Sub(now).Seconds()))
}

func (r PaymentRequest) clone() PaymentRequest {
	out := r
	if r.Amount != nil {
		amt := *r.Amount
		out.Amount = &amt
	}
	if r.ClosedAt != nil {
		closed := *r.ClosedAt
		out.ClosedAt = &closed
	}
	return out
}

func (r PaymentRequest) codeFields() paycode.Fields {
	return paycode.Fields{
		Version:    paycode.Version,
		RequestID:  r.ID.String(),
		MerchantID: r.MerchantID,
		Currency:   r.Currency,
		Amount:     r.Amount,
		ExpiresAt:  r.ExpiresAt,
	}
}

// Transaction is the immutable record of a successful settlement.
type Transaction struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	MerchantID  string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	NetAmount   decimal.Decimal
	Currency    enums.Currency
	PayerRef    string
	CompletedAt time.Time
}

// PaymentRequestView is the read model handed to callers. SecondsRemaining is
// computed on read and never stored.
type PaymentRequestView struct {
	ID                   string                     `json:"id"`
	MerchantID           string                     `json:"merchantId"`
	Status               enums.PaymentRequestStatus `json:"status"`
	Kind                 enums.PaymentRequestKind   `json:"kind"`
	Amount               *string                    `json:"amount,omitempty"`
	Currency             enums.Currency             `json:"currency"`
	Description          string                     `json:"description,omitempty"`
	Network              string                     `json:"network"`
	CreatedAt            time.Time                  `json:"createdAt"`
	ExpiresAt            time.Time                  `json:"expiresAt"`
	ClosedAt             *time.Time                 `json:"closedAt,omitempty"`
	SecondsRemaining     int64                      `json:"secondsRemaining"`
	SettledTransactionID string                     `json:"settledTransactionId,omitempty"`
	Payload              string                     `json:"payload"`
}

// TransactionView renders a Transaction with decimals as strings. Amount keeps
// the payer's scale; fee and net drop trailing zeros.
type TransactionView struct {
	ID          string         `json:"id"`
	RequestID   string         `json:"requestId"`
	MerchantID  string         `json:"merchantId"`
	Amount      string         `json:"amount"`
	Fee         string         `json:"fee"`
	NetAmount   string         `json:"netAmount"`
	Currency    enums.Currency `json:"currency"`
	PayerRef    string         `json:"payerRef"`
	CompletedAt time.Time      `json:"completedAt"`
}

// NewTransactionView converts tx into its read model.
func NewTransactionView(tx Transaction) TransactionView {
	return TransactionView{
		ID:          tx.ID.String(),
		RequestID:   tx.RequestID.String(),
		MerchantID:  tx.MerchantID,
		Amount:      paycode.FormatAmount(tx.Amount),
		Fee:         tx.Fee.String(),
		NetAmount:   tx.NetAmount.String(),
		Currency:    tx.Currency,
		PayerRef:    tx.PayerRef,
		CompletedAt: tx.CompletedAt,
	}
}

// ListFilter narrows a store listing. Zero fields match everything.
type ListFilter struct {
	MerchantID        string
	Status            enums.PaymentRequestStatus
	ExpiresAtOrBefore *time.Time
	ClosedBefore      *time.Time
}

func (f ListFilter) matches(r PaymentRequest) bool {
	if f.MerchantID != "" && r.MerchantID != f.MerchantID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.ExpiresAtOrBefore != nil && r.ExpiresAt.After(*f.ExpiresAtOrBefore) {
		return false
	}
	if f.ClosedBefore != nil && (r.ClosedAt == nil || !r.ClosedAt.Before(*f.ClosedBefore)) {
		return false
	}
	return true
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	MerchantID string
	Currency   enums.Currency
}

func (f TransactionFilter) matches(tx Transaction) bool {
	if f.MerchantID != "" && tx.MerchantID != f.MerchantID {
		return false
	}
	if f.Currency != "" && tx.Currency != f.Currency {
		return false
	}
	return true
}

// ListParams drive the merchant history listing.
type ListParams struct {
	MerchantID string
	Status     enums.PaymentRequestStatus
	Limit      int
	Cursor     string
}

// ListResult is one page of payment requests.
type ListResult struct {
	Items      []PaymentRequestView `json:"items"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// TransactionListParams drive the transaction history listing.
type TransactionListParams struct {
	MerchantID string
	Currency   enums.Currency
	Limit      int
	Cursor     string
}

// TransactionListResult is one page of transactions.
type TransactionListResult struct {
	Items      []TransactionView `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// CurrencyTotals aggregates settled volume for one currency.
type CurrencyTotals struct {
	Transactions int    `json:"transactions"`
	Volume       string `json:"volume"`
	Fees         string `json:"fees"`
	Net          string `json:"net"`
}

// Summary is the admin dashboard snapshot.
type Summary struct {
	Requests     map[enums.PaymentRequestStatus]int `json:"requests"`
	Transactions map[enums.Currency]CurrencyTotals  `json:"transactions"`
	GeneratedAt  time.Time                          `json:"generatedAt"`
}
