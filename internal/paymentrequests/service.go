package paymentrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/deliajin33/stablecoin/internal/notifications"
	"github.com/deliajin33/stablecoin/pkg/clock"
	"github.com/deliajin33/stablecoin/pkg/enums"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/metrics"
	"github.com/deliajin33/stablecoin/pkg/pagination"
	"github.com/deliajin33/stablecoin/pkg/paycode"
)

const (
	DefaultWindow         = 15 * time.Minute
	DefaultStaticWindow   = 24 * time.Hour
	DefaultMaxAmountScale = int32(6)
	DefaultNetwork        = "Polygon"

	maxIDAttempts = 5
)

// ServiceParams groups dependencies for the lifecycle service.
type ServiceParams struct {
	Store   Store
	Clock   clock.Clock
	Hub     *notifications.Hub
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics

	Window       time.Duration
	StaticWindow time.Duration
	// FeeRate defaults to DefaultFeeRate when nil.
	FeeRate        *decimal.Decimal
	MaxAmountScale int32
	Network        string
	NewID          func() uuid.UUID
}

// CreateInput describes a new payment request.
type CreateInput struct {
	MerchantID string
	// Amount is nil for an open-amount request.
	Amount      *decimal.Decimal
	Currency    string
	Description string
	// Static requests are open-amount codes with the long static window.
	Static bool
}

// SettleInput describes a payer's attempt to consume a request.
type SettleInput struct {
	RequestID string
	PayerRef  string
	// Amount may be omitted for fixed-amount requests.
	Amount   *decimal.Decimal
	Currency string
}

// Service owns the payment-request lifecycle. Every status change goes through
// the store's compare-and-transition, and only the winning caller publishes.
type Service interface {
	Create(ctx context.Context, in CreateInput) (PaymentRequest, error)
	Get(ctx context.Context, id string) (PaymentRequest, error)
	Settle(ctx context.Context, in SettleInput) (Transaction, error)
	Cancel(ctx context.Context, id, requesterMerchantID string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListTransactions(ctx context.Context, params TransactionListParams) (*TransactionListResult, error)
	Summary(ctx context.Context) (Summary, error)
	Subscribe(ctx context.Context, id string) (PaymentRequest, *notifications.Subscription, error)
	PruneClosed(ctx context.Context, cutoff time.Time) (int, error)
	View(req PaymentRequest) PaymentRequestView
	Payload(req PaymentRequest) string
}

type service struct {
	store   Store
	clock   clock.Clock
	hub     *notifications.Hub
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics

	window       time.Duration
	staticWindow time.Duration
	feeRate      decimal.Decimal
	maxScale     int32
	network      string
	newID        func() uuid.UUID
}

// NewService builds the lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		store:        params.Store,
		clock:        params.Clock,
		hub:          params.Hub,
		logg:         params.Logger,
		metrics:      params.Metrics,
		window:       params.Window,
		staticWindow: params.StaticWindow,
		feeRate:      DefaultFeeRate,
		maxScale:     params.MaxAmountScale,
		network:      strings.TrimSpace(params.Network),
		newID:        params.NewID,
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.staticWindow <= 0 {
		s.staticWindow = DefaultStaticWindow
	}
	if params.FeeRate != nil {
		if params.FeeRate.IsNegative() || params.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("fee rate must be in [0, 1)")
		}
		s.feeRate = *params.FeeRate
	}
	if s.maxScale <= 0 {
		s.maxScale = DefaultMaxAmountScale
	}
	if s.network == "" {
		s.network = DefaultNetwork
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s, nil
}

// Create validates the input and stores a pending request.
func (s *service) Create(ctx context.Context, in CreateInput) (PaymentRequest, error) {
	merchantID := strings.TrimSpace(in.MerchantID)
	if merchantID == "" {
		return PaymentRequest{}, invalid("merchantId", "merchant id is required")
	}
	currency, err := enums.ParseCurrency(in.Currency)
	if err != nil {
		return PaymentRequest{}, invalid("currency", "currency must be USDT or USDC")
	}
	if in.Amount != nil {
		if err := s.checkAmount(*in.Amount); err != nil {
			return PaymentRequest{}, err
		}
		if in.Static {
			return PaymentRequest{}, invalid("amount", "static codes are open amount")
		}
	}
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return PaymentRequest{}, invalid("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	now := s.clock.Now()
	req := PaymentRequest{
		MerchantID:  merchantID,
		Kind:        enums.PaymentRequestKindOpen,
		Currency:    currency,
		Description: description,
		Network:     s.network,
		Status:      enums.PaymentRequestStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.window),
	}
	switch {
	case in.Static:
		req.ExpiresAt = now.Add(s.staticWindow)
	case in.Amount != nil:
		amt := *in.Amount
		req.Kind = enums.PaymentRequestKindFixed
		req.Amount = &amt
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		req.ID = s.newID()
		err := s.store.Insert(ctx, req)
		if errors.Is(err, ErrDuplicateID) {
			s.logg.Warn(s.logg.WithField(s.logg.WithPaymentRequestID(ctx, req.ID.String()), "attempt", attempt), "payment request id collision; regenerating")
			continue
		}
		if err != nil {
			return PaymentRequest{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment request")
		}
		s.metrics.IncCreated(req.Currency.String(), req.Kind.String())
		logCtx := s.logg.WithMerchantID(s.logg.WithPaymentRequestID(ctx, req.ID.String()), merchantID)
		logCtx = s.logg.WithFields(s.logg.WithEvent(logCtx, "payment_request.created"), map[string]any{
			"currency": req.Currency,
			"kind":     req.Kind,
		})
		s.logg.Info(logCtx, "payment request created")
		return req, nil
	}
	return PaymentRequest{}, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique payment request id")
}

// Get returns the request, expiring it first if its deadline has passed.
func (s *service) Get(ctx context.Context, id string) (PaymentRequest, error) {
	reqID, err := parseID(id)
	if err != nil {
		return PaymentRequest{}, err
	}
	req, err := s.store.Get(ctx, reqID)
	if err != nil {
		return PaymentRequest{}, translateStoreError(err, "load payment request")
	}
	now := s.clock.Now()
	if req.NeedsExpiry(now) {
		return s.expire(ctx, req.ID, now)
	}
	return req, nil
}

// Settle consumes a pending request and produces its transaction. Concurrent
// callers race on the store transition; exactly one wins.
func (s *service) Settle(ctx context.Context, in SettleInput) (Transaction, error) {
	tx, err := s.settle(ctx, in)
	if err != nil {
		s.metrics.IncSettleRejected(rejectionReason(err))
	}
	return tx, err
}

func (s *service) settle(ctx context.Context, in SettleInput) (Transaction, error) {
	reqID, err := parseID(in.RequestID)
	if err != nil {
		return Transaction{}, err
	}
	ctx = s.logg.WithPaymentRequestID(ctx, reqID.String())
	req, err := s.store.Get(ctx, reqID)
	if err != nil {
		return Transaction{}, translateStoreError(err, "load payment request")
	}

	now := s.clock.Now()
	if req.NeedsExpiry(now) {
		current, err := s.expire(ctx, req.ID, now)
		if err != nil {
			return Transaction{}, err
		}
		if current.Status == enums.PaymentRequestStatusPaid {
			return Transaction{}, statusError(current.Status)
		}
		return Transaction{}, statusError(enums.PaymentRequestStatusExpired)
	}
	if req.Status != enums.PaymentRequestStatusPending {
		return Transaction{}, statusError(req.Status)
	}

	amount, currency, err := s.checkSettlement(req, in)
	if err != nil {
		return Transaction{}, err
	}

	txID := s.newID()
	var settledAt time.Time
	_, err = s.store.CompareAndTransition(ctx, req.ID, enums.PaymentRequestStatusPending, func(r *PaymentRequest) error {
		at := s.clock.Now()
		if r.DeadlinePassed(at) {
			return errDeadlinePassed
		}
		settledAt = at
		r.Status = enums.PaymentRequestStatusPaid
		r.SettledTransactionID = txID.String()
		r.ClosedAt = &at
		return nil
	})
	if errors.Is(err, errDeadlinePassed) {
		// The deadline elapsed between the read and the transition.
		if _, expErr := s.expire(ctx, req.ID, s.clock.Now()); expErr != nil {
			return Transaction{}, expErr
		}
		return Transaction{}, statusError(enums.PaymentRequestStatusExpired)
	}
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.logg.Info(s.logg.WithField(ctx, "observed", conflict.Observed), "settle lost race")
		}
		return Transaction{}, translateStoreError(err, "settle payment request")
	}

	fee, net := splitFee(amount, s.feeRate)
	tx := Transaction{
		ID:          txID,
		RequestID:   req.ID,
		MerchantID:  req.MerchantID,
		Amount:      amount,
		Fee:         fee,
		NetAmount:   net,
		Currency:    currency,
		PayerRef:    strings.TrimSpace(in.PayerRef),
		CompletedAt: settledAt,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		// The request is already paid; the transaction log is best effort.
		s.logg.Error(s.logg.WithTransactionID(ctx, tx.ID.String()), "failed to record transaction", err)
	}
	s.announce(ctx, req, enums.PaymentRequestStatusPaid, settledAt, tx.ID.String())
	return tx, nil
}

func (s *service) checkSettlement(req PaymentRequest, in SettleInput) (decimal.Decimal, enums.Currency, error) {
	if strings.TrimSpace(in.PayerRef) == "" {
		return decimal.Zero, "", invalid("payerRef", "payer reference is required")
	}
	currency, err := enums.ParseCurrency(in.Currency)
	if err != nil {
		return decimal.Zero, "", invalid("currency", "currency must be USDT or USDC")
	}
	if currency != req.Currency {
		return decimal.Zero, "", invalid("currency", "currency does not match the payment request")
	}
	if req.HasFixedAmount() {
		if in.Amount == nil {
			return *req.Amount, currency, nil
		}
		if !paycode.AmountInRange(*in.Amount) {
			return decimal.Zero, "", invalid("amount", "amount out of range")
		}
		if !in.Amount.Equal(*req.Amount) {
			return decimal.Zero, "", invalid("amount", "amount must equal the requested amount")
		}
		return *in.Amount, currency, nil
	}
	if in.Amount == nil || !in.Amount.IsPositive() {
		return decimal.Zero, "", invalid("amount", "amount must be greater than zero")
	}
	if err := s.checkAmount(*in.Amount); err != nil {
		return decimal.Zero, "", err
	}
	return *in.Amount, currency, nil
}

// Cancel withdraws a pending request. A non-empty requester must own it.
func (s *service) Cancel(ctx context.Context, id, requesterMerchantID string) error {
	reqID, err := parseID(id)
	if err != nil {
		return err
	}
	ctx = s.logg.WithPaymentRequestID(ctx, reqID.String())
	req, err := s.store.Get(ctx, reqID)
	if err != nil {
		return translateStoreError(err, "load payment request")
	}
	if requester := strings.TrimSpace(requesterMerchantID); requester != "" && requester != req.MerchantID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment request belongs to another merchant")
	}

	now := s.clock.Now()
	if req.NeedsExpiry(now) {
		current, err := s.expire(ctx, req.ID, now)
		if err != nil {
			return err
		}
		return statusError(current.Status)
	}

	var cancelledAt time.Time
	_, err = s.store.CompareAndTransition(ctx, req.ID, enums.PaymentRequestStatusPending, func(r *PaymentRequest) error {
		at := s.clock.Now()
		if r.DeadlinePassed(at) {
			return errDeadlinePassed
		}
		cancelledAt = at
		r.Status = enums.PaymentRequestStatusCancelled
		r.ClosedAt = &at
		return nil
	})
	if errors.Is(err, errDeadlinePassed) {
		if _, expErr := s.expire(ctx, req.ID, s.clock.Now()); expErr != nil {
			return expErr
		}
	}
	if err != nil {
		return translateStoreError(err, "cancel payment request")
	}
	s.announce(ctx, req, enums.PaymentRequestStatusCancelled, cancelledAt, "")
	return nil
}

// SweepExpired expires every pending request whose deadline is at or before
// now. Requests that moved on concurrently are skipped.
func (s *service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.List(ctx, ListFilter{
		Status:            enums.PaymentRequestStatusPending,
		ExpiresAtOrBefore: &now,
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due payment requests")
	}
	var (
		count int
		errs  error
	)
	for _, req := range due {
		if err := ctx.Err(); err != nil {
			return count, multierr.Append(errs, err)
		}
		won, err := s.expireIfPending(ctx, req.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", req.ID, err))
			continue
		}
		if won {
			count++
		}
	}
	return count, errs
}

// List returns one page of a merchant's requests, newest first.
func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	merchantID := strings.TrimSpace(params.MerchantID)
	if merchantID == "" {
		return nil, invalid("merchantId", "merchant id is required")
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, invalid("status", "unknown status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, invalid("cursor", "invalid cursor")
	}
	reqs, err := s.store.List(ctx, ListFilter{MerchantID: merchantID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment requests")
	}

	now := s.clock.Now()
	filtered := reqs[:0]
	for _, req := range reqs {
		if req.NeedsExpiry(now) {
			current, err := s.expire(ctx, req.ID, now)
			if err != nil {
				return nil, err
			}
			req = current
		}
		if params.Status == "" || req.Status == params.Status {
			filtered = append(filtered, req)
		}
	}

	page, next := pagination.Page(filtered, cursor, params.Limit, func(r PaymentRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	out := &ListResult{Items: make([]PaymentRequestView, 0, len(page)), NextCursor: next}
	for _, req := range page {
		out.Items = append(out.Items, s.viewAt(req, now))
	}
	return out, nil
}

// ListTransactions returns one page of settled transactions, newest first.
func (s *service) ListTransactions(ctx context.Context, params TransactionListParams) (*TransactionListResult, error) {
	merchantID := strings.TrimSpace(params.MerchantID)
	if merchantID == "" {
		return nil, invalid("merchantId", "merchant id is required")
	}
	if params.Currency != "" && !params.Currency.IsValid() {
		return nil, invalid("currency", "currency must be USDT or USDC")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, invalid("cursor", "invalid cursor")
	}
	txs, err := s.store.ListTransactions(ctx, TransactionFilter{MerchantID: merchantID, Currency: params.Currency})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}
	page, next := pagination.Page(txs, cursor, params.Limit, func(tx Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: tx.CompletedAt, ID: tx.ID}
	})
	out := &TransactionListResult{Items: make([]TransactionView, 0, len(page)), NextCursor: next}
	for _, tx := range page {
		out.Items = append(out.Items, NewTransactionView(tx))
	}
	return out, nil
}

// Summary aggregates request counts and settled volume. Pending requests past
// their deadline are counted as expired.
func (s *service) Summary(ctx context.Context) (Summary, error) {
	reqs, err := s.store.List(ctx, ListFilter{})
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment requests")
	}
	txs, err := s.store.ListTransactions(ctx, TransactionFilter{})
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}

	now := s.clock.Now()
	out := Summary{
		Requests:     make(map[enums.PaymentRequestStatus]int),
		Transactions: make(map[enums.Currency]CurrencyTotals),
		GeneratedAt:  now,
	}
	for _, status := range []enums.PaymentRequestStatus{
		enums.PaymentRequestStatusPending,
		enums.PaymentRequestStatusPaid,
		enums.PaymentRequestStatusExpired,
		enums.PaymentRequestStatusCancelled,
	} {
		out.Requests[status] = 0
	}
	for _, req := range reqs {
		status := req.Status
		if req.NeedsExpiry(now) {
			status = enums.PaymentRequestStatusExpired
		}
		out.Requests[status]++
	}

	type totals struct {
		count            int
		volume, fee, net decimal.Decimal
	}
	byCurrency := make(map[enums.Currency]*totals)
	for _, tx := range txs {
		t, ok := byCurrency[tx.Currency]
		if !ok {
			t = &totals{}
			byCurrency[tx.Currency] = t
		}
		t.count++
		t.volume = t.volume.Add(tx.Amount)
		t.fee = t.fee.Add(tx.Fee)
		t.net = t.net.Add(tx.NetAmount)
	}
	for currency, t := range byCurrency {
		out.Transactions[currency] = CurrencyTotals{
			Transactions: t.count,
			Volume:       paycode.FormatAmount(t.volume),
			Fees:         t.fee.String(),
			Net:          t.net.String(),
		}
	}
	return out, nil
}

// Subscribe returns the current request and a stream of its status events.
// The stream closes when ctx ends or a terminal event is delivered.
func (s *service) Subscribe(ctx context.Context, id string) (PaymentRequest, *notifications.Subscription, error) {
	if s.hub == nil {
		return PaymentRequest{}, nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications unavailable")
	}
	req, err := s.Get(ctx, id)
	if err != nil {
		return PaymentRequest{}, nil, err
	}
	sub := s.hub.Subscribe(req.ID.String())
	context.AfterFunc(ctx, sub.Close)
	return req, sub, nil
}

// PruneClosed deletes requests that left pending before cutoff.
func (s *service) PruneClosed(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.store.DeleteClosedBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "prune payment requests")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if s.hub != nil {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, id.String())
		}
		s.hub.Forget(keys...)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"pruned": len(ids), "cutoff": cutoff}), "closed payment requests pruned")
	return len(ids), nil
}

// View renders req for callers as of now.
func (s *service) View(req PaymentRequest) PaymentRequestView {
	return s.viewAt(req, s.clock.Now())
}

func (s *service) viewAt(req PaymentRequest, now time.Time) PaymentRequestView {
	view := PaymentRequestView{
		ID:                   req.ID.String(),
		MerchantID:           req.MerchantID,
		Status:               req.Status,
		Kind:                 req.Kind,
		Currency:             req.Currency,
		Description:          req.Description,
		Network:              req.Network,
		CreatedAt:            req.CreatedAt,
		ExpiresAt:            req.ExpiresAt,
		ClosedAt:             req.ClosedAt,
		SecondsRemaining:     req.SecondsRemaining(now),
		SettledTransactionID: req.SettledTransactionID,
		Payload:              s.Payload(req),
	}
	if req.Amount != nil {
		amt := paycode.FormatAmount(*req.Amount)
		view.Amount = &amt
	}
	return view
}

// Payload renders req as a scannable code.
func (s *service) Payload(req PaymentRequest) string {
	payload, err := paycode.Encode(req.codeFields())
	if err != nil {
		s.logg.Error(s.logg.WithPaymentRequestID(context.Background(), req.ID.String()), "failed to encode payment payload", err)
		return ""
	}
	return payload
}

// expire moves a pending request to expired and returns its stored state. A
// request that already left pending is returned as is.
func (s *service) expire(ctx context.Context, id uuid.UUID, now time.Time) (PaymentRequest, error) {
	current, _, err := s.transitionToExpired(ctx, id, now)
	return current, err
}

func (s *service) expireIfPending(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	_, won, err := s.transitionToExpired(ctx, id, now)
	return won, err
}

func (s *service) transitionToExpired(ctx context.Context, id uuid.UUID, now time.Time) (PaymentRequest, bool, error) {
	current, err := s.store.CompareAndTransition(ctx, id, enums.PaymentRequestStatusPending, func(r *PaymentRequest) error {
		r.Status = enums.PaymentRequestStatusExpired
		r.ClosedAt = &now
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return current, false, nil
	}
	if err != nil {
		return PaymentRequest{}, false, translateStoreError(err, "expire payment request")
	}
	s.announce(ctx, current, enums.PaymentRequestStatusExpired, now, "")
	return current, true, nil
}

// announce records a winning transition: metrics, log line and hub event.
func (s *service) announce(ctx context.Context, req PaymentRequest, status enums.PaymentRequestStatus, at time.Time, txID string) {
	event := notifications.StatusEvent{
		RequestID:     req.ID.String(),
		MerchantID:    req.MerchantID,
		Status:        status,
		OccurredAt:    at,
		TransactionID: txID,
	}
	s.metrics.IncTransition(status.String())
	logCtx := s.logg.WithEvent(s.logg.WithPaymentRequestID(ctx, event.RequestID), event.EventType())
	logCtx = s.logg.WithTransactionID(logCtx, txID)
	s.logg.Info(logCtx, "payment request "+status.String())
	if s.hub != nil {
		s.hub.Publish(event)
	}
}

func (s *service) checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return invalid("amount", "amount must not be negative")
	}
	if !paycode.AmountInRange(amount) {
		return invalid("amount", "amount out of range")
	}
	if !amount.Round(s.maxScale).Equal(amount) {
		return invalid("amount", fmt.Sprintf("amount supports at most %d decimal places", s.maxScale))
	}
	return nil
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, notFoundError()
	}
	return parsed, nil
}

func invalid(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]string{"field": field})
}
