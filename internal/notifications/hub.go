package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/metrics"
)

const defaultSubscriberBuffer = 4

// HubParams configure the notification hub.
type HubParams struct {
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
	// Buffer is the per-subscriber channel capacity.
	Buffer int
}

// Hub fans status events out to subscribers of a payment request. Sends never
// block: a subscriber whose buffer is full misses the event.
type Hub struct {
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
	buffer  int

	mu        sync.Mutex
	nextID    uint64
	subs      map[string]map[uint64]*Subscription
	terminal  map[string]StatusEvent
	listeners []Listener
}

// Subscription is a live stream of events for one payment request.
type Subscription struct {
	hub       *Hub
	requestID string
	id        uint64
	ch        chan StatusEvent
	closed    bool // guarded by hub.mu
}

// NewHub builds an empty hub.
func NewHub(params HubParams) (*Hub, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	buffer := params.Buffer
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		logg:     params.Logger,
		metrics:  params.Metrics,
		buffer:   buffer,
		subs:     make(map[string]map[uint64]*Subscription),
		terminal: make(map[string]StatusEvent),
	}, nil
}

// AddListener registers an observer that sees every published event.
func (h *Hub) AddListener(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// Subscribe opens a stream for requestID. If the request already reached a
// terminal status the stream yields that event and is closed immediately.
func (h *Hub) Subscribe(requestID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:       h,
		requestID: requestID,
		id:        h.nextID,
		ch:        make(chan StatusEvent, h.buffer),
	}
	if event, ok := h.terminal[requestID]; ok {
		sub.ch <- event
		close(sub.ch)
		sub.closed = true
		return sub
	}

	bucket, ok := h.subs[requestID]
	if !ok {
		bucket = make(map[uint64]*Subscription)
		h.subs[requestID] = bucket
	}
	bucket[sub.id] = sub
	return sub
}

// Publish delivers event to current subscribers and listeners. Terminal events
// are remembered for late subscribers and close every open stream.
func (h *Hub) Publish(event StatusEvent) {
	h.mu.Lock()
	terminal := event.Terminal()
	if terminal {
		h.terminal[event.RequestID] = event
	}
	dropped := 0
	bucket := h.subs[event.RequestID]
	for id, sub := range bucket {
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
		if terminal {
			close(sub.ch)
			sub.closed = true
			delete(bucket, id)
		}
	}
	if len(bucket) == 0 {
		delete(h.subs, event.RequestID)
	}
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	if dropped > 0 {
		ctx := h.logg.WithFields(context.Background(), map[string]any{
			"payment_request_id": event.RequestID,
			"status":             event.Status,
			"dropped":            dropped,
		})
		h.logg.Warn(ctx, "subscriber buffer full; event dropped")
		for i := 0; i < dropped; i++ {
			h.metrics.IncDropped("subscriber")
		}
	}

	for _, l := range listeners {
		l.OnStatusEvent(event)
	}
}

// Forget drops remembered terminal events, e.g. after their requests are pruned.
func (h *Hub) Forget(requestIDs ...string) {
	h.mu.Lock()
	for _, id := range requestIDs {
		delete(h.terminal, id)
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of open streams for requestID.
func (h *Hub) SubscriberCount(requestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[requestID])
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	if bucket, ok := h.subs[sub.requestID]; ok {
		delete(bucket, sub.id)
		if len(bucket) == 0 {
			delete(h.subs, sub.requestID)
		}
	}
}

// Events returns the receive side of the stream. It is closed after a
// terminal event or on Close.
func (s *Subscription) Events() <-chan StatusEvent {
	return s.ch
}

// RequestID returns the payment request this stream follows.
func (s *Subscription) RequestID() string {
	return s.requestID
}

// Close ends the stream. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s)
}
