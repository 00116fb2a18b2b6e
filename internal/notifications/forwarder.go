package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/metrics"
)

const (
	envelopeVersion       = 1
	defaultForwarderQueue = 256
	defaultPublishTimeout = 10 * time.Second
)

// Publisher sends one message to an external broker.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// Envelope is the stable payload published for every status event.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// ForwarderParams configure a Forwarder.
type ForwarderParams struct {
	Logger         *logger.Logger
	Publisher      Publisher
	Metrics        *metrics.PaymentMetrics
	QueueSize      int
	PublishTimeout time.Duration
}

// Forwarder is a hub Listener that relays events to a Publisher from its own
// goroutine so a slow broker never stalls a lifecycle transition.
type Forwarder struct {
	logg      *logger.Logger
	publisher Publisher
	metrics   *metrics.PaymentMetrics
	timeout   time.Duration
	queue     chan StatusEvent
	newID     func() uuid.UUID
}

// NewForwarder builds a forwarder. Call Run to start draining the queue.
func NewForwarder(params ForwarderParams) (*Forwarder, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultForwarderQueue
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Forwarder{
		logg:      params.Logger,
		publisher: params.Publisher,
		metrics:   params.Metrics,
		timeout:   timeout,
		queue:     make(chan StatusEvent, size),
		newID:     uuid.New,
	}, nil
}

// OnStatusEvent enqueues the event, dropping it when the queue is full.
func (f *Forwarder) OnStatusEvent(event StatusEvent) {
	select {
	case f.queue <- event:
	default:
		ctx := f.logg.WithFields(context.Background(), map[string]any{
			"payment_request_id": event.RequestID,
			"event_type":         event.EventType(),
		})
		f.logg.Warn(ctx, "forwarder queue full; event dropped")
		f.metrics.IncDropped("pubsub")
	}
}

// Run publishes queued events until ctx is canceled, then flushes what is
// already queued before returning.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.flush()
			return ctx.Err()
		case event := <-f.queue:
			f.forward(ctx, event)
		}
	}
}

func (f *Forwarder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	for {
		select {
		case event := <-f.queue:
			f.forward(ctx, event)
		default:
			return
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, event StatusEvent) {
	logCtx := f.logg.WithFields(ctx, map[string]any{
		"payment_request_id": event.RequestID,
		"event_type":         event.EventType(),
	})
	payload, err := f.envelope(event)
	if err != nil {
		f.logg.Error(logCtx, "failed to encode status envelope", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	attrs := map[string]string{
		"event_type": event.EventType(),
		"request_id": event.RequestID,
	}
	if err := f.publisher.Publish(pubCtx, payload, attrs); err != nil {
		f.logg.Error(logCtx, "failed to publish status event", err)
		f.metrics.IncDropped("pubsub")
		return
	}
	f.logg.Debug(logCtx, "status event published")
}

func (f *Forwarder) envelope(event StatusEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Version:    envelopeVersion,
		EventID:    f.newID().String(),
		EventType:  event.EventType(),
		OccurredAt: event.OccurredAt.UTC(),
		Data:       data,
	})
}
