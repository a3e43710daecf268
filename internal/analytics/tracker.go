// Package analytics buffers storefront widget events and flushes them in
// batches. The queue is an explicit bounded channel owned by a single
// worker; producers never block and the buffer tolerates loss on shutdown.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Event is one widget interaction reported by a storefront.
type Event struct {
	ShopDomain string          `json:"shop_domain"`
	EventType  string          `json:"event_type"`
	SessionID  string          `json:"session_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Sink receives flushed batches.
type Sink interface {
	Flush(ctx context.Context, events []Event) error
}

const (
	defaultQueueSize     = 512
	defaultBatchSize     = 50
	defaultFlushInterval = 10 * time.Second
)

// Tracker owns the bounded queue and its flush policy: a batch is written
// when 50 events are buffered or every 10 seconds, whichever comes first.
type Tracker struct {
	queue    chan Event
	batch    int
	interval time.Duration
	sink     Sink
	logger   zerolog.Logger
	onDrop   func()
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithQueueSize overrides the queue capacity.
func WithQueueSize(n int) Option { return func(t *Tracker) { t.queue = make(chan Event, n) } }

// WithBatchSize overrides the size threshold.
func WithBatchSize(n int) Option { return func(t *Tracker) { t.batch = n } }

// WithFlushInterval overrides the timer threshold.
func WithFlushInterval(d time.Duration) Option { return func(t *Tracker) { t.interval = d } }

// WithDropHook installs a callback invoked when an event is dropped.
func WithDropHook(fn func()) Option { return func(t *Tracker) { t.onDrop = fn } }

// NewTracker creates a tracker; Run must be started for events to flush.
func NewTracker(sink Sink, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		queue:    make(chan Event, defaultQueueSize),
		batch:    defaultBatchSize,
		interval: defaultFlushInterval,
		sink:     sink,
		logger:   logger,
		onDrop:   func() {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track enqueues an event without blocking. Returns false when the queue is
// full and the event was dropped.
func (t *Tracker) Track(ev Event) bool {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case t.queue <- ev:
		return true
	default:
		t.onDrop()
		t.logger.Warn().Str("shop", ev.ShopDomain).Str("event", ev.EventType).Msg("Analytics queue full, dropping event")
		return false
	}
}

// Run is the single flush worker. It drains the queue until ctx is
// cancelled, then attempts one final flush of whatever is buffered.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	buf := make([]Event, 0, t.batch)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		// Flushing uses its own deadline: the run context may already be
		// cancelled during shutdown.
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.sink.Flush(flushCtx, buf); err != nil {
			t.logger.Error().Err(err).Int("events", len(buf)).Msg("Failed to flush analytics batch")
		}
		buf = buf[:0]
	}

	for {
		select {
		case ev := <-t.queue:
			buf = append(buf, ev)
			if len(buf) >= t.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			// Drain whatever is already queued, then a final flush.
			for {
				select {
				case ev := <-t.queue:
					buf = append(buf, ev)
				default:
					flush()
					return
				}
			}
		}
	}
}
