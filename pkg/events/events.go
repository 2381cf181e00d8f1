// Package events publishes execution and settlement events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types emitted by the engine.
const (
	TypeExecutionOpened  = "execution.opened"
	TypeExecutionFilled  = "execution.filled"
	TypeExecutionPartial = "execution.partial"
	TypeExecutionFailed  = "execution.failed"
	TypePositionClosed   = "position.closed"
)

// DefaultStream is the Redis stream key used when none is configured.
const DefaultStream = "arb.events"

// Event is a single engine notification.
type Event struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	MarketID string            `json:"marketId,omitempty"`
	Time     time.Time         `json:"time"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(typ, marketID string, fields map[string]string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		MarketID: marketID,
		Time:     time.Now().UTC(),
		Fields:   fields,
	}
}

// Publisher delivers events. Publishing is best effort; callers log failures.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// StreamAdder is the subset of *redis.Client used by StreamPublisher.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewStreamPublisher publishes to stream, trimming it to roughly maxLen entries when maxLen > 0.
func NewStreamPublisher(client StreamAdder, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisPublisher dials url (redis://...) and returns a stream publisher and the client to close.
func NewRedisPublisher(url, stream string, maxLen int64) (*StreamPublisher, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return NewStreamPublisher(client, stream, maxLen), client, nil
}

func (p *StreamPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"type":      ev.Type,
			"market_id": ev.MarketID,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return p.client.XAdd(ctx, args).Err()
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of what was published.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
