package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event kinds
const (
	KindStage      = "stage"
	KindOperation  = "operation"
	KindSwap       = "swap"
	KindCompliance = "compliance"
	KindReserves   = "reserves"
)

// Event is a status update from a flow. Amounts never appear here; only
// labels, signatures and human-readable status text.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Pool      string    `json:"pool,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Label     string    `json:"label,omitempty"`
	Signature string    `json:"signature,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(sessionID, kind, status string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, ev *Event) error
}

// MultiSink fans an event out to every non-nil sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, ev *Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev *Event) error

func (f SinkFunc) Publish(ctx context.Context, ev *Event) error { return f(ctx, ev) }
