package swapengine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a quote request that a newer one replaced.
var ErrSuperseded = errors.New("quote superseded by a newer request")

type QuoteFunc func(ctx context.Context) (*Quote, error)

// QuoteTracker debounces quote requests. Each Request bumps a generation and
// cancels the one before it; only a result whose generation is still current
// is published.
type QuoteTracker struct {
	debounce time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	latest *Quote
}

func NewQuoteTracker(debounce time.Duration) *QuoteTracker {
	return &QuoteTracker{debounce: debounce}
}

func (t *QuoteTracker) Request(ctx context.Context, fn QuoteFunc) (*Quote, error) {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	if t.cancel != nil {
		t.cancel()
	}
	rctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	timer := time.NewTimer(t.debounce)
	defer timer.Stop()

	select {
	case <-rctx.Done():
		if !t.current(gen) {
			return nil, ErrSuperseded
		}
		return nil, rctx.Err()
	case <-timer.C:
	}

	q, err := fn(rctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	t.latest = q
	return q, nil
}

// Cancel abandons any pending request and clears the latest quote, e.g. when
// the amount is cleared.
func (t *QuoteTracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.latest = nil
}

// Invalidate drops the latest quote without touching a pending request,
// e.g. when the pool's reserves moved.
func (t *QuoteTracker) Invalidate() {
	t.mu.Lock()
	t.latest = nil
	t.mu.Unlock()
}

// Latest returns the last published quote, if any.
func (t *QuoteTracker) Latest() *Quote {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

func (t *QuoteTracker) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}
