package app

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/stream"
)

const watchRecheck = 5 * time.Second

// WatchPool follows the session's pool account until ctx is done, moving to
// the new pool whenever the session's mints change.
func (a *App) WatchPool(ctx context.Context) {
	if a.Watcher == nil {
		return
	}
	for ctx.Err() == nil {
		pool, ok := a.currentPool()
		if !ok {
			if !sleep(ctx, watchRecheck) {
				return
			}
			continue
		}

		wctx, cancel := context.WithCancel(ctx)
		go func() {
			defer cancel()
			for sleep(wctx, watchRecheck) {
				if next, ok := a.currentPool(); !ok || !next.Equals(pool) {
					return
				}
			}
		}()

		err := a.Watcher.Watch(wctx, pool, func(ch stream.Change) {
			a.Engine.ReservesChanged(ctx, a.Session, ch.Account, ch.Slot)
		})
		cancel()
		if err != nil && ctx.Err() == nil && wctx.Err() == nil {
			a.Logger.WithError(err).Warn("pool watch stopped")
			if !sleep(ctx, watchRecheck) {
				return
			}
		}
	}
}

func (a *App) currentPool() (solana.PublicKey, bool) {
	_, accts, err := a.Pool.Accounts(a.Session)
	if err != nil {
		return solana.PublicKey{}, false
	}
	return accts.Pool, true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
