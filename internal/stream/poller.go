package stream

import (
	"bytes"
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/rpc"
)

// AccountReader is the single RPC call the poller needs. *rpc.Client implements it.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.AccountInfo, error)
}

type PollerConfig struct {
	Reader   AccountReader
	Interval time.Duration
	Logger   *logrus.Logger
}

// AccountPoller reads the account on a fixed interval and reports it when
// its data differs from the previous read.
type AccountPoller struct {
	reader   AccountReader
	interval time.Duration
	logger   *logrus.Logger
}

func NewAccountPoller(cfg PollerConfig) *AccountPoller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &AccountPoller{reader: cfg.Reader, interval: cfg.Interval, logger: cfg.Logger}
}

func (p *AccountPoller) Watch(ctx context.Context, account solana.PublicKey, fn func(Change)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log := p.logger.WithField("account", account.String())
	log.WithField("interval", p.interval).Info("polling account")

	var (
		last   []byte
		exists bool
		primed bool
	)
	for {
		info, err := p.reader.GetAccountInfo(ctx, account)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("poll error")
		case info == nil:
			if primed && exists {
				fn(Change{Account: account, Deleted: true})
			}
			exists, last, primed = false, nil, true
		default:
			if primed && (!exists || !bytes.Equal(last, info.Data)) {
				fn(Change{Account: account, Data: info.Data})
			}
			exists, last, primed = true, info.Data, true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
