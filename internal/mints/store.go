package mints

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/config"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
)

// Store persists locally created mints under two fixed keys.
type Store struct {
	client redis.Cmdable
	logger *logrus.Logger
}

func NewStore(client redis.Cmdable, logger *logrus.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{client: client, logger: logger}, nil
}

// Save writes both mints atomically.
func (s *Store) Save(ctx context.Context, mintA, mintB solana.PublicKey) error {
	if s == nil {
		return fmt.Errorf("mint store not configured")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, constants.RedisKeyMintA, mintA.String(), 0)
	pipe.Set(ctx, constants.RedisKeyMintB, mintB.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save mints: %w", err)
	}
	return nil
}

// Load returns the stored pair as a Local config. Unparseable values are
// removed and reported as ErrNotFound.
func (s *Store) Load(ctx context.Context) (*Config, error) {
	if s == nil {
		return nil, ErrNotFound
	}

	vals, err := s.client.MGet(ctx, constants.RedisKeyMintA, constants.RedisKeyMintB).Result()
	if err != nil {
		return nil, fmt.Errorf("load mints: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, ErrNotFound
	}

	a, errA := parseStored(vals[0])
	b, errB := parseStored(vals[1])
	if errA != nil || errB != nil || a.Equals(b) {
		s.logger.WithFields(logrus.Fields{
			"mintA": vals[0],
			"mintB": vals[1],
		}).Warn("discarding invalid stored mints")
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return &Config{MintA: a, MintB: b, Source: SourceLocal}, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := s.client.Del(ctx, constants.RedisKeyMintA, constants.RedisKeyMintB).Err(); err != nil {
		return fmt.Errorf("clear mints: %w", err)
	}
	return nil
}

// Resolve picks the mint pair for a session. Operator-configured mints win
// over stored ones; an invalid configured pair is ignored with a warning.
func (s *Store) Resolve(ctx context.Context, cfg *config.Config) (*Config, error) {
	if cfg != nil {
		a, b, ok, err := cfg.ConfiguredMints()
		switch {
		case err != nil:
			s.log().WithError(err).Warn("ignoring configured mints")
		case ok:
			return &Config{MintA: a, MintB: b, Source: SourceExternal}, nil
		}
	}

	stored, err := s.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	return stored, err
}

func (s *Store) log() *logrus.Logger {
	if s == nil || s.logger == nil {
		return logrus.StandardLogger()
	}
	return s.logger
}

func parseStored(v any) (solana.PublicKey, error) {
	str, ok := v.(string)
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("unexpected type %T", v)
	}
	return solana.PublicKeyFromBase58(str)
}
