// Package app wires configuration into the services both binaries run.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/config"
	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/pool"
	"github.com/aman-zulfiqar/private-swap/internal/rpc"
	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/stream"
	"github.com/aman-zulfiqar/private-swap/internal/swapengine"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

// App holds the wired services for one wallet session.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Chain   *rpc.Client
	Redis   *redis.Client
	Journal *cache.ClickHouseJournal // nil without CLICKHOUSE_ADDR
	PubSub  *cache.PubSubManager

	Watcher stream.Watcher // nil with POOL_WATCH=off

	Session    *session.Session
	Router     *permission.Router
	Compliance *compliance.Client
	Pool       *pool.Orchestrator
	Engine     *swapengine.Engine
}

// NewLogger returns the text logger the binaries share.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// LoadEnv reads .env from the module root, falling back to the process
// environment.
func LoadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Debugf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// New connects the stores and builds the services for the configured wallet.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	w, err := wallet.NewWallet(cfg.WalletPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	validator, err := solana.PublicKeyFromBase58(cfg.VenueValidator)
	if err != nil {
		return nil, fmt.Errorf("%w: VENUE_VALIDATOR: %v", config.ErrInvalidConfiguration, err)
	}

	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		_ = rclient.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Redis:  rclient,
		PubSub: cache.NewPubSubManager(rclient, logger),
	}

	sinks := cache.MultiSink{a.PubSub}
	if cfg.ClickHouseAddr != "" {
		j, err := cache.NewClickHouseJournal(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse journal unavailable, continuing without it")
		} else {
			a.Journal = j
			sinks = append(sinks, j)
		}
	}

	store, err := mints.NewStore(rclient, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Chain = rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RPCRateLimit,
		Logger:       logger,
	})

	switch cfg.PoolWatch {
	case "ws":
		wsURL := cfg.RPCWSUrl
		if wsURL == "" {
			wsURL = stream.WebsocketURL(cfg.RPCUrl)
		}
		a.Watcher = stream.NewAccountSubscriber(stream.SubscriberConfig{URL: wsURL, Logger: logger})
	case "poll":
		a.Watcher = stream.NewAccountPoller(stream.PollerConfig{
			Reader:   a.Chain,
			Interval: cfg.PoolPollInterval,
			Logger:   logger,
		})
	}

	a.Router = &permission.Router{
		Dial: func(endpoint string) permission.Conn { return a.Chain.WithEndpoint(endpoint) },
	}
	if cfg.VenueURL != "" {
		a.Router.Tokens = permission.NewTokenSource(permission.TokenSourceConfig{
			BaseURL: cfg.VenueURL,
			Timeout: cfg.HTTPTimeout,
			Logger:  logger,
		})
	}

	codec := confidential.NewHTTPCodec(confidential.HTTPCodecConfig{
		BaseURL: cfg.CovalidatorURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})

	a.Compliance = compliance.NewClient(compliance.Config{
		APIKey:     cfg.RangeAPIKey,
		FailClosed: cfg.ComplianceFailClosed,
		CacheTTL:   cfg.ComplianceCacheTTL,
		Logger:     logger,
	})

	a.Pool = pool.NewOrchestrator(pool.Config{
		Chain:          a.Chain,
		Router:         a.Router,
		Codec:          codec,
		Store:          store,
		Events:         sinks,
		FeeBps:         uint16(cfg.PoolFeeBps),
		SeedA:          cfg.LiquiditySeedA,
		SeedB:          cfg.LiquiditySeedB,
		Validator:      validator,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	maxIn, daily := cfg.RiskBounds()
	a.Engine = swapengine.NewEngine(swapengine.Config{
		Chain:      a.Chain,
		Router:     a.Router,
		Codec:      codec,
		Compliance: a.Compliance,
		Risk: swapengine.NewRiskManager(swapengine.RiskConfig{
			MaxAmountIn:       maxIn,
			DailyLimit:        daily,
			MaxPriceImpactBps: uint16(cfg.RiskMaxPriceImpactBps),
		}),
		Events:         sinks,
		QuoteDebounce:  cfg.QuoteDebounce,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	a.Session = session.New(w, cfg.VenueEnabled)
	m, err := store.Resolve(ctx, cfg)
	switch {
	case errors.Is(err, mints.ErrNotFound):
		logger.Info("no mint configuration yet")
	case err != nil:
		logger.WithError(err).Warn("failed to load stored mints")
	default:
		a.Session.SetMints(m)
		logger.WithFields(logrus.Fields{
			"mint_a": m.MintA.String(),
			"mint_b": m.MintB.String(),
			"source": m.Source,
		}).Info("mints loaded")
	}
	a.Router.Prime(a.Session)

	logger.WithFields(logrus.Fields{
		"wallet": w.Address(),
		"rpc":    cfg.RPCUrl,
		"venue":  a.Router.Active(a.Session),
	}).Info("services ready")
	return a, nil
}

// Close ends the session and releases connections.
func (a *App) Close() {
	if a.Session != nil {
		a.Engine.Forget(a.Session)
		a.Session.Close()
	}
	if a.Journal != nil {
		_ = a.Journal.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
