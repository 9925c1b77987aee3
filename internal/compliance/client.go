// Package compliance screens wallet addresses against the Range risk API
// before a swap is allowed.
package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
)

var (
	// ErrBlocked is returned by Gate for sanctioned or high-risk addresses.
	ErrBlocked = errors.New("address blocked by compliance check")
	// ErrUnavailable is returned when the risk API fails and the client
	// is configured to fail closed.
	ErrUnavailable = errors.New("compliance check unavailable")
)

type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	FailClosed bool
	CacheTTL   time.Duration
	CacheSize  int
	Logger     *logrus.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	http       *http.Client
	failClosed bool
	cache      *expirable.LRU[string, *Result]
	logger     *logrus.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.RangeRiskURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		http:       &http.Client{Timeout: cfg.Timeout},
		failClosed: cfg.FailClosed,
		cache:      expirable.NewLRU[string, *Result](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:     cfg.Logger,
	}
}

// Check scores address. Without an API key the check is skipped and the
// address treated as compliant. An API failure is compliant with score 0
// unless the client fails closed.
func (c *Client) Check(ctx context.Context, address string) (*Result, error) {
	if c.apiKey == "" {
		c.logger.Warn("range API key not configured, skipping compliance check")
		return &Result{
			Address:     address,
			IsCompliant: true,
			RiskScore:   1,
			RiskLevel:   RiskVeryLow,
			Reasoning:   "Compliance check skipped - no API key configured",
			CheckedAt:   time.Now().UTC(),
		}, nil
	}

	if r, ok := c.cache.Get(address); ok {
		return r, nil
	}

	resp, err := c.fetch(ctx, address)
	if err != nil {
		c.logger.WithError(err).WithField("address", address).Error("range compliance check failed")
		if c.failClosed {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return &Result{
			Address:     address,
			IsCompliant: true,
			RiskScore:   0,
			RiskLevel:   RiskVeryLow,
			Reasoning:   fmt.Sprintf("Compliance check failed: %v", err),
			CheckedAt:   time.Now().UTC(),
		}, nil
	}

	isSanctioned := sanctioned(resp.MaliciousAddressesFound)
	result := &Result{
		Address:              address,
		IsCompliant:          resp.RiskScore < constants.RiskThreshold && !isSanctioned,
		RiskScore:            resp.RiskScore,
		RiskLevel:            resp.RiskLevel,
		Reasoning:            resp.Reasoning,
		IsSanctioned:         isSanctioned,
		MaliciousConnections: resp.MaliciousAddressesFound,
		CheckedAt:            time.Now().UTC(),
	}
	c.cache.Add(address, result)
	return result, nil
}

// Gate returns ErrBlocked when address must not trade.
func (c *Client) Gate(ctx context.Context, address string) (*Result, error) {
	r, err := c.Check(ctx, address)
	if err != nil {
		return nil, err
	}
	if !r.IsCompliant {
		return r, fmt.Errorf("%w: %s", ErrBlocked, Describe(r).Description)
	}
	return r, nil
}

func (c *Client) fetch(ctx context.Context, address string) (*riskResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("address", address)
	q.Set("network", "solana")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("range API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var out riskResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
