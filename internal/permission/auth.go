package permission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

// ErrAuthorizationFetch is returned when the venue token could not be
// obtained. It stays in effect for the session until Reset or the venue is
// disabled.
var ErrAuthorizationFetch = errors.New("venue authorization failed")

type challengeResponse struct {
	Challenge string `json:"challenge"`
	Error     string `json:"error,omitempty"`
}

type loginRequest struct {
	Pubkey    string `json:"pubkey"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	Error     string `json:"error,omitempty"`
}

type TokenSourceConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// TokenSource obtains venue tokens through the challenge/login exchange.
// Concurrent requests for the same endpoint and wallet share one exchange.
type TokenSource struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	group   singleflight.Group
	logger  *logrus.Logger
}

func NewTokenSource(cfg TokenSourceConfig) *TokenSource {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TokenSource{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

func (ts *TokenSource) BaseURL() string { return ts.baseURL }

// Token returns the session's cached token or runs the exchange. Caller
// cancellation only abandons the wait; the shared exchange keeps running and
// its result still lands in the session.
func (ts *TokenSource) Token(ctx context.Context, sess *session.Session) (session.Token, error) {
	if status, err := sess.VenueStatus(); status == session.VenueError {
		return session.Token{}, fmt.Errorf("%w: %v", ErrAuthorizationFetch, err)
	}
	if tok, ok := sess.Token(ts.baseURL); ok {
		return tok, nil
	}

	w := sess.Wallet()
	if w == nil {
		return session.Token{}, wallet.ErrMissingSigner
	}

	sess.BeginVenueAuth()
	key := ts.baseURL + "|" + w.Address()
	ch := ts.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ts.timeout)
		defer cancel()

		tok, err := ts.exchange(fctx, w)
		if err != nil {
			sess.FailVenueAuth(err)
			return nil, err
		}
		sess.StoreToken(ts.baseURL, tok)
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return session.Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			sess.FailVenueAuth(res.Err)
			return session.Token{}, fmt.Errorf("%w: %w", ErrAuthorizationFetch, res.Err)
		}
		tok := res.Val.(session.Token)
		sess.StoreToken(ts.baseURL, tok)
		return tok, nil
	}
}

func (ts *TokenSource) exchange(ctx context.Context, w *wallet.Wallet) (session.Token, error) {
	log := ts.logger.WithField("wallet", w.Address())
	log.Debug("requesting venue challenge")

	var ch challengeResponse
	challengeURL := fmt.Sprintf("%s/auth/challenge?pubkey=%s", ts.baseURL, url.QueryEscape(w.Address()))
	if err := ts.do(ctx, http.MethodGet, challengeURL, nil, &ch); err != nil {
		return session.Token{}, fmt.Errorf("challenge: %w", err)
	}
	if ch.Challenge == "" {
		return session.Token{}, fmt.Errorf("challenge: empty response %s", ch.Error)
	}

	sig, err := w.SignMessage([]byte(ch.Challenge))
	if err != nil {
		return session.Token{}, err
	}

	var login loginResponse
	req := loginRequest{Pubkey: w.Address(), Challenge: ch.Challenge, Signature: base58.Encode(sig)}
	if err := ts.do(ctx, http.MethodPost, ts.baseURL+"/auth/login", req, &login); err != nil {
		return session.Token{}, fmt.Errorf("login: %w", err)
	}
	if login.Token == "" {
		return session.Token{}, fmt.Errorf("login: no token returned %s", login.Error)
	}

	tok := session.Token{Value: login.Token}
	if login.ExpiresAt > 0 {
		tok.ExpiresAt = time.UnixMilli(login.ExpiresAt).UTC()
	}
	log.WithField("expires_at", tok.ExpiresAt).Info("venue authorized")
	return tok, nil
}

func (ts *TokenSource) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// VenueURL returns base with the token attached as a query parameter.
func VenueURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse venue url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Conn is a full connection to a ledger endpoint. *rpc.Client implements it.
type Conn interface {
	submit.Ledger
	AccountReader
}

// Router picks the connection venue-routed operations and reads go through.
type Router struct {
	Tokens *TokenSource
	Dial   func(endpoint string) Conn
}

// Active reports whether operations for sess go through the venue.
func (r *Router) Active(sess *session.Session) bool {
	return r != nil && r.Tokens != nil && r.Dial != nil && sess.VenueEnabled()
}

// Conn returns base when the venue is inactive, and otherwise a connection
// to the authorized venue endpoint.
func (r *Router) Conn(ctx context.Context, sess *session.Session, base Conn) (Conn, error) {
	if !r.Active(sess) {
		return base, nil
	}
	tok, err := r.Tokens.Token(ctx, sess)
	if err != nil {
		return nil, err
	}
	endpoint, err := VenueURL(r.Tokens.BaseURL(), tok.Value)
	if err != nil {
		return nil, err
	}
	return r.Dial(endpoint), nil
}

// Prime starts the token exchange for sess in the background so the first
// venue-routed operation does not wait on it. Failures land in the session
// status.
func (r *Router) Prime(sess *session.Session) {
	if !r.Active(sess) {
		return
	}
	go func() {
		_, _ = r.Tokens.Token(context.Background(), sess)
	}()
}
