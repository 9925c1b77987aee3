package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
)

type SubscriberConfig struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	Logger            *logrus.Logger
}

// AccountSubscriber watches an account with accountSubscribe, reconnecting
// with exponential backoff when the socket drops.
type AccountSubscriber struct {
	cfg    SubscriberConfig
	logger *logrus.Logger
}

func NewAccountSubscriber(cfg SubscriberConfig) *AccountSubscriber {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &AccountSubscriber{cfg: cfg, logger: cfg.Logger}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string `json:"method"`
	Params *struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value *struct {
				Data []string `json:"data"`
			} `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

func (s *AccountSubscriber) Watch(ctx context.Context, account solana.PublicKey, fn func(Change)) error {
	log := s.logger.WithField("account", account.String())
	delay := s.cfg.ReconnectDelay

	for {
		received, err := s.run(ctx, account, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			delay = s.cfg.ReconnectDelay
		}
		log.WithError(err).WithField("retry_in", delay).Warn("account subscription dropped")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, s.cfg.MaxReconnectDelay)
	}
}

// run holds one connection until it fails or ctx is done. received reports
// whether any notification arrived.
func (s *AccountSubscriber) run(ctx context.Context, account solana.PublicKey, fn func(Change)) (received bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []any{
			account.String(),
			map[string]string{"encoding": "base64", "commitment": constants.CommitmentConfirmed},
		},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})
	done := make(chan struct{})
	defer close(done)
	go s.ping(conn, done)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.WithError(err).Debug("dropping malformed message")
			continue
		}

		switch {
		case msg.ID == req.ID && msg.Error != nil:
			return received, fmt.Errorf("accountSubscribe: %d %s", msg.Error.Code, msg.Error.Message)
		case msg.ID == req.ID:
			s.logger.WithFields(logrus.Fields{
				"account":      account.String(),
				"subscription": string(msg.Result),
			}).Info("subscribed to account")
		case msg.Method == "accountNotification" && msg.Params != nil:
			ch, err := decodeNotification(account, msg)
			if err != nil {
				s.logger.WithError(err).Warn("dropping account notification")
				continue
			}
			received = true
			fn(ch)
		}
	}
}

func (s *AccountSubscriber) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func decodeNotification(account solana.PublicKey, msg wsMessage) (Change, error) {
	res := msg.Params.Result
	ch := Change{Account: account, Slot: res.Context.Slot}
	if res.Value == nil {
		ch.Deleted = true
		return ch, nil
	}
	if len(res.Value.Data) > 0 && res.Value.Data[0] != "" {
		data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
		if err != nil {
			return Change{}, fmt.Errorf("decode data: %w", err)
		}
		ch.Data = data
	}
	return ch, nil
}
