package stream

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/private-swap/internal/rpc"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://api.devnet.solana.com", WebsocketURL("https://api.devnet.solana.com"))
	assert.Equal(t, "ws://127.0.0.1:8899", WebsocketURL("http://127.0.0.1:8899"))
	assert.Equal(t, "wss://already", WebsocketURL("wss://already"))
}

// scriptedReader returns one scripted response per call and repeats the last.
type scriptedReader struct {
	mu    sync.Mutex
	steps []*rpc.AccountInfo
	errAt int
	calls int
}

func (r *scriptedReader) GetAccountInfo(ctx context.Context, pk solana.PublicKey) (*rpc.AccountInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	if i == r.errAt {
		return nil, errors.New("rpc down")
	}
	if i >= len(r.steps) {
		i = len(r.steps) - 1
	}
	return r.steps[i], nil
}

func TestAccountPoller_ReportsOnlyChanges(t *testing.T) {
	reader := &scriptedReader{
		errAt: 2,
		steps: []*rpc.AccountInfo{
			{Data: []byte{1}},
			{Data: []byte{1}},
			nil, // error step
			{Data: []byte{2}},
			nil,
		},
	}
	p := NewAccountPoller(PollerConfig{Reader: reader, Interval: time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var changes []Change
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, solana.NewWallet().PublicKey(), func(c Change) {
			mu.Lock()
			changes = append(changes, c)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 2
	}, 2*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 2)
	assert.Equal(t, []byte{2}, changes[0].Data)
	assert.True(t, changes[1].Deleted)
}

func newPubsubServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return WebsocketURL(srv.URL)
}

func TestAccountSubscriber_DeliversNotifications(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	data := base64.StdEncoding.EncodeToString([]byte("pool-state"))

	url := newPubsubServer(t, func(conn *websocket.Conn) {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		assert.Equal(t, "accountSubscribe", req.Method)
		assert.Equal(t, account.String(), req.Params[0])

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":42,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"jsonrpc":"2.0","method":"accountNotification","params":{"result":{"context":{"slot":7},"value":{"data":["`+data+`","base64"]}},"subscription":42}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"jsonrpc":"2.0","method":"accountNotification","params":{"result":{"context":{"slot":8},"value":null},"subscription":42}}`))
		// dropping the socket forces a reconnect
	})

	sub := NewAccountSubscriber(SubscriberConfig{URL: url, ReconnectDelay: time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var changes []Change
	done := make(chan error, 1)
	go func() {
		done <- sub.Watch(ctx, account, func(c Change) {
			mu.Lock()
			changes = append(changes, c)
			mu.Unlock()
		})
	}()

	// two connections' worth proves the reconnect
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 4
	}, 2*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(7), changes[0].Slot)
	assert.Equal(t, "pool-state", string(changes[0].Data))
	assert.True(t, changes[1].Deleted)
	assert.Equal(t, account, changes[1].Account)
}

func TestAccountSubscriber_SubscribeError(t *testing.T) {
	url := newPubsubServer(t, func(conn *websocket.Conn) {
		var req wsRequest
		_ = conn.ReadJSON(&req)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid param"},"id":1}`))
		time.Sleep(50 * time.Millisecond)
	})

	sub := NewAccountSubscriber(SubscriberConfig{URL: url, Logger: quietLogger()})
	received, err := sub.run(context.Background(), solana.NewWallet().PublicKey(), func(Change) {})
	assert.False(t, received)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid param"))
}
