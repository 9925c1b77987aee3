package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC by method name.
func fakeNode(t *testing.T, handlers map[string]func(params []json.RawMessage) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		h, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h(req.Params))
	}))
}

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{BaseURL: url, Timeout: 2 * time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond})
}

func TestCall_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":42}`))
	}))
	defer srv.Close()

	var out struct {
		Result int `json:"result"`
	}
	require.NoError(t, newTestClient(srv.URL).Call(context.Background(), "getSlot", nil, &out))
	assert.Equal(t, 42, out.Result)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out any
	err := newTestClient(srv.URL).Call(context.Background(), "getSlot", nil, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Contains(t, err.Error(), "getSlot")
}

func TestCall_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out any
	err := newTestClient(srv.URL+"?token=secret").Call(context.Background(), "getSlot", nil, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.NotContains(t, err.Error(), "secret")
}

func TestGetLatestBlockhash(t *testing.T) {
	hash := solana.Hash{9, 9, 9}
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"getLatestBlockhash": func([]json.RawMessage) any {
			return map[string]any{"result": map[string]any{"value": map[string]any{"blockhash": hash.String(), "lastValidBlockHeight": 10}}}
		},
	})
	defer srv.Close()

	got, err := newTestClient(srv.URL).GetLatestBlockhash(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestSendTransaction_PreflightFailure(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"sendTransaction": func([]json.RawMessage) any {
			return map[string]any{"error": map[string]any{
				"code":    -32002,
				"message": "Transaction simulation failed: Error processing Instruction 0",
				"data": map[string]any{
					"err":  map[string]any{"InstructionError": []any{0, "InvalidAccountData"}},
					"logs": []string{"Program log: pool already initialized"},
				},
			}}
		},
	})
	defer srv.Close()

	tx := signedTestTx(t)
	_, err := newTestClient(srv.URL).SendTransaction(context.Background(), tx, nil)
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, []string{"Program log: pool already initialized"}, rpcErr.Logs())
	assert.False(t, rpcErr.IsBlockhashNotFound())
}

func TestRPCError_BlockhashNotFound(t *testing.T) {
	assert.True(t, (&RPCError{Message: "Transaction simulation failed: Blockhash not found"}).IsBlockhashNotFound())
	assert.True(t, (&RPCError{Data: json.RawMessage(`{"err":"BlockhashNotFound","logs":[]}`)}).IsBlockhashNotFound())
	assert.False(t, (&RPCError{Message: "insufficient funds"}).IsBlockhashNotFound())
}

func TestConfirmTransaction(t *testing.T) {
	var polls atomic.Int32
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"getSignatureStatuses": func([]json.RawMessage) any {
			if polls.Add(1) == 1 {
				return map[string]any{"result": map[string]any{"value": []any{nil}}}
			}
			return map[string]any{"result": map[string]any{"value": []any{
				map[string]any{"slot": 5, "err": nil, "confirmationStatus": "confirmed"},
			}}}
		},
	})
	defer srv.Close()

	err := newTestClient(srv.URL).ConfirmTransaction(context.Background(), "sig", "confirmed", 5*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), polls.Load())
}

func TestConfirmTransaction_Failed(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"getSignatureStatuses": func([]json.RawMessage) any {
			return map[string]any{"result": map[string]any{"value": []any{
				map[string]any{"slot": 5, "err": map[string]any{"InstructionError": []any{0, "Custom"}}, "confirmationStatus": "processed"},
			}}}
		},
	})
	defer srv.Close()

	err := newTestClient(srv.URL).ConfirmTransaction(context.Background(), "sig", "confirmed", time.Second)
	var failed *TransactionFailedError
	assert.True(t, errors.As(err, &failed))
}

func TestConfirmTransaction_Timeout(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"getSignatureStatuses": func([]json.RawMessage) any {
			return map[string]any{"result": map[string]any{"value": []any{nil}}}
		},
	})
	defer srv.Close()

	err := newTestClient(srv.URL).ConfirmTransaction(context.Background(), "sig", "confirmed", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
}

func TestGetAccountInfo(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"getAccountInfo": func(params []json.RawMessage) any {
			var addr string
			_ = json.Unmarshal(params[0], &addr)
			if addr == missing.String() {
				return map[string]any{"result": map[string]any{"value": nil}}
			}
			return map[string]any{"result": map[string]any{"value": map[string]any{
				"owner":      owner.String(),
				"lamports":   100,
				"executable": false,
				"data":       []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "base64"},
			}}}
		},
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	info, err := c.GetAccountInfo(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, owner, info.Owner)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)

	exists, err := c.AccountExists(context.Background(), missing)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetTransactionLogs(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"getTransaction": func([]json.RawMessage) any {
			return map[string]any{"result": map[string]any{"meta": map[string]any{
				"err":         nil,
				"logMessages": []string{"Program log: Hello", "Program log: World"},
			}}}
		},
	})
	defer srv.Close()

	logs, err := newTestClient(srv.URL).GetTransactionLogs(context.Background(), "sig")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestSimulateTransaction(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) any{
		"simulateTransaction": func([]json.RawMessage) any {
			return map[string]any{"result": map[string]any{"value": map[string]any{
				"err":  "AccountNotFound",
				"logs": []string{"Program log: missing account"},
			}}}
		},
	})
	defer srv.Close()

	sim, err := newTestClient(srv.URL).SimulateTransaction(context.Background(), signedTestTx(t))
	require.NoError(t, err)
	assert.False(t, sim.Success)
	assert.Equal(t, "AccountNotFound", sim.Error)
	assert.Equal(t, []string{"Program log: missing account"}, sim.Logs)
}

func TestWithEndpoint(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://a", RateLimit: 5})
	d := c.WithEndpoint("http://b?token=x")
	assert.Equal(t, "http://a", c.Endpoint())
	assert.Equal(t, "http://b?token=x", d.Endpoint())
}

func signedTestTx(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet().PrivateKey
	ix := solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(payer.PublicKey()).SIGNER().WRITE()}, []byte("hi"))
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}
