package cli

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/config"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/pool"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
	"github.com/aman-zulfiqar/private-swap/internal/swapengine"
)

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"mints", "create"}, {"mints", "clear"}, {"mints", "show"},
		{"pool", "status"}, {"pool", "setup"},
		{"quote"}, {"swap"}, {"remove-liquidity"}, {"transfer"},
		{"compliance"}, {"events"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestLoadConfig_VenueOverride(t *testing.T) {
	t.Setenv("EPHEMERAL_RPC_URL", "https://venue.example")
	t.Cleanup(func() { venue = "" })
	logger := newLogger()

	venue = "off"
	cfg, err := loadConfig(logger)
	require.NoError(t, err)
	assert.False(t, cfg.VenueEnabled)

	venue = "true"
	cfg, err = loadConfig(logger)
	require.NoError(t, err)
	assert.True(t, cfg.VenueEnabled)

	venue = "maybe"
	_, err = loadConfig(logger)
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestEmit(t *testing.T) {
	t.Cleanup(func() { jsonOut = false })

	var buf bytes.Buffer
	require.NoError(t, emit(&buf, map[string]int{"n": 1}, func(w io.Writer) { _, _ = io.WriteString(w, "text") }))
	assert.Equal(t, "text", buf.String())

	buf.Reset()
	require.NoError(t, emit(&buf, map[string]int{"n": 1}, nil))
	assert.JSONEq(t, `{"n":1}`, buf.String())

	buf.Reset()
	jsonOut = true
	require.NoError(t, emit(&buf, map[string]int{"n": 2}, func(w io.Writer) { t.Fatal("text output under --json") }))
	assert.JSONEq(t, `{"n":2}`, buf.String())
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &pool.SetupReport{
		RunID: "run-1",
		Stage: pool.StageReady,
		Receipts: []*submit.Receipt{
			{Label: "initialize pool", Signature: "sig1"},
			{Label: "add liquidity", Signature: "sig2", Pending: true},
		},
		Delegation: &permission.Result{SkippedOps: []string{"create pool permission"}},
		Warnings:   []string{"Seed minting skipped: mint authority is external"},
	})

	out := buf.String()
	assert.Contains(t, out, "run run-1: "+pool.StageReady.Message())
	assert.Contains(t, out, "initialize pool")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "warning: Seed minting skipped")
	assert.Contains(t, out, "create pool permission")
}

func TestReport_PendingIsNotAFailure(t *testing.T) {
	var buf bytes.Buffer
	exec := &swapengine.Execution{
		Kind:    swapengine.KindSwap,
		Receipt: &submit.Receipt{Signature: "sig", Pending: true},
		Quote: &swapengine.Quote{
			AmountIn: big.NewInt(1_000_000),
			Estimate: quote.Compute(big.NewInt(1_000_000), big.NewInt(1_000_000_000), big.NewInt(2_000_000_000), 30),
			FeeBps:   30,
			Encrypted: &swapengine.EncryptedQuote{AToB: true},
		},
	}

	err := report(&buf, exec, submit.ErrConfirmationPending)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "A -> B")
	assert.Contains(t, buf.String(), "out 0.001992013")
	assert.Contains(t, buf.String(), "confirmation still pending")

	boom := errors.New("boom")
	assert.ErrorIs(t, report(&buf, nil, boom), boom)
}

func TestPrintEvent(t *testing.T) {
	ev := cache.NewEvent("s1", cache.KindStage, "ok")
	ev.Stage = string(pool.StagePoolInitializing)
	ev.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	printEvent(&buf, ev)
	assert.Contains(t, buf.String(), "03:04:05")
	assert.Contains(t, buf.String(), string(pool.StagePoolInitializing))
}
