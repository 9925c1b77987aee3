package submit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/rpc"
)

// Failure is what a Diagnostic gets to inspect.
type Failure struct {
	Label     string
	Signature string
	Tx        *solana.Transaction
	Err       error
}

// Diagnostic extracts a human-readable explanation for a failure. An empty
// string means it found nothing and the next one should be tried.
type Diagnostic interface {
	Name() string
	Diagnose(ctx context.Context, ledger Ledger, f *Failure) string
}

// DefaultDiagnostics returns preflight logs, landed transaction logs,
// simulation logs and finally the raw error, in that order.
func DefaultDiagnostics() []Diagnostic {
	return []Diagnostic{
		preflightLogs{},
		transactionLogs{},
		simulationLogs{},
		rawMessage{},
	}
}

const diagnosticTimeout = 10 * time.Second

// Diagnose runs diagnostics in order until one yields output. The result is
// never empty.
func Diagnose(ctx context.Context, ledger Ledger, f *Failure, diagnostics []Diagnostic) string {
	// Lookups must still run when the caller's context is what failed.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticTimeout)
	defer cancel()

	for _, d := range diagnostics {
		if out := strings.TrimSpace(d.Diagnose(dctx, ledger, f)); out != "" {
			return out
		}
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return "unknown error"
}

type preflightLogs struct{}

func (preflightLogs) Name() string { return "preflight" }

func (preflightLogs) Diagnose(_ context.Context, _ Ledger, f *Failure) string {
	var rpcErr *rpc.RPCError
	if !errors.As(f.Err, &rpcErr) {
		return ""
	}
	return joinLogs(rpcErr.Logs())
}

type transactionLogs struct{}

func (transactionLogs) Name() string { return "transaction" }

func (transactionLogs) Diagnose(ctx context.Context, ledger Ledger, f *Failure) string {
	if f.Signature == "" || ledger == nil {
		return ""
	}
	logs, err := ledger.GetTransactionLogs(ctx, f.Signature)
	if err != nil {
		return ""
	}
	return joinLogs(logs)
}

type simulationLogs struct{}

func (simulationLogs) Name() string { return "simulation" }

func (simulationLogs) Diagnose(ctx context.Context, ledger Ledger, f *Failure) string {
	if f.Tx == nil || ledger == nil {
		return ""
	}
	sim, err := ledger.SimulateTransaction(ctx, f.Tx)
	if err != nil || sim == nil {
		return ""
	}
	return joinLogs(sim.Logs)
}

type rawMessage struct{}

func (rawMessage) Name() string { return "message" }

func (rawMessage) Diagnose(_ context.Context, _ Ledger, f *Failure) string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

func joinLogs(logs []string) string {
	return strings.Join(logs, "\n")
}
