package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/private-swap/internal/rpc"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

type fakeLedger struct {
	mu sync.Mutex

	sendErrs   []error
	confirmErr error
	txLogs     []string
	simLogs    []string

	blockhashes int
	sent        []*solana.Transaction
	logLookups  int
	simulations int
}

func (f *fakeLedger) GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashes++
	return solana.Hash{byte(f.blockhashes)}, nil
}

func (f *fakeLedger) SendTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.SendOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return tx.Signatures[0].String(), nil
}

func (f *fakeLedger) ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error {
	return f.confirmErr
}

func (f *fakeLedger) GetTransactionLogs(ctx context.Context, signature string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logLookups++
	if f.txLogs == nil {
		return nil, errors.New("not found")
	}
	return f.txLogs, nil
}

func (f *fakeLedger) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulations++
	return &rpc.SimulationResult{Success: len(f.simLogs) == 0, Logs: f.simLogs}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestSubmitter(ledger Ledger) (*Submitter, *wallet.Wallet) {
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	return NewSubmitter(Config{Ledger: ledger, Signer: w, Logger: quietLogger()}), w
}

func memoOp(w *wallet.Wallet, label string) Operation {
	ix := solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(w.PublicKey()).SIGNER().WRITE()}, []byte(label))
	return Operation{Label: label, Instructions: []solana.Instruction{ix}}
}

func blockhashNotFound() error {
	return &rpc.RPCError{Code: -32002, Message: "Transaction simulation failed: Blockhash not found"}
}

func TestSubmit_Success(t *testing.T) {
	ledger := &fakeLedger{}
	s, w := newTestSubmitter(ledger)

	receipt, err := s.Submit(context.Background(), memoOp(w, "initialize pool"))
	require.NoError(t, err)
	assert.Equal(t, "initialize pool", receipt.Label)
	assert.Equal(t, 1, receipt.Attempts)
	assert.False(t, receipt.Pending)
	assert.NotEmpty(t, receipt.Signature)
}

func TestSubmit_RetriesStaleBlockhashOnce(t *testing.T) {
	ledger := &fakeLedger{sendErrs: []error{blockhashNotFound(), nil}}
	s, w := newTestSubmitter(ledger)

	receipt, err := s.Submit(context.Background(), memoOp(w, "add liquidity"))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Attempts)
	assert.Equal(t, 2, ledger.blockhashes)
	require.Len(t, ledger.sent, 2)
	assert.NotEqual(t, ledger.sent[0].Message.RecentBlockhash, ledger.sent[1].Message.RecentBlockhash)
}

func TestSubmit_StaleBlockhashTwice(t *testing.T) {
	ledger := &fakeLedger{sendErrs: []error{blockhashNotFound(), blockhashNotFound()}}
	s, w := newTestSubmitter(ledger)

	_, err := s.Submit(context.Background(), memoOp(w, "swap"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleBlockhash)
	assert.Len(t, ledger.sent, 2)
}

func TestSubmit_PreflightLogsWin(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"err":  map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6001}}},
		"logs": []string{"Program log: AnchorError occurred", "Program log: Error Code: InvalidFee"},
	})
	ledger := &fakeLedger{
		sendErrs: []error{&rpc.RPCError{Code: -32002, Message: "Transaction simulation failed", Data: data}},
		txLogs:   []string{"should not be used"},
		simLogs:  []string{"should not be used"},
	}
	s, w := newTestSubmitter(ledger)

	_, err := s.Submit(context.Background(), memoOp(w, "initialize pool"))
	var subErr *SubmitError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "Program log: AnchorError occurred\nProgram log: Error Code: InvalidFee", subErr.Diagnostic)
	assert.Equal(t, 0, ledger.logLookups)
	assert.Equal(t, 0, ledger.simulations)
}

func TestSubmit_LandedFailureUsesTransactionLogs(t *testing.T) {
	ledger := &fakeLedger{
		confirmErr: &rpc.TransactionFailedError{Signature: "x", Err: "Custom"},
		txLogs:     []string{"Program log: insufficient liquidity"},
	}
	s, w := newTestSubmitter(ledger)

	_, err := s.Submit(context.Background(), memoOp(w, "swap"))
	var subErr *SubmitError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "Program log: insufficient liquidity", subErr.Diagnostic)
	assert.NotEmpty(t, subErr.Signature)
	assert.Equal(t, 0, ledger.simulations)
}

func TestSubmit_FallsBackToSimulation(t *testing.T) {
	ledger := &fakeLedger{
		confirmErr: &rpc.TransactionFailedError{Signature: "x", Err: "Custom"},
		simLogs:    []string{"Program log: account not delegated"},
	}
	s, w := newTestSubmitter(ledger)

	_, err := s.Submit(context.Background(), memoOp(w, "delegate"))
	var subErr *SubmitError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "Program log: account not delegated", subErr.Diagnostic)
	assert.Equal(t, 1, ledger.logLookups)
	assert.Equal(t, 1, ledger.simulations)
}

func TestSubmit_RawMessageLast(t *testing.T) {
	ledger := &fakeLedger{sendErrs: []error{fmt.Errorf("sendTransaction RPC failed: %w", errors.New("connection refused"))}}
	s, w := newTestSubmitter(ledger)

	_, err := s.Submit(context.Background(), memoOp(w, "mint"))
	var subErr *SubmitError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "sendTransaction RPC failed: connection refused", subErr.Diagnostic)
}

func TestSubmit_ConfirmationPending(t *testing.T) {
	ledger := &fakeLedger{confirmErr: fmt.Errorf("%w after 1s", rpc.ErrConfirmationTimeout)}
	s, w := newTestSubmitter(ledger)

	receipt, err := s.Submit(context.Background(), memoOp(w, "swap"))
	assert.ErrorIs(t, err, ErrConfirmationPending)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Pending)
	assert.Len(t, ledger.sent, 1)
}

func TestSubmit_AuxiliarySigner(t *testing.T) {
	ledger := &fakeLedger{}
	s, w := newTestSubmitter(ledger)
	mint := solana.NewWallet().PrivateKey

	ix := system.NewCreateAccountInstruction(1, 0, solana.SystemProgramID, w.PublicKey(), mint.PublicKey()).Build()
	_, err := s.Submit(context.Background(), Operation{
		Label:        "create mint",
		Instructions: []solana.Instruction{ix},
		Signers:      []solana.PrivateKey{mint},
	})
	require.NoError(t, err)
	require.Len(t, ledger.sent, 1)
	assert.NoError(t, ledger.sent[0].VerifySignatures())

	// Without the mint key signing fails before anything is sent.
	_, err = s.Submit(context.Background(), Operation{Label: "create mint", Instructions: []solana.Instruction{ix}})
	assert.Error(t, err)
	assert.Len(t, ledger.sent, 1)
}

func TestSubmitAll_StopsAtFirstFailure(t *testing.T) {
	ledger := &fakeLedger{sendErrs: []error{nil, errors.New("boom")}}
	s, w := newTestSubmitter(ledger)

	receipts, err := s.SubmitAll(context.Background(), memoOp(w, "a"), memoOp(w, "b"), memoOp(w, "c"))
	assert.Error(t, err)
	assert.Len(t, receipts, 1)
	assert.Len(t, ledger.sent, 2)
}

func TestDiagnose_NeverEmpty(t *testing.T) {
	out := Diagnose(context.Background(), nil, &Failure{Label: "x"}, DefaultDiagnostics())
	assert.Equal(t, "unknown error", out)
}
