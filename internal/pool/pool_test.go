package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/program"
	"github.com/aman-zulfiqar/private-swap/internal/rpc"
	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

var instructionNames = []string{
	"initialize_mint", "create_idempotent", "mint_to", "transfer",
	"create_permission_for_inco_account", "delegate_inco_account",
	"initialize_pool", "add_liquidity", "remove_liquidity", "swap_exact_in",
	"create_permission", "delegate_pda", "delegate_permission",
}

func instructionName(data []byte) string {
	for _, name := range instructionNames {
		if len(data) >= 8 && bytes.Equal(data[:8], program.Discriminator(name)) {
			return name
		}
	}
	return "unknown"
}

// fakeChain records the first instruction of every transaction it is sent.
type fakeChain struct {
	mu     sync.Mutex
	owners map[solana.PublicKey]solana.PublicKey
	data   map[solana.PublicKey][]byte
	sent   []string
	ixs    []int
	sigs   []int
	failOn map[string]error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		owners: make(map[solana.PublicKey]solana.PublicKey),
		data:   make(map[solana.PublicKey][]byte),
		failOn: make(map[string]error),
	}
}

// setPool stores a pool account whose reserve handles decrypt to the given
// amounts under fakeCodec.
func (f *fakeChain) setPool(t *testing.T, sess *session.Session, owner solana.PublicKey, reserveA, reserveB uint64) {
	m, ok := sess.Mints()
	require.True(t, ok)
	accts := accountsFor(t, sess)
	state := program.PoolState{
		Authority: sess.Wallet().PublicKey(),
		MintA:     m.MintA,
		MintB:     m.MintB,
		ReserveA:  confidential.HandleFrom64(reserveA),
		ReserveB:  confidential.HandleFrom64(reserveB),
		FeeBps:    constants.DefaultPoolFeeBps,
	}
	f.mu.Lock()
	f.owners[accts.Pool] = owner
	f.data[accts.Pool] = state.Encode()
	f.mu.Unlock()
}

func (f *fakeChain) setOwner(pk, owner solana.PublicKey) {
	f.mu.Lock()
	f.owners[pk] = owner
	f.mu.Unlock()
}

func (f *fakeChain) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChain) GetAccountInfo(ctx context.Context, pk solana.PublicKey) (*rpc.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[pk]
	if !ok {
		return nil, nil
	}
	return &rpc.AccountInfo{Owner: owner, Data: f.data[pk]}, nil
}

func (f *fakeChain) GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error) {
	return solana.Hash{7}, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.SendOptions) (string, error) {
	name := instructionName(tx.Message.Instructions[0].Data)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[name]; ok {
		return "", err
	}
	f.sent = append(f.sent, name)
	f.ixs = append(f.ixs, len(tx.Message.Instructions))
	f.sigs = append(f.sigs, len(tx.Signatures))
	return tx.Signatures[0].String(), nil
}

func (f *fakeChain) ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error {
	return nil
}

func (f *fakeChain) GetTransactionLogs(ctx context.Context, signature string) ([]string, error) {
	return nil, nil
}

func (f *fakeChain) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulationResult, error) {
	return &rpc.SimulationResult{Success: true}, nil
}

// deniedCodec refuses every decrypt.
type deniedCodec struct{ fakeCodec }

func (deniedCodec) Decrypt(ctx context.Context, handles []confidential.Handle, auth confidential.Authorizer) ([]*big.Int, error) {
	return nil, confidential.ErrDecryptionDenied
}

// fakeCodec "encrypts" to the big-endian plaintext bytes.
type fakeCodec struct{}

func (fakeCodec) Encrypt(ctx context.Context, plaintext *big.Int) (confidential.Ciphertext, error) {
	return confidential.Ciphertext(append([]byte{0xee}, plaintext.Bytes()...)), nil
}

func (fakeCodec) Decrypt(ctx context.Context, handles []confidential.Handle, auth confidential.Authorizer) ([]*big.Int, error) {
	out := make([]*big.Int, len(handles))
	for i, h := range handles {
		out[i] = h.Big()
	}
	return out, nil
}

func newVenue(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": "nonce"})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "venue-token"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	orch   *Orchestrator
	chain  *fakeChain
	venue  *fakeChain
	dialed []string
	stages []string
}

func newHarness(t *testing.T) *harness {
	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)

	h := &harness{chain: newFakeChain(), venue: newFakeChain()}
	srv := newVenue(t)
	router := &permission.Router{
		Tokens: permission.NewTokenSource(permission.TokenSourceConfig{BaseURL: srv.URL, Logger: quiet}),
		Dial: func(endpoint string) permission.Conn {
			h.dialed = append(h.dialed, endpoint)
			return h.venue
		},
	}
	events := cache.SinkFunc(func(ctx context.Context, ev *cache.Event) error {
		if ev.Kind == cache.KindStage {
			h.stages = append(h.stages, ev.Stage)
		}
		return errors.New("sink down")
	})
	h.orch = NewOrchestrator(Config{
		Chain:  h.chain,
		Router: router,
		Codec:  fakeCodec{},
		Events: events,
		Logger: quiet,
	})
	return h
}

func newSession(venue bool, source mints.Source) *session.Session {
	sess := session.New(wallet.FromPrivateKey(solana.NewWallet().PrivateKey), venue)
	sess.SetMints(&mints.Config{
		MintA:  solana.NewWallet().PublicKey(),
		MintB:  solana.NewWallet().PublicKey(),
		Source: source,
	})
	return sess
}

func accountsFor(t *testing.T, sess *session.Session) *derive.Accounts {
	m, ok := sess.Mints()
	require.True(t, ok)
	accts, err := derive.SwapAccounts(sess.Wallet().PublicKey(), m.MintA, m.MintB)
	require.NoError(t, err)
	return accts
}

func TestSetup_FullSequenceThroughVenue(t *testing.T) {
	h := newHarness(t)
	sess := newSession(true, mints.SourceLocal)

	report, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)

	delegation := []string{}
	for range 4 {
		delegation = append(delegation, "create_permission_for_inco_account", "delegate_permission", "delegate_inco_account")
	}
	want := append([]string{
		"create_idempotent",
		"initialize_pool",
		"mint_to", "mint_to",
		"create_permission", "delegate_permission", "delegate_pda",
	}, delegation...)
	assert.Equal(t, want, h.chain.names())
	assert.Equal(t, 4, h.chain.ixs[0])

	assert.Equal(t, []string{"add_liquidity"}, h.venue.names())
	require.Len(t, h.dialed, 1)
	assert.Contains(t, h.dialed[0], "token=venue-token")

	assert.Equal(t, StageReady, report.Stage)
	assert.True(t, report.PoolCreated)
	assert.False(t, report.UnderFunded)
	assert.Len(t, report.Receipts, len(want)+1)
	require.NotNil(t, report.Delegation)
	assert.Len(t, report.Delegation.Delegated, 5)

	assert.Equal(t, []string{
		string(StageAccountsPending),
		string(StagePoolInitializing),
		string(StageLiquiditySeeding),
		string(StagePermissionDelegating),
		string(StageLiquidityAdding),
		string(StageReady),
	}, h.stages)
}

func TestSetup_WithoutVenueStaysOnBaseLayer(t *testing.T) {
	h := newHarness(t)
	sess := newSession(false, mints.SourceLocal)

	_, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, []string{"create_idempotent", "initialize_pool", "mint_to", "mint_to", "add_liquidity"}, h.chain.names())
	assert.Empty(t, h.venue.names())
	assert.Empty(t, h.dialed)
}

func TestSetup_ResumesWhenPoolExists(t *testing.T) {
	h := newHarness(t)
	sess := newSession(true, mints.SourceLocal)
	accts := accountsFor(t, sess)

	h.chain.setPool(t, sess, constants.DelegationProgramID, 0, 0)
	h.venue.setPool(t, sess, constants.DelegationProgramID, 1_000_000_000, 2_000_000_000)
	h.chain.setOwner(accts.UserTokenA, constants.DelegationProgramID)
	h.chain.setOwner(accts.UserTokenB, constants.DelegationProgramID)

	report, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)

	assert.False(t, report.PoolCreated)
	assert.Equal(t, []string{"pool", "user token A", "user token B"}, report.Delegation.Skipped)
	assert.Equal(t, []string{"pool token A", "pool token B"}, report.Delegation.Delegated)
	assert.Equal(t, "create_idempotent", h.chain.names()[0])
	assert.NotContains(t, h.chain.names(), "initialize_pool")
	assert.NotContains(t, h.chain.names(), "mint_to")
	assert.Empty(t, h.venue.names())
}

func TestSetup_ResumesInsidePoolDelegation(t *testing.T) {
	h := newHarness(t)
	sess := newSession(true, mints.SourceLocal)
	accts := accountsFor(t, sess)
	poolPerm, _, err := derive.FindPermissionAddress(accts.Pool)
	require.NoError(t, err)

	// The last run confirmed create_permission for the pool and stopped.
	h.chain.setPool(t, sess, constants.PrivateSwapProgramID, 1_000_000_000, 2_000_000_000)
	h.chain.setOwner(poolPerm, constants.PermissionProgramID)
	h.chain.failOn["create_permission"] = errors.New("Allocate: account already in use")

	report, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)

	names := h.chain.names()
	assert.Equal(t, []string{"create_idempotent", "delegate_permission", "delegate_pda"}, names[:3])
	assert.Len(t, names, 3+4*3)
	assert.NotContains(t, names, "create_permission")
	assert.Equal(t, []string{"create pool permission"}, report.Delegation.SkippedOps)
	assert.Len(t, report.Delegation.Delegated, 5)
	assert.Empty(t, h.venue.names())
	assert.Equal(t, StageReady, report.Stage)
}

func TestSetup_AddsLiquidityToEmptyPool(t *testing.T) {
	h := newHarness(t)
	sess := newSession(false, mints.SourceLocal)

	// The last run confirmed initialize_pool and stopped before liquidity.
	h.chain.setPool(t, sess, constants.PrivateSwapProgramID, 0, 0)

	st, err := h.orch.Probe(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, StageLiquidityAdding, st.Stage)
	assert.False(t, st.Funded)

	report, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, report.PoolCreated)
	assert.Equal(t, []string{"create_idempotent", "mint_to", "mint_to", "add_liquidity"}, h.chain.names())
	assert.Equal(t, StageReady, report.Stage)
	assert.Equal(t, []string{
		string(StageAccountsPending),
		string(StageLiquiditySeeding),
		string(StageLiquidityAdding),
		string(StageReady),
	}, h.stages)
}

func TestSetup_DecryptFailureStopsResume(t *testing.T) {
	h := newHarness(t)
	h.orch.codec = deniedCodec{}
	sess := newSession(false, mints.SourceLocal)
	h.chain.setPool(t, sess, constants.PrivateSwapProgramID, 0, 0)

	_, err := h.orch.Setup(context.Background(), sess)
	assert.ErrorIs(t, err, confidential.ErrDecryptionDenied)
	assert.Empty(t, h.chain.names())
}

func TestSetup_AccountCreationIsRepeatable(t *testing.T) {
	h := newHarness(t)
	sess := newSession(false, mints.SourceLocal)

	first, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)
	h.chain.setPool(t, sess, constants.PrivateSwapProgramID, 1_000_000_000, 2_000_000_000)

	second, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, first.Accounts, second.Accounts)
	assert.Equal(t, "create token accounts", first.Receipts[0].Label)
	assert.Equal(t, "create token accounts", second.Receipts[0].Label)
	assert.Len(t, second.Receipts, 1)

	names := h.chain.names()
	assert.Equal(t, "create_idempotent", names[0])
	assert.Equal(t, "create_idempotent", names[len(names)-1])
	assert.Equal(t, 4, h.chain.ixs[len(h.chain.ixs)-1])
}

func TestSetup_SeedFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.chain.failOn["mint_to"] = errors.New("mint authority mismatch")
	sess := newSession(false, mints.SourceLocal)

	report, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)

	assert.True(t, report.UnderFunded)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "Seed minting skipped")
	assert.Equal(t, []string{"create_idempotent", "initialize_pool", "add_liquidity"}, h.chain.names())
	assert.Equal(t, StageReady, report.Stage)
}

func TestSetup_ExternalMintsSkipSeeding(t *testing.T) {
	h := newHarness(t)
	sess := newSession(false, mints.SourceExternal)

	report, err := h.orch.Setup(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, report.UnderFunded)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "disabled for external mints")
	assert.Equal(t, []string{"create_idempotent", "initialize_pool", "add_liquidity"}, h.chain.names())
}

func TestSetup_FailureStopsTheRun(t *testing.T) {
	h := newHarness(t)
	h.chain.failOn["initialize_pool"] = errors.New("custom program error: 0x0")
	sess := newSession(false, mints.SourceLocal)

	report, err := h.orch.Setup(context.Background(), sess)
	var subErr *submit.SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "initialize pool", subErr.Label)
	assert.NotEmpty(t, subErr.Diagnostic)
	assert.Equal(t, StagePoolInitializing, report.Stage)
	assert.Equal(t, []string{"create_idempotent"}, h.chain.names())
}

func TestSetup_RejectsConcurrentRunForSamePool(t *testing.T) {
	h := newHarness(t)
	sess := newSession(false, mints.SourceLocal)
	accts := accountsFor(t, sess)

	require.NoError(t, h.orch.acquire(accts.Pool))
	_, err := h.orch.Setup(context.Background(), sess)
	assert.ErrorIs(t, err, ErrFlowInProgress)
	assert.Empty(t, h.chain.names())

	h.orch.release(accts.Pool)
	_, err = h.orch.Setup(context.Background(), sess)
	assert.NoError(t, err)
}

func TestSetup_StickyVenueErrorBlocks(t *testing.T) {
	h := newHarness(t)
	sess := newSession(true, mints.SourceLocal)
	sess.FailVenueAuth(errors.New("login refused"))

	_, err := h.orch.Setup(context.Background(), sess)
	assert.ErrorIs(t, err, permission.ErrAuthorizationFetch)
	assert.Empty(t, h.chain.names())

	// Disabling the venue clears the error and setup runs on the base layer.
	sess.SetVenueEnabled(false)
	_, err = h.orch.Setup(context.Background(), sess)
	assert.NoError(t, err)
}

func TestSetup_NoMints(t *testing.T) {
	h := newHarness(t)
	sess := session.New(wallet.FromPrivateKey(solana.NewWallet().PrivateKey), false)

	_, err := h.orch.Setup(context.Background(), sess)
	assert.ErrorIs(t, err, ErrNoMints)
}

func TestProbe_Stages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty := session.New(wallet.FromPrivateKey(solana.NewWallet().PrivateKey), true)
	st, err := h.orch.Probe(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, StageNoMints, st.Stage)
	assert.Equal(t, StageNoMints.Message(), st.Message)

	sess := newSession(true, mints.SourceLocal)
	accts := accountsFor(t, sess)

	st, err = h.orch.Probe(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, StageMintsReady, st.Stage)
	assert.False(t, st.PoolExists)

	h.chain.setPool(t, sess, constants.PrivateSwapProgramID, 1_000_000_000, 2_000_000_000)
	st, err = h.orch.Probe(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, StagePermissionDelegating, st.Stage)
	assert.True(t, st.Funded)
	assert.Len(t, st.Undelegated, 5)

	// Once delegated, the pool is read through the venue.
	h.venue.setPool(t, sess, constants.DelegationProgramID, 1_000_000_000, 2_000_000_000)
	for _, pk := range append([]solana.PublicKey{accts.Pool}, accts.TokenAccounts()...) {
		h.chain.setOwner(pk, constants.DelegationProgramID)
	}
	st, err = h.orch.Probe(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, StageReady, st.Stage)
	assert.Empty(t, st.Undelegated)
	require.Len(t, h.dialed, 1)

	assert.Empty(t, h.chain.names())
}

func TestCreateMints(t *testing.T) {
	h := newHarness(t)
	sess := session.New(wallet.FromPrivateKey(solana.NewWallet().PrivateKey), false)

	cfg, receipts, err := h.orch.CreateMints(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "create mint A", receipts[0].Label)
	assert.Equal(t, "create mint B", receipts[1].Label)

	assert.Equal(t, []string{"initialize_mint", "initialize_mint"}, h.chain.names())
	assert.Equal(t, []int{2, 2}, h.chain.sigs)

	assert.Equal(t, mints.SourceLocal, cfg.Source)
	assert.False(t, cfg.MintA.Equals(cfg.MintB))
	got, ok := sess.Mints()
	require.True(t, ok)
	assert.Equal(t, *cfg, got)

	require.NoError(t, h.orch.ClearMints(context.Background(), sess))
	_, ok = sess.Mints()
	assert.False(t, ok)
}

func TestStageMessage(t *testing.T) {
	assert.Equal(t, "Pool ready for confidential swaps.", StageReady.Message())
	assert.Equal(t, "unknown", Stage("unknown").Message())
}
