// Package pool drives the confidential pool lifecycle: mint creation, token
// accounts, pool initialization, seeding, venue delegation and liquidity.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

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

var (
	// ErrFlowInProgress is returned when another setup for the same pool is running.
	ErrFlowInProgress = errors.New("a pool flow is already in progress")
	ErrNoMints        = errors.New("no mints configured")
	// ErrSeedMint marks a failed seed mint. It is reported as a warning, not
	// returned from Setup.
	ErrSeedMint = errors.New("seed minting failed")
)

type Config struct {
	Chain          permission.Conn
	Router         *permission.Router
	Codec          confidential.Codec
	Store          *mints.Store
	Events         cache.Sink
	FeeBps         uint16
	SeedA          uint64
	SeedB          uint64
	Validator      solana.PublicKey
	ConfirmTimeout time.Duration
	Logger         *logrus.Logger
}

type Orchestrator struct {
	chain          permission.Conn
	router         *permission.Router
	codec          confidential.Codec
	store          *mints.Store
	events         cache.Sink
	feeBps         uint16
	seedA          uint64
	seedB          uint64
	validator      solana.PublicKey
	confirmTimeout time.Duration
	logger         *logrus.Logger

	mu       sync.Mutex
	inFlight map[solana.PublicKey]struct{}
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = constants.DefaultPoolFeeBps
	}
	if cfg.SeedA == 0 {
		cfg.SeedA = constants.LiquiditySeedA
	}
	if cfg.SeedB == 0 {
		cfg.SeedB = constants.LiquiditySeedB
	}
	if cfg.Validator.IsZero() {
		cfg.Validator = constants.DefaultValidator
	}
	return &Orchestrator{
		chain:          cfg.Chain,
		router:         cfg.Router,
		codec:          cfg.Codec,
		store:          cfg.Store,
		events:         cfg.Events,
		feeBps:         cfg.FeeBps,
		seedA:          cfg.SeedA,
		seedB:          cfg.SeedB,
		validator:      cfg.Validator,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         cfg.Logger,
		inFlight:       make(map[solana.PublicKey]struct{}),
	}
}

// Submitter returns a base-layer submitter signing with the session wallet.
func (o *Orchestrator) Submitter(sess *session.Session) *submit.Submitter {
	var signer submit.TxSigner
	if w := sess.Wallet(); w != nil {
		signer = w
	}
	return submit.NewSubmitter(submit.Config{
		Ledger:         o.chain,
		Signer:         signer,
		ConfirmTimeout: o.confirmTimeout,
		Logger:         o.logger,
	})
}

func (o *Orchestrator) acquire(pool solana.PublicKey) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[pool]; busy {
		return ErrFlowInProgress
	}
	o.inFlight[pool] = struct{}{}
	return nil
}

func (o *Orchestrator) release(pool solana.PublicKey) {
	o.mu.Lock()
	delete(o.inFlight, pool)
	o.mu.Unlock()
}

// Accounts derives the swap accounts for the session's wallet and mints.
func (o *Orchestrator) Accounts(sess *session.Session) (*mints.Config, *derive.Accounts, error) {
	m, ok := sess.Mints()
	if !ok {
		return nil, nil, ErrNoMints
	}
	w := sess.Wallet()
	if w == nil {
		return nil, nil, wallet.ErrMissingSigner
	}
	accts, err := derive.SwapAccounts(w.PublicKey(), m.MintA, m.MintB)
	if err != nil {
		return nil, nil, err
	}
	return &m, accts, nil
}

// Probe reports the current stage without sending anything.
func (o *Orchestrator) Probe(ctx context.Context, sess *session.Session) (*Status, error) {
	st := &Status{VenueEnabled: sess.VenueEnabled()}

	m, accts, err := o.Accounts(sess)
	if errors.Is(err, ErrNoMints) {
		st.Stage = StageNoMints
		st.Message = st.Stage.Message()
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.Mints, st.Accounts = m, accts

	info, err := o.chain.GetAccountInfo(ctx, accts.Pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool account: %w", err)
	}
	st.PoolExists = info != nil
	if !st.PoolExists {
		st.Stage = StageMintsReady
		st.Message = st.Stage.Message()
		return st, nil
	}

	var venue permission.AccountReader
	if info.Owner.Equals(constants.DelegationProgramID) && o.router.Active(sess) {
		conn, err := o.router.Conn(ctx, sess, o.chain)
		if err != nil {
			return nil, err
		}
		venue = conn
	}
	if st.Funded, err = o.liquidity(ctx, sess, venue, accts.Pool, info); err != nil {
		return nil, err
	}

	if st.VenueEnabled {
		for _, t := range labelled(accts) {
			done, err := permission.Delegated(ctx, o.chain, t.account)
			if err != nil {
				return nil, fmt.Errorf("check %s delegation: %w", t.label, err)
			}
			if !done {
				st.Undelegated = append(st.Undelegated, t.label)
			}
		}
	}

	switch {
	case len(st.Undelegated) > 0:
		st.Stage = StagePermissionDelegating
	case !st.Funded:
		st.Stage = StageLiquidityAdding
	default:
		st.Stage = StageReady
	}
	st.Message = st.Stage.Message()
	return st, nil
}

// liquidity reports whether the pool holds any reserves. A pool delegated to
// the venue is re-read through venue when one is given, since its base-layer
// copy lags behind.
func (o *Orchestrator) liquidity(ctx context.Context, sess *session.Session, venue permission.AccountReader, pool solana.PublicKey, info *rpc.AccountInfo) (bool, error) {
	if venue != nil && info.Owner.Equals(constants.DelegationProgramID) {
		var err error
		if info, err = venue.GetAccountInfo(ctx, pool); err != nil {
			return false, fmt.Errorf("fetch delegated pool account: %w", err)
		}
		if info == nil {
			return false, nil
		}
	}

	state, err := program.DecodePoolState(info.Data)
	if err != nil {
		return false, err
	}
	a, b, err := confidential.DecryptPair(ctx, o.codec, state.ReserveA, state.ReserveB, sess.Wallet())
	if err != nil {
		return false, fmt.Errorf("decrypt reserves: %w", err)
	}
	return a.Sign() > 0 || b.Sign() > 0, nil
}

type labelledAccount struct {
	label   string
	account solana.PublicKey
	owner   solana.PublicKey
	mint    solana.PublicKey
}

func labelled(accts *derive.Accounts) []labelledAccount {
	return []labelledAccount{
		{label: "pool", account: accts.Pool},
		{label: "user token A", account: accts.UserTokenA},
		{label: "user token B", account: accts.UserTokenB},
		{label: "pool token A", account: accts.PoolTokenA},
		{label: "pool token B", account: accts.PoolTokenB},
	}
}

// CreateMints creates a fresh confidential mint pair with the session wallet
// as mint authority, one transaction per mint, and persists it.
func (o *Orchestrator) CreateMints(ctx context.Context, sess *session.Session) (*mints.Config, []*submit.Receipt, error) {
	w := sess.Wallet()
	if w == nil {
		return nil, nil, wallet.ErrMissingSigner
	}
	sub := o.Submitter(sess)

	keys := []solana.PrivateKey{solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey}
	ops := make([]submit.Operation, len(keys))
	for i, k := range keys {
		ops[i] = submit.Operation{
			Label:        fmt.Sprintf("create mint %c", 'A'+i),
			Instructions: []solana.Instruction{program.NewInitializeMint(k.PublicKey(), w.PublicKey(), w.PublicKey(), nil)},
			Signers:      []solana.PrivateKey{k},
		}
	}

	receipts, err := sub.SubmitAll(ctx, ops...)
	o.publishReceipts(ctx, sess, "", receipts)
	if err != nil {
		return nil, receipts, err
	}

	cfg := &mints.Config{MintA: keys[0].PublicKey(), MintB: keys[1].PublicKey(), Source: mints.SourceLocal}
	if o.store != nil {
		if err := o.store.Save(ctx, cfg.MintA, cfg.MintB); err != nil {
			o.logger.WithError(err).Warn("mints created but not persisted")
		}
	}
	sess.SetMints(cfg)

	o.logger.WithFields(logrus.Fields{
		"session": sess.ID,
		"mintA":   cfg.MintA.String(),
		"mintB":   cfg.MintB.String(),
	}).Info("confidential mints created")
	return cfg, receipts, nil
}

// ClearMints forgets the stored mint pair for this and future sessions.
func (o *Orchestrator) ClearMints(ctx context.Context, sess *session.Session) error {
	if err := o.store.Clear(ctx); err != nil {
		return err
	}
	sess.SetMints(nil)
	return nil
}

// Setup brings the pool to Ready. Steps already done on chain are skipped, so
// an interrupted run can be resumed by calling Setup again.
func (o *Orchestrator) Setup(ctx context.Context, sess *session.Session) (*SetupReport, error) {
	m, accts, err := o.Accounts(sess)
	if err != nil {
		return nil, err
	}
	if err := o.acquire(accts.Pool); err != nil {
		return nil, err
	}
	defer o.release(accts.Pool)

	report := &SetupReport{RunID: uuid.NewString(), Accounts: accts}
	log := o.logger.WithFields(logrus.Fields{
		"run":     report.RunID,
		"session": sess.ID,
		"pool":    accts.Pool.String(),
	})

	base := o.Submitter(sess)
	conn, err := o.router.Conn(ctx, sess, o.chain)
	if err != nil {
		return report, err
	}
	venue := base
	var venueReader permission.AccountReader
	if o.router.Active(sess) {
		venue = base.WithLedger(conn)
		venueReader = conn
	}
	payer := base.Signer().PublicKey()

	info, err := o.chain.GetAccountInfo(ctx, accts.Pool)
	if err != nil {
		return report, fmt.Errorf("fetch pool account: %w", err)
	}
	poolExists := info != nil
	funded := false
	if poolExists {
		if funded, err = o.liquidity(ctx, sess, venueReader, accts.Pool, info); err != nil {
			return report, err
		}
	}

	o.stage(ctx, sess, report, StageAccountsPending)
	createAccounts := submit.Operation{Label: "create token accounts"}
	for _, t := range []labelledAccount{
		{account: accts.UserTokenA, owner: payer, mint: m.MintA},
		{account: accts.UserTokenB, owner: payer, mint: m.MintB},
		{account: accts.PoolTokenA, owner: accts.Pool, mint: m.MintA},
		{account: accts.PoolTokenB, owner: accts.Pool, mint: m.MintB},
	} {
		createAccounts.Instructions = append(createAccounts.Instructions,
			program.NewCreateIdempotent(payer, t.account, t.mint, t.owner))
	}
	if err := o.run(ctx, sess, report, base, createAccounts); err != nil {
		return report, err
	}

	if !poolExists {
		o.stage(ctx, sess, report, StagePoolInitializing)
		initPool := submit.Operation{
			Label:        "initialize pool",
			Instructions: []solana.Instruction{program.NewInitializePool(payer, m.MintA, m.MintB, accts.Pool, o.feeBps)},
		}
		if err := o.run(ctx, sess, report, base, initPool); err != nil {
			return report, err
		}
		report.PoolCreated = true
	}

	if !funded {
		o.stage(ctx, sess, report, StageLiquiditySeeding)
		if !m.CanMint() {
			log.Info("seed minting disabled for external mints")
			report.Warnings = append(report.Warnings, "Seed minting disabled for external mints; fund the wallet's token accounts out of band.")
		} else if err := o.seed(ctx, sess, report, base, m, accts); err != nil {
			log.WithError(err).Warn("seed minting skipped")
			report.UnderFunded = true
			report.Warnings = append(report.Warnings, "Seed minting skipped: "+err.Error())
		}
	}

	if o.router.Active(sess) {
		o.stage(ctx, sess, report, StagePermissionDelegating)
		targets, err := o.targets(payer, m, accts)
		if err != nil {
			return report, err
		}
		res, err := permission.NewSequencer(base, o.chain, o.logger).Delegate(ctx, targets)
		report.Delegation = res
		if res != nil {
			report.add(res.Receipts...)
			o.publishReceipts(ctx, sess, accts.Pool.String(), res.Receipts)
		}
		if err != nil {
			return report, err
		}
	}

	if !funded {
		o.stage(ctx, sess, report, StageLiquidityAdding)
		cts, err := confidential.EncryptAll(ctx, o.codec, new(big.Int).SetUint64(o.seedA), new(big.Int).SetUint64(o.seedB))
		if err != nil {
			return report, fmt.Errorf("encrypt liquidity: %w", err)
		}
		add := submit.Operation{
			Label:        "add liquidity",
			Instructions: []solana.Instruction{program.NewAddLiquidity(payer, accts, cts[0], cts[1])},
		}
		if err := o.run(ctx, sess, report, venue, add); err != nil {
			return report, err
		}
	}

	o.stage(ctx, sess, report, StageReady)
	log.WithField("transactions", len(report.Receipts)).Info("pool setup complete")
	return report, nil
}

func (o *Orchestrator) seed(ctx context.Context, sess *session.Session, report *SetupReport, sub *submit.Submitter, m *mints.Config, accts *derive.Accounts) error {
	cts, err := confidential.EncryptAll(ctx, o.codec, new(big.Int).SetUint64(o.seedA), new(big.Int).SetUint64(o.seedB))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSeedMint, err)
	}
	authority := sub.Signer().PublicKey()
	for i, t := range []struct {
		mint, account solana.PublicKey
	}{
		{m.MintA, accts.UserTokenA},
		{m.MintB, accts.UserTokenB},
	} {
		op := submit.Operation{
			Label:        fmt.Sprintf("seed mint %c", 'A'+i),
			Instructions: []solana.Instruction{program.NewMintTo(t.mint, t.account, authority, cts[i])},
		}
		if err := o.run(ctx, sess, report, sub, op); err != nil {
			return fmt.Errorf("%w: %w", ErrSeedMint, err)
		}
	}
	return nil
}

func (o *Orchestrator) targets(payer solana.PublicKey, m *mints.Config, accts *derive.Accounts) ([]permission.Target, error) {
	members := permission.Members(payer, accts.Pool, o.validator, constants.PrivateSwapProgramID)

	poolOps, err := permission.PoolOps(payer, o.validator, accts.Pool, m.MintA, m.MintB, members)
	if err != nil {
		return nil, err
	}
	poolTarget, err := permission.NewTarget("pool", accts.Pool, poolOps)
	if err != nil {
		return nil, err
	}
	targets := []permission.Target{poolTarget}

	for _, t := range []labelledAccount{
		{label: "user token A", account: accts.UserTokenA, owner: payer, mint: m.MintA},
		{label: "user token B", account: accts.UserTokenB, owner: payer, mint: m.MintB},
		{label: "pool token A", account: accts.PoolTokenA, owner: accts.Pool, mint: m.MintA},
		{label: "pool token B", account: accts.PoolTokenB, owner: accts.Pool, mint: m.MintB},
	} {
		ops, err := permission.TokenAccountOps(t.label, payer, o.validator, t.owner, t.mint, t.account, members)
		if err != nil {
			return nil, err
		}
		target, err := permission.NewTarget(t.label, t.account, ops)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (o *Orchestrator) run(ctx context.Context, sess *session.Session, report *SetupReport, sub *submit.Submitter, op submit.Operation) error {
	r, err := sub.Submit(ctx, op)
	report.add(r)
	if r != nil {
		o.publishReceipts(ctx, sess, report.Accounts.Pool.String(), []*submit.Receipt{r})
	}
	if err != nil {
		ev := cache.NewEvent(sess.ID, cache.KindOperation, "failed")
		ev.Pool = report.Accounts.Pool.String()
		ev.Label = op.Label
		ev.Error = err.Error()
		o.publish(ctx, ev)
	}
	return err
}

func (o *Orchestrator) stage(ctx context.Context, sess *session.Session, report *SetupReport, s Stage) {
	report.Stage = s
	o.logger.WithFields(logrus.Fields{
		"run":   report.RunID,
		"stage": string(s),
	}).Info(s.Message())

	ev := cache.NewEvent(sess.ID, cache.KindStage, s.Message())
	ev.Pool = report.Accounts.Pool.String()
	ev.Stage = string(s)
	o.publish(ctx, ev)
}

func (o *Orchestrator) publishReceipts(ctx context.Context, sess *session.Session, pool string, receipts []*submit.Receipt) {
	for _, r := range receipts {
		status := "confirmed"
		if r.Pending {
			status = "pending"
		}
		ev := cache.NewEvent(sess.ID, cache.KindOperation, status)
		ev.Pool = pool
		ev.Label = r.Label
		ev.Signature = r.Signature
		o.publish(ctx, ev)
	}
}

// publish is best effort; a flow never fails because an event was dropped.
func (o *Orchestrator) publish(ctx context.Context, ev *cache.Event) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.WithError(err).WithField("kind", ev.Kind).Debug("event publish failed")
	}
}
