// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine is the process-level coordinator: one spot pool, at most
// one active proposal market, per-user conditional ledgers, and the
// automatic arbitrage hook that fires after every user swap. All entry
// points serialize on one mutex; each call is an atomic compute-then-mutate
// unit with no internal concurrency.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/arb"
	"github.com/govmarkets/futarchy/pkg/balance"
	"github.com/govmarkets/futarchy/pkg/config"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
	"github.com/govmarkets/futarchy/pkg/metric"
	"github.com/govmarkets/futarchy/pkg/proposal"
	"github.com/govmarkets/futarchy/pkg/registry"
	"github.com/govmarkets/futarchy/pkg/session"
	"github.com/govmarkets/futarchy/pkg/spot"
	"github.com/govmarkets/futarchy/pkg/store"
)

var (
	ErrProposalActive   = errors.New("another proposal is still active")
	ErrNoActiveProposal = errors.New("no active proposal")
)

// Engine wires the subsystems together behind one lock.
type Engine struct {
	mu sync.Mutex

	cfg  config.Params
	spot *spot.Pool
	reg  *registry.Registry

	market  *proposal.Market
	ledgers map[ids.ID]*balance.Ledger

	guard    *session.Guard
	arb      *arb.Executor
	metrics  *metric.Metrics
	recorder store.Recorder
	log      log.Logger
}

// New builds an engine over an existing spot pool.
func New(
	cfg config.Params,
	spotPool *spot.Pool,
	reg *registry.Registry,
	metrics *metric.Metrics,
	recorder store.Recorder,
	logger log.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NoLog
	}
	if metrics == nil {
		metrics = metric.New("futarchy")
	}
	if recorder == nil {
		recorder = store.NoOp{}
	}
	guard := session.NewGuard()
	return &Engine{
		cfg:      cfg,
		spot:     spotPool,
		reg:      reg,
		guard:    guard,
		arb:      arb.NewExecutor(arb.NewOptimizer(logger), guard, logger),
		metrics:  metrics,
		recorder: recorder,
		log:      logger,
	}, nil
}

// SpotPool exposes the parent pool for read-side callers.
func (e *Engine) SpotPool() *spot.Pool { return e.spot }

// CreateProposal opens a new proposal market. Only one proposal may be in
// flight at a time; the previous one must be finalized first.
func (e *Engine) CreateProposal(
	daoID ids.ID,
	outcomeCount uint8,
	policy proposal.WinnerPolicy,
	now time.Time,
) (ids.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.market != nil && e.market.State() != proposal.StateFinalized {
		return ids.Empty, fmt.Errorf("%w: %s in %s", ErrProposalActive, e.market.ID.Short(), e.market.State())
	}

	id := ids.Generate()
	m, err := proposal.NewMarket(id, daoID, outcomeCount, e.spot, e.reg, e.cfg, policy, now, e.log)
	if err != nil {
		return ids.Empty, err
	}
	e.market = m
	e.ledgers = make(map[ids.ID]*balance.Ledger)
	e.metrics.ProposalsCreated.Inc()
	e.metrics.ActiveProposals.Set(1)
	return id, nil
}

// RegisterOutcome binds a coin pair on the active proposal.
func (e *Engine) RegisterOutcome(outcome uint8, pair registry.Pair) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	return e.market.RegisterOutcome(outcome, pair)
}

// StageAction attaches a governance action on the active proposal.
func (e *Engine) StageAction(a proposal.StagedAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	return e.market.StageAction(a)
}

// AdvanceToReview moves the active proposal into review.
func (e *Engine) AdvanceToReview(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	return e.market.AdvanceToReview(now)
}

// AdvanceToTrading opens the conditional pools.
func (e *Engine) AdvanceToTrading(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	return e.market.AdvanceToTrading(now)
}

// Finalize resolves the active proposal. It either completes or parks in
// awaiting-execution; the archive is written only on completion.
func (e *Engine) Finalize(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	if err := e.market.Finalize(now); err != nil {
		return err
	}
	if e.market.State() == proposal.StateFinalized {
		e.recordFinalized(now, false)
	}
	return nil
}

// ExecuteActions runs the pending winner's actions and finalizes.
func (e *Engine) ExecuteActions(now time.Time, exec proposal.ActionExecutor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	if err := e.market.ExecuteActions(now, exec); err != nil {
		return err
	}
	e.recordFinalized(now, false)
	return nil
}

// HandleExecutionTimeout forces an abandoned accept outcome to reject.
func (e *Engine) HandleExecutionTimeout(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return ErrNoActiveProposal
	}
	if err := e.market.HandleExecutionTimeout(now); err != nil {
		return err
	}
	e.metrics.ExecutionTimeouts.Inc()
	e.recordFinalized(now, true)
	return nil
}

// Split deposits `amount` of real collateral and credits every outcome slot
// of the user's ledger at once.
func (e *Engine) Split(user ids.ID, kind balance.Kind, amount uint64, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	esc, err := e.activeEscrow()
	if err != nil {
		return err
	}
	ledger, err := e.ledgerFor(user)
	if err != nil {
		return err
	}
	if err := ledger.Split(kind, amount); err != nil {
		return err
	}
	switch kind {
	case balance.Asset:
		esc.DepositAsset(amount)
	case balance.Stable:
		esc.DepositStable(amount)
	}
	return nil
}

// Recombine burns `amount` from every outcome slot and releases the same
// amount of real collateral back to the user.
func (e *Engine) Recombine(user ids.ID, kind balance.Kind, amount uint64, now time.Time) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	esc, err := e.activeEscrow()
	if err != nil {
		return 0, err
	}
	ledger, err := e.ledgerFor(user)
	if err != nil {
		return 0, err
	}
	out, err := ledger.Recombine(kind, amount)
	if err != nil {
		return 0, err
	}
	if err := e.withdraw(esc, kind, out); err != nil {
		// Undo the burn: a failed withdraw must leave no balance change.
		if serr := ledger.Split(kind, out); serr != nil {
			return 0, errors.Join(err, serr)
		}
		return 0, err
	}
	return out, nil
}

// BurnCompleteSet recombines the user's largest complete set of one kind.
func (e *Engine) BurnCompleteSet(user ids.ID, kind balance.Kind, now time.Time) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	esc, err := e.activeEscrow()
	if err != nil {
		return 0, err
	}
	ledger, err := e.ledgerFor(user)
	if err != nil {
		return 0, err
	}
	out, err := ledger.BurnCompleteSet(kind)
	if err != nil {
		return 0, err
	}
	if err := e.withdraw(esc, kind, out); err != nil {
		// Undo the burn: a failed withdraw must leave no balance change.
		if serr := ledger.Split(kind, out); serr != nil {
			return 0, errors.Join(err, serr)
		}
		return 0, err
	}
	return out, nil
}

// Swap trades on one outcome's conditional pool, settling against the
// user's ledger, then fires the arbitrage hook.
func (e *Engine) Swap(
	user ids.ID,
	outcome uint8,
	dir amm.SwapDirection,
	amountIn, minOut uint64,
	now time.Time,
) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.market == nil {
		return 0, ErrNoActiveProposal
	}
	if !e.market.IsTradingActive(now) {
		return 0, amm.ErrMarketNotTrading
	}
	pool, err := e.market.Pool(outcome)
	if err != nil {
		return 0, err
	}
	ledger, err := e.ledgerFor(user)
	if err != nil {
		return 0, err
	}

	inKind, outKind := swapKinds(dir)
	if err := ledger.DebitOutcome(outcome, inKind, amountIn); err != nil {
		return 0, err
	}
	obsBefore := pool.Oracle().Observations()
	out, err := pool.Swap(amountIn, dir, minOut, now)
	if err != nil {
		// Undo the debit: a failed swap must leave no balance change.
		if cerr := ledger.CreditOutcome(outcome, inKind, amountIn); cerr != nil {
			return 0, errors.Join(err, cerr)
		}
		if errors.Is(err, amm.ErrSlippageExceeded) {
			e.metrics.SlippageAborts.Inc()
		}
		return 0, err
	}
	if err := ledger.CreditOutcome(outcome, outKind, out); err != nil {
		return 0, err
	}

	e.metrics.SwapsExecuted.WithLabelValues("conditional", dir.String()).Inc()
	e.metrics.SwapVolume.WithLabelValues("conditional").Add(float64(amountIn))
	if pool.Oracle().Observations() > obsBefore {
		e.metrics.TwapObservations.Inc()
		e.archiveObservation(now, outcome, pool)
	}

	e.runArbHook(now, out)
	return out, nil
}

// SwapSpot trades on the parent pool. Conditional markets are rebalanced
// afterwards when a proposal is trading.
func (e *Engine) SwapSpot(amountIn uint64, dir amm.SwapDirection, minOut uint64, now time.Time) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.spot.Swap(amountIn, dir, minOut)
	if err != nil {
		if errors.Is(err, amm.ErrSlippageExceeded) {
			e.metrics.SlippageAborts.Inc()
		}
		return 0, err
	}
	e.metrics.SwapsExecuted.WithLabelValues("spot", dir.String()).Inc()
	e.metrics.SwapVolume.WithLabelValues("spot").Add(float64(amountIn))

	e.runArbHook(now, out)
	return out, nil
}

// AddLiquidity deposits both coins into the parent pool's LIVE bucket.
func (e *Engine) AddLiquidity(assetIn, stableIn, minLPOut uint64) (*spot.LPToken, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tok, err := e.spot.AddLiquidity(assetIn, stableIn, minLPOut)
	if err != nil {
		return nil, err
	}
	e.metrics.LiquidityOps.WithLabelValues("add").Inc()
	return tok, nil
}

// RemoveLiquidity burns an unlocked LP position for its share of LIVE.
func (e *Engine) RemoveLiquidity(tokenID ids.ID, minAssetOut, minStableOut uint64) (uint64, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	asset, stable, err := e.spot.RemoveLiquidity(tokenID, minAssetOut, minStableOut)
	if err != nil {
		return 0, 0, err
	}
	e.metrics.LiquidityOps.WithLabelValues("remove").Inc()
	return asset, stable, nil
}

// RequestExit parks a proposal-locked LP position for withdrawal once the
// proposal resolves.
func (e *Engine) RequestExit(tokenID ids.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.spot.RequestExit(tokenID); err != nil {
		return err
	}
	e.metrics.LiquidityOps.WithLabelValues("request_exit").Inc()
	return nil
}

// ClaimExited pays out an exit that has cleared the pending bucket.
func (e *Engine) ClaimExited(tokenID ids.ID) (uint64, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	asset, stable, err := e.spot.ClaimExited(tokenID)
	if err != nil {
		return 0, 0, err
	}
	e.metrics.LiquidityOps.WithLabelValues("claim").Inc()
	return asset, stable, nil
}

// runArbHook opportunistically rebalances the conditional pools against
// spot. Failures are logged, never surfaced: arbitrage is a side effect of
// the user's trade, not part of its contract.
func (e *Engine) runArbHook(now time.Time, userSwapOutput uint64) {
	if e.market == nil || !e.market.IsTradingActive(now) {
		return
	}
	e.metrics.ArbAttempts.Inc()
	started := time.Now()
	res, err := e.arb.Execute(now, e.spot, e.market.Pools(), e.market.Escrow(), userSwapOutput, e.cfg.MinArbProfit)
	e.metrics.ArbDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		e.log.Warn("arbitrage hook failed", log.Err(err))
		return
	}
	if res != nil {
		e.metrics.ArbExecuted.WithLabelValues(res.Direction.String()).Inc()
		e.metrics.ArbProfit.Add(float64(res.Profit))
	}
}

func (e *Engine) recordFinalized(now time.Time, forced bool) {
	e.metrics.ActiveProposals.Set(0)
	winner, _ := e.market.WinningOutcome()
	resolution := "accept"
	if winner == proposal.RejectOutcome {
		resolution = "reject"
	}
	e.metrics.ProposalsFinalized.WithLabelValues(resolution).Inc()

	protoAsset, protoStable := e.market.ProtocolFees()
	e.metrics.ProtocolFees.WithLabelValues("asset").Add(float64(protoAsset))
	e.metrics.ProtocolFees.WithLabelValues("stable").Add(float64(protoStable))

	asset, stable := e.market.ReturnedReserves()
	rec := store.ProposalRecord{
		MarketID:       e.market.ID.String(),
		DAOID:          e.market.DAOID.String(),
		OutcomeCount:   e.market.OutcomeCount,
		Winner:         winner,
		ForcedTimeout:  forced,
		FinalizedAt:    now.UTC(),
		AssetReturned:  asset,
		StableReturned: stable,
	}
	if err := e.recorder.RecordProposal(context.Background(), rec); err != nil {
		e.log.Warn("proposal archive write failed", log.Err(err))
	}
}

func (e *Engine) archiveObservation(now time.Time, outcome uint8, pool *amm.Pool) {
	obs := store.Observation{
		MarketID:   e.market.ID.String(),
		Outcome:    outcome,
		Price:      pool.Oracle().LastPrice().String(),
		ObservedAt: now.UTC(),
	}
	if err := e.recorder.RecordObservation(context.Background(), obs); err != nil {
		e.log.Warn("observation archive write failed", log.Err(err))
	}
}

func (e *Engine) activeEscrow() (*proposal.Escrow, error) {
	if e.market == nil {
		return nil, ErrNoActiveProposal
	}
	esc := e.market.Escrow()
	if esc == nil || e.market.State() == proposal.StateFinalized {
		return nil, fmt.Errorf("%w: %s", proposal.ErrWrongState, e.market.State())
	}
	return esc, nil
}

func (e *Engine) ledgerFor(user ids.ID) (*balance.Ledger, error) {
	if l, ok := e.ledgers[user]; ok {
		return l, nil
	}
	l, err := balance.NewLedger(e.market.ID, e.market.OutcomeCount)
	if err != nil {
		return nil, err
	}
	e.ledgers[user] = l
	return l, nil
}

func (e *Engine) withdraw(esc *proposal.Escrow, kind balance.Kind, amount uint64) error {
	if kind == balance.Asset {
		return esc.WithdrawAsset(amount)
	}
	return esc.WithdrawStable(amount)
}

func swapKinds(dir amm.SwapDirection) (in, out balance.Kind) {
	if dir == amm.SwapStableForAsset {
		return balance.Stable, balance.Asset
	}
	return balance.Asset, balance.Stable
}
