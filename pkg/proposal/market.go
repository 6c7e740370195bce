// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package proposal drives a futarchy market through its lifecycle: outcome
// registration, quantum seeding of the conditional pools, the trading
// window, winner determination, and finalization back into the spot pool.
//
// Every transition is gated by wall-clock comparison at call time. There is
// no scheduler: callers retry time-gated transitions after the gate passes.
package proposal

import (
	"errors"
	"fmt"
	"time"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/config"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
	"github.com/govmarkets/futarchy/pkg/registry"
	"github.com/govmarkets/futarchy/pkg/spot"
)

var (
	ErrPeriodNotElapsed     = errors.New("period not elapsed")
	ErrWindowStillActive    = errors.New("execution window still active")
	ErrAlreadyFinalized     = errors.New("market already finalized")
	ErrNotAwaitingExecution = errors.New("market not awaiting execution")
	ErrWrongState           = errors.New("operation invalid in current state")
	ErrOutcomeRegistered    = errors.New("outcome already registered")
	ErrOutcomesIncomplete   = errors.New("not all outcomes registered")
	ErrProposalGapActive    = errors.New("inter-proposal gap not elapsed")
	ErrInvalidOutcomeCount  = errors.New("outcome count out of range")
	ErrInvalidOutcome       = errors.New("invalid outcome index")
)

// State is the proposal lifecycle phase.
type State uint8

const (
	StatePremarket State = iota
	StateReview
	StateTrading
	StateAwaitingExecution
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StatePremarket:
		return "premarket"
	case StateReview:
		return "review"
	case StateTrading:
		return "trading"
	case StateAwaitingExecution:
		return "awaiting_execution"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Market is one proposal's conditional market. All methods are expected to
// run serialized by the caller; the market does no internal locking.
type Market struct {
	ID           ids.ID
	DAOID        ids.ID
	OutcomeCount uint8

	state  State
	params config.Params
	policy WinnerPolicy

	spot  *spot.Pool
	reg   *registry.Registry
	esc   *Escrow
	pools []*amm.Pool

	pairs      []registry.Pair
	registered []bool
	actions    map[uint8][]StagedAction

	createdAt      time.Time
	reviewStart    time.Time
	tradingStart   time.Time
	tradingEnd     time.Time
	awaitingSince  time.Time
	finalizedAt    time.Time
	pendingWinner  uint8
	winningOutcome uint8
	hasWinner      bool

	protocolAsset  uint64
	protocolStable uint64
	returnedAsset  uint64
	returnedStable uint64

	log log.Logger
}

// NewMarket creates a premarket proposal. The registry resolves conditional
// coin pairs as outcomes register; the winner policy resolves trading.
func NewMarket(
	id, daoID ids.ID,
	outcomeCount uint8,
	spotPool *spot.Pool,
	reg *registry.Registry,
	params config.Params,
	policy WinnerPolicy,
	now time.Time,
	logger log.Logger,
) (*Market, error) {
	if outcomeCount < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutcomeCount, outcomeCount)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = TwapWinner{ThresholdBps: params.WinnerThresholdBps}
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &Market{
		ID:           id,
		DAOID:        daoID,
		OutcomeCount: outcomeCount,
		state:        StatePremarket,
		params:       params,
		policy:       policy,
		spot:         spotPool,
		reg:          reg,
		pairs:        make([]registry.Pair, outcomeCount),
		registered:   make([]bool, outcomeCount),
		actions:      make(map[uint8][]StagedAction),
		createdAt:    now,
		log:          logger,
	}, nil
}

// State returns the current lifecycle phase.
func (m *Market) State() State { return m.state }

// Escrow returns the market's custody account; nil before review.
func (m *Market) Escrow() *Escrow { return m.esc }

// Pools returns the conditional pools; nil before review.
func (m *Market) Pools() []*amm.Pool { return m.pools }

// Pool returns one outcome's conditional pool.
func (m *Market) Pool(outcome uint8) (*amm.Pool, error) {
	if m.pools == nil || int(outcome) >= len(m.pools) {
		return nil, ErrInvalidOutcome
	}
	return m.pools[outcome], nil
}

// WinningOutcome is set iff the market is finalized.
func (m *Market) WinningOutcome() (uint8, bool) {
	return m.winningOutcome, m.hasWinner
}

// PendingWinner reports the tentative winner while awaiting execution.
func (m *Market) PendingWinner() (uint8, bool) {
	return m.pendingWinner, m.state == StateAwaitingExecution
}

// TradingWindow returns the trading bounds; zero until trading starts.
func (m *Market) TradingWindow() (start, end time.Time) {
	return m.tradingStart, m.tradingEnd
}

// IsTradingActive reports whether swaps are currently accepted.
func (m *Market) IsTradingActive(now time.Time) bool {
	return m.state == StateTrading && !now.Before(m.tradingStart) && now.Before(m.tradingEnd)
}

// ProtocolFees returns the protocol's cut collected from the winning pool at
// finalization.
func (m *Market) ProtocolFees() (asset, stable uint64) {
	return m.protocolAsset, m.protocolStable
}

// ReturnedReserves reports what finalization recombined into the spot pool.
func (m *Market) ReturnedReserves() (asset, stable uint64) {
	return m.returnedAsset, m.returnedStable
}

// RegisterOutcome binds a conditional coin pair to an outcome slot. All
// slots must be bound before the market can advance to review.
func (m *Market) RegisterOutcome(outcome uint8, pair registry.Pair) error {
	if m.state != StatePremarket {
		return fmt.Errorf("%w: %s", ErrWrongState, m.state)
	}
	if outcome >= m.OutcomeCount {
		return ErrInvalidOutcome
	}
	if m.registered[outcome] {
		return fmt.Errorf("%w: %d", ErrOutcomeRegistered, outcome)
	}
	if m.reg != nil {
		if _, err := m.reg.Lookup(pair); err != nil {
			return err
		}
	}
	m.pairs[outcome] = pair
	m.registered[outcome] = true
	return nil
}

// StageAction attaches a governance action to an outcome. Only accept
// outcomes carry actions; staging onto reject is refused since reject means
// "do nothing".
func (m *Market) StageAction(a StagedAction) error {
	if m.state != StatePremarket && m.state != StateReview {
		return fmt.Errorf("%w: %s", ErrWrongState, m.state)
	}
	if a.Outcome >= m.OutcomeCount {
		return ErrInvalidOutcome
	}
	if a.Outcome == RejectOutcome {
		return fmt.Errorf("%w: reject outcome carries no actions", ErrWrongState)
	}
	m.actions[a.Outcome] = append(m.actions[a.Outcome], a)
	return nil
}

// Actions returns the staged actions for one outcome.
func (m *Market) Actions(outcome uint8) []StagedAction { return m.actions[outcome] }

// AdvanceToReview creates the escrow and the conditional pools. The
// configured ratio of the spot LIVE bucket moves into escrow, and a
// full-size copy of it seeds every outcome pool: outcomes are mutually
// exclusive futures, not a partition of the same capital.
func (m *Market) AdvanceToReview(now time.Time) error {
	if m.state != StatePremarket {
		return fmt.Errorf("%w: %s", ErrWrongState, m.state)
	}
	for i, ok := range m.registered {
		if !ok {
			return fmt.Errorf("%w: outcome %d", ErrOutcomesIncomplete, i)
		}
	}

	esc := NewEscrow(m.ID, m.log)
	seedAsset, seedStable, err := m.spot.LockForProposal(m.ID, esc.ID(), m.params.ConditionalLiquidityRatioPercent)
	if err != nil {
		return err
	}
	esc.DepositAsset(seedAsset)
	esc.DepositStable(seedStable)

	schedule, err := amm.NewFeeSchedule(
		m.params.FeeSchedule.InitialFeeBps,
		m.params.AmmTotalFeeBps,
		time.Duration(m.params.FeeSchedule.DurationMs)*time.Millisecond,
	)
	if err != nil {
		// Unwind the lock so the spot pool is not stranded.
		releaseErr := m.spot.ReleaseFromProposal(m.ID, seedAsset, seedStable, now)
		if releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}

	cfg := amm.PoolConfig{
		TotalFeeBps: m.params.AmmTotalFeeBps,
		BaseFeeBps:  m.params.AmmBaseFeeBps,
		Schedule:    schedule,
		TwapDelay:   time.Duration(m.params.Twap.StartDelayMs) * time.Millisecond,
		TwapStep:    time.Duration(m.params.Twap.StepMs) * time.Millisecond,
		TwapStepMax: m.params.Twap.StepMaxBps,
	}
	m.pools = make([]*amm.Pool, m.OutcomeCount)
	for i := range m.pools {
		pool := amm.NewPool(uint8(i), cfg, now, m.log)
		pool.Seed(seedAsset, seedStable)
		m.pools[i] = pool
	}

	m.esc = esc
	m.state = StateReview
	m.reviewStart = now
	m.log.Info("market entered review",
		log.String("market", m.ID.Short()),
		log.Int("outcomes", int(m.OutcomeCount)),
		log.Uint64("seed_asset", seedAsset),
		log.Uint64("seed_stable", seedStable))
	return nil
}

// AdvanceToTrading opens the conditional pools once the review period has
// elapsed and the inter-proposal gap since the last finalization has passed.
func (m *Market) AdvanceToTrading(now time.Time) error {
	if m.state != StateReview {
		return fmt.Errorf("%w: %s", ErrWrongState, m.state)
	}
	if now.Before(m.reviewStart.Add(m.params.ReviewPeriod())) {
		return fmt.Errorf("%w: review ends %s", ErrPeriodNotElapsed, m.reviewStart.Add(m.params.ReviewPeriod()))
	}
	if last := m.spot.LastProposalEnd(); !last.IsZero() {
		if gapEnd := last.Add(m.params.InterProposalGap()); now.Before(gapEnd) {
			return fmt.Errorf("%w: gap ends %s", ErrProposalGapActive, gapEnd)
		}
	}

	for _, pool := range m.pools {
		pool.SetStatus(amm.StatusTrading)
	}
	m.state = StateTrading
	m.tradingStart = now
	m.tradingEnd = now.Add(m.params.TradingPeriod())
	m.log.Info("market entered trading",
		log.String("market", m.ID.Short()),
		log.String("trading_end", m.tradingEnd.UTC().Format(time.RFC3339)))
	return nil
}

// Finalize closes trading, resolves the winner, and either finalizes
// immediately or parks in AwaitingExecution when the winner carries staged
// governance actions.
func (m *Market) Finalize(now time.Time) error {
	switch m.state {
	case StateFinalized:
		return ErrAlreadyFinalized
	case StateTrading:
	default:
		return fmt.Errorf("%w: %s", ErrWrongState, m.state)
	}
	if now.Before(m.tradingEnd) {
		return fmt.Errorf("%w: trading ends %s", ErrPeriodNotElapsed, m.tradingEnd)
	}

	winner, err := m.policy.Winner(now, m.pools)
	if err != nil {
		return err
	}

	for _, pool := range m.pools {
		pool.SetStatus(amm.StatusTradingEnded)
	}

	if winner != RejectOutcome && len(m.actions[winner]) > 0 {
		m.pendingWinner = winner
		m.state = StateAwaitingExecution
		m.awaitingSince = now
		m.log.Info("market awaiting execution",
			log.String("market", m.ID.Short()),
			log.Int("winner", int(winner)),
			log.Int("actions", len(m.actions[winner])))
		return nil
	}
	return m.completeFinalize(now, winner)
}

// ExecuteActions runs the pending winner's staged actions and finalizes.
// A failed executor leaves the market awaiting execution; the caller may
// retry until the execution window forces a timeout.
func (m *Market) ExecuteActions(now time.Time, exec ActionExecutor) error {
	if m.state != StateAwaitingExecution {
		return fmt.Errorf("%w: %s", ErrNotAwaitingExecution, m.state)
	}
	if err := exec.ExecuteActions(m.actions[m.pendingWinner]); err != nil {
		return fmt.Errorf("action execution: %w", err)
	}
	return m.completeFinalize(now, m.pendingWinner)
}

// HandleExecutionTimeout forcibly resolves an abandoned accept outcome to
// reject once the execution window elapses. This is a safety fallback, not
// an error path: an unexecuted accept must not strand the escrowed funds.
func (m *Market) HandleExecutionTimeout(now time.Time) error {
	if m.state != StateAwaitingExecution {
		return fmt.Errorf("%w: %s", ErrNotAwaitingExecution, m.state)
	}
	deadline := m.awaitingSince.Add(m.params.ExecutionWindow())
	if now.Before(deadline) {
		return fmt.Errorf("%w: window ends %s", ErrWindowStillActive, deadline)
	}
	m.log.Warn("execution window expired, forcing reject",
		log.String("market", m.ID.Short()),
		log.Int("abandoned_winner", int(m.pendingWinner)))
	return m.completeFinalize(now, RejectOutcome)
}

// completeFinalize redeems the winning pool's reserves out of escrow custody
// and recombines them into the spot LIVE bucket. Whatever custody remains in
// escrow after redemption backs user-held winning conditional tokens. Losing
// pools are frozen where they stand: their reserves are worthless from the
// spot perspective, redeemable only as conditional dust.
func (m *Market) completeFinalize(now time.Time, winner uint8) error {
	winPool := m.pools[winner]
	asset, stable, protoAsset, protoStable, err := winPool.Drain()
	if err != nil {
		return err
	}
	if err := m.esc.WithdrawAsset(asset + protoAsset); err != nil {
		return err
	}
	if err := m.esc.WithdrawStable(stable + protoStable); err != nil {
		return err
	}
	m.protocolAsset = protoAsset
	m.protocolStable = protoStable

	for i, pool := range m.pools {
		if uint8(i) != winner {
			pool.SetStatus(amm.StatusFinalized)
		}
	}

	if err := m.spot.ReleaseFromProposal(m.ID, asset, stable, now); err != nil {
		return err
	}

	m.state = StateFinalized
	m.finalizedAt = now
	m.winningOutcome = winner
	m.hasWinner = true
	m.returnedAsset = asset
	m.returnedStable = stable
	m.log.Info("market finalized",
		log.String("market", m.ID.Short()),
		log.Int("winner", int(winner)),
		log.Uint64("asset_back", asset),
		log.Uint64("stable_back", stable))
	return nil
}
