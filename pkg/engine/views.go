// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/govmarkets/futarchy/pkg/balance"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/proposal"
)

// PoolView is a read-only snapshot of one conditional pool.
type PoolView struct {
	Outcome       uint8  `json:"outcome"`
	AssetReserve  uint64 `json:"asset_reserve"`
	StableReserve uint64 `json:"stable_reserve"`
	SpotPrice     string `json:"spot_price"`
	Twap          string `json:"twap,omitempty"`
	FeeBps        uint64 `json:"fee_bps"`
	Status        string `json:"status"`
}

// MarketView is a read-only snapshot of the active proposal.
type MarketView struct {
	ID            string     `json:"id"`
	DAOID         string     `json:"dao_id"`
	State         string     `json:"state"`
	OutcomeCount  uint8      `json:"outcome_count"`
	TradingStart  time.Time  `json:"trading_start,omitzero"`
	TradingEnd    time.Time  `json:"trading_end,omitzero"`
	Winner        *uint8     `json:"winner,omitempty"`
	PendingWinner *uint8     `json:"pending_winner,omitempty"`
	Pools         []PoolView `json:"pools,omitempty"`
}

// SpotView is a read-only snapshot of the parent pool.
type SpotView struct {
	LiveAsset       uint64    `json:"live_asset"`
	LiveStable      uint64    `json:"live_stable"`
	Price           string    `json:"price"`
	FeeBps          uint64    `json:"fee_bps"`
	Locked          bool      `json:"locked"`
	LastProposalEnd time.Time `json:"last_proposal_end,omitzero"`
}

// StatusView is the full engine snapshot served to clients.
type StatusView struct {
	Spot   SpotView    `json:"spot"`
	Market *MarketView `json:"market,omitempty"`
}

// Status snapshots the whole engine.
func (e *Engine) Status(now time.Time) StatusView {
	e.mu.Lock()
	defer e.mu.Unlock()

	liveAsset, liveStable := e.spot.LiveReserves()
	view := StatusView{
		Spot: SpotView{
			LiveAsset:       liveAsset,
			LiveStable:      liveStable,
			Price:           e.spot.Price().String(),
			FeeBps:          e.spot.FeeBps(),
			Locked:          e.spot.IsLocked(),
			LastProposalEnd: e.spot.LastProposalEnd(),
		},
	}
	if e.market != nil {
		view.Market = e.marketView(now)
	}
	return view
}

// ActiveMarketView snapshots the active proposal.
func (e *Engine) ActiveMarketView(now time.Time) (*MarketView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return nil, ErrNoActiveProposal
	}
	return e.marketView(now), nil
}

func (e *Engine) marketView(now time.Time) *MarketView {
	m := e.market
	start, end := m.TradingWindow()
	view := &MarketView{
		ID:           m.ID.String(),
		DAOID:        m.DAOID.String(),
		State:        m.State().String(),
		OutcomeCount: m.OutcomeCount,
		TradingStart: start,
		TradingEnd:   end,
	}
	if winner, ok := m.WinningOutcome(); ok {
		view.Winner = &winner
	}
	if pending, ok := m.PendingWinner(); ok {
		view.PendingWinner = &pending
	}
	for _, pool := range m.Pools() {
		pv := PoolView{
			Outcome: pool.Outcome,
			FeeBps:  pool.FeeInUse(now),
			Status:  pool.Status().String(),
		}
		pv.AssetReserve, pv.StableReserve = pool.Reserves()
		pv.SpotPrice = pool.SpotPrice().String()
		if twap, err := pool.Twap(now); err == nil {
			pv.Twap = twap.String()
		}
		view.Pools = append(view.Pools, pv)
	}
	return view
}

// Twap returns one outcome pool's time-weighted average price.
func (e *Engine) Twap(outcome uint8, now time.Time) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return decimal.Zero, ErrNoActiveProposal
	}
	pool, err := e.market.Pool(outcome)
	if err != nil {
		return decimal.Zero, err
	}
	return pool.Twap(now)
}

// WinningOutcome reports the finalized winner of the active proposal.
func (e *Engine) WinningOutcome() (uint8, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return 0, false
	}
	return e.market.WinningOutcome()
}

// IsTradingActive reports whether the active proposal accepts swaps.
func (e *Engine) IsTradingActive(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.market != nil && e.market.IsTradingActive(now)
}

// Balances snapshots a user's conditional positions for the active market.
// The slice is indexed outcome*2 for asset and outcome*2+1 for stable.
func (e *Engine) Balances(user ids.ID) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return nil, ErrNoActiveProposal
	}
	ledger, ok := e.ledgers[user]
	if !ok {
		return make([]uint64, int(e.market.OutcomeCount)*2), nil
	}
	return ledger.Snapshot(), nil
}

// MinCompleteSet reports the largest amount of one kind a user could
// recombine right now, the minimum across their outcome slots.
func (e *Engine) MinCompleteSet(user ids.ID, kind balance.Kind) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return 0, ErrNoActiveProposal
	}
	ledger, ok := e.ledgers[user]
	if !ok {
		return 0, nil
	}
	return ledger.MinBalanceOf(kind), nil
}

// MarketState returns the active proposal's lifecycle phase.
func (e *Engine) MarketState() (proposal.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market == nil {
		return 0, ErrNoActiveProposal
	}
	return e.market.State(), nil
}
