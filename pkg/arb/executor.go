// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/log"
	"github.com/govmarkets/futarchy/pkg/session"
)

// SpotMarket is the parent-pool surface the executor trades against.
type SpotMarket interface {
	Swap(amountIn uint64, dir amm.SwapDirection, minOut uint64) (uint64, error)
	TradingReserves() (asset, stable uint64)
	FeeBps() uint64
	Donate(asset, stable uint64)
}

// Escrow is the custody surface for quantum mints and complete-set burns.
type Escrow interface {
	DepositAsset(amount uint64)
	DepositStable(amount uint64)
	WithdrawAsset(amount uint64) error
	WithdrawStable(amount uint64) error
}

// Result reports an executed arbitrage.
type Result struct {
	Direction Direction
	Amount    uint64
	Profit    uint64
}

// Executor composes the quote into the real sequence of swaps: quantum mint,
// per-outcome conditional swap, complete-set burn, spot swap. The whole
// sequence runs under one session token so it is all-or-nothing; capital is
// flashed inside the session and only profit leaves it, donated to the spot
// LIVE bucket.
type Executor struct {
	opt   *Optimizer
	guard *session.Guard
	log   log.Logger
}

// NewExecutor wires an optimizer to a session guard.
func NewExecutor(opt *Optimizer, guard *session.Guard, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NoLog
	}
	return &Executor{opt: opt, guard: guard, log: logger}
}

// Execute quotes and, when profitable, performs the arbitrage. A quote below
// minProfit is an opportunistic no-op, not an error: the opportunity simply
// evaporated or never cleared the gate.
func (e *Executor) Execute(
	now time.Time,
	spot SpotMarket,
	pools []*amm.Pool,
	esc Escrow,
	userSwapOutput uint64,
	minProfit uint64,
) (*Result, error) {
	spotState, condStates := snapshot(now, spot, pools)

	quote := e.opt.BestTrade(spotState, condStates, userSwapOutput)
	if quote.Direction == DirectionNone {
		return nil, nil
	}

	// Profitability gate: re-price at the chosen size against live reserves
	// before committing. Profit must be strictly positive even at a zero
	// minProfit; run relies on the committed size covering its own stake.
	var gate decimal.Decimal
	switch quote.Direction {
	case DirectionCondToSpot:
		gate = ProfitCondToSpot(spotState, condStates, quote.Amount)
	case DirectionSpotToCond:
		gate = ProfitSpotToCond(spotState, condStates, quote.Amount)
	}
	if !gate.IsPositive() || gate.LessThan(decimal.NewFromUint64(minProfit)) {
		return nil, nil
	}

	sess := e.guard.Begin(now)
	res := e.run(now, quote, spot, pools, esc)
	if err := e.guard.Finalize(sess); err != nil {
		return nil, err
	}

	e.log.Info("arbitrage executed",
		log.String("direction", res.Direction.String()),
		log.Uint64("amount", res.Amount),
		log.Uint64("profit", res.Profit))
	return res, nil
}

// run performs the committed leg sequence. Execute repriced the quote with
// exact integer math against the same reserves the legs trade on, under the
// caller's serialization, so every leg must succeed. A leg failing
// mid-sequence means the pools diverged from their snapshot; returning would
// leave a partial arbitrage behind, which must be impossible, so a failed
// leg crashes instead.
func (e *Executor) run(
	now time.Time,
	quote Quote,
	spot SpotMarket,
	pools []*amm.Pool,
	esc Escrow,
) *Result {
	b := quote.Amount

	switch quote.Direction {
	case DirectionCondToSpot:
		// Buy the asset cheap on spot.
		asset, err := spot.Swap(b, amm.SwapStableForAsset, 0)
		if err != nil {
			panic(fmt.Sprintf("arb: spot leg diverged from quote: %v", err))
		}
		// Quantum-mint it into every outcome and sell it expensive.
		esc.DepositAsset(asset)
		minStable := ^uint64(0)
		for i, pool := range pools {
			out, err := pool.Swap(asset, amm.SwapAssetForStable, 0, now)
			if err != nil {
				panic(fmt.Sprintf("arb: conditional leg %d diverged from quote: %v", i, err))
			}
			if out < minStable {
				minStable = out
			}
		}
		// Burn the complete stable set back to spot collateral. The gate
		// required strictly positive profit at this size, so the set always
		// covers the stake.
		if minStable <= b {
			panic(fmt.Sprintf("arb: complete set %d does not cover stake %d", minStable, b))
		}
		if err := esc.WithdrawStable(minStable); err != nil {
			panic(fmt.Sprintf("arb: escrow cannot cover complete-set burn: %v", err))
		}
		profit := minStable - b
		spot.Donate(0, profit)
		return &Result{Direction: quote.Direction, Amount: b, Profit: profit}

	case DirectionSpotToCond:
		// Quantum-mint stable into every outcome and buy the cheap asset.
		esc.DepositStable(b)
		minAsset := ^uint64(0)
		for i, pool := range pools {
			out, err := pool.Swap(b, amm.SwapStableForAsset, 0, now)
			if err != nil {
				panic(fmt.Sprintf("arb: conditional leg %d diverged from quote: %v", i, err))
			}
			if out < minAsset {
				minAsset = out
			}
		}
		// Burn the complete asset set and sell the spot asset.
		if err := esc.WithdrawAsset(minAsset); err != nil {
			panic(fmt.Sprintf("arb: escrow cannot cover complete-set burn: %v", err))
		}
		stableOut, err := spot.Swap(minAsset, amm.SwapAssetForStable, 0)
		if err != nil {
			panic(fmt.Sprintf("arb: spot leg diverged from quote: %v", err))
		}
		if stableOut <= b {
			panic(fmt.Sprintf("arb: proceeds %d do not cover stake %d", stableOut, b))
		}
		profit := stableOut - b
		spot.Donate(0, profit)
		return &Result{Direction: quote.Direction, Amount: b, Profit: profit}
	}

	panic(fmt.Sprintf("arb: unknown direction %d", quote.Direction))
}

func snapshot(now time.Time, spot SpotMarket, pools []*amm.Pool) (PoolState, []PoolState) {
	a, s := spot.TradingReserves()
	spotState := PoolState{AssetReserve: a, StableReserve: s, FeeBps: spot.FeeBps()}
	condStates := make([]PoolState, len(pools))
	for i, pool := range pools {
		ca, cs := pool.Reserves()
		condStates[i] = PoolState{AssetReserve: ca, StableReserve: cs, FeeBps: pool.FeeInUse(now)}
	}
	return spotState, condStates
}
