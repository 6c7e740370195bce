// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arb keeps the conditional markets consistent with the parent spot
// market. After a user swap moves a conditional price away from spot, the
// optimizer finds the trade that extracts the resulting arbitrage, which
// simultaneously corrects the mispricing.
package arb

import (
	"github.com/shopspring/decimal"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/log"
)

// Direction flags which way value flows to correct the mispricing.
type Direction uint8

const (
	// DirectionNone means no profitable trade exists.
	DirectionNone Direction = iota
	// DirectionSpotToCond buys conditional assets cheaply in every outcome
	// pool, recombines the complete set, and sells the spot asset.
	DirectionSpotToCond
	// DirectionCondToSpot buys the asset on spot and sells it into every
	// outcome pool, pushing the expensive conditional price back down.
	DirectionCondToSpot
)

func (d Direction) String() string {
	switch d {
	case DirectionSpotToCond:
		return "spot_to_cond"
	case DirectionCondToSpot:
		return "cond_to_spot"
	default:
		return "none"
	}
}

// PoolState is a reserve snapshot the profit functions evaluate against.
type PoolState struct {
	AssetReserve  uint64
	StableReserve uint64
	FeeBps        uint64
}

// Quote is the optimizer's answer: the profit-maximizing trade size and the
// expected profit in stable units at that size.
type Quote struct {
	Direction Direction
	Amount    uint64
	Profit    decimal.Decimal
}

// MinCoarseThreshold is the floor on the ternary-search step. It guarantees
// termination on integer-rounded plateaus where further narrowing cannot
// change the answer.
const MinCoarseThreshold = 8

// Optimizer computes optimal arbitrage trades over reserve snapshots.
type Optimizer struct {
	minCoarse uint64
	log       log.Logger
}

// NewOptimizer creates an optimizer with the default coarse threshold.
func NewOptimizer(logger log.Logger) *Optimizer {
	if logger == nil {
		logger = log.NoLog
	}
	return &Optimizer{minCoarse: MinCoarseThreshold, log: logger}
}

// BestTrade evaluates both directions and returns the better quote.
// userSwapOutput, when nonzero, bounds the search to 1.1x the swap that
// created the opportunity: an imbalance can never exceed the trade that
// caused it, so this is an exact tightening, not an approximation.
func (o *Optimizer) BestTrade(spot PoolState, conds []PoolState, userSwapOutput uint64) Quote {
	if len(conds) == 0 {
		return Quote{Direction: DirectionNone}
	}

	bound := globalBound(spot, conds)
	if userSwapOutput > 0 {
		hint := userSwapOutput + userSwapOutput/10
		if hint < bound {
			bound = hint
		}
	}
	if bound == 0 {
		return Quote{Direction: DirectionNone}
	}

	toCondAmt, toCondProfit := o.search(func(b uint64) decimal.Decimal {
		return ProfitCondToSpot(spot, conds, b)
	}, bound)
	toSpotAmt, toSpotProfit := o.search(func(b uint64) decimal.Decimal {
		return ProfitSpotToCond(spot, conds, b)
	}, bound)

	best := Quote{Direction: DirectionCondToSpot, Amount: toCondAmt, Profit: toCondProfit}
	if toSpotProfit.GreaterThan(toCondProfit) {
		best = Quote{Direction: DirectionSpotToCond, Amount: toSpotAmt, Profit: toSpotProfit}
	}
	if best.Amount == 0 || best.Profit.Sign() <= 0 {
		return Quote{Direction: DirectionNone}
	}

	o.log.Debug("arbitrage quote",
		log.String("direction", best.Direction.String()),
		log.Uint64("amount", best.Amount),
		log.String("profit", best.Profit.String()))
	return best
}

// ProfitCondToSpot prices direction CondToSpot at trade size b: spend b
// stable on spot for the asset, sell that asset into every outcome pool,
// then burn the complete stable set (the minimum across outcomes) back to
// spot collateral.
func ProfitCondToSpot(spot PoolState, conds []PoolState, b uint64) decimal.Decimal {
	if b == 0 {
		return decimal.Zero
	}
	asset := amm.SwapOutput(b, spot.StableReserve, spot.AssetReserve, spot.FeeBps)
	if asset == 0 {
		return decimal.NewFromUint64(b).Neg()
	}
	minStable := ^uint64(0)
	for _, c := range conds {
		out := amm.SwapOutput(asset, c.AssetReserve, c.StableReserve, c.FeeBps)
		if out < minStable {
			minStable = out
		}
	}
	return decimal.NewFromUint64(minStable).Sub(decimal.NewFromUint64(b))
}

// ProfitSpotToCond prices direction SpotToCond at trade size b: quantum-mint
// b conditional stable into every outcome, buy the conditional asset in each
// pool, burn the complete asset set back to a spot asset, and sell it.
func ProfitSpotToCond(spot PoolState, conds []PoolState, b uint64) decimal.Decimal {
	if b == 0 {
		return decimal.Zero
	}
	minAsset := ^uint64(0)
	for _, c := range conds {
		out := amm.SwapOutput(b, c.StableReserve, c.AssetReserve, c.FeeBps)
		if out < minAsset {
			minAsset = out
		}
	}
	if minAsset == 0 {
		return decimal.NewFromUint64(b).Neg()
	}
	stableOut := amm.SwapOutput(minAsset, spot.AssetReserve, spot.StableReserve, spot.FeeBps)
	return decimal.NewFromUint64(stableOut).Sub(decimal.NewFromUint64(b))
}

// search runs bounded ternary search over the concave profit function.
// Concavity means a single optimum and no local traps, so eliminating the
// worse third each round converges on it. Narrowing stops once the interval
// is below max(1% of the initial interval, MinCoarseThreshold).
func (o *Optimizer) search(f func(uint64) decimal.Decimal, hi uint64) (uint64, decimal.Decimal) {
	lo := uint64(0)
	step := hi / 100
	if step < o.minCoarse {
		step = o.minCoarse
	}

	for hi-lo > step {
		third := (hi - lo) / 3
		m1 := lo + third
		m2 := hi - third
		if f(m1).GreaterThan(f(m2)) {
			hi = m2
		} else {
			lo = m1
		}
	}

	best, bestProfit := lo, f(lo)
	for _, c := range []uint64{lo + (hi-lo)/2, hi} {
		if p := f(c); p.GreaterThan(bestProfit) {
			best, bestProfit = c, p
		}
	}
	return best, bestProfit
}

// globalBound caps the search at the smallest reserve in play; beyond that
// the trade only buys its own slippage.
func globalBound(spot PoolState, conds []PoolState) uint64 {
	bound := spot.AssetReserve
	if spot.StableReserve < bound {
		bound = spot.StableReserve
	}
	for _, c := range conds {
		if c.AssetReserve < bound {
			bound = c.AssetReserve
		}
		if c.StableReserve < bound {
			bound = c.StableReserve
		}
	}
	return bound
}
