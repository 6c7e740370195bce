// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govmarkets/futarchy/pkg/log"
)

func balancedSpot() PoolState {
	return PoolState{AssetReserve: 1_000_000, StableReserve: 1_000_000, FeeBps: 30}
}

// pushedConds returns a 2-outcome market where the user swap pushed both
// pools to a stable/asset price of 1.05 against a 1.00 spot.
func pushedConds() []PoolState {
	return []PoolState{
		{AssetReserve: 980_000, StableReserve: 1_029_000, FeeBps: 30},
		{AssetReserve: 980_000, StableReserve: 1_029_000, FeeBps: 30},
	}
}

func TestBestTradeDirectionForExpensiveConditional(t *testing.T) {
	require := require.New(t)
	opt := NewOptimizer(log.NoOp())

	// 20,000-unit user swap created the imbalance: search is bounded to
	// 22,000 and the expensive conditional asset is sold back toward spot.
	quote := opt.BestTrade(balancedSpot(), pushedConds(), 20_000)

	require.Equal(DirectionCondToSpot, quote.Direction)
	require.LessOrEqual(quote.Amount, uint64(22_000))
	require.Greater(quote.Amount, uint64(0))
	require.True(quote.Profit.Sign() > 0)
}

func TestBestTradeBoundNeverExceeded(t *testing.T) {
	require := require.New(t)
	opt := NewOptimizer(log.NoOp())

	for _, hint := range []uint64{100, 5_000, 20_000, 500_000} {
		quote := opt.BestTrade(balancedSpot(), pushedConds(), hint)
		if quote.Direction == DirectionNone {
			continue
		}
		bound := hint + hint/10
		if gb := globalBound(balancedSpot(), pushedConds()); gb < bound {
			bound = gb
		}
		require.LessOrEqual(quote.Amount, bound, "hint %d", hint)
	}
}

func TestBestTradeNoOpOnAlignedPrices(t *testing.T) {
	require := require.New(t)
	opt := NewOptimizer(log.NoOp())

	aligned := []PoolState{
		{AssetReserve: 1_000_000, StableReserve: 1_000_000, FeeBps: 30},
		{AssetReserve: 1_000_000, StableReserve: 1_000_000, FeeBps: 30},
	}
	quote := opt.BestTrade(balancedSpot(), aligned, 10_000)
	require.Equal(DirectionNone, quote.Direction)
	require.Zero(quote.Amount)
}

func TestBestTradeCheapConditionalFlows(t *testing.T) {
	require := require.New(t)
	opt := NewOptimizer(log.NoOp())

	// Conditional asset trading well below spot: buy it in every pool,
	// recombine, sell on spot.
	cheap := []PoolState{
		{AssetReserve: 1_050_000, StableReserve: 950_000, FeeBps: 30},
		{AssetReserve: 1_050_000, StableReserve: 950_000, FeeBps: 30},
	}
	quote := opt.BestTrade(balancedSpot(), cheap, 0)
	require.Equal(DirectionSpotToCond, quote.Direction)
	require.True(quote.Profit.Sign() > 0)
}

func TestSearchFindsConcaveOptimum(t *testing.T) {
	require := require.New(t)
	opt := NewOptimizer(log.NoOp())

	spot := balancedSpot()
	conds := pushedConds()
	quote := opt.BestTrade(spot, conds, 0)
	require.Equal(DirectionCondToSpot, quote.Direction)

	// The returned size should beat meaningfully smaller and larger sizes.
	at := func(b uint64) int64 {
		return ProfitCondToSpot(spot, conds, b).IntPart()
	}
	best := at(quote.Amount)
	require.GreaterOrEqual(best, at(quote.Amount/4))
	require.GreaterOrEqual(best, at(quote.Amount*4))
}

func TestProfitFunctionsZeroSize(t *testing.T) {
	require := require.New(t)

	require.True(ProfitCondToSpot(balancedSpot(), pushedConds(), 0).IsZero())
	require.True(ProfitSpotToCond(balancedSpot(), pushedConds(), 0).IsZero())
}

func TestBestTradeEmptyMarket(t *testing.T) {
	require := require.New(t)
	opt := NewOptimizer(log.NoOp())

	quote := opt.BestTrade(balancedSpot(), nil, 1_000)
	require.Equal(DirectionNone, quote.Direction)

	quote = opt.BestTrade(PoolState{}, pushedConds(), 1_000)
	require.Equal(DirectionNone, quote.Direction)
}
