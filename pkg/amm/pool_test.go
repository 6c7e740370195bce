// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/govmarkets/futarchy/pkg/log"
)

func mulU128(a, b uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
}

func newTestPool(t *testing.T) (*Pool, time.Time) {
	t.Helper()
	start := time.UnixMilli(0)
	pool := NewPool(0, PoolConfig{
		TotalFeeBps: 30,
		BaseFeeBps:  25,
		TwapStep:    time.Second,
	}, start, log.NoOp())
	pool.Seed(1_000_000, 1_000_000)
	pool.SetStatus(StatusTrading)
	return pool, start
}

func TestPoolSwapScenario(t *testing.T) {
	require := require.New(t)
	pool, start := newTestPool(t)

	out, err := pool.Swap(100_000, SwapStableForAsset, 0, start.Add(time.Second))
	require.NoError(err)
	require.Equal(uint64(90_661), out)

	asset, stable := pool.Reserves()
	require.Equal(uint64(1_000_000-90_661), asset)
	// Protocol keeps 5 bps of the input, the rest enters reserves.
	protoCut := uint64(100_000 * 5 / 10_000)
	require.Equal(uint64(1_000_000+100_000)-protoCut, stable)

	_, protoStable := pool.ProtocolFees()
	require.Equal(protoCut, protoStable)
}

func TestPoolConstantProductMonotone(t *testing.T) {
	require := require.New(t)
	pool, start := newTestPool(t)

	k := func() (hi, lo uint64) {
		a, s := pool.Reserves()
		return a, s
	}

	prevA, prevS := k()
	now := start
	amounts := []uint64{1, 999, 50_000, 123_456, 3}
	dirs := []SwapDirection{SwapStableForAsset, SwapAssetForStable, SwapStableForAsset, SwapAssetForStable, SwapStableForAsset}

	for i, amt := range amounts {
		now = now.Add(2 * time.Second)
		_, err := pool.Swap(amt, dirs[i], 0, now)
		require.NoError(err)

		a, s := k()
		// k' >= k, strict when fee > 0 and the trade moved reserves.
		prod := mulU128(a, s)
		prevProd := mulU128(prevA, prevS)
		require.GreaterOrEqual(prod.Cmp(prevProd), 0, "swap %d shrank the invariant", i)
		prevA, prevS = a, s
	}
}

func TestPoolSwapSlippage(t *testing.T) {
	require := require.New(t)
	pool, start := newTestPool(t)

	_, err := pool.Swap(100_000, SwapStableForAsset, 95_000, start.Add(time.Second))
	require.ErrorIs(err, ErrSlippageExceeded)

	// No state change on failure.
	asset, stable := pool.Reserves()
	require.Equal(uint64(1_000_000), asset)
	require.Equal(uint64(1_000_000), stable)
}

func TestPoolSwapRequiresTrading(t *testing.T) {
	require := require.New(t)
	pool, start := newTestPool(t)

	for _, status := range []Status{StatusPreTrading, StatusTradingEnded, StatusFinalized} {
		pool.SetStatus(status)
		_, err := pool.Swap(1000, SwapStableForAsset, 0, start.Add(time.Second))
		require.ErrorIs(err, ErrMarketNotTrading, "status %s", status)
	}
}

func TestPoolFeeScheduleDecaysTowardBase(t *testing.T) {
	require := require.New(t)

	start := time.UnixMilli(0)
	sched, err := NewFeeSchedule(500, 30, time.Hour)
	require.NoError(err)

	pool := NewPool(1, PoolConfig{
		TotalFeeBps: 30,
		BaseFeeBps:  25,
		Schedule:    sched,
		TwapStep:    time.Second,
	}, start, log.NoOp())
	pool.Seed(1_000_000, 1_000_000)
	pool.SetStatus(StatusTrading)

	require.Equal(uint64(500), pool.FeeInUse(start))
	require.Equal(uint64(30), pool.FeeInUse(start.Add(2*time.Hour)))

	// Early swaps pay the elevated fee and the excess goes to the protocol.
	out, err := pool.Swap(100_000, SwapStableForAsset, 0, start)
	require.NoError(err)
	require.Less(out, uint64(90_661)) // worse than the 30 bps price
	_, protoStable := pool.ProtocolFees()
	require.Equal(BpsOf(100_000, 500-25), protoStable)
}

func TestPoolAddRemoveLiquidity(t *testing.T) {
	require := require.New(t)
	pool, _ := newTestPool(t)

	require.Equal(uint64(1_000_000), pool.LPSupply())

	minted, err := pool.AddLiquidity(100_000, 100_000, 0)
	require.NoError(err)
	require.Equal(uint64(100_000), minted)
	require.Equal(uint64(1_100_000), pool.LPSupply())

	_, err = pool.AddLiquidity(100_000, 100_000, 200_000)
	require.ErrorIs(err, ErrInsufficientLiquidityMinted)

	assetOut, stableOut, err := pool.RemoveLiquidity(100_000, 0, 0)
	require.NoError(err)
	require.Equal(uint64(100_000), assetOut)
	require.Equal(uint64(100_000), stableOut)

	_, _, err = pool.RemoveLiquidity(100_000, 200_000, 0)
	require.ErrorIs(err, ErrSlippageExceeded)
}

func TestPoolDrainOnlyFromTradingEnded(t *testing.T) {
	require := require.New(t)
	pool, _ := newTestPool(t)

	_, _, _, _, err := pool.Drain()
	require.ErrorIs(err, ErrNotDrainable)

	pool.SetStatus(StatusTradingEnded)
	asset, stable, _, _, err := pool.Drain()
	require.NoError(err)
	require.Equal(uint64(1_000_000), asset)
	require.Equal(uint64(1_000_000), stable)
	require.Equal(StatusFinalized, pool.Status())

	a, s := pool.Reserves()
	require.Zero(a)
	require.Zero(s)
	require.Zero(pool.LPSupply())
}
