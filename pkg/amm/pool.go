// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/govmarkets/futarchy/pkg/log"
)

var (
	ErrSlippageExceeded            = errors.New("slippage exceeded")
	ErrMarketNotTrading            = errors.New("market not trading")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidity       = errors.New("insufficient pool liquidity")
	ErrNotDrainable                = errors.New("pool not drainable")
	ErrZeroAmount                  = errors.New("zero amount")
)

// Status mirrors the parent market's lifecycle at pool granularity.
type Status uint8

const (
	StatusPreTrading Status = iota
	StatusTrading
	StatusTradingEnded
	StatusFinalized
)

func (s Status) String() string {
	switch s {
	case StatusPreTrading:
		return "pre_trading"
	case StatusTrading:
		return "trading"
	case StatusTradingEnded:
		return "trading_ended"
	case StatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// SwapDirection selects which reserve the input amount enters.
type SwapDirection uint8

const (
	// SwapStableForAsset spends stable and receives asset (a buy).
	SwapStableForAsset SwapDirection = iota
	// SwapAssetForStable spends asset and receives stable (a sell).
	SwapAssetForStable
)

func (d SwapDirection) String() string {
	if d == SwapStableForAsset {
		return "stable_for_asset"
	}
	return "asset_for_stable"
}

// Pool is a single outcome-scoped constant-product market. One exists per
// (market, outcome). Callers are expected to hold the engine's transaction
// lock; the pool itself is single-writer.
type Pool struct {
	Outcome uint8

	assetReserve  uint64
	stableReserve uint64
	lpSupply      uint64

	totalFeeBps uint64
	baseFeeBps  uint64
	schedule    *FeeSchedule

	protocolFeesAsset  uint64
	protocolFeesStable uint64

	createdAt time.Time
	twap      *Oracle
	status    Status

	log log.Logger
}

// PoolConfig carries the per-pool parameters fixed at creation.
type PoolConfig struct {
	TotalFeeBps uint64
	BaseFeeBps  uint64
	Schedule    *FeeSchedule
	TwapDelay   time.Duration
	TwapStep    time.Duration
	TwapStepMax uint64
}

// NewPool creates an empty pre-trading pool for one outcome.
func NewPool(outcome uint8, cfg PoolConfig, createdAt time.Time, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.NoLog
	}
	return &Pool{
		Outcome:     outcome,
		totalFeeBps: cfg.TotalFeeBps,
		baseFeeBps:  cfg.BaseFeeBps,
		schedule:    cfg.Schedule,
		createdAt:   createdAt,
		twap:        NewOracle(createdAt, cfg.TwapDelay, cfg.TwapStep, cfg.TwapStepMax),
		status:      StatusPreTrading,
		log:         logger,
	}
}

// Seed installs the quantum-split copy of the spot reserves. Only valid on a
// freshly created pool; the minted LP stake belongs to the escrow.
func (p *Pool) Seed(asset, stable uint64) uint64 {
	p.assetReserve = asset
	p.stableReserve = stable
	p.lpSupply = Sqrt(asset, stable)
	p.twap.Observe(p.createdAt, Price(asset, stable))
	return p.lpSupply
}

// SetStatus is driven by the parent market's state machine.
func (p *Pool) SetStatus(s Status) { p.status = s }

// Status returns the pool lifecycle state.
func (p *Pool) Status() Status { return p.status }

// Reserves returns the current (asset, stable) reserves.
func (p *Pool) Reserves() (uint64, uint64) { return p.assetReserve, p.stableReserve }

// LPSupply returns outstanding LP units.
func (p *Pool) LPSupply() uint64 { return p.lpSupply }

// ProtocolFees returns the accumulated protocol cut per coin.
func (p *Pool) ProtocolFees() (asset, stable uint64) {
	return p.protocolFeesAsset, p.protocolFeesStable
}

// SpotPrice returns the instantaneous stable/asset price.
func (p *Pool) SpotPrice() decimal.Decimal {
	return Price(p.assetReserve, p.stableReserve)
}

// FeeInUse resolves the decaying fee schedule, falling back to the permanent
// fee once decay completes or when no schedule exists.
func (p *Pool) FeeInUse(now time.Time) uint64 {
	if p.schedule == nil {
		return clampFee(p.totalFeeBps)
	}
	return p.schedule.CurrentFee(now.Sub(p.createdAt))
}

// Quote returns the output for a hypothetical swap without mutating state.
func (p *Pool) Quote(amountIn uint64, dir SwapDirection, now time.Time) uint64 {
	rIn, rOut := p.orient(dir)
	return SwapOutput(amountIn, rIn, rOut, p.FeeInUse(now))
}

// Swap executes a fee-on-input constant-product swap. The protocol retains
// feeInUse-baseFee of the input; the base fee stays in reserves so LP value
// grows with volume. A TWAP observation is appended when the sampling step
// has elapsed.
func (p *Pool) Swap(amountIn uint64, dir SwapDirection, minOut uint64, now time.Time) (uint64, error) {
	if p.status != StatusTrading {
		return 0, ErrMarketNotTrading
	}
	if amountIn == 0 {
		return 0, ErrZeroAmount
	}

	fee := p.FeeInUse(now)
	rIn, rOut := p.orient(dir)
	out := SwapOutput(amountIn, rIn, rOut, fee)
	if out < minOut {
		return 0, ErrSlippageExceeded
	}
	if out >= rOut {
		return 0, ErrInsufficientLiquidity
	}

	var protocolCut uint64
	if fee > p.baseFeeBps {
		protocolCut = BpsOf(amountIn, fee-p.baseFeeBps)
	}

	switch dir {
	case SwapStableForAsset:
		p.stableReserve += amountIn - protocolCut
		p.assetReserve -= out
		p.protocolFeesStable += protocolCut
	case SwapAssetForStable:
		p.assetReserve += amountIn - protocolCut
		p.stableReserve -= out
		p.protocolFeesAsset += protocolCut
	}

	p.twap.Observe(now, p.SpotPrice())

	p.log.Debug("conditional swap",
		log.Int("outcome", int(p.Outcome)),
		log.Uint64("in", amountIn),
		log.Uint64("out", out),
		log.Uint64("fee_bps", fee))

	return out, nil
}

// AddLiquidity mints LP units proportional to the deposit. The first deposit
// sets the price and mints sqrt(asset*stable).
func (p *Pool) AddLiquidity(assetIn, stableIn, minLPOut uint64) (uint64, error) {
	if p.status != StatusTrading {
		return 0, ErrMarketNotTrading
	}
	if assetIn == 0 || stableIn == 0 {
		return 0, ErrZeroAmount
	}

	var minted uint64
	if p.lpSupply == 0 {
		minted = Sqrt(assetIn, stableIn)
	} else {
		byAsset := MulDivFloor(assetIn, p.lpSupply, p.assetReserve)
		byStable := MulDivFloor(stableIn, p.lpSupply, p.stableReserve)
		minted = byAsset
		if byStable < minted {
			minted = byStable
		}
	}
	if minted == 0 || minted < minLPOut {
		return 0, ErrInsufficientLiquidityMinted
	}

	p.assetReserve += assetIn
	p.stableReserve += stableIn
	p.lpSupply += minted
	return minted, nil
}

// RemoveLiquidity burns LP units for a pro-rata share of the reserves.
func (p *Pool) RemoveLiquidity(lpIn, minAssetOut, minStableOut uint64) (uint64, uint64, error) {
	if p.status != StatusTrading {
		return 0, 0, ErrMarketNotTrading
	}
	if lpIn == 0 || lpIn > p.lpSupply {
		return 0, 0, ErrInsufficientLiquidity
	}

	assetOut := MulDivFloor(p.assetReserve, lpIn, p.lpSupply)
	stableOut := MulDivFloor(p.stableReserve, lpIn, p.lpSupply)
	if assetOut < minAssetOut || stableOut < minStableOut {
		return 0, 0, ErrSlippageExceeded
	}

	p.assetReserve -= assetOut
	p.stableReserve -= stableOut
	p.lpSupply -= lpIn
	return assetOut, stableOut, nil
}

// Twap reads the oracle at `now`.
func (p *Pool) Twap(now time.Time) (decimal.Decimal, error) {
	return p.twap.Twap(now)
}

// Oracle exposes the TWAP state for recording.
func (p *Pool) Oracle() *Oracle { return p.twap }

// Drain empties the pool back to the parent escrow. The only valid exit from
// TradingEnded; the pool is finalized afterwards and permanently inert.
func (p *Pool) Drain() (asset, stable, protocolAsset, protocolStable uint64, err error) {
	if p.status != StatusTradingEnded {
		return 0, 0, 0, 0, ErrNotDrainable
	}
	asset, stable = p.assetReserve, p.stableReserve
	protocolAsset, protocolStable = p.protocolFeesAsset, p.protocolFeesStable
	p.assetReserve, p.stableReserve = 0, 0
	p.protocolFeesAsset, p.protocolFeesStable = 0, 0
	p.lpSupply = 0
	p.status = StatusFinalized
	return asset, stable, protocolAsset, protocolStable, nil
}

func (p *Pool) orient(dir SwapDirection) (rIn, rOut uint64) {
	if dir == SwapStableForAsset {
		return p.stableReserve, p.assetReserve
	}
	return p.assetReserve, p.stableReserve
}
