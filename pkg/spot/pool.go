// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package spot implements the singleton parent AMM for a trading pair. LP
// capital lives in lifecycle buckets so that entrants and leavers around a
// proposal's lifetime are treated fairly: LIVE capital backs trading and is
// escrowed into conditional markets, TRANSITIONING capital has asked to leave
// but keeps earning until the proposal ends, WITHDRAW_ONLY capital is frozen
// and claimable, and PENDING capital waits out the active proposal so it
// cannot free-ride on in-flight outcomes.
package spot

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
)

var (
	ErrPoolLocked       = errors.New("pool locked for proposal")
	ErrPoolNotLocked    = errors.New("pool not locked for proposal")
	ErrProposalMismatch = errors.New("proposal mismatch")
	ErrUnknownToken     = errors.New("unknown lp token")
	ErrWrongBucket      = errors.New("lp token in wrong bucket")
)

// Bucket names a sub-pool of LP capital with its own lifecycle.
type Bucket uint8

const (
	BucketLive Bucket = iota
	BucketTransitioning
	BucketWithdrawOnly
	BucketPending
)

func (b Bucket) String() string {
	switch b {
	case BucketLive:
		return "live"
	case BucketTransitioning:
		return "transitioning"
	case BucketWithdrawOnly:
		return "withdraw_only"
	case BucketPending:
		return "pending"
	default:
		return "unknown"
	}
}

// LPToken references exactly one bucket at a time and optionally carries the
// proposal it is locked under.
type LPToken struct {
	ID               ids.ID
	Units            uint64
	Bucket           Bucket
	LockedProposalID ids.ID
}

type bucketState struct {
	asset   uint64
	stable  uint64
	lpUnits uint64
}

// Pool is the unified spot AMM.
type Pool struct {
	ID     ids.ID
	feeBps uint64

	live          bucketState
	transitioning bucketState
	withdrawOnly  bucketState
	pending       bucketState

	tokens map[ids.ID]*LPToken

	lockedProposal  ids.ID
	activeEscrowID  ids.ID
	lastProposalEnd time.Time

	log log.Logger
}

// New creates an empty spot pool.
func New(id ids.ID, feeBps uint64, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.NoLog
	}
	return &Pool{
		ID:     id,
		feeBps: feeBps,
		tokens: make(map[ids.ID]*LPToken),
		log:    logger,
	}
}

// IsLocked reports whether a proposal currently holds the LIVE bucket.
func (p *Pool) IsLocked() bool { return !p.lockedProposal.IsEmpty() }

// ActiveEscrowID returns the ID-only back-reference to the escrow holding
// this pool's capital, or the zero ID.
func (p *Pool) ActiveEscrowID() ids.ID { return p.activeEscrowID }

// LastProposalEnd returns the stamp that starts the inter-proposal gap timer.
func (p *Pool) LastProposalEnd() time.Time { return p.lastProposalEnd }

// LiveReserves returns the LIVE bucket reserves.
func (p *Pool) LiveReserves() (asset, stable uint64) {
	return p.live.asset, p.live.stable
}

// TradingReserves returns the reserves backing swaps: LIVE plus
// TRANSITIONING, which still earns fees until the proposal ends.
func (p *Pool) TradingReserves() (asset, stable uint64) {
	return p.live.asset + p.transitioning.asset, p.live.stable + p.transitioning.stable
}

// TotalCustody sums every bucket; it must equal all funds ever entrusted to
// the pool minus withdrawals and escrow seeds.
func (p *Pool) TotalCustody() (asset, stable uint64) {
	asset = p.live.asset + p.transitioning.asset + p.withdrawOnly.asset + p.pending.asset
	stable = p.live.stable + p.transitioning.stable + p.withdrawOnly.stable + p.pending.stable
	return asset, stable
}

// Price returns the instantaneous stable/asset price over trading reserves.
func (p *Pool) Price() decimal.Decimal {
	a, s := p.TradingReserves()
	return amm.Price(a, s)
}

// FeeBps returns the pool's permanent swap fee.
func (p *Pool) FeeBps() uint64 { return p.feeBps }

// Quote prices a hypothetical swap against trading reserves.
func (p *Pool) Quote(amountIn uint64, dir amm.SwapDirection) uint64 {
	rIn, rOut := p.orient(dir)
	return amm.SwapOutput(amountIn, rIn, rOut, p.feeBps)
}

// Swap trades against LIVE+TRANSITIONING reserves. Reserve deltas are
// apportioned pro-rata so transitioning LPs keep earning their share of
// fees; integer dust lands on the LIVE bucket.
func (p *Pool) Swap(amountIn uint64, dir amm.SwapDirection, minOut uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, amm.ErrZeroAmount
	}
	rIn, rOut := p.orient(dir)
	out := amm.SwapOutput(amountIn, rIn, rOut, p.feeBps)
	if out < minOut {
		return 0, amm.ErrSlippageExceeded
	}
	if out >= rOut {
		return 0, amm.ErrInsufficientLiquidity
	}

	transIn, transOut := p.transitionShare(amountIn, out, dir)

	switch dir {
	case amm.SwapStableForAsset:
		p.live.stable += amountIn - transIn
		p.transitioning.stable += transIn
		p.live.asset -= out - transOut
		p.transitioning.asset -= transOut
	case amm.SwapAssetForStable:
		p.live.asset += amountIn - transIn
		p.transitioning.asset += transIn
		p.live.stable -= out - transOut
		p.transitioning.stable -= transOut
	}
	return out, nil
}

// transitionShare splits a swap's deltas pro-rata by the transitioning
// bucket's share of the input-side reserve.
func (p *Pool) transitionShare(amountIn, amountOut uint64, dir amm.SwapDirection) (in, out uint64) {
	var transRes, totalRes uint64
	switch dir {
	case amm.SwapStableForAsset:
		transRes = p.transitioning.stable
		totalRes = p.live.stable + p.transitioning.stable
	case amm.SwapAssetForStable:
		transRes = p.transitioning.asset
		totalRes = p.live.asset + p.transitioning.asset
	}
	if transRes == 0 || totalRes == 0 {
		return 0, 0
	}
	in = amm.MulDivFloor(amountIn, transRes, totalRes)
	out = amm.MulDivFloor(amountOut, transRes, totalRes)
	return in, out
}

func (p *Pool) orient(dir amm.SwapDirection) (rIn, rOut uint64) {
	a, s := p.TradingReserves()
	if dir == amm.SwapStableForAsset {
		return s, a
	}
	return a, s
}

// Donate credits reserves to the LIVE bucket without minting LP units.
// Arbitrage profit enters here so it accrues to LPs.
func (p *Pool) Donate(asset, stable uint64) {
	p.live.asset += asset
	p.live.stable += stable
}
