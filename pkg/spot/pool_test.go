// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
)

func newTestPool(t *testing.T) (*Pool, *LPToken) {
	t.Helper()
	p := New(ids.GenerateTestID(), 30, log.NoOp())
	token, err := p.AddLiquidity(1_000_000, 1_000_000, 0)
	require.NoError(t, err)
	return p, token
}

func TestSpotAddRemoveLiquidity(t *testing.T) {
	require := require.New(t)
	p, token := newTestPool(t)

	require.Equal(BucketLive, token.Bucket)
	require.Equal(uint64(1_000_000), token.Units)

	asset, stable, err := p.RemoveLiquidity(token.ID, 0, 0)
	require.NoError(err)
	require.Equal(uint64(1_000_000), asset)
	require.Equal(uint64(1_000_000), stable)

	_, _, err = p.RemoveLiquidity(token.ID, 0, 0)
	require.ErrorIs(err, ErrUnknownToken)
}

func TestSpotSwap(t *testing.T) {
	require := require.New(t)
	p, _ := newTestPool(t)

	out, err := p.Swap(100_000, amm.SwapStableForAsset, 0)
	require.NoError(err)
	require.Equal(uint64(90_661), out)

	a, s := p.TradingReserves()
	require.Equal(uint64(1_000_000-90_661), a)
	require.Equal(uint64(1_100_000), s)
}

func TestSpotLockSeedsRatioOfLive(t *testing.T) {
	require := require.New(t)
	p, _ := newTestPool(t)

	proposalID := ids.GenerateTestID()
	escrowID := ids.GenerateTestID()

	seedA, seedS, err := p.LockForProposal(proposalID, escrowID, 80)
	require.NoError(err)
	require.Equal(uint64(800_000), seedA)
	require.Equal(uint64(800_000), seedS)
	require.True(p.IsLocked())
	require.Equal(escrowID, p.ActiveEscrowID())

	liveA, liveS := p.LiveReserves()
	require.Equal(uint64(200_000), liveA)
	require.Equal(uint64(200_000), liveS)

	// Double-lock refused.
	_, _, err = p.LockForProposal(ids.GenerateTestID(), ids.GenerateTestID(), 50)
	require.ErrorIs(err, ErrPoolLocked)
}

func TestSpotPendingBucketDuringProposal(t *testing.T) {
	require := require.New(t)
	p, _ := newTestPool(t)

	proposalID := ids.GenerateTestID()
	_, _, err := p.LockForProposal(proposalID, ids.GenerateTestID(), 100)
	require.NoError(err)

	// New LP during the proposal is queued, not live.
	pending, err := p.AddLiquidity(50_000, 50_000, 0)
	require.NoError(err)
	require.Equal(BucketPending, pending.Bucket)
	require.Equal(proposalID, pending.LockedProposalID)

	// Queued capital does not back trading.
	a, s := p.TradingReserves()
	require.Zero(a)
	require.Zero(s)

	require.NoError(p.ReleaseFromProposal(proposalID, 1_000_000, 1_000_000, time.UnixMilli(99)))
	require.Equal(BucketLive, pending.Bucket)

	a, s = p.TradingReserves()
	require.Equal(uint64(1_050_000), a)
	require.Equal(uint64(1_050_000), s)
	require.Equal(time.UnixMilli(99), p.LastProposalEnd())
}

func TestSpotExitLifecycle(t *testing.T) {
	require := require.New(t)
	p := New(ids.GenerateTestID(), 30, log.NoOp())

	stay, err := p.AddLiquidity(500_000, 500_000, 0)
	require.NoError(err)
	leave, err := p.AddLiquidity(500_000, 500_000, 0)
	require.NoError(err)

	// Exit requests only exist under a lock.
	require.ErrorIs(p.RequestExit(leave.ID), ErrPoolNotLocked)

	proposalID := ids.GenerateTestID()
	_, _, err = p.LockForProposal(proposalID, ids.GenerateTestID(), 50)
	require.NoError(err)

	require.NoError(p.RequestExit(leave.ID))
	require.Equal(BucketTransitioning, leave.Bucket)

	// Locked LIVE tokens cannot withdraw immediately.
	_, _, err = p.RemoveLiquidity(stay.ID, 0, 0)
	require.ErrorIs(err, ErrPoolLocked)

	// Claim is not available until finalize converts the bucket.
	_, _, err = p.ClaimExited(leave.ID)
	require.ErrorIs(err, ErrWrongBucket)

	require.NoError(p.ReleaseFromProposal(proposalID, 600_000, 600_000, time.UnixMilli(42)))
	require.Equal(BucketWithdrawOnly, leave.Bucket)

	assetOut, stableOut, err := p.ClaimExited(leave.ID)
	require.NoError(err)
	// Half the un-escrowed remainder plus half the returned escrow.
	require.Equal(uint64(250_000+300_000), assetOut)
	require.Equal(uint64(250_000+300_000), stableOut)
}

func TestSpotCustodyInvariant(t *testing.T) {
	require := require.New(t)
	p, _ := newTestPool(t)

	checkCustody := func(wantAsset, wantStable uint64) {
		t.Helper()
		a, s := p.TotalCustody()
		require.Equal(wantAsset, a)
		require.Equal(wantStable, s)
	}
	checkCustody(1_000_000, 1_000_000)

	proposalID := ids.GenerateTestID()
	seedA, seedS, err := p.LockForProposal(proposalID, ids.GenerateTestID(), 60)
	require.NoError(err)
	checkCustody(1_000_000-seedA, 1_000_000-seedS)

	_, err = p.AddLiquidity(10_000, 10_000, 0)
	require.NoError(err)
	checkCustody(1_000_000-seedA+10_000, 1_000_000-seedS+10_000)

	require.NoError(p.ReleaseFromProposal(proposalID, seedA, seedS, time.UnixMilli(1)))
	checkCustody(1_010_000, 1_010_000)
}

func TestSpotDonateAccruesToLive(t *testing.T) {
	require := require.New(t)
	p, _ := newTestPool(t)

	p.Donate(0, 5_000)
	_, s := p.LiveReserves()
	require.Equal(uint64(1_005_000), s)
}
