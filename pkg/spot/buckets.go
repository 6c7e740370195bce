// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spot

import (
	"time"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
)

// AddLiquidity deposits into LIVE, or into PENDING while a proposal holds the
// pool so new LPs cannot free-ride on in-flight outcomes. Returns the minted
// LP token.
func (p *Pool) AddLiquidity(assetIn, stableIn, minLPOut uint64) (*LPToken, error) {
	if assetIn == 0 || stableIn == 0 {
		return nil, amm.ErrZeroAmount
	}

	target := &p.live
	bucket := BucketLive
	var lockRef ids.ID
	if p.IsLocked() {
		target = &p.pending
		bucket = BucketPending
		lockRef = p.lockedProposal
	}

	var minted uint64
	if target.lpUnits == 0 {
		minted = amm.Sqrt(assetIn, stableIn)
	} else {
		byAsset := amm.MulDivFloor(assetIn, target.lpUnits, target.asset)
		byStable := amm.MulDivFloor(stableIn, target.lpUnits, target.stable)
		minted = byAsset
		if byStable < minted {
			minted = byStable
		}
	}
	if minted == 0 || minted < minLPOut {
		return nil, amm.ErrInsufficientLiquidityMinted
	}

	target.asset += assetIn
	target.stable += stableIn
	target.lpUnits += minted

	token := &LPToken{
		ID:               ids.Generate(),
		Units:            minted,
		Bucket:           bucket,
		LockedProposalID: lockRef,
	}
	p.tokens[token.ID] = token

	p.log.Debug("spot liquidity added",
		log.String("bucket", bucket.String()),
		log.Uint64("units", minted))
	return token, nil
}

// RemoveLiquidity burns a LIVE token for its pro-rata reserves. Only valid
// while no proposal holds the pool; locked LPs must RequestExit instead.
func (p *Pool) RemoveLiquidity(tokenID ids.ID, minAssetOut, minStableOut uint64) (uint64, uint64, error) {
	if p.IsLocked() {
		return 0, 0, ErrPoolLocked
	}
	token, err := p.lookup(tokenID, BucketLive)
	if err != nil {
		return 0, 0, err
	}

	assetOut := amm.MulDivFloor(p.live.asset, token.Units, p.live.lpUnits)
	stableOut := amm.MulDivFloor(p.live.stable, token.Units, p.live.lpUnits)
	if assetOut < minAssetOut || stableOut < minStableOut {
		return 0, 0, amm.ErrSlippageExceeded
	}

	p.live.asset -= assetOut
	p.live.stable -= stableOut
	p.live.lpUnits -= token.Units
	delete(p.tokens, tokenID)
	return assetOut, stableOut, nil
}

// RequestExit marks a LIVE token for withdrawal during an active proposal.
// Its pro-rata share of the un-escrowed reserves moves to TRANSITIONING,
// where it keeps earning fees until the proposal finalizes.
func (p *Pool) RequestExit(tokenID ids.ID) error {
	if !p.IsLocked() {
		return ErrPoolNotLocked
	}
	token, err := p.lookup(tokenID, BucketLive)
	if err != nil {
		return err
	}

	assetShare := amm.MulDivFloor(p.live.asset, token.Units, p.live.lpUnits)
	stableShare := amm.MulDivFloor(p.live.stable, token.Units, p.live.lpUnits)

	p.live.asset -= assetShare
	p.live.stable -= stableShare
	p.live.lpUnits -= token.Units

	p.transitioning.asset += assetShare
	p.transitioning.stable += stableShare
	p.transitioning.lpUnits += token.Units

	token.Bucket = BucketTransitioning
	token.LockedProposalID = p.lockedProposal
	return nil
}

// ClaimExited pays out a WITHDRAW_ONLY token. Available once the proposal
// that the exit was requested under has finalized.
func (p *Pool) ClaimExited(tokenID ids.ID) (uint64, uint64, error) {
	token, err := p.lookup(tokenID, BucketWithdrawOnly)
	if err != nil {
		return 0, 0, err
	}

	assetOut := amm.MulDivFloor(p.withdrawOnly.asset, token.Units, p.withdrawOnly.lpUnits)
	stableOut := amm.MulDivFloor(p.withdrawOnly.stable, token.Units, p.withdrawOnly.lpUnits)

	p.withdrawOnly.asset -= assetOut
	p.withdrawOnly.stable -= stableOut
	p.withdrawOnly.lpUnits -= token.Units
	delete(p.tokens, tokenID)
	return assetOut, stableOut, nil
}

// LockForProposal escrows ratioPercent of the LIVE bucket for a proposal and
// locks the bucket. Returns the seed reserves handed to the escrow.
func (p *Pool) LockForProposal(proposalID, escrowID ids.ID, ratioPercent uint64) (uint64, uint64, error) {
	if p.IsLocked() {
		return 0, 0, ErrPoolLocked
	}
	if ratioPercent < 1 || ratioPercent > 100 {
		return 0, 0, amm.ErrZeroAmount
	}

	seedAsset := amm.MulDivFloor(p.live.asset, ratioPercent, 100)
	seedStable := amm.MulDivFloor(p.live.stable, ratioPercent, 100)
	if seedAsset == 0 || seedStable == 0 {
		return 0, 0, amm.ErrInsufficientLiquidity
	}

	p.live.asset -= seedAsset
	p.live.stable -= seedStable
	p.lockedProposal = proposalID
	p.activeEscrowID = escrowID

	p.log.Info("spot pool locked for proposal",
		log.String("proposal", proposalID.Short()),
		log.Uint64("seed_asset", seedAsset),
		log.Uint64("seed_stable", seedStable))
	return seedAsset, seedStable, nil
}

// ReleaseFromProposal returns the winning outcome's recombined reserves to
// the LIVE bucket and runs the end-of-proposal bucket transitions:
// TRANSITIONING converts to WITHDRAW_ONLY (taking its share of the returned
// escrow with it) and PENDING joins LIVE. Stamps the inter-proposal gap
// timer.
func (p *Pool) ReleaseFromProposal(proposalID ids.ID, assetBack, stableBack uint64, now time.Time) error {
	if !p.IsLocked() {
		return ErrPoolNotLocked
	}
	if p.lockedProposal != proposalID {
		return ErrProposalMismatch
	}

	// Exiting LPs held their stake through the proposal, so they get their
	// unit share of the returned escrow before freezing.
	totalUnits := p.live.lpUnits + p.transitioning.lpUnits
	var transAsset, transStable uint64
	if totalUnits > 0 && p.transitioning.lpUnits > 0 {
		transAsset = amm.MulDivFloor(assetBack, p.transitioning.lpUnits, totalUnits)
		transStable = amm.MulDivFloor(stableBack, p.transitioning.lpUnits, totalUnits)
	}

	p.live.asset += assetBack - transAsset
	p.live.stable += stableBack - transStable

	p.withdrawOnly.asset += p.transitioning.asset + transAsset
	p.withdrawOnly.stable += p.transitioning.stable + transStable
	p.withdrawOnly.lpUnits += p.transitioning.lpUnits
	p.transitioning = bucketState{}

	p.live.asset += p.pending.asset
	p.live.stable += p.pending.stable
	p.live.lpUnits += p.pending.lpUnits
	p.pending = bucketState{}

	for _, token := range p.tokens {
		switch token.Bucket {
		case BucketTransitioning:
			if token.LockedProposalID == proposalID {
				token.Bucket = BucketWithdrawOnly
			}
		case BucketPending:
			token.Bucket = BucketLive
			token.LockedProposalID = ids.Empty
		}
	}

	p.lockedProposal = ids.Empty
	p.activeEscrowID = ids.Empty
	p.lastProposalEnd = now

	p.log.Info("spot pool released from proposal",
		log.String("proposal", proposalID.Short()),
		log.Uint64("asset_back", assetBack),
		log.Uint64("stable_back", stableBack))
	return nil
}

func (p *Pool) lookup(tokenID ids.ID, want Bucket) (*LPToken, error) {
	token, ok := p.tokens[tokenID]
	if !ok {
		return nil, ErrUnknownToken
	}
	if token.Bucket != want {
		return nil, ErrWrongBucket
	}
	return token, nil
}
