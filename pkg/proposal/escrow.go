// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proposal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
)

var ErrEscrowShort = errors.New("escrow balance insufficient")

// Receipt records a custody movement through the escrow. Kept for the
// finalization archive; the escrow's invariants do not depend on it.
type Receipt struct {
	ID     uuid.UUID
	Asset  uint64
	Stable uint64
	Credit bool
}

// Escrow is the market's custody account. It holds the spot collateral
// backing the conditional pools from quantum seeding until finalization, and
// it is the mint/burn counterparty for quantum split and complete-set
// recombination.
type Escrow struct {
	mu sync.Mutex

	id       ids.ID
	marketID ids.ID

	asset  uint64
	stable uint64

	receipts []Receipt
	log      log.Logger
}

// NewEscrow derives the escrow's identity from its market so the pairing is
// reproducible.
func NewEscrow(marketID ids.ID, logger log.Logger) *Escrow {
	if logger == nil {
		logger = log.NoLog
	}
	return &Escrow{
		id:       ids.FromData(append([]byte("escrow:"), marketID.Bytes()...)),
		marketID: marketID,
		log:      logger,
	}
}

// ID returns the escrow identity.
func (e *Escrow) ID() ids.ID { return e.id }

// MarketID returns the owning market.
func (e *Escrow) MarketID() ids.ID { return e.marketID }

// Balances returns current custody.
func (e *Escrow) Balances() (asset, stable uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asset, e.stable
}

// DepositAsset credits asset custody.
func (e *Escrow) DepositAsset(amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asset += amount
	e.record(amount, 0, true)
}

// DepositStable credits stable custody.
func (e *Escrow) DepositStable(amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stable += amount
	e.record(0, amount, true)
}

// WithdrawAsset debits asset custody or fails with ErrEscrowShort.
func (e *Escrow) WithdrawAsset(amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount > e.asset {
		return fmt.Errorf("%w: want %d asset, have %d", ErrEscrowShort, amount, e.asset)
	}
	e.asset -= amount
	e.record(amount, 0, false)
	return nil
}

// WithdrawStable debits stable custody or fails with ErrEscrowShort.
func (e *Escrow) WithdrawStable(amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount > e.stable {
		return fmt.Errorf("%w: want %d stable, have %d", ErrEscrowShort, amount, e.stable)
	}
	e.stable -= amount
	e.record(0, amount, false)
	return nil
}

// Receipts returns a copy of the movement log.
func (e *Escrow) Receipts() []Receipt {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Receipt, len(e.receipts))
	copy(out, e.receipts)
	return out
}

func (e *Escrow) record(asset, stable uint64, credit bool) {
	e.receipts = append(e.receipts, Receipt{
		ID:     uuid.New(),
		Asset:  asset,
		Stable: stable,
		Credit: credit,
	})
}
