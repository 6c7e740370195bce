// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package balance tracks per-user conditional positions across all outcomes
// of one market in a single dense ledger, avoiding a typed coin per outcome.
// Deposits credit every outcome slot of a coin kind at once (the quantum
// split), so a holder can never withdraw more spot collateral than entered.
package balance

import (
	"errors"

	"github.com/govmarkets/futarchy/pkg/ids"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrEmptyBalance        = errors.New("empty balance")
	ErrMarketMismatch      = errors.New("market mismatch")
	ErrInvalidOutcomeIndex = errors.New("invalid outcome index")
	ErrInvalidOutcomeCount = errors.New("invalid outcome count")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Kind selects which coin a slot tracks.
type Kind uint8

const (
	Asset Kind = iota
	Stable
)

func (k Kind) String() string {
	if k == Asset {
		return "asset"
	}
	return "stable"
}

// MinOutcomes is the smallest outcome fan-out a market can carry; the uint8
// outcome index caps the fan-out at 255 by construction.
const MinOutcomes = 2

// Ledger holds one user's conditional balances for one market. Slots are
// indexed outcome*2 for asset and outcome*2+1 for stable; external readers
// must reproduce this formula exactly.
type Ledger struct {
	marketID     ids.ID
	outcomeCount uint8
	slots        []uint64
}

// NewLedger creates an empty ledger for a market.
func NewLedger(marketID ids.ID, outcomeCount uint8) (*Ledger, error) {
	if outcomeCount < MinOutcomes {
		return nil, ErrInvalidOutcomeCount
	}
	return &Ledger{
		marketID:     marketID,
		outcomeCount: outcomeCount,
		slots:        make([]uint64, int(outcomeCount)*2),
	}, nil
}

// MarketID returns the owning market.
func (l *Ledger) MarketID() ids.ID { return l.marketID }

// OutcomeCount returns the market's outcome fan-out.
func (l *Ledger) OutcomeCount() uint8 { return l.outcomeCount }

func slotIndex(outcome uint8, kind Kind) int {
	return int(outcome)*2 + int(kind)
}

// Balance returns one slot's amount.
func (l *Ledger) Balance(outcome uint8, kind Kind) (uint64, error) {
	if outcome >= l.outcomeCount {
		return 0, ErrInvalidOutcomeIndex
	}
	return l.slots[slotIndex(outcome, kind)], nil
}

// Split credits `amount` of `kind` to every outcome slot in one step. The
// quantum invariant holds by construction: the call cannot be partially
// applied. Overflow on any slot rejects the whole deposit.
func (l *Ledger) Split(kind Kind, amount uint64) error {
	if amount == 0 {
		return nil
	}
	for i := uint8(0); i < l.outcomeCount; i++ {
		if l.slots[slotIndex(i, kind)] > ^uint64(0)-amount {
			return ErrBalanceOverflow
		}
	}
	for i := uint8(0); i < l.outcomeCount; i++ {
		l.slots[slotIndex(i, kind)] += amount
	}
	return nil
}

// Recombine debits `amount` of `kind` from every outcome slot, releasing the
// same amount of spot collateral. Requires at least `amount` in every slot.
func (l *Ledger) Recombine(kind Kind, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	if l.MinBalanceOf(kind) < amount {
		return 0, ErrInsufficientBalance
	}
	for i := uint8(0); i < l.outcomeCount; i++ {
		l.slots[slotIndex(i, kind)] -= amount
	}
	return amount, nil
}

// MinBalance returns the minimum across all slots of both kinds.
func (l *Ledger) MinBalance() uint64 {
	min := l.slots[0]
	for _, v := range l.slots[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// MinBalanceOf returns the largest complete set obtainable for one kind.
func (l *Ledger) MinBalanceOf(kind Kind) uint64 {
	min := l.slots[slotIndex(0, kind)]
	for i := uint8(1); i < l.outcomeCount; i++ {
		if v := l.slots[slotIndex(i, kind)]; v < min {
			min = v
		}
	}
	return min
}

// BurnCompleteSet debits the largest complete set of `kind` and returns the
// withdrawable spot amount. Fails with ErrEmptyBalance when no complete set
// exists.
func (l *Ledger) BurnCompleteSet(kind Kind) (uint64, error) {
	amount := l.MinBalanceOf(kind)
	if amount == 0 {
		return 0, ErrEmptyBalance
	}
	for i := uint8(0); i < l.outcomeCount; i++ {
		l.slots[slotIndex(i, kind)] -= amount
	}
	return amount, nil
}

// CreditOutcome adds to a single slot. Used to settle swap outputs, which
// are inherently outcome-scoped.
func (l *Ledger) CreditOutcome(outcome uint8, kind Kind, amount uint64) error {
	if outcome >= l.outcomeCount {
		return ErrInvalidOutcomeIndex
	}
	idx := slotIndex(outcome, kind)
	if l.slots[idx] > ^uint64(0)-amount {
		return ErrBalanceOverflow
	}
	l.slots[idx] += amount
	return nil
}

// DebitOutcome removes from a single slot. Used to fund swap inputs.
func (l *Ledger) DebitOutcome(outcome uint8, kind Kind, amount uint64) error {
	if outcome >= l.outcomeCount {
		return ErrInvalidOutcomeIndex
	}
	idx := slotIndex(outcome, kind)
	if l.slots[idx] < amount {
		return ErrInsufficientBalance
	}
	l.slots[idx] -= amount
	return nil
}

// Merge folds `source` into l additively. Both ledgers must belong to the
// same market with the same outcome count; the source is zeroed afterwards.
func (l *Ledger) Merge(source *Ledger) error {
	if source.marketID != l.marketID || source.outcomeCount != l.outcomeCount {
		return ErrMarketMismatch
	}
	for i := range l.slots {
		if l.slots[i] > ^uint64(0)-source.slots[i] {
			return ErrBalanceOverflow
		}
	}
	for i := range l.slots {
		l.slots[i] += source.slots[i]
		source.slots[i] = 0
	}
	return nil
}

// IsEmpty reports whether every slot is zero. A ledger may only be destroyed
// once empty.
func (l *Ledger) IsEmpty() bool {
	for _, v := range l.slots {
		if v != 0 {
			return false
		}
	}
	return true
}

// Snapshot copies the raw slot vector for indexers.
func (l *Ledger) Snapshot() []uint64 {
	out := make([]uint64, len(l.slots))
	copy(out, l.slots)
	return out
}
