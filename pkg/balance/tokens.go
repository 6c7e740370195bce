// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package balance

import (
	"errors"

	"github.com/govmarkets/futarchy/pkg/ids"
)

var ErrZeroToken = errors.New("zero token amount")

// OutcomeToken is an individually-typed conditional position released from a
// ledger for external composability. The bridge is a thin adapter: token
// supply and ledger totals stay in lockstep because Unwrap debits the slot
// the token is minted from and Wrap credits it back on burn.
type OutcomeToken struct {
	MarketID ids.ID
	Outcome  uint8
	Kind     Kind
	Amount   uint64
}

// Unwrap releases `amount` from one slot as a typed token.
func (l *Ledger) Unwrap(outcome uint8, kind Kind, amount uint64) (OutcomeToken, error) {
	if amount == 0 {
		return OutcomeToken{}, ErrZeroToken
	}
	if err := l.DebitOutcome(outcome, kind, amount); err != nil {
		return OutcomeToken{}, err
	}
	return OutcomeToken{
		MarketID: l.marketID,
		Outcome:  outcome,
		Kind:     kind,
		Amount:   amount,
	}, nil
}

// Wrap burns a typed token back into the ledger.
func (l *Ledger) Wrap(token OutcomeToken) error {
	if token.Amount == 0 {
		return ErrZeroToken
	}
	if token.MarketID != l.marketID {
		return ErrMarketMismatch
	}
	return l.CreditOutcome(token.Outcome, token.Kind, token.Amount)
}
