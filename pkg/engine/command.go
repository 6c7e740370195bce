// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"errors"
	"time"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/balance"
	"github.com/govmarkets/futarchy/pkg/ids"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is the closed set of user-facing mutations. Lifecycle transitions
// are deliberately not commands: they belong to the governance controller,
// not to traders.
type Command interface {
	isCommand()
}

// SplitCommand deposits real collateral and credits every outcome slot.
type SplitCommand struct {
	User   ids.ID
	Kind   balance.Kind
	Amount uint64
}

// RecombineCommand burns a complete set back into real collateral.
type RecombineCommand struct {
	User   ids.ID
	Kind   balance.Kind
	Amount uint64
}

// SwapCommand trades on one outcome's conditional pool.
type SwapCommand struct {
	User      ids.ID
	Outcome   uint8
	Direction amm.SwapDirection
	AmountIn  uint64
	MinOut    uint64
}

// SpotSwapCommand trades on the parent pool.
type SpotSwapCommand struct {
	Direction amm.SwapDirection
	AmountIn  uint64
	MinOut    uint64
}

func (SplitCommand) isCommand()     {}
func (RecombineCommand) isCommand() {}
func (SwapCommand) isCommand()      {}
func (SpotSwapCommand) isCommand()  {}

// Apply dispatches a command. The returned amount is the command's output
// quantity: collateral released for recombines, amount out for swaps, zero
// for splits.
func (e *Engine) Apply(now time.Time, cmd Command) (uint64, error) {
	switch c := cmd.(type) {
	case SplitCommand:
		return 0, e.Split(c.User, c.Kind, c.Amount, now)
	case RecombineCommand:
		return e.Recombine(c.User, c.Kind, c.Amount, now)
	case SwapCommand:
		return e.Swap(c.User, c.Outcome, c.Direction, c.AmountIn, c.MinOut, now)
	case SpotSwapCommand:
		return e.SwapSpot(c.AmountIn, c.Direction, c.MinOut, now)
	default:
		return 0, ErrUnknownCommand
	}
}
