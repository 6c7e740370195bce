// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proposal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
)

func TestEscrowCustody(t *testing.T) {
	require := require.New(t)

	marketID := ids.GenerateTestID()
	esc := NewEscrow(marketID, log.NoOp())
	require.Equal(marketID, esc.MarketID())
	require.False(esc.ID().IsEmpty())

	esc.DepositAsset(500)
	esc.DepositStable(1_000)
	asset, stable := esc.Balances()
	require.Equal(uint64(500), asset)
	require.Equal(uint64(1_000), stable)

	require.NoError(esc.WithdrawAsset(200))
	require.NoError(esc.WithdrawStable(1_000))
	asset, stable = esc.Balances()
	require.Equal(uint64(300), asset)
	require.Zero(stable)

	// Over-withdrawal fails loudly and leaves custody untouched.
	require.ErrorIs(esc.WithdrawAsset(301), ErrEscrowShort)
	require.ErrorIs(esc.WithdrawStable(1), ErrEscrowShort)
	asset, _ = esc.Balances()
	require.Equal(uint64(300), asset)

	// Every successful movement leaves a receipt.
	require.Len(esc.Receipts(), 4)
}

func TestEscrowIdentityIsDeterministic(t *testing.T) {
	require := require.New(t)

	marketID := ids.GenerateTestID()
	a := NewEscrow(marketID, log.NoOp())
	b := NewEscrow(marketID, log.NoOp())
	require.Equal(a.ID(), b.ID())

	c := NewEscrow(ids.GenerateTestID(), log.NoOp())
	require.NotEqual(a.ID(), c.ID())
}
