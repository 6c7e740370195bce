// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionSingleUse(t *testing.T) {
	require := require.New(t)
	g := NewGuard()

	s := g.Begin(time.UnixMilli(0))
	require.Equal(1, g.OpenCount())
	require.ErrorIs(g.AssertClosed(), ErrSessionOpen)

	require.NoError(g.Finalize(s))
	require.NoError(g.AssertClosed())

	// Double-finalize fails loudly.
	require.ErrorIs(g.Finalize(s), ErrAlreadyFinalized)
}

func TestGuardTracksMultipleSessions(t *testing.T) {
	require := require.New(t)
	g := NewGuard()

	a := g.Begin(time.UnixMilli(1))
	b := g.Begin(time.UnixMilli(2))
	require.Equal(2, g.OpenCount())
	require.NotEqual(a.ID(), b.ID())

	require.NoError(g.Finalize(b))
	require.ErrorIs(g.AssertClosed(), ErrSessionOpen)
	require.NoError(g.Finalize(a))
	require.NoError(g.AssertClosed())
}
