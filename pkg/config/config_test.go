// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadAppliesDefaultsForAbsentKeys(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(os.WriteFile(path, []byte(
		"trading_period_ms: 43200000\nwinner_threshold_bps: 250\n",
	), 0o600))

	p, err := Load(path)
	require.NoError(err)
	require.Equal(int64(43_200_000), p.TradingPeriodMs)
	require.Equal(int64(250), p.WinnerThresholdBps)

	// Untouched keys keep their defaults.
	require.Equal(Default().ReviewPeriodMs, p.ReviewPeriodMs)
	require.Equal(Default().AmmTotalFeeBps, p.AmmTotalFeeBps)
	require.Equal(12*time.Hour, p.TradingPeriod())
}

func TestLoadRejectsInvalidParams(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(os.WriteFile(path, []byte("amm_total_fee_bps: 9901\n"), 0o600))

	_, err := Load(path)
	require.Error(err)
}

func TestValidateBounds(t *testing.T) {
	require := require.New(t)

	p := Default()
	p.AmmBaseFeeBps = p.AmmTotalFeeBps + 1
	require.Error(p.Validate())

	p = Default()
	p.FeeSchedule.DurationMs = MaxFeeDecayMs + 1
	require.Error(p.Validate())

	p = Default()
	p.ConditionalLiquidityRatioPercent = 0
	require.Error(p.Validate())

	p = Default()
	p.Twap.StartDelayMs = p.ReviewPeriodMs + p.TradingPeriodMs + 1
	require.Error(p.Validate())
}
