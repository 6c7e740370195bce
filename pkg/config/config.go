// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxFeeBps is the highest fee the DAO may configure, in basis points.
	MaxFeeBps = 9900

	// MaxFeeDecayMs caps a fee schedule's decay window at 24 hours.
	MaxFeeDecayMs = 86_400_000

	// DefaultExecutionWindowMs is the grace period for executing a winning
	// accept outcome's staged actions before it is forced to reject.
	DefaultExecutionWindowMs = 1_800_000

	// DefaultInterProposalGapMs is the minimum quiet period between the end
	// of one proposal and the next one entering trading.
	DefaultInterProposalGapMs = 21_600_000
)

var (
	ErrInvalidFee       = errors.New("fee exceeds maximum")
	ErrInvalidRatio     = errors.New("conditional liquidity ratio out of range")
	ErrInvalidOutcomes  = errors.New("outcome count out of range")
	ErrInvalidFeeDecay  = errors.New("fee decay duration exceeds maximum")
	ErrInvalidPeriod    = errors.New("period must be positive")
	ErrInvalidTwapDelay = errors.New("twap start delay exceeds review period")
)

// TwapParams configures the per-pool TWAP oracle.
type TwapParams struct {
	// StartDelayMs is how long after pool creation the oracle begins
	// integrating. Reads before this point fail.
	StartDelayMs int64 `yaml:"start_delay_ms"`

	// StepMs is the sampling granularity: at most one observation is
	// written per elapsed step.
	StepMs int64 `yaml:"step_ms"`

	// StepMaxBps bounds how far the observed price may move per step,
	// in basis points of the previous observation.
	StepMaxBps uint64 `yaml:"step_max_bps"`
}

// FeeScheduleParams configures the optional linear fee decay applied to
// freshly created conditional pools.
type FeeScheduleParams struct {
	// InitialFeeBps is the fee at pool creation. Decays linearly to the
	// pool's base fee over DurationMs. Zero duration disables decay.
	InitialFeeBps uint64 `yaml:"initial_fee_bps"`
	DurationMs    int64  `yaml:"duration_ms"`
}

// Params is the read-only governance configuration snapshot the engine
// operates under. The engine never mutates it; changes arrive between
// proposals via governance actions.
type Params struct {
	ReviewPeriodMs  int64 `yaml:"review_period_ms"`
	TradingPeriodMs int64 `yaml:"trading_period_ms"`

	// AmmTotalFeeBps is the permanent per-swap fee, basis points.
	AmmTotalFeeBps uint64 `yaml:"amm_total_fee_bps"`
	// AmmBaseFeeBps is the LP share of the fee; the remainder accrues to
	// the protocol fee accumulator.
	AmmBaseFeeBps uint64 `yaml:"amm_base_fee_bps"`

	FeeSchedule FeeScheduleParams `yaml:"fee_schedule"`
	Twap        TwapParams        `yaml:"twap"`

	ExecutionWindowMs  int64 `yaml:"execution_window_ms"`
	InterProposalGapMs int64 `yaml:"inter_proposal_gap_ms"`

	// ConditionalLiquidityRatioPercent is the share of the spot pool's
	// LIVE bucket copied into every outcome pool on proposal start, 1-99
	// (100 means the entire bucket).
	ConditionalLiquidityRatioPercent uint64 `yaml:"conditional_liquidity_ratio_percent"`

	// WinnerThresholdBps is the signed margin an accept outcome's TWAP
	// must clear over the reject outcome's TWAP to win. Negative values
	// model sponsorship-reduced thresholds.
	WinnerThresholdBps int64 `yaml:"winner_threshold_bps"`

	// MinArbProfit is the profitability gate for the auto-arbitrage hook;
	// opportunities below it are skipped.
	MinArbProfit uint64 `yaml:"min_arb_profit"`
}

// Default returns production defaults.
func Default() Params {
	return Params{
		ReviewPeriodMs:  7_200_000,  // 2h
		TradingPeriodMs: 86_400_000, // 24h
		AmmTotalFeeBps:  30,
		AmmBaseFeeBps:   25,
		FeeSchedule: FeeScheduleParams{
			InitialFeeBps: 500,
			DurationMs:    3_600_000,
		},
		Twap: TwapParams{
			StartDelayMs: 60_000,
			StepMs:       60_000,
			StepMaxBps:   1_000,
		},
		ExecutionWindowMs:                DefaultExecutionWindowMs,
		InterProposalGapMs:               DefaultInterProposalGapMs,
		ConditionalLiquidityRatioPercent: 100,
		WinnerThresholdBps:               0,
		MinArbProfit:                     1,
	}
}

// Load reads params from a yaml file, applying defaults for absent keys.
func Load(path string) (Params, error) {
	p := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks the snapshot against protocol bounds.
func (p Params) Validate() error {
	if p.AmmTotalFeeBps > MaxFeeBps || p.FeeSchedule.InitialFeeBps > MaxFeeBps {
		return ErrInvalidFee
	}
	if p.AmmBaseFeeBps > p.AmmTotalFeeBps {
		return fmt.Errorf("%w: base fee above total fee", ErrInvalidFee)
	}
	if p.FeeSchedule.DurationMs < 0 || p.FeeSchedule.DurationMs > MaxFeeDecayMs {
		return ErrInvalidFeeDecay
	}
	if p.ConditionalLiquidityRatioPercent < 1 || p.ConditionalLiquidityRatioPercent > 100 {
		return ErrInvalidRatio
	}
	if p.ReviewPeriodMs <= 0 || p.TradingPeriodMs <= 0 || p.ExecutionWindowMs <= 0 {
		return ErrInvalidPeriod
	}
	if p.Twap.StartDelayMs > p.ReviewPeriodMs+p.TradingPeriodMs {
		return ErrInvalidTwapDelay
	}
	return nil
}

// ReviewPeriod returns the review gate as a duration.
func (p Params) ReviewPeriod() time.Duration { return time.Duration(p.ReviewPeriodMs) * time.Millisecond }

// TradingPeriod returns the trading window as a duration.
func (p Params) TradingPeriod() time.Duration {
	return time.Duration(p.TradingPeriodMs) * time.Millisecond
}

// ExecutionWindow returns the accept-outcome execution grace period.
func (p Params) ExecutionWindow() time.Duration {
	return time.Duration(p.ExecutionWindowMs) * time.Millisecond
}

// InterProposalGap returns the minimum quiet period between proposals.
func (p Params) InterProposalGap() time.Duration {
	return time.Duration(p.InterProposalGapMs) * time.Millisecond
}
