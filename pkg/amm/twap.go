// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrTwapNotReady = errors.New("twap not ready")

// Oracle is a lazily-advanced time-weighted average price accumulator.
// There is no ticking scheduler: the cumulative integral only moves when
// the owning pool interacts with it, holding the last observed price
// constant across the gap. Per-step movement is clamped to StepMaxBps of
// the previous observation, which bounds single-interaction manipulation.
type Oracle struct {
	startDelay time.Duration
	step       time.Duration
	stepMaxBps uint64

	createdAt   time.Time
	sampleStart time.Time

	cumulative decimal.Decimal // price x elapsed-ms integral
	lastPrice  decimal.Decimal
	lastUpdate time.Time
	observed   uint64
}

// NewOracle creates an oracle that begins integrating startDelay after
// createdAt and accepts at most one observation per step.
func NewOracle(createdAt time.Time, startDelay, step time.Duration, stepMaxBps uint64) *Oracle {
	return &Oracle{
		startDelay:  startDelay,
		step:        step,
		stepMaxBps:  stepMaxBps,
		createdAt:   createdAt,
		sampleStart: createdAt.Add(startDelay),
		cumulative:  decimal.Zero,
		lastPrice:   decimal.Zero,
	}
}

// Observe records a price at `now`. Returns true when an observation was
// written; pre-delay prices only refresh the anchor and prices inside the
// sampling step are dropped.
func (o *Oracle) Observe(now time.Time, price decimal.Decimal) bool {
	clamped := o.clamp(price)

	if now.Before(o.sampleStart) {
		o.lastPrice = clamped
		return false
	}

	last := o.lastUpdate
	if last.IsZero() || last.Before(o.sampleStart) {
		last = o.sampleStart
	}
	elapsed := now.Sub(last)
	if o.observed > 0 && elapsed < o.step {
		return false
	}

	// The previous price held from `last` until now and accrues before the
	// switch. For the first in-window observation that is the anchor price
	// carried across the start delay.
	ms := decimal.NewFromInt(elapsed.Milliseconds())
	o.cumulative = o.cumulative.Add(o.lastPrice.Mul(ms))
	o.lastPrice = clamped
	o.lastUpdate = now
	o.observed++
	return true
}

// Twap integrates the cumulative price over elapsed time since the start
// delay. Fails with ErrTwapNotReady until the delay has passed; readiness is
// purely time-gated, so a pool nobody trades reports its anchor price held
// over the whole window.
func (o *Oracle) Twap(now time.Time) (decimal.Decimal, error) {
	if !now.After(o.sampleStart) {
		return decimal.Zero, ErrTwapNotReady
	}

	last := o.lastUpdate
	if last.IsZero() || last.Before(o.sampleStart) {
		last = o.sampleStart
	}

	integral := o.cumulative
	if now.After(last) {
		tail := decimal.NewFromInt(now.Sub(last).Milliseconds())
		integral = integral.Add(o.lastPrice.Mul(tail))
	}

	window := decimal.NewFromInt(now.Sub(o.sampleStart).Milliseconds())
	return integral.Div(window), nil
}

// Observations returns the number of written observations.
func (o *Oracle) Observations() uint64 { return o.observed }

// LastPrice returns the current anchor price.
func (o *Oracle) LastPrice() decimal.Decimal { return o.lastPrice }

func (o *Oracle) clamp(price decimal.Decimal) decimal.Decimal {
	if o.stepMaxBps == 0 || o.lastPrice.IsZero() {
		return price
	}
	maxMove := o.lastPrice.Mul(decimal.NewFromUint64(o.stepMaxBps)).
		Div(decimal.NewFromInt(BpsDenominator))
	upper := o.lastPrice.Add(maxMove)
	lower := o.lastPrice.Sub(maxMove)
	if price.GreaterThan(upper) {
		return upper
	}
	if price.LessThan(lower) {
		return lower
	}
	return price
}
