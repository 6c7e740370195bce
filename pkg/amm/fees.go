// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"time"
)

var ErrInvalidFeeSchedule = errors.New("invalid fee schedule")

// FeeSchedule is an immutable linear fee decay: the pool opens at
// InitialFeeBps and reaches FloorBps once Duration has elapsed. A zero
// Duration disables decay entirely and the floor applies from the start.
type FeeSchedule struct {
	InitialFeeBps uint64
	FloorBps      uint64
	Duration      time.Duration
}

const maxFeeDecay = 24 * time.Hour

// NewFeeSchedule validates the decay parameters against protocol bounds.
func NewFeeSchedule(initialBps, floorBps uint64, duration time.Duration) (*FeeSchedule, error) {
	if initialBps > MaxFeeBps || floorBps > MaxFeeBps {
		return nil, ErrInvalidFeeSchedule
	}
	if duration < 0 || duration > maxFeeDecay {
		return nil, ErrInvalidFeeSchedule
	}
	return &FeeSchedule{
		InitialFeeBps: initialBps,
		FloorBps:      floorBps,
		Duration:      duration,
	}, nil
}

// MaxFeeBps is the hard protocol fee cap.
const MaxFeeBps = 9_900

// CurrentFee returns the fee in force after `elapsed` since pool start,
// clamped to [0, MaxFeeBps].
func (f *FeeSchedule) CurrentFee(elapsed time.Duration) uint64 {
	if f == nil {
		return 0
	}
	if f.Duration <= 0 || elapsed >= f.Duration {
		return clampFee(f.FloorBps)
	}
	if elapsed < 0 {
		elapsed = 0
	}

	// Linear interpolation in millisecond space.
	total := uint64(f.Duration.Milliseconds())
	done := uint64(elapsed.Milliseconds())
	if f.InitialFeeBps >= f.FloorBps {
		drop := MulDivFloor(f.InitialFeeBps-f.FloorBps, done, total)
		return clampFee(f.InitialFeeBps - drop)
	}
	rise := MulDivFloor(f.FloorBps-f.InitialFeeBps, done, total)
	return clampFee(f.InitialFeeBps + rise)
}

func clampFee(fee uint64) uint64 {
	if fee > MaxFeeBps {
		return MaxFeeBps
	}
	return fee
}
