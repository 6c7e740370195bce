// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proposal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/govmarkets/futarchy/pkg/amm"
)

// RejectOutcome is outcome zero by convention: the status-quo branch a
// proposal resolves to when no accept branch clears the threshold.
const RejectOutcome uint8 = 0

// WinnerPolicy decides which outcome a market resolves to. The comparator is
// pluggable: governance may prefer TWAP resolution or raw spot-price
// resolution per DAO.
type WinnerPolicy interface {
	Winner(now time.Time, pools []*amm.Pool) (uint8, error)
}

// TwapWinner resolves to the accept outcome whose TWAP sits furthest above
// the reject outcome's TWAP, provided the margin clears ThresholdBps. The
// threshold is signed: a negative threshold lets an accept outcome win while
// still trading slightly below reject.
type TwapWinner struct {
	ThresholdBps int64
}

func (w TwapWinner) Winner(now time.Time, pools []*amm.Pool) (uint8, error) {
	prices := make([]decimal.Decimal, len(pools))
	for i, pool := range pools {
		p, err := pool.Twap(now)
		if err != nil {
			return 0, err
		}
		prices[i] = p
	}
	return pickWinner(prices, w.ThresholdBps), nil
}

// SpotPriceWinner resolves on instantaneous pool prices. Cheaper and simpler
// than TWAP but manipulable in the final block of trading; offered for DAOs
// that accept that tradeoff.
type SpotPriceWinner struct {
	ThresholdBps int64
}

func (w SpotPriceWinner) Winner(now time.Time, pools []*amm.Pool) (uint8, error) {
	prices := make([]decimal.Decimal, len(pools))
	for i, pool := range pools {
		prices[i] = pool.SpotPrice()
	}
	return pickWinner(prices, w.ThresholdBps), nil
}

// pickWinner compares every accept outcome's price margin over reject, in
// basis points, against the signed threshold. Ties between accept outcomes
// go to the lower index for determinism.
func pickWinner(prices []decimal.Decimal, thresholdBps int64) uint8 {
	reject := prices[RejectOutcome]
	winner := RejectOutcome
	bestMargin := decimal.NewFromInt(thresholdBps)

	for i := int(RejectOutcome) + 1; i < len(prices); i++ {
		var margin decimal.Decimal
		if reject.IsZero() {
			if prices[i].IsZero() {
				continue
			}
			// Reject priced at zero: any nonzero accept price is an
			// unbounded margin.
			margin = decimal.New(int64(amm.BpsDenominator), 18)
		} else {
			margin = prices[i].Sub(reject).
				Mul(decimal.NewFromInt(amm.BpsDenominator)).
				Div(reject)
		}
		if margin.GreaterThan(bestMargin) {
			bestMargin = margin
			winner = uint8(i)
		}
	}
	return winner
}
