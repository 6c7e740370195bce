// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the basis-point scale used for every fee computation.
const BpsDenominator = 10_000

// SwapOutput computes the constant-product output amount for a fee-on-input
// swap. All intermediates are exact big-decimal products, so reserve pairs
// near the uint64 ceiling cannot overflow. The result is floored.
//
//	out = floor(reserveOut * in*(10000-fee) / (reserveIn*10000 + in*(10000-fee)))
func SwapOutput(amountIn, reserveIn, reserveOut, feeBps uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	if feeBps >= BpsDenominator {
		return 0
	}

	in := decimal.NewFromUint64(amountIn)
	rIn := decimal.NewFromUint64(reserveIn)
	rOut := decimal.NewFromUint64(reserveOut)
	keep := decimal.NewFromUint64(BpsDenominator - feeBps)
	scale := decimal.NewFromInt(BpsDenominator)

	inAfterFee := in.Mul(keep)
	num := rOut.Mul(inAfterFee)
	den := rIn.Mul(scale).Add(inAfterFee)

	q, _ := num.QuoRem(den, 0)
	return decimalToUint64(q)
}

// MulDivFloor returns floor(a*b/den), exact.
func MulDivFloor(a, b, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	q, _ := decimal.NewFromUint64(a).Mul(decimal.NewFromUint64(b)).
		QuoRem(decimal.NewFromUint64(den), 0)
	return decimalToUint64(q)
}

// BpsOf returns floor(amount*bps/10000).
func BpsOf(amount, bps uint64) uint64 {
	return MulDivFloor(amount, bps, BpsDenominator)
}

// Sqrt returns the integer square root of a*b, the invariant-preserving
// bootstrap mint for an empty pool.
func Sqrt(a, b uint64) uint64 {
	prod := new(big.Int).Mul(
		new(big.Int).SetUint64(a),
		new(big.Int).SetUint64(b),
	)
	root := new(big.Int).Sqrt(prod)
	if !root.IsUint64() {
		return ^uint64(0)
	}
	return root.Uint64()
}

// Price returns stable/asset as a decimal. Zero asset reserve yields zero.
func Price(assetReserve, stableReserve uint64) decimal.Decimal {
	if assetReserve == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(stableReserve).Div(decimal.NewFromUint64(assetReserve))
}

func decimalToUint64(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	bi := d.BigInt()
	if !bi.IsUint64() {
		return ^uint64(0)
	}
	return bi.Uint64()
}
