package engine

import (
	"fmt"
	"math"
	"math/big"
)

// CalculateSwapOutput computes the output of an exact-input swap on a
// constant-product pool (x * y = k) with the fee applied to the input side.
// Returns (amountOut, priceImpact, error).
func CalculateSwapOutput(
	amountIn uint64,
	reserveIn uint64,
	reserveOut uint64,
	feeNumerator uint64,
	feeDenominator uint64,
) (uint64, float64, error) {

	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, 0, fmt.Errorf("invalid inputs: amounts must be > 0")
	}

	if feeDenominator == 0 || feeNumerator >= feeDenominator {
		return 0, 0, fmt.Errorf("invalid fee %d/%d", feeNumerator, feeDenominator)
	}

	// amountInAfterFee = amountIn * (feeDenominator - feeNumerator) / feeDenominator
	// Use big.Int to prevent overflow on large reserves.
	amountInBig := new(big.Int).SetUint64(amountIn)
	feeMultiplier := new(big.Int).SetUint64(feeDenominator - feeNumerator)
	feeDenom := new(big.Int).SetUint64(feeDenominator)

	amountInAfterFee := new(big.Int).Mul(amountInBig, feeMultiplier)
	amountInAfterFee.Div(amountInAfterFee, feeDenom)

	// out = (amountInAfterFee * reserveOut) / (reserveIn + amountInAfterFee)
	reserveOutBig := new(big.Int).SetUint64(reserveOut)
	reserveInBig := new(big.Int).SetUint64(reserveIn)

	numerator := new(big.Int).Mul(amountInAfterFee, reserveOutBig)
	denominator := new(big.Int).Add(reserveInBig, amountInAfterFee)

	amountOutBig := new(big.Int).Div(numerator, denominator)

	if !amountOutBig.IsUint64() {
		return 0, 0, fmt.Errorf("output amount overflow")
	}
	amountOut := amountOutBig.Uint64()

	// priceImpact = 1 - (executionRate / idealRate)
	idealRate := float64(reserveOut) / float64(reserveIn)
	executionRate := float64(amountOut) / float64(amountIn)
	priceImpact := 0.0
	if idealRate > 0 {
		priceImpact = math.Max(0, 1-(executionRate/idealRate))
	}

	return amountOut, priceImpact, nil
}

// CalculateSwapInput computes the input required to receive an exact output
// from a constant-product pool, grossing the result up for the input fee.
// Rounds against the trader so the pool never under-collects.
func CalculateSwapInput(
	amountOut uint64,
	reserveIn uint64,
	reserveOut uint64,
	feeNumerator uint64,
	feeDenominator uint64,
) (uint64, error) {

	if amountOut == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, fmt.Errorf("invalid inputs: amounts must be > 0")
	}
	if amountOut >= reserveOut {
		return 0, fmt.Errorf("output %d exceeds pool reserve %d", amountOut, reserveOut)
	}
	if feeDenominator == 0 || feeNumerator >= feeDenominator {
		return 0, fmt.Errorf("invalid fee %d/%d", feeNumerator, feeDenominator)
	}

	// inAfterFee = ceil(reserveIn * amountOut / (reserveOut - amountOut))
	amountOutBig := new(big.Int).SetUint64(amountOut)
	reserveInBig := new(big.Int).SetUint64(reserveIn)
	reserveOutBig := new(big.Int).SetUint64(reserveOut)

	numerator := new(big.Int).Mul(reserveInBig, amountOutBig)
	denominator := new(big.Int).Sub(reserveOutBig, amountOutBig)

	inAfterFee := new(big.Int).Div(numerator, denominator)
	inAfterFee.Add(inAfterFee, big.NewInt(1))

	// amountIn = ceil(inAfterFee * feeDenominator / (feeDenominator - feeNumerator))
	feeDenom := new(big.Int).SetUint64(feeDenominator)
	feeMultiplier := new(big.Int).SetUint64(feeDenominator - feeNumerator)

	grossed := new(big.Int).Mul(inAfterFee, feeDenom)
	rem := new(big.Int)
	grossed.DivMod(grossed, feeMultiplier, rem)
	if rem.Sign() > 0 {
		grossed.Add(grossed, big.NewInt(1))
	}

	if !grossed.IsUint64() {
		return 0, fmt.Errorf("input amount overflow")
	}
	return grossed.Uint64(), nil
}

// ApplySlippage calculates the minimum output under a slippage tolerance.
// slippageBps: basis points (e.g. 100 = 1%, 50 = 0.5%).
func ApplySlippage(amountOut uint64, slippageBps uint16) uint64 {
	if slippageBps >= 10000 {
		return 0
	}

	slippageFactor := 10000 - uint64(slippageBps)

	amountBig := new(big.Int).SetUint64(amountOut)
	factor := new(big.Int).SetUint64(slippageFactor)
	denom := new(big.Int).SetUint64(10000)

	result := new(big.Int).Mul(amountBig, factor)
	result.Div(result, denom)

	return result.Uint64()
}

// CalculateFeeBps converts a fee numerator/denominator to basis points.
func CalculateFeeBps(feeNumerator, feeDenominator uint64) uint16 {
	if feeDenominator == 0 {
		return 0
	}
	return uint16((feeNumerator * 10000) / feeDenominator)
}
