package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSwapOutput(t *testing.T) {
	// 1:1 pool, 0.25% fee, small trade
	out, impact, err := CalculateSwapOutput(1000, 1_000_000, 1_000_000, 25, 10000)
	require.NoError(t, err)
	assert.Greater(t, out, uint64(0))
	assert.Less(t, out, uint64(1000)) // fee plus curvature
	assert.GreaterOrEqual(t, impact, 0.0)
	assert.Less(t, impact, 0.01)

	// Larger trades move the price more
	outBig, impactBig, err := CalculateSwapOutput(100_000, 1_000_000, 1_000_000, 25, 10000)
	require.NoError(t, err)
	assert.Greater(t, impactBig, impact)
	assert.Less(t, outBig, uint64(100_000))
}

func TestCalculateSwapOutput_ZeroFee(t *testing.T) {
	// x*y=k with no fee: out = in*y/(x+in)
	out, _, err := CalculateSwapOutput(1000, 1_000_000, 2_000_000, 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1998), out) // 1000*2000000/1001000 = 1998.00...
}

func TestCalculateSwapOutput_InvalidInputs(t *testing.T) {
	_, _, err := CalculateSwapOutput(0, 1000, 1000, 25, 10000)
	assert.Error(t, err)

	_, _, err = CalculateSwapOutput(1000, 0, 1000, 25, 10000)
	assert.Error(t, err)

	_, _, err = CalculateSwapOutput(1000, 1000, 0, 25, 10000)
	assert.Error(t, err)

	// Fee >= 100%
	_, _, err = CalculateSwapOutput(1000, 1000, 1000, 10000, 10000)
	assert.Error(t, err)

	_, _, err = CalculateSwapOutput(1000, 1000, 1000, 25, 0)
	assert.Error(t, err)
}

func TestCalculateSwapOutput_LargeReserves(t *testing.T) {
	// Near-max reserves must not overflow
	const huge = uint64(1) << 62
	out, _, err := CalculateSwapOutput(huge/2, huge, huge, 25, 10000)
	require.NoError(t, err)
	assert.Greater(t, out, uint64(0))
	assert.Less(t, out, huge)
}

func TestCalculateSwapInput(t *testing.T) {
	const (
		reserveIn  = uint64(1_000_000)
		reserveOut = uint64(2_000_000)
		feeNum     = uint64(25)
		feeDen     = uint64(10000)
	)

	amountIn, err := CalculateSwapInput(5000, reserveIn, reserveOut, feeNum, feeDen)
	require.NoError(t, err)

	// Spending the computed input must yield at least the requested output
	out, _, err := CalculateSwapOutput(amountIn, reserveIn, reserveOut, feeNum, feeDen)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out, uint64(5000))

	// Rounding is against the trader, never in their favor
	outShort, _, err := CalculateSwapOutput(amountIn-2, reserveIn, reserveOut, feeNum, feeDen)
	require.NoError(t, err)
	assert.LessOrEqual(t, outShort, out)
}

func TestCalculateSwapInput_InvalidInputs(t *testing.T) {
	_, err := CalculateSwapInput(0, 1000, 1000, 25, 10000)
	assert.Error(t, err)

	// Requesting the whole reserve (or more) is unfillable
	_, err = CalculateSwapInput(1000, 1000, 1000, 25, 10000)
	assert.Error(t, err)

	_, err = CalculateSwapInput(2000, 1000, 1000, 25, 10000)
	assert.Error(t, err)

	_, err = CalculateSwapInput(100, 0, 1000, 25, 10000)
	assert.Error(t, err)

	_, err = CalculateSwapInput(100, 1000, 1000, 10000, 10000)
	assert.Error(t, err)
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, uint64(990), ApplySlippage(1000, 100)) // 1%
	assert.Equal(t, uint64(995), ApplySlippage(1000, 50))  // 0.5%
	assert.Equal(t, uint64(1000), ApplySlippage(1000, 0))
	assert.Equal(t, uint64(0), ApplySlippage(1000, 10000))
}

func TestCalculateFeeBps(t *testing.T) {
	assert.Equal(t, uint16(25), CalculateFeeBps(25, 10000))
	assert.Equal(t, uint16(30), CalculateFeeBps(3, 1000))
	assert.Equal(t, uint16(0), CalculateFeeBps(0, 10000))
	assert.Equal(t, uint16(0), CalculateFeeBps(25, 0))
}
