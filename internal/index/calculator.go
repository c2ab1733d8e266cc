package index

import (
	"math/big"

	"powerindex/internal/fixedpoint"
)

// Variant selects the index computation applied over normalized points.
type Variant string

const (
	// VariantMean is the simple average of scaled prices.
	VariantMean Variant = "mean"
	// VariantVWAP is the buy-volume weighted average of scaled prices.
	VariantVWAP Variant = "vwap"
)

// Result is a computed daily index value for one area.
type Result struct {
	// Value1e6 is the published index value at 1e6 scale.
	Value1e6 int64
	// PeriodCount is the number of points actually used, not the raw
	// input length.
	PeriodCount int
	// DatasetHash is the 0x-prefixed keccak256 commitment over the exact
	// point sequence used.
	DatasetHash string
}

// Mean computes the simple average of the scaled prices: sum of per-point
// 1e6 integers divided by the point count, truncating toward zero. Per-point
// scaling already rounded ties away from zero; this division is the only
// other rounding step and it truncates. The two policies are asymmetric on
// purpose and must stay that way, since the hash commits to the pre-division
// integers.
func Mean(points []Point) (int64, error) {
	if len(points) == 0 {
		return 0, ErrEmptySeries
	}

	sum := new(big.Int)
	for _, p := range points {
		sum.Add(sum, big.NewInt(p.Price1e6))
	}
	return fixedpoint.QuoTrunc(sum, big.NewInt(int64(len(points)))).Int64(), nil
}

// VWAP computes sum(price1e6 * vol1e6) / sum(vol1e6) with an unbounded
// integer numerator (1e12 scale), truncating toward zero back to 1e6 scale.
// A zero denominator refuses the computation outright: publishing a value
// with no volume behind it would be silently wrong.
func VWAP(points []Point) (int64, error) {
	if len(points) == 0 {
		return 0, ErrEmptySeries
	}

	num := new(big.Int)
	den := new(big.Int)
	for _, p := range points {
		num.Add(num, new(big.Int).Mul(big.NewInt(p.Price1e6), big.NewInt(p.Vol1e6)))
		den.Add(den, big.NewInt(p.Vol1e6))
	}
	if den.Sign() == 0 {
		return 0, ErrZeroDenominator
	}
	return fixedpoint.QuoTrunc(num, den).Int64(), nil
}
