package index

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"powerindex/internal/fixedpoint"
	"powerindex/internal/nordpool"
)

// HashPoints produces the dataset commitment: keccak256 over the canonical
// byte layout of every point, concatenated in period-index order with no
// separators. Layout per point:
//
//	[periodIndex: 4B BE u32][price1e6: 32B BE i256]
//
// and, for the VWAP variant, an additional [vol1e6: 32B BE i256]. Negative
// scaled values use 256-bit two's complement so that an on-chain verifier
// reconstructs the identical preimage. Any reordering, omission, or rounding
// difference changes the digest.
func HashPoints(points []Point, withVolumes bool) string {
	stride := 4 + 32
	if withVolumes {
		stride += 32
	}

	packed := make([]byte, 0, len(points)*stride)
	for _, p := range points {
		idx := fixedpoint.U32BE(p.PeriodIndex)
		packed = append(packed, idx[:]...)
		price := fixedpoint.I256BEInt64(p.Price1e6)
		packed = append(packed, price[:]...)
		if withVolumes {
			vol := fixedpoint.I256BEInt64(p.Vol1e6)
			packed = append(packed, vol[:]...)
		}
	}

	return hexutil.Encode(crypto.Keccak256(packed))
}

// ComputeMean runs the full mean pipeline for one area: normalize, average,
// hash. The returned result is bit-for-bit reproducible from the same raw
// input on any instance.
func ComputeMean(prices []nordpool.PricePeriod) (Result, error) {
	points, err := NormalizePrices(prices)
	if err != nil {
		return Result{}, err
	}
	value, err := Mean(points)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Value1e6:    value,
		PeriodCount: len(points),
		DatasetHash: HashPoints(points, false),
	}, nil
}

// ComputeVWAP runs the full VWAP pipeline: join, weight, hash.
func ComputeVWAP(prices []nordpool.PricePeriod, volumes []nordpool.VolumePeriod, enforceCount bool) (Result, error) {
	points, err := NormalizeJoined(prices, volumes, enforceCount)
	if err != nil {
		return Result{}, err
	}
	value, err := VWAP(points)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Value1e6:    value,
		PeriodCount: len(points),
		DatasetHash: HashPoints(points, true),
	}, nil
}
