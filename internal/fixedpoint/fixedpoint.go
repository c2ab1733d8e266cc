package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the fixed-point scale applied to raw market values: 1e6.
const Scale = 1_000_000

var (
	decScale = decimal.NewFromInt(Scale)

	// 2^256, used for two's-complement wrapping of negative values.
	twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

// FromFloat converts a raw currency/volume value into a 1e6 scaled integer,
// rounding to nearest with ties away from zero. This is the only place raw
// floating-point market data enters the integer domain; everything downstream
// (averaging, hashing, on-chain encoding) operates on the result.
func FromFloat(v float64) int64 {
	return decimal.NewFromFloat(v).Mul(decScale).Round(0).IntPart()
}

// QuoTrunc divides num by den truncating toward zero. den must be non-zero.
func QuoTrunc(num, den *big.Int) *big.Int {
	return new(big.Int).Quo(num, den)
}

// U32BE encodes v as 4 big-endian bytes.
func U32BE(v uint32) [4]byte {
	return [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// I256BE encodes v as 32 big-endian bytes in 256-bit two's complement.
// Negative values wrap modulo 2^256 before byte extraction, matching the
// on-chain int256 representation.
func I256BE(v *big.Int) [32]byte {
	var out [32]byte
	x := v
	if x.Sign() < 0 {
		x = new(big.Int).Add(twoPow256, x)
	}
	x.FillBytes(out[:])
	return out
}

// I256BEInt64 is I256BE for values already held as int64 scaled integers.
func I256BEInt64(v int64) [32]byte {
	return I256BE(big.NewInt(v))
}
