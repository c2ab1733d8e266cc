package fixedpoint

import (
	"math/big"
	"testing"
)

func TestFromFloatRounding(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{42.42, 42_420_000},
		{-12.345678, -12_345_678},
		{0.0000004, 0},
		{0.0000005, 1},
		{-0.0000005, -1},
		{1234.9999996, 1_235_000_000},
	}
	for _, c := range cases {
		if got := FromFloat(c.in); got != c.want {
			t.Errorf("FromFloat(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestQuoTruncTowardZero(t *testing.T) {
	got := QuoTrunc(big.NewInt(400_000_000), big.NewInt(3))
	if got.Int64() != 133_333_333 {
		t.Fatalf("400000000/3 = %s, want 133333333", got)
	}

	got = QuoTrunc(big.NewInt(-400_000_000), big.NewInt(3))
	if got.Int64() != -133_333_333 {
		t.Fatalf("-400000000/3 = %s, want -133333333 (toward zero)", got)
	}
}

func TestU32BE(t *testing.T) {
	b := U32BE(0x01020304)
	want := [4]byte{0x01, 0x02, 0x03, 0x04}
	if b != want {
		t.Fatalf("U32BE = %x, want %x", b, want)
	}
}

func TestI256BEPositive(t *testing.T) {
	b := I256BEInt64(1)
	for i := 0; i < 31; i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d = %x, want 0", i, b[i])
		}
	}
	if b[31] != 1 {
		t.Fatalf("last byte = %x, want 1", b[31])
	}
}

func TestI256BENegativeRoundTrip(t *testing.T) {
	// -12.345678 scaled -> -12345678; its two's-complement bytes must
	// reinterpret back to the same signed value.
	v := FromFloat(-12.345678)
	if v != -12_345_678 {
		t.Fatalf("scaled = %d, want -12345678", v)
	}

	b := I256BEInt64(v)
	if b[0] != 0xff {
		t.Fatalf("negative value must be sign-extended, first byte %x", b[0])
	}

	back := new(big.Int).SetBytes(b[:])
	back.Sub(back, new(big.Int).Lsh(big.NewInt(1), 256))
	if back.Int64() != v {
		t.Fatalf("round trip = %s, want %d", back, v)
	}
}

func TestI256BEInputUnmodified(t *testing.T) {
	v := big.NewInt(-42)
	I256BE(v)
	if v.Int64() != -42 {
		t.Fatalf("I256BE mutated its argument: %s", v)
	}
}
