package index

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"powerindex/internal/nordpool"
)

func fptr(v float64) *float64 { return &v }

// quarterHours builds n sequential 15-minute price periods for a delivery day.
func quarterHours(n int, price func(i int) *float64) []nordpool.PricePeriod {
	periods := make([]nordpool.PricePeriod, n)
	for i := 0; i < n; i++ {
		periods[i] = nordpool.PricePeriod{
			DeliveryStart: startOf(i),
			DeliveryEnd:   startOf(i + 1),
			Price:         price(i),
		}
	}
	return periods
}

func startOf(i int) string {
	return fmt.Sprintf("2026-08-31T%02d:%02d:00Z", i/4, (i%4)*15)
}

func TestNormalizePricesCountValidation(t *testing.T) {
	for _, n := range []int{92, 96, 100} {
		if _, err := NormalizePrices(quarterHours(n, func(int) *float64 { return fptr(50) })); err != nil {
			t.Errorf("count %d should be accepted: %v", n, err)
		}
	}

	_, err := NormalizePrices(quarterHours(95, func(int) *float64 { return fptr(50) }))
	if !errors.Is(err, ErrUnexpectedPeriodCount) {
		t.Fatalf("count 95 should fail with ErrUnexpectedPeriodCount, got %v", err)
	}
}

func TestNormalizePricesCountsNumericOnly(t *testing.T) {
	// 97 raw periods of which one is null: 96 numeric points pass.
	periods := quarterHours(97, func(i int) *float64 {
		if i == 40 {
			return nil
		}
		return fptr(50)
	})

	points, err := NormalizePrices(periods)
	if err != nil {
		t.Fatalf("null periods must not count: %v", err)
	}
	if len(points) != 96 {
		t.Fatalf("got %d points, want 96", len(points))
	}
}

func TestNormalizePricesSortsAndIndexesDensely(t *testing.T) {
	periods := quarterHours(96, func(i int) *float64 { return fptr(float64(i)) })
	// Shuffle deterministically: reverse the provider order.
	for i, j := 0, len(periods)-1; i < j; i, j = i+1, j-1 {
		periods[i], periods[j] = periods[j], periods[i]
	}

	points, err := NormalizePrices(periods)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range points {
		if p.PeriodIndex != uint32(i) {
			t.Fatalf("point %d has index %d", i, p.PeriodIndex)
		}
		if p.Price1e6 != int64(i)*1_000_000 {
			t.Fatalf("point %d: price %d, want %d", i, p.Price1e6, int64(i)*1_000_000)
		}
	}
}

func TestMeanTruncatesTowardZero(t *testing.T) {
	points := []Point{{0, 100_000_000, 0}, {1, 100_000_001, 0}}
	got, err := Mean(points)
	if err != nil {
		t.Fatal(err)
	}
	if got != 100_000_000 {
		t.Fatalf("mean = %d, want 100000000", got)
	}
}

func TestMeanEmptySeries(t *testing.T) {
	if _, err := Mean(nil); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("want ErrEmptySeries, got %v", err)
	}
}

func TestVWAPTruncatingDivision(t *testing.T) {
	// (100*2 + 200*1) / 3 = 133.333... -> 133333333, never rounded up.
	points := []Point{
		{0, 100_000_000, 2_000_000},
		{1, 200_000_000, 1_000_000},
	}
	got, err := VWAP(points)
	if err != nil {
		t.Fatal(err)
	}
	if got != 133_333_333 {
		t.Fatalf("vwap = %d, want 133333333", got)
	}
}

func TestVWAPZeroDenominator(t *testing.T) {
	if _, err := VWAP([]Point{{0, 100_000_000, 0}}); !errors.Is(err, ErrZeroDenominator) {
		t.Fatalf("want ErrZeroDenominator, got %v", err)
	}
}

func joinedFixture() ([]nordpool.PricePeriod, []nordpool.VolumePeriod) {
	prices := []nordpool.PricePeriod{
		{DeliveryStart: startOf(0), Price: fptr(100)},
		{DeliveryStart: startOf(1), Price: fptr(200)},
		{DeliveryStart: startOf(2), Price: fptr(300)},
	}
	volumes := []nordpool.VolumePeriod{
		{DeliveryStart: startOf(0), Buy: fptr(2)},
		{DeliveryStart: startOf(1), Buy: fptr(1)},
		{DeliveryStart: startOf(2), Buy: fptr(0)},
	}
	return prices, volumes
}

func TestNormalizeJoinedExcludesZeroVolume(t *testing.T) {
	prices, volumes := joinedFixture()
	points, err := NormalizeJoined(prices, volumes, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("zero-volume point must be excluded entirely, got %d points", len(points))
	}

	res, err := ComputeVWAP(prices, volumes, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.PeriodCount != 2 {
		t.Fatalf("periodCount = %d, want 2", res.PeriodCount)
	}
	if res.Value1e6 != 133_333_333 {
		t.Fatalf("value1e6 = %d, want 133333333", res.Value1e6)
	}
}

func TestNormalizeJoinedDropsUnmatchedPrices(t *testing.T) {
	prices := []nordpool.PricePeriod{
		{DeliveryStart: startOf(0), Price: fptr(100)},
		{DeliveryStart: startOf(1), Price: fptr(200)},
	}
	volumes := []nordpool.VolumePeriod{
		{DeliveryStart: startOf(0), Buy: fptr(5)},
	}

	points, err := NormalizeJoined(prices, volumes, false)
	if err != nil {
		t.Fatalf("unmatched prices drop silently: %v", err)
	}
	if len(points) != 1 || points[0].Price1e6 != 100_000_000 {
		t.Fatalf("unexpected join result: %+v", points)
	}
}

func TestNormalizeJoinedEnforceCount(t *testing.T) {
	prices, volumes := joinedFixture()
	if _, err := NormalizeJoined(prices, volumes, true); !errors.Is(err, ErrUnexpectedPeriodCount) {
		t.Fatalf("enforced joined count should fail for 2 points, got %v", err)
	}
}

func TestComputeMeanDeterminism(t *testing.T) {
	periods := quarterHours(96, func(i int) *float64 { return fptr(float64(i)*0.25 - 3.5) })

	first, err := ComputeMean(periods)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ComputeMean(periods)
	if err != nil {
		t.Fatal(err)
	}

	if first.Value1e6 != second.Value1e6 || first.DatasetHash != second.DatasetHash {
		t.Fatalf("recomputation diverged: %+v vs %+v", first, second)
	}
	if !strings.HasPrefix(first.DatasetHash, "0x") || len(first.DatasetHash) != 66 {
		t.Fatalf("dataset hash must be 0x-prefixed 32 bytes: %q", first.DatasetHash)
	}
	if first.PeriodCount != 96 {
		t.Fatalf("periodCount = %d, want 96", first.PeriodCount)
	}
}

func TestHashSensitivity(t *testing.T) {
	periods := quarterHours(96, func(i int) *float64 { return fptr(50) })
	base, err := ComputeMean(periods)
	if err != nil {
		t.Fatal(err)
	}

	// Bump one period by the smallest representable unit: 1e-6.
	periods[17].Price = fptr(50.000001)
	changed, err := ComputeMean(periods)
	if err != nil {
		t.Fatal(err)
	}

	if base.DatasetHash == changed.DatasetHash {
		t.Fatal("one-unit price change must change the dataset hash")
	}
}

func TestHashVariantsDiffer(t *testing.T) {
	points := []Point{{0, 100_000_000, 1_000_000}}
	if HashPoints(points, false) == HashPoints(points, true) {
		t.Fatal("mean and vwap layouts must not collide")
	}
}

func TestHashNegativePrices(t *testing.T) {
	periods := quarterHours(96, func(i int) *float64 { return fptr(-12.345678) })
	res, err := ComputeMean(periods)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value1e6 != -12_345_678 {
		t.Fatalf("value1e6 = %d, want -12345678", res.Value1e6)
	}
}
