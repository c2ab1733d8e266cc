package index

import (
	"errors"
	"fmt"
	"sort"

	"powerindex/internal/fixedpoint"
	"powerindex/internal/nordpool"
)

var (
	// ErrUnexpectedPeriodCount signals a series length outside the set of
	// valid day-ahead quarter-hour counts (23/24/25 hours covering DST).
	ErrUnexpectedPeriodCount = errors.New("unexpected period count")
	// ErrEmptySeries signals that no usable data points survived filtering.
	ErrEmptySeries = errors.New("empty series")
	// ErrZeroDenominator signals a VWAP series whose total volume is zero.
	ErrZeroDenominator = errors.New("zero total volume")
)

// Point is one normalized observation. PeriodIndex is the dense 0-based
// position after sorting by delivery start, not a quarter-hour-of-day slot:
// the dataset hash commits to the index order actually used, so days with
// different missing-data patterns do not share index semantics.
type Point struct {
	PeriodIndex uint32
	Price1e6    int64
	Vol1e6      int64
}

func validPeriodCount(n int) bool {
	return n == 92 || n == 96 || n == 100
}

// NormalizePrices filters null-price periods, sorts the remainder ascending
// by delivery start, and assigns dense period indexes. The count of numeric
// points must be one of {92, 96, 100}.
//
// Sorting compares the raw deliveryStart strings; the ISO-8601 format is
// fixed-width and zero-padded, so lexical order is chronological order.
func NormalizePrices(periods []nordpool.PricePeriod) ([]Point, error) {
	type val struct {
		start string
		price float64
	}

	vals := make([]val, 0, len(periods))
	for _, p := range periods {
		if p.Price == nil {
			continue
		}
		vals = append(vals, val{start: p.DeliveryStart, price: *p.Price})
	}

	if !validPeriodCount(len(vals)) {
		return nil, fmt.Errorf("%w: %d (expected 92/96/100)", ErrUnexpectedPeriodCount, len(vals))
	}

	sort.Slice(vals, func(i, j int) bool { return vals[i].start < vals[j].start })

	points := make([]Point, len(vals))
	for i, v := range vals {
		points[i] = Point{
			PeriodIndex: uint32(i),
			Price1e6:    fixedpoint.FromFloat(v.price),
		}
	}
	return points, nil
}

// NormalizeJoined joins buy volumes to prices by exact deliveryStart string
// equality and returns the sorted, indexed sequence. A point is kept only if
// it has a numeric price, a matching numeric volume, and a non-zero scaled
// volume: zero-volume periods carry no economic weight and are excluded
// rather than treated as zero-weight. Prices without a matching volume are
// dropped silently, tolerating provider inconsistency between the two feeds.
//
// The join is exact string equality, not a time-zone-aware comparison; both
// feeds come from the same provider with the same timestamp formatting.
//
// When enforceCount is set the joined series length is validated against
// {92, 96, 100} like the price-only path; by default it is not.
func NormalizeJoined(prices []nordpool.PricePeriod, volumes []nordpool.VolumePeriod, enforceCount bool) ([]Point, error) {
	volByStart := make(map[string]float64, len(volumes))
	for _, v := range volumes {
		if v.Buy == nil {
			continue
		}
		volByStart[v.DeliveryStart] = *v.Buy
	}

	type val struct {
		start string
		price float64
		vol   float64
	}

	vals := make([]val, 0, len(prices))
	for _, p := range prices {
		if p.Price == nil {
			continue
		}
		buy, ok := volByStart[p.DeliveryStart]
		if !ok {
			continue
		}
		if fixedpoint.FromFloat(buy) == 0 {
			continue
		}
		vals = append(vals, val{start: p.DeliveryStart, price: *p.Price, vol: buy})
	}

	if enforceCount && !validPeriodCount(len(vals)) {
		return nil, fmt.Errorf("%w: %d joined (expected 92/96/100)", ErrUnexpectedPeriodCount, len(vals))
	}

	sort.Slice(vals, func(i, j int) bool { return vals[i].start < vals[j].start })

	points := make([]Point, len(vals))
	for i, v := range vals {
		points[i] = Point{
			PeriodIndex: uint32(i),
			Price1e6:    fixedpoint.FromFloat(v.price),
			Vol1e6:      fixedpoint.FromFloat(v.vol),
		}
	}
	return points, nil
}
