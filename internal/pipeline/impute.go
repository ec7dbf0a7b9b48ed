package pipeline

import (
	"math"
	"sort"

	"marketsync/internal/store"
	"time"
)

// barFields enumerates the numeric columns gap-filling applies to.
var barFields = []func(*store.DailyBar) *float64{
	func(b *store.DailyBar) *float64 { return &b.Open },
	func(b *store.DailyBar) *float64 { return &b.High },
	func(b *store.DailyBar) *float64 { return &b.Low },
	func(b *store.DailyBar) *float64 { return &b.Close },
	func(b *store.DailyBar) *float64 { return &b.Volume },
}

// FillMissing reconciles gaps in tidy rows and clips them to the requested
// window. Within each symbol's own series, NaN cells are filled forward
// (carrying the nearest prior value) and then backward (for leading gaps
// with nothing prior). Values never cross symbols. Rows outside
// [start, end] belong to the padded fetch margin and are dropped, as are
// rows that still hold a NaN after both passes.
func FillMissing(bars []store.DailyBar, start, end time.Time) []store.DailyBar {
	bySymbol := make(map[string][]int)
	order := make([]string, 0)
	for i := range bars {
		sym := bars[i].Ticker
		if _, seen := bySymbol[sym]; !seen {
			order = append(order, sym)
		}
		bySymbol[sym] = append(bySymbol[sym], i)
	}

	filled := make([]store.DailyBar, len(bars))
	copy(filled, bars)

	for _, sym := range order {
		indices := bySymbol[sym]
		sort.SliceStable(indices, func(a, b int) bool {
			return filled[indices[a]].CollectDate.Before(filled[indices[b]].CollectDate)
		})
		for _, field := range barFields {
			fillSeries(filled, indices, field)
		}
	}

	out := make([]store.DailyBar, 0, len(filled))
	for i := range filled {
		bar := filled[i]
		if bar.CollectDate.Before(start) || bar.CollectDate.After(end) {
			continue
		}
		if hasGap(&bar) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// fillSeries runs the forward pass then the backward pass over one
// symbol's column. Forward runs first, so interior gaps inherit the prior
// value and only leading gaps fall through to the backward pass.
func fillSeries(bars []store.DailyBar, indices []int, field func(*store.DailyBar) *float64) {
	last := math.NaN()
	for _, idx := range indices {
		cell := field(&bars[idx])
		if math.IsNaN(*cell) {
			*cell = last
		} else {
			last = *cell
		}
	}
	next := math.NaN()
	for i := len(indices) - 1; i >= 0; i-- {
		cell := field(&bars[indices[i]])
		if math.IsNaN(*cell) {
			*cell = next
		} else {
			next = *cell
		}
	}
}

func hasGap(bar *store.DailyBar) bool {
	for _, field := range barFields {
		if math.IsNaN(*field(bar)) {
			return true
		}
	}
	return false
}
