package pipeline

import (
	"sort"
	"time"

	"marketsync/internal/store"
	"marketsync/pkg/provider"
)

// Precision selects the numeric width bars are coerced to. The historical
// store carries single-precision values by default; double precision is
// available for callers that need it.
type Precision int

const (
	PrecisionSingle Precision = iota
	PrecisionDouble
)

// Coerce rounds a value to the configured precision. NaN passes through
// untouched so gaps stay detectable by the imputer.
func (p Precision) Coerce(v float64) float64 {
	if p == PrecisionSingle {
		return float64(float32(v))
	}
	return v
}

// Normalize reshapes the provider's wide response into tidy rows: one row
// per (date, symbol) with the canonical column set, numeric values coerced
// to the configured precision. Cells the provider had no value for stay
// NaN for the imputer to reconcile. Any extra provider metadata does not
// survive the reshape.
func Normalize(frame *provider.WideFrame, prec Precision) []store.DailyBar {
	if frame.Empty() {
		return nil
	}
	symbols := frame.Symbols()
	bars := make([]store.DailyBar, 0, len(frame.Dates)*len(symbols))
	for idx, date := range frame.Dates {
		for _, sym := range symbols {
			bars = append(bars, store.DailyBar{
				CollectDate: date,
				Ticker:      sym,
				Open:        prec.Coerce(frame.Value(sym, provider.FieldOpen, idx)),
				High:        prec.Coerce(frame.Value(sym, provider.FieldHigh, idx)),
				Low:         prec.Coerce(frame.Value(sym, provider.FieldLow, idx)),
				Close:       prec.Coerce(frame.Value(sym, provider.FieldClose, idx)),
				Volume:      prec.Coerce(frame.Value(sym, provider.FieldVolume, idx)),
			})
		}
	}
	return bars
}

// Pivot rebuilds a wide frame from tidy rows. It is the inverse of
// Normalize for the six canonical columns.
func Pivot(bars []store.DailyBar) *provider.WideFrame {
	daySet := make(map[time.Time]struct{}, len(bars))
	for _, bar := range bars {
		daySet[bar.CollectDate] = struct{}{}
	}
	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	dayIndex := make(map[time.Time]int, len(days))
	for i, day := range days {
		dayIndex[day] = i
	}

	frame := provider.NewWideFrame(days)
	for _, bar := range bars {
		idx := dayIndex[bar.CollectDate]
		frame.Set(bar.Ticker, provider.FieldOpen, idx, bar.Open)
		frame.Set(bar.Ticker, provider.FieldHigh, idx, bar.High)
		frame.Set(bar.Ticker, provider.FieldLow, idx, bar.Low)
		frame.Set(bar.Ticker, provider.FieldClose, idx, bar.Close)
		frame.Set(bar.Ticker, provider.FieldVolume, idx, bar.Volume)
	}
	return frame
}
