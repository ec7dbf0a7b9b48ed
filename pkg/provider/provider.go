package provider

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"
)

// ErrNoData indicates the provider returned no usable rows for an entire
// history request. A frame that is merely sparse for some symbols is not an
// error; gaps are reconciled downstream.
var ErrNoData = errors.New("provider: no data returned")

// Provider exposes a source of daily history batches and live quotes.
type Provider interface {
	// History fetches daily bars for all symbols over [start, end) in a
	// single batched request and returns the provider's wide response.
	History(ctx context.Context, symbols []string, start, end time.Time) (*WideFrame, error)
	// Quote returns a live snapshot for one symbol.
	Quote(ctx context.Context, symbol string) (*Quote, error)
}

// Field identifies one column group of the wide response.
type Field string

const (
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

// Fields lists the canonical column order.
var Fields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// WideFrame is the wide, per-symbol-keyed shape of a batched history
// response: one shared ascending date axis, and for each symbol a column
// per field aligned to that axis. NaN marks a missing cell.
type WideFrame struct {
	Dates   []time.Time
	Columns map[string]map[Field][]float64
}

// NewWideFrame allocates a frame over the given date axis.
func NewWideFrame(dates []time.Time) *WideFrame {
	return &WideFrame{
		Dates:   dates,
		Columns: make(map[string]map[Field][]float64),
	}
}

// Set stores a value for (symbol, field, date index), allocating the
// symbol's columns on first use. Unset cells read back as NaN.
func (f *WideFrame) Set(symbol string, field Field, idx int, value float64) {
	if idx < 0 || idx >= len(f.Dates) {
		return
	}
	cols, ok := f.Columns[symbol]
	if !ok {
		cols = make(map[Field][]float64, len(Fields))
		f.Columns[symbol] = cols
	}
	series, ok := cols[field]
	if !ok {
		series = make([]float64, len(f.Dates))
		for i := range series {
			series[i] = math.NaN()
		}
		cols[field] = series
	}
	series[idx] = value
}

// Value reads the cell for (symbol, field, date index); NaN when absent.
func (f *WideFrame) Value(symbol string, field Field, idx int) float64 {
	if idx < 0 || idx >= len(f.Dates) {
		return math.NaN()
	}
	if series, ok := f.Columns[symbol][field]; ok {
		return series[idx]
	}
	return math.NaN()
}

// Symbols returns the symbols present in the frame in sorted order.
func (f *WideFrame) Symbols() []string {
	out := make([]string, 0, len(f.Columns))
	for sym := range f.Columns {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the frame carries no data at all.
func (f *WideFrame) Empty() bool {
	return f == nil || len(f.Dates) == 0 || len(f.Columns) == 0
}

// Quote is a live snapshot for one symbol. Fields are pointers so a field
// the provider omitted is distinguishable from a zero value.
type Quote struct {
	Symbol     string
	LastPrice  *float64
	DayHigh    *float64
	DayLow     *float64
	Open       *float64
	LastVolume *int64
}

// Complete reports whether every field required to build a provisional
// candle is present.
func (q *Quote) Complete() bool {
	if q == nil {
		return false
	}
	return q.LastPrice != nil && q.DayHigh != nil && q.DayLow != nil &&
		q.Open != nil && q.LastVolume != nil
}
