package pipeline

import (
	"math"
	"testing"
	"time"

	"marketsync/internal/store"
)

func bar(day time.Time, sym string, v float64) store.DailyBar {
	return store.DailyBar{
		CollectDate: day,
		Ticker:      sym,
		Open:        v,
		High:        v,
		Low:         v,
		Close:       v,
		Volume:      v,
	}
}

func TestFillMissing_ForwardThenBackward(t *testing.T) {
	nan := math.NaN()
	start, end := date(2024, 5, 1), date(2024, 5, 5)
	bars := []store.DailyBar{
		bar(date(2024, 5, 1), "AAPL", nan), // leading gap: backward fill
		bar(date(2024, 5, 2), "AAPL", 10),
		bar(date(2024, 5, 3), "AAPL", nan), // interior gap: forward fill
		bar(date(2024, 5, 4), "AAPL", 12),
		bar(date(2024, 5, 5), "AAPL", nan), // trailing gap: forward fill
	}

	out := FillMissing(bars, start, end)
	if len(out) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(out))
	}
	wants := []float64{10, 10, 10, 12, 12}
	for i, want := range wants {
		if out[i].Close != want {
			t.Fatalf("row %d close got %v want %v", i, out[i].Close, want)
		}
	}
}

func TestFillMissing_InteriorGapPrefersPriorValue(t *testing.T) {
	// Forward fill runs first, so an interior gap inherits the value
	// before it, not the one after.
	nan := math.NaN()
	bars := []store.DailyBar{
		bar(date(2024, 5, 1), "AAPL", 10),
		bar(date(2024, 5, 2), "AAPL", nan),
		bar(date(2024, 5, 3), "AAPL", 20),
	}
	out := FillMissing(bars, date(2024, 5, 1), date(2024, 5, 3))
	if out[1].Close != 10 {
		t.Fatalf("interior gap got %v want 10", out[1].Close)
	}
}

func TestFillMissing_NoCrossSymbolFill(t *testing.T) {
	nan := math.NaN()
	bars := []store.DailyBar{
		bar(date(2024, 5, 1), "AAPL", 10),
		bar(date(2024, 5, 1), "MSFT", nan),
		bar(date(2024, 5, 2), "AAPL", 11),
		bar(date(2024, 5, 2), "MSFT", nan),
	}
	out := FillMissing(bars, date(2024, 5, 1), date(2024, 5, 2))
	// MSFT never had a value anywhere, so its rows are dropped rather
	// than borrowing AAPL's.
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	for _, b := range out {
		if b.Ticker != "AAPL" {
			t.Fatalf("unexpected surviving row for %s", b.Ticker)
		}
	}
}

func TestFillMissing_ClipsToWindow(t *testing.T) {
	bars := []store.DailyBar{
		bar(date(2024, 4, 20), "AAPL", 9), // fetch padding, outside window
		bar(date(2024, 5, 1), "AAPL", 10),
		bar(date(2024, 5, 2), "AAPL", 11),
		bar(date(2024, 5, 6), "AAPL", 12), // past the window end
	}
	out := FillMissing(bars, date(2024, 5, 1), date(2024, 5, 5))
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if !out[0].CollectDate.Equal(date(2024, 5, 1)) || !out[1].CollectDate.Equal(date(2024, 5, 2)) {
		t.Fatalf("unexpected surviving dates: %s, %s", out[0].CollectDate, out[1].CollectDate)
	}
}

func TestFillMissing_PaddingSeedsForwardFill(t *testing.T) {
	// A value in the padded fetch margin carries into the window even
	// though the padded row itself is clipped away.
	nan := math.NaN()
	bars := []store.DailyBar{
		bar(date(2024, 4, 30), "AAPL", 42),
		bar(date(2024, 5, 1), "AAPL", nan),
	}
	out := FillMissing(bars, date(2024, 5, 1), date(2024, 5, 5))
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if out[0].Close != 42 {
		t.Fatalf("padded value not carried forward, got %v", out[0].Close)
	}
}

func TestFillMissing_InputUntouched(t *testing.T) {
	nan := math.NaN()
	bars := []store.DailyBar{
		bar(date(2024, 5, 1), "AAPL", nan),
		bar(date(2024, 5, 2), "AAPL", 10),
	}
	_ = FillMissing(bars, date(2024, 5, 1), date(2024, 5, 2))
	if !math.IsNaN(bars[0].Close) {
		t.Fatalf("input slice was mutated")
	}
}
