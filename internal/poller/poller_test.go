package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketsync/internal/registry"
	"marketsync/internal/store"
	"marketsync/pkg/provider"
)

type fakeQuoter struct {
	quotes map[string]*provider.Quote
	errs   map[string]error
	calls  []string
}

func (f *fakeQuoter) History(context.Context, []string, time.Time, time.Time) (*provider.WideFrame, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQuoter) Quote(_ context.Context, symbol string) (*provider.Quote, error) {
	f.calls = append(f.calls, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.quotes[symbol], nil
}

type fakeRecorder struct {
	recorded map[string]store.Candle
	errs     map[string]error
}

func (f *fakeRecorder) RecordObservation(_ context.Context, symbol string, candle store.Candle) error {
	if err := f.errs[symbol]; err != nil {
		return err
	}
	if f.recorded == nil {
		f.recorded = make(map[string]store.Candle)
	}
	f.recorded[symbol] = candle
	return nil
}

func ptr[T any](v T) *T { return &v }

func fullQuote(symbol string, last float64) *provider.Quote {
	return &provider.Quote{
		Symbol:     symbol,
		LastPrice:  ptr(last),
		DayHigh:    ptr(last + 1),
		DayLow:     ptr(last - 1),
		Open:       ptr(last - 0.5),
		LastVolume: ptr(int64(1000)),
	}
}

func openClock() func() time.Time {
	// Wednesday 12:00 New York.
	return func() time.Time { return time.Date(2024, 5, 15, 16, 0, 0, 0, time.UTC) }
}

func pollRegistry(instruments ...registry.Instrument) *registry.Registry {
	reg := registry.New(nil)
	reg.Seed(instruments)
	return reg
}

func statusBySymbol(results []Result) map[string]Status {
	out := make(map[string]Status, len(results))
	for _, r := range results {
		out[r.Symbol] = r.Status
	}
	return out
}

func TestCycle_RecordsOpenInstruments(t *testing.T) {
	quoter := &fakeQuoter{quotes: map[string]*provider.Quote{
		"AAPL": fullQuote("AAPL", 190),
		"MSFT": fullQuote("MSFT", 420),
	}}
	recorder := &fakeRecorder{}

	p := New(pollRegistry(nyse("AAPL"), nyse("MSFT")), quoter, recorder,
		WithClock(openClock()))

	results := p.Cycle(context.Background())
	statuses := statusBySymbol(results)
	require.Equal(t, StatusOK, statuses["AAPL"])
	require.Equal(t, StatusOK, statuses["MSFT"])

	require.Len(t, recorder.recorded, 2)
	candle := recorder.recorded["AAPL"]
	require.Equal(t, 190.0, candle.Close)
	require.Equal(t, 191.0, candle.High)
	require.Equal(t, 189.0, candle.Low)
	require.Equal(t, 189.5, candle.Open)
	require.Equal(t, int64(1000), candle.Volume)
	require.Equal(t, openClock()().UTC(), candle.LastUpdateUTC)
}

func TestCycle_ClosedSessionSkipsProvider(t *testing.T) {
	quoter := &fakeQuoter{}
	recorder := &fakeRecorder{}

	// Saturday: every session closed.
	saturday := func() time.Time { return time.Date(2024, 5, 18, 16, 0, 0, 0, time.UTC) }
	p := New(pollRegistry(nyse("AAPL"), nyse("MSFT")), quoter, recorder,
		WithClock(saturday))

	results := p.Cycle(context.Background())
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, StatusSkippedClosed, r.Status)
	}
	require.Empty(t, quoter.calls, "provider must not be contacted when every session is closed")
}

func TestCycle_SparseQuoteSkipped(t *testing.T) {
	sparse := fullQuote("AAPL", 190)
	sparse.LastVolume = nil
	quoter := &fakeQuoter{quotes: map[string]*provider.Quote{
		"AAPL": sparse,
		"MSFT": fullQuote("MSFT", 420),
	}}
	recorder := &fakeRecorder{}

	p := New(pollRegistry(nyse("AAPL"), nyse("MSFT")), quoter, recorder,
		WithClock(openClock()))

	statuses := statusBySymbol(p.Cycle(context.Background()))
	require.Equal(t, StatusSkippedSparse, statuses["AAPL"])
	require.Equal(t, StatusOK, statuses["MSFT"])
	require.NotContains(t, recorder.recorded, "AAPL")
}

func TestCycle_FailureDoesNotAbortCycle(t *testing.T) {
	quoter := &fakeQuoter{
		quotes: map[string]*provider.Quote{"MSFT": fullQuote("MSFT", 420)},
		errs:   map[string]error{"AAPL": errors.New("rate limited")},
	}
	recorder := &fakeRecorder{}

	p := New(pollRegistry(nyse("AAPL"), nyse("MSFT")), quoter, recorder,
		WithClock(openClock()))

	results := p.Cycle(context.Background())
	statuses := statusBySymbol(results)
	require.Equal(t, StatusFailed, statuses["AAPL"])
	require.Equal(t, StatusOK, statuses["MSFT"])
	require.Equal(t, []string{"AAPL", "MSFT"}, quoter.calls)

	for _, r := range results {
		if r.Symbol == "AAPL" {
			require.Error(t, r.Err)
		}
	}
}

func TestCycle_RecordFailureReported(t *testing.T) {
	quoter := &fakeQuoter{quotes: map[string]*provider.Quote{"AAPL": fullQuote("AAPL", 190)}}
	recorder := &fakeRecorder{errs: map[string]error{"AAPL": errors.New("redis down")}}

	p := New(pollRegistry(nyse("AAPL")), quoter, recorder, WithClock(openClock()))

	statuses := statusBySymbol(p.Cycle(context.Background()))
	require.Equal(t, StatusFailed, statuses["AAPL"])
}

func TestCycle_MixedOpenClosed(t *testing.T) {
	tokyo := registry.Instrument{
		Symbol:       "7203.T",
		Timezone:     "Asia/Tokyo",
		SessionOpen:  "09:00:00",
		SessionClose: "15:00:00",
		IsActive:     true,
	}
	quoter := &fakeQuoter{quotes: map[string]*provider.Quote{"AAPL": fullQuote("AAPL", 190)}}
	recorder := &fakeRecorder{}

	// 16:00 UTC: New York is open, Tokyo is closed.
	p := New(pollRegistry(nyse("AAPL"), tokyo), quoter, recorder, WithClock(openClock()))

	statuses := statusBySymbol(p.Cycle(context.Background()))
	require.Equal(t, StatusOK, statuses["AAPL"])
	require.Equal(t, StatusSkippedClosed, statuses["7203.T"])
	require.Equal(t, []string{"AAPL"}, quoter.calls)
}

func TestCycle_CancelledContextStopsPacing(t *testing.T) {
	quoter := &fakeQuoter{quotes: map[string]*provider.Quote{
		"AAPL": fullQuote("AAPL", 190),
		"MSFT": fullQuote("MSFT", 420),
	}}
	recorder := &fakeRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(pollRegistry(nyse("AAPL"), nyse("MSFT")), quoter, recorder,
		WithClock(openClock()), WithPacer(NewPacer(time.Hour)))

	results := p.Cycle(ctx)
	// The first instrument completes; the pacer observes the cancelled
	// context before the second one.
	require.Len(t, results, 1)
	require.Equal(t, []string{"AAPL"}, quoter.calls)
}
