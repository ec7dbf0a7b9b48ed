package pipeline

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

type fakeProvider struct {
	frame      *provider.WideFrame
	historyErr error
	calls      int
	gotSymbols []string
	gotStart   time.Time
	gotEnd     time.Time
}

func (f *fakeProvider) History(_ context.Context, symbols []string, start, end time.Time) (*provider.WideFrame, error) {
	f.calls++
	f.gotSymbols = symbols
	f.gotStart = start
	f.gotEnd = end
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.frame, nil
}

func (f *fakeProvider) Quote(context.Context, string) (*provider.Quote, error) {
	return nil, errors.New("not implemented")
}

type fakeHistory struct {
	lastDates    map[string]time.Time
	lastDatesErr error
	upsertErr    error
	upserts      [][]store.DailyBar
	gotTable     string
	gotChunk     int
}

func (f *fakeHistory) LastDates(_ context.Context, table string, _ []string) (map[string]time.Time, error) {
	f.gotTable = table
	if f.lastDatesErr != nil {
		return nil, f.lastDatesErr
	}
	return f.lastDates, nil
}

func (f *fakeHistory) BulkUpsert(_ context.Context, _ string, bars []store.DailyBar, chunkSize int) (int, error) {
	f.gotChunk = chunkSize
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserts = append(f.upserts, bars)
	return len(bars), nil
}

func seededRegistry(symbols ...string) *registry.Registry {
	reg := registry.New(nil)
	instruments := make([]registry.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		instruments = append(instruments, registry.Instrument{
			Symbol:       sym,
			Timezone:     "America/New_York",
			SessionOpen:  "09:30:00",
			SessionClose: "16:00:00",
			IsActive:     true,
		})
	}
	reg.Seed(instruments)
	return reg
}

// fullFrame builds a frame with every cell populated for the given days.
func fullFrame(symbols []string, days []time.Time) *provider.WideFrame {
	frame := provider.NewWideFrame(days)
	for _, sym := range symbols {
		for idx := range days {
			base := 100 + float64(idx)
			frame.Set(sym, provider.FieldOpen, idx, base)
			frame.Set(sym, provider.FieldHigh, idx, base+1)
			frame.Set(sym, provider.FieldLow, idx, base-1)
			frame.Set(sym, provider.FieldClose, idx, base+0.5)
			frame.Set(sym, provider.FieldVolume, idx, 1000)
		}
	}
	return frame
}

func testClock() func() time.Time {
	// Wednesday; window end resolves to Tuesday's settlement.
	return func() time.Time { return time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC) }
}

func TestPipeline_Run_PersistsCleanedRows(t *testing.T) {
	symbols := []string{"AAPL", "MSFT"}
	days := []time.Time{date(2024, 5, 13), date(2024, 5, 14)}
	prov := &fakeProvider{frame: fullFrame(symbols, days)}
	hist := &fakeHistory{lastDates: map[string]time.Time{
		"AAPL": date(2024, 5, 12),
		"MSFT": date(2024, 5, 12),
	}}

	p := New(seededRegistry(symbols...), prov, hist, Config{
		HistoryTable: "daily_prices",
		ChunkSize:    1000,
		FetchPadDays: 30,
	}, WithClock(testClock()))

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, 1, prov.calls)
	require.Equal(t, symbols, prov.gotSymbols)
	require.Equal(t, "daily_prices", hist.gotTable)
	require.Equal(t, 1000, hist.gotChunk)
	require.Len(t, hist.upserts, 1)
	// Window is [2024-05-13, 2024-05-14 22:00]; both days for both
	// symbols survive.
	require.Len(t, hist.upserts[0], 4)
}

func TestPipeline_Run_FetchWindowIsPadded(t *testing.T) {
	prov := &fakeProvider{frame: fullFrame([]string{"AAPL"}, []time.Time{date(2024, 5, 13)})}
	hist := &fakeHistory{lastDates: map[string]time.Time{"AAPL": date(2024, 5, 12)}}

	p := New(seededRegistry("AAPL"), prov, hist, Config{
		HistoryTable: "daily_prices",
		FetchPadDays: 30,
	}, WithClock(testClock()))

	require.NoError(t, p.Run(context.Background()))
	require.True(t, prov.gotStart.Equal(date(2024, 4, 13)), "got %s", prov.gotStart)
	require.True(t, prov.gotEnd.After(date(2024, 5, 14)), "got %s", prov.gotEnd)
}

func TestPipeline_Run_MissingWatermarkForcesFullHistory(t *testing.T) {
	prov := &fakeProvider{frame: fullFrame([]string{"AAPL", "NEWCO"}, []time.Time{date(2024, 5, 13)})}
	// NEWCO has no rows at all; the shared window must reach back to the
	// history floor even though AAPL is nearly current.
	hist := &fakeHistory{lastDates: map[string]time.Time{"AAPL": date(2024, 5, 12)}}

	p := New(seededRegistry("AAPL", "NEWCO"), prov, hist, Config{
		HistoryTable: "daily_prices",
		FetchPadDays: 30,
	}, WithClock(testClock()))

	require.NoError(t, p.Run(context.Background()))
	require.True(t, prov.gotStart.Before(date(2001, 1, 1)), "got %s", prov.gotStart)
}

func TestPipeline_Run_CaughtUpIsNoOp(t *testing.T) {
	prov := &fakeProvider{}
	hist := &fakeHistory{lastDates: map[string]time.Time{"AAPL": date(2024, 5, 14)}}

	p := New(seededRegistry("AAPL"), prov, hist, Config{HistoryTable: "daily_prices"},
		WithClock(testClock()))

	require.NoError(t, p.Run(context.Background()))
	require.Zero(t, prov.calls, "provider must not be contacted when caught up")
	require.Empty(t, hist.upserts)
}

func TestPipeline_Run_NoActiveInstruments(t *testing.T) {
	prov := &fakeProvider{}
	hist := &fakeHistory{}

	p := New(seededRegistry(), prov, hist, Config{HistoryTable: "daily_prices"},
		WithClock(testClock()))

	require.NoError(t, p.Run(context.Background()))
	require.Zero(t, prov.calls)
}

func TestPipeline_Run_FetchFailureLeavesStoreUntouched(t *testing.T) {
	prov := &fakeProvider{historyErr: errors.New("upstream 500")}
	hist := &fakeHistory{lastDates: map[string]time.Time{"AAPL": date(2024, 5, 12)}}

	p := New(seededRegistry("AAPL"), prov, hist, Config{HistoryTable: "daily_prices"},
		WithClock(testClock()))

	err := p.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, hist.upserts)
}

func TestPipeline_Run_NoDataIsFatal(t *testing.T) {
	prov := &fakeProvider{historyErr: provider.ErrNoData}
	hist := &fakeHistory{lastDates: map[string]time.Time{"AAPL": date(2024, 5, 12)}}

	p := New(seededRegistry("AAPL"), prov, hist, Config{HistoryTable: "daily_prices"},
		WithClock(testClock()))

	err := p.Run(context.Background())
	require.ErrorIs(t, err, provider.ErrNoData)
	require.Empty(t, hist.upserts)
}

func TestPipeline_Run_NothingLeftAfterCleaning(t *testing.T) {
	// Frame only covers days outside the persist window.
	prov := &fakeProvider{frame: fullFrame([]string{"AAPL"}, []time.Time{date(2024, 4, 1)})}
	hist := &fakeHistory{lastDates: map[string]time.Time{"AAPL": date(2024, 5, 12)}}

	p := New(seededRegistry("AAPL"), prov, hist, Config{HistoryTable: "daily_prices"},
		WithClock(testClock()))

	err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrNothingToPersist)
	require.Empty(t, hist.upserts)
}
