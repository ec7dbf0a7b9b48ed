package poller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketsync/internal/registry"
	"marketsync/internal/store"
	"marketsync/pkg/provider"
)

// Status classifies the outcome of processing one instrument in a cycle.
type Status string

const (
	// StatusOK means a provisional candle was recorded.
	StatusOK Status = "ok"
	// StatusSkippedClosed means the instrument's session was not open.
	StatusSkippedClosed Status = "skipped_closed"
	// StatusSkippedSparse means the live quote was missing required fields.
	StatusSkippedSparse Status = "skipped_sparse"
	// StatusFailed means the fetch or the write errored; Err carries why.
	StatusFailed Status = "failed"
)

// Result is the explicit per-instrument outcome of a poll cycle. Failure
// handling is part of the contract instead of an exception swallowed by
// the loop: the cycle aggregates results and always runs to the end.
type Result struct {
	Symbol string
	Status Status
	Err    error
}

// CandleRecorder is the slice of the intraday store the poller writes
// to. *store.IntradayStore satisfies it.
type CandleRecorder interface {
	RecordObservation(ctx context.Context, symbol string, candle store.Candle) error
}

// Poller drives one real-time polling cycle: gate instruments on their
// session hours, fetch a live quote for each open one, and record the
// provisional candle. Instruments are processed strictly sequentially
// with a pacer between provider calls.
type Poller struct {
	registry *registry.Registry
	provider provider.Provider
	intraday CandleRecorder
	pacer    *Pacer
	now      func() time.Time
}

// Option customises a Poller.
type Option func(*Poller)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPacer overrides the inter-instrument pacer.
func WithPacer(pacer *Pacer) Option {
	return func(p *Poller) {
		if pacer != nil {
			p.pacer = pacer
		}
	}
}

// New wires a poller.
func New(reg *registry.Registry, prov provider.Provider, intraday CandleRecorder, opts ...Option) *Poller {
	p := &Poller{
		registry: reg,
		provider: prov,
		intraday: intraday,
		pacer:    NewPacer(0),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cycle runs one poll pass over the active instruments and returns the
// per-instrument results. A single instrument's failure never aborts the
// cycle; when no session is open the provider is not contacted at all.
func (p *Poller) Cycle(ctx context.Context) []Result {
	logger := logx.WithContext(ctx)
	instruments := p.registry.Active()
	now := p.now()

	symbols := make([]string, 0, len(instruments))
	for sym := range instruments {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	results := make([]Result, 0, len(symbols))
	open := make([]registry.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		inst := instruments[sym]
		if SessionOpen(inst, now) {
			open = append(open, inst)
			continue
		}
		logger.Slowf("poller: %s session closed, skipping", sym)
		results = append(results, Result{Symbol: sym, Status: StatusSkippedClosed})
	}

	if len(open) == 0 {
		logger.Info("poller: no sessions currently open, skipping cycle")
		return results
	}
	logger.Infof("poller: %d of %d instruments open", len(open), len(symbols))

	for i, inst := range open {
		result := p.processInstrument(ctx, inst)
		results = append(results, result)
		switch result.Status {
		case StatusOK:
			logger.Infof("poller: updated %s", inst.Symbol)
		case StatusSkippedSparse:
			logger.Slowf("poller: quote for %s missing required fields, skipping", inst.Symbol)
		case StatusFailed:
			logger.Errorf("poller: %s: %v", inst.Symbol, result.Err)
		}
		if i < len(open)-1 && !p.pacer.Wait(ctx) {
			return results
		}
	}
	return results
}

func (p *Poller) processInstrument(ctx context.Context, inst registry.Instrument) Result {
	quote, err := p.provider.Quote(ctx, inst.Symbol)
	if err != nil {
		return Result{Symbol: inst.Symbol, Status: StatusFailed, Err: fmt.Errorf("fetch quote: %w", err)}
	}
	if !quote.Complete() {
		return Result{Symbol: inst.Symbol, Status: StatusSkippedSparse}
	}
	candle := store.Candle{
		Open:          *quote.Open,
		High:          *quote.DayHigh,
		Low:           *quote.DayLow,
		Close:         *quote.LastPrice,
		Volume:        *quote.LastVolume,
		LastUpdateUTC: p.now().UTC(),
	}
	if err := p.intraday.RecordObservation(ctx, inst.Symbol, candle); err != nil {
		return Result{Symbol: inst.Symbol, Status: StatusFailed, Err: fmt.Errorf("record candle: %w", err)}
	}
	return Result{Symbol: inst.Symbol, Status: StatusOK}
}
