package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketsync/internal/registry"
	"marketsync/internal/store"
	"marketsync/pkg/provider"
)

// ErrNothingToPersist indicates imputation and clipping left no rows to
// write; the run stops before touching the store.
var ErrNothingToPersist = errors.New("pipeline: no rows left after cleaning")

// HistoryStore is the slice of the persistence layer the pipeline needs.
// *store.HistoryStore satisfies it.
type HistoryStore interface {
	LastDates(ctx context.Context, table string, symbols []string) (map[string]time.Time, error)
	BulkUpsert(ctx context.Context, table string, bars []store.DailyBar, chunkSize int) (int, error)
}

// Config tunes one backfill pipeline.
type Config struct {
	HistoryTable string
	ChunkSize    int
	FetchPadDays int
	Precision    Precision
}

// Pipeline is the daily history backfill: resolve the ingest window from
// the store's watermarks, fetch a padded batch from the provider,
// normalize, reconcile gaps, and bulk-upsert the clipped rows.
type Pipeline struct {
	registry *registry.Registry
	provider provider.Provider
	history  HistoryStore
	cfg      Config
	now      func() time.Time
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New wires a backfill pipeline.
func New(reg *registry.Registry, prov provider.Provider, history HistoryStore, cfg Config, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: reg,
		provider: prov,
		history:  history,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one backfill pass. An empty window and an empty active set
// are no-ops, not errors. Provider and store failures are returned for the
// boundary to log; nothing is written when they occur mid-run except
// already-committed chunks, which the upsert keys keep consistent.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := logx.WithContext(ctx)

	symbols := p.registry.Symbols()
	if len(symbols) == 0 {
		logger.Info("backfill: no active instruments, skipping run")
		return nil
	}

	lastDates, err := p.history.LastDates(ctx, p.cfg.HistoryTable, symbols)
	if err != nil {
		return fmt.Errorf("resolve watermarks: %w", err)
	}
	watermark := sharedWatermark(symbols, lastDates)

	window, err := ResolveWindow(watermark, p.now(), p.cfg.FetchPadDays)
	if errors.Is(err, ErrEmptyWindow) {
		logger.Info("backfill: store already caught up, skipping run")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Infof("backfill: collecting %s..%s for %d instruments",
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"), len(symbols))

	frame, err := p.provider.History(ctx, symbols, window.FetchStart(), window.FetchEnd())
	if err != nil {
		return fmt.Errorf("fetch history batch: %w", err)
	}

	bars := Normalize(frame, p.cfg.Precision)
	cleaned := FillMissing(bars, window.Start, window.End)
	if len(cleaned) == 0 {
		return ErrNothingToPersist
	}

	written, err := p.history.BulkUpsert(ctx, p.cfg.HistoryTable, cleaned, p.cfg.ChunkSize)
	if err != nil {
		return fmt.Errorf("load history rows: %w", err)
	}
	logger.Infof("backfill: saved %d rows into %s", written, p.cfg.HistoryTable)
	return nil
}

// RunOnce is the run boundary: every failure class is logged and absorbed
// here, so callers schedule runs without error plumbing.
func (p *Pipeline) RunOnce(ctx context.Context) {
	if err := p.Run(ctx); err != nil {
		logx.WithContext(ctx).Errorf("backfill: run failed: %v", err)
	}
}

// sharedWatermark picks the single watermark the batched fetch resolves
// against: the oldest of the per-symbol last dates, so the window always
// covers the most stale symbol. Any symbol with no history at all forces a
// full-history window; the keyed upsert keeps the resulting overlap cheap
// for the symbols that were already current.
func sharedWatermark(symbols []string, lastDates map[string]time.Time) time.Time {
	var oldest time.Time
	for i, sym := range symbols {
		last, ok := lastDates[sym]
		if !ok {
			return time.Time{}
		}
		if i == 0 || last.Before(oldest) {
			oldest = last
		}
	}
	return oldest
}
