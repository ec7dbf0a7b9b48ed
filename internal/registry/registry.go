package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marketsync/internal/model"
)

// Instrument is the trading-session metadata for one symbol. Session times
// stay as raw wall-clock strings; the market-hours gate parses them and
// treats malformed values as a closed session.
type Instrument struct {
	Symbol       string
	Timezone     string // IANA name, e.g. "America/New_York"
	SessionOpen  string // local wall clock, e.g. "09:30:00"
	SessionClose string // local wall clock, e.g. "16:00:00"
	Sector       string
	IsActive     bool
}

// Registry is an in-memory cache of active instruments. It is read-only
// from the pipelines' perspective; Refresh swaps in a new snapshot
// out-of-band between runs.
type Registry struct {
	instruments model.InstrumentsModel

	mu       sync.RWMutex
	snapshot map[string]Instrument
}

// New constructs a registry backed by the instruments table.
func New(instruments model.InstrumentsModel) *Registry {
	return &Registry{
		instruments: instruments,
		snapshot:    make(map[string]Instrument),
	}
}

// Refresh replaces the cached snapshot with the current active set.
func (r *Registry) Refresh(ctx context.Context) error {
	rows, err := r.instruments.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("registry: refresh instruments: %w", err)
	}
	next := make(map[string]Instrument, len(rows))
	for _, row := range rows {
		inst := Instrument{
			Symbol:       row.Symbol,
			Timezone:     row.Timezone,
			SessionOpen:  row.SessionOpen,
			SessionClose: row.SessionClose,
			IsActive:     row.IsActive,
		}
		if row.Sector.Valid {
			inst.Sector = row.Sector.String
		}
		next[inst.Symbol] = inst
	}
	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()
	return nil
}

// Active returns the cached active instruments keyed by symbol.
func (r *Registry) Active() map[string]Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Instrument, len(r.snapshot))
	for sym, inst := range r.snapshot {
		out[sym] = inst
	}
	return out
}

// Symbols returns the cached active symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot))
	for sym := range r.snapshot {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Lookup returns one instrument's metadata from the snapshot.
func (r *Registry) Lookup(symbol string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.snapshot[symbol]
	return inst, ok
}

// Seed replaces the snapshot directly, bypassing the store. Intended for
// tests and fixtures.
func (r *Registry) Seed(instruments []Instrument) {
	next := make(map[string]Instrument, len(instruments))
	for _, inst := range instruments {
		next[inst.Symbol] = inst
	}
	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()
}
