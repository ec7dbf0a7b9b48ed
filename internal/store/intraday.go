package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "marketsync/internal/cache"
)

// DefaultStreamMaxLen bounds the per-symbol recent candle history.
const DefaultStreamMaxLen = 512

// Candle is a provisional intraday observation for one symbol. Close is
// the last traded price and Volume the last cumulative session volume;
// each new observation supersedes the previous one.
type Candle struct {
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        int64
	LastUpdateUTC time.Time
}

// streamEntry is the msgpack payload stored in the per-symbol history.
type streamEntry struct {
	Open          float64 `msgpack:"open"`
	High          float64 `msgpack:"high"`
	Low           float64 `msgpack:"low"`
	Close         float64 `msgpack:"close"`
	Volume        int64   `msgpack:"volume"`
	LastUpdateUTC string  `msgpack:"last_update_utc"`
}

// IntradayStore keeps the latest provisional candle per symbol in Redis:
// a hash for O(1) latest reads and a time-ordered sorted set for the
// bounded recent history.
type IntradayStore struct {
	rds          *redis.Redis
	ttl          cachekeys.TTLSet
	streamMaxLen int
}

// IntradayOption customises the intraday store.
type IntradayOption func(*IntradayStore)

// WithStreamMaxLen bounds the retained history per symbol.
func WithStreamMaxLen(n int) IntradayOption {
	return func(s *IntradayStore) {
		if n > 0 {
			s.streamMaxLen = n
		}
	}
}

// NewIntradayStore wraps a Redis client.
func NewIntradayStore(rds *redis.Redis, ttl cachekeys.TTLSet, opts ...IntradayOption) *IntradayStore {
	s := &IntradayStore{
		rds:          rds,
		ttl:          ttl,
		streamMaxLen: DefaultStreamMaxLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordObservation writes one candle for a symbol: the latest hash is
// replaced and the candle is appended to the symbol's history, trimmed to
// the configured bound. One candle is one write unit; a failure leaves no
// partially-written observation behind in the history.
func (s *IntradayStore) RecordObservation(ctx context.Context, symbol string, candle Candle) error {
	observedAt := candle.LastUpdateUTC.UTC()
	entry := streamEntry{
		Open:          candle.Open,
		High:          candle.High,
		Low:           candle.Low,
		Close:         candle.Close,
		Volume:        candle.Volume,
		LastUpdateUTC: observedAt.Format(time.RFC3339Nano),
	}
	member, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("intraday: encode candle: %w", err)
	}

	streamKey := cachekeys.IntradayStreamKey(symbol)
	if _, err := s.rds.ZaddCtx(ctx, streamKey, observedAt.UnixMilli(), string(member)); err != nil {
		return fmt.Errorf("intraday: append candle %s: %w", symbol, err)
	}
	if _, err := s.rds.ZremrangebyrankCtx(ctx, streamKey, 0, int64(-s.streamMaxLen-1)); err != nil {
		return fmt.Errorf("intraday: trim stream %s: %w", symbol, err)
	}

	latestKey := cachekeys.IntradayLatestKey(symbol)
	fields := map[string]string{
		"open":            formatFloat(candle.Open),
		"high":            formatFloat(candle.High),
		"low":             formatFloat(candle.Low),
		"close":           formatFloat(candle.Close),
		"volume":          strconv.FormatInt(candle.Volume, 10),
		"last_update_utc": observedAt.Format(time.RFC3339Nano),
	}
	if err := s.rds.HmsetCtx(ctx, latestKey, fields); err != nil {
		return fmt.Errorf("intraday: set latest %s: %w", symbol, err)
	}
	if ttl := cachekeys.IntradayLatestTTL(s.ttl); ttl > 0 {
		if err := s.rds.ExpireCtx(ctx, latestKey, int(ttl/time.Second)); err != nil {
			return fmt.Errorf("intraday: expire latest %s: %w", symbol, err)
		}
	}
	return nil
}

// Latest returns the most recent candle for a symbol, or nil when none
// has been recorded.
func (s *IntradayStore) Latest(ctx context.Context, symbol string) (*Candle, error) {
	fields, err := s.rds.HgetallCtx(ctx, cachekeys.IntradayLatestKey(symbol))
	if err != nil {
		return nil, fmt.Errorf("intraday: read latest %s: %w", symbol, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return candleFromFields(fields)
}

// Range returns the retained candles with observation times in [from, to],
// oldest first.
func (s *IntradayStore) Range(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	pairs, err := s.rds.ZrangebyscoreWithScoresCtx(ctx, cachekeys.IntradayStreamKey(symbol), from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("intraday: range %s: %w", symbol, err)
	}
	out := make([]Candle, 0, len(pairs))
	for _, pair := range pairs {
		var entry streamEntry
		if err := msgpack.Unmarshal([]byte(pair.Key), &entry); err != nil {
			return nil, fmt.Errorf("intraday: decode candle %s: %w", symbol, err)
		}
		observedAt, err := time.Parse(time.RFC3339Nano, entry.LastUpdateUTC)
		if err != nil {
			return nil, fmt.Errorf("intraday: decode timestamp %s: %w", symbol, err)
		}
		out = append(out, Candle{
			Open:          entry.Open,
			High:          entry.High,
			Low:           entry.Low,
			Close:         entry.Close,
			Volume:        entry.Volume,
			LastUpdateUTC: observedAt,
		})
	}
	return out, nil
}

func candleFromFields(fields map[string]string) (*Candle, error) {
	var candle Candle
	var err error
	if candle.Open, err = strconv.ParseFloat(fields["open"], 64); err != nil {
		return nil, fmt.Errorf("intraday: parse open: %w", err)
	}
	if candle.High, err = strconv.ParseFloat(fields["high"], 64); err != nil {
		return nil, fmt.Errorf("intraday: parse high: %w", err)
	}
	if candle.Low, err = strconv.ParseFloat(fields["low"], 64); err != nil {
		return nil, fmt.Errorf("intraday: parse low: %w", err)
	}
	if candle.Close, err = strconv.ParseFloat(fields["close"], 64); err != nil {
		return nil, fmt.Errorf("intraday: parse close: %w", err)
	}
	if candle.Volume, err = strconv.ParseInt(fields["volume"], 10, 64); err != nil {
		return nil, fmt.Errorf("intraday: parse volume: %w", err)
	}
	if candle.LastUpdateUTC, err = time.Parse(time.RFC3339Nano, fields["last_update_utc"]); err != nil {
		return nil, fmt.Errorf("intraday: parse last_update_utc: %w", err)
	}
	return &candle, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
