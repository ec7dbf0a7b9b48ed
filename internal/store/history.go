package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// DefaultChunkSize bounds one upsert transaction when the caller does not
// override it.
const DefaultChunkSize = 1000

// DailyBar is one tidy row of the historical store: a single symbol's
// OHLCV for one calendar day.
type DailyBar struct {
	CollectDate time.Time
	Ticker      string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// HistoryStore persists daily bars into Postgres.
type HistoryStore struct {
	conn sqlx.SqlConn
}

// NewHistoryStore wraps a SQL connection.
func NewHistoryStore(conn sqlx.SqlConn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

type lastDateRow struct {
	Ticker   string    `db:"ticker"`
	LastDate time.Time `db:"last_date"`
}

// LastDates returns the most recent persisted collect_date per symbol.
// Symbols with no rows are absent from the result.
func (s *HistoryStore) LastDates(ctx context.Context, table string, symbols []string) (map[string]time.Time, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return map[string]time.Time{}, nil
	}
	placeholders := make([]string, len(symbols))
	args := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = sym
	}
	query := fmt.Sprintf(
		"SELECT ticker, MAX(collect_date) AS last_date FROM %s WHERE ticker IN (%s) GROUP BY ticker",
		table, strings.Join(placeholders, ", "))

	var rows []lastDateRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("history: last dates: %w", err)
	}
	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		out[row.Ticker] = row.LastDate.UTC()
	}
	return out, nil
}

// BulkUpsert writes bars in fixed-size chunks. Each chunk runs in its own
// transaction with insert-or-update semantics on (collect_date, ticker),
// so re-ingesting an overlapping window overwrites rather than duplicates,
// and a failing chunk never corrupts chunks already committed.
func (s *HistoryStore) BulkUpsert(ctx context.Context, table string, bars []DailyBar, chunkSize int) (int, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	written := 0
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		chunk := bars[start:end]
		err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
			query, args := upsertStatement(table, chunk)
			_, execErr := session.ExecCtx(ctx, query, args...)
			return execErr
		})
		if err != nil {
			return written, fmt.Errorf("history: upsert chunk [%d:%d): %w", start, end, err)
		}
		written += len(chunk)
	}
	return written, nil
}

func upsertStatement(table string, chunk []DailyBar) (string, []interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `INSERT INTO %s (collect_date, ticker, open, high, low, close, volume) VALUES `, table)
	args := make([]interface{}, 0, len(chunk)*7)
	for i, bar := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args,
			bar.CollectDate.UTC(),
			bar.Ticker,
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			int64(bar.Volume),
		)
	}
	sb.WriteString(`
ON CONFLICT (collect_date, ticker) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume`)
	return sb.String(), args
}

func validateTable(table string) error {
	trimmed := strings.TrimPrefix(strings.TrimSpace(table), "public.")
	if !identPattern.MatchString(trimmed) {
		return fmt.Errorf("history: invalid table name %q", table)
	}
	return nil
}
