package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ InstrumentsModel = (*customInstrumentsModel)(nil)

var instrumentsFieldNames = []string{"symbol", "timezone", "session_open", "session_close", "sector", "is_active"}

type (
	// InstrumentsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customInstrumentsModel.
	InstrumentsModel interface {
		FindOne(ctx context.Context, symbol string) (*Instruments, error)
		FindActive(ctx context.Context) ([]*Instruments, error)
		Upsert(ctx context.Context, data *Instruments) error
	}

	customInstrumentsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// Instruments mirrors one row of the instruments table.
	Instruments struct {
		Symbol       string         `db:"symbol"`
		Timezone     string         `db:"timezone"`
		SessionOpen  string         `db:"session_open"`  // local wall clock, HH:MM:SS
		SessionClose string         `db:"session_close"` // local wall clock, HH:MM:SS
		Sector       sql.NullString `db:"sector"`
		IsActive     bool           `db:"is_active"`
	}
)

// NewInstrumentsModel returns a model for the database table.
func NewInstrumentsModel(conn sqlx.SqlConn) InstrumentsModel {
	return &customInstrumentsModel{
		conn:  conn,
		table: "public.instruments",
	}
}

func (m *customInstrumentsModel) FindOne(ctx context.Context, symbol string) (*Instruments, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE symbol = $1 LIMIT 1", strings.Join(instrumentsFieldNames, ", "), m.table)
	var resp Instruments
	err := m.conn.QueryRowCtx(ctx, &resp, query, symbol)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *customInstrumentsModel) FindActive(ctx context.Context) ([]*Instruments, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE is_active = TRUE ORDER BY symbol", strings.Join(instrumentsFieldNames, ", "), m.table)
	var resp []*Instruments
	if err := m.conn.QueryRowsCtx(ctx, &resp, query); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *customInstrumentsModel) Upsert(ctx context.Context, data *Instruments) error {
	query := fmt.Sprintf(`
INSERT INTO %s (symbol, timezone, session_open, session_close, sector, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (symbol) DO UPDATE SET
    timezone = EXCLUDED.timezone,
    session_open = EXCLUDED.session_open,
    session_close = EXCLUDED.session_close,
    sector = EXCLUDED.sector,
    is_active = EXCLUDED.is_active`, m.table)
	_, err := m.conn.ExecCtx(ctx, query,
		data.Symbol, data.Timezone, data.SessionOpen, data.SessionClose, data.Sector, data.IsActive)
	return err
}
