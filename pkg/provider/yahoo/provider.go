package yahoo

import (
	"context"
	"net/http"
	"sort"
	"time"

	"marketsync/pkg/provider"
)

const defaultProviderTimeout = 20 * time.Second

// Provider wraps the Yahoo client behind the generic provider contract.
type Provider struct {
	client  *Client
	timeout time.Duration
}

type providerConfig struct {
	timeout      time.Duration
	clientConfig []Option
}

// ProviderOption customises the Yahoo provider.
type ProviderOption func(*providerConfig)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithClientOptions passes options to the underlying client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientConfig = append(cfg.clientConfig, options...)
	}
}

// NewProvider constructs a Yahoo market data provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{
		timeout: defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Provider{
		client:  NewClient(cfg.clientConfig...),
		timeout: cfg.timeout,
	}
}

func init() {
	provider.RegisterProvider("yahoo", func(name string, cfg *provider.ProviderConfig) (provider.Provider, error) {
		opts := []ProviderOption{}
		clientOptions := []Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.BaseURL != "" {
			clientOptions = append(clientOptions, WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxRetries > 0 {
			clientOptions = append(clientOptions, WithMaxRetries(cfg.MaxRetries))
		}
		if len(clientOptions) > 0 {
			opts = append(opts, WithClientOptions(clientOptions...))
		}
		return NewProvider(opts...), nil
	})
}

// History implements provider.Provider. The whole symbol batch goes out as
// one chart request; a response with no rows at all maps to ErrNoData.
func (p *Provider) History(ctx context.Context, symbols []string, start, end time.Time) (*provider.WideFrame, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	payload, err := p.client.GetChart(ctx, symbols, start, end)
	if err != nil {
		return nil, err
	}
	frame := frameFromChart(payload)
	if frame.Empty() {
		return nil, provider.ErrNoData
	}
	return frame, nil
}

// Quote implements provider.Provider.
func (p *Provider) Quote(ctx context.Context, symbol string) (*provider.Quote, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	result, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &provider.Quote{
		Symbol:     result.Symbol,
		LastPrice:  result.RegularMarketPrice,
		DayHigh:    result.RegularMarketDayHigh,
		DayLow:     result.RegularMarketDayLow,
		Open:       result.RegularMarketOpen,
		LastVolume: result.RegularMarketVolume,
	}, nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

// frameFromChart merges per-symbol chart results onto one shared date axis.
// Symbols observe different holidays, so the axis is the union of all
// calendar days seen; days a symbol never traded stay NaN for it.
func frameFromChart(payload *ChartResponse) *provider.WideFrame {
	results := payload.Chart.Result

	daySet := make(map[time.Time]struct{})
	for _, result := range results {
		for _, ts := range result.Timestamps {
			daySet[dayOf(ts)] = struct{}{}
		}
	}
	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	dayIndex := make(map[time.Time]int, len(days))
	for i, day := range days {
		dayIndex[day] = i
	}

	frame := provider.NewWideFrame(days)
	for _, result := range results {
		symbol := result.Meta.Symbol
		if symbol == "" || len(result.Indicators.Quote) == 0 {
			continue
		}
		quote := result.Indicators.Quote[0]
		for i, ts := range result.Timestamps {
			idx, ok := dayIndex[dayOf(ts)]
			if !ok {
				continue
			}
			setCell(frame, symbol, provider.FieldOpen, idx, quote.Open, i)
			setCell(frame, symbol, provider.FieldHigh, idx, quote.High, i)
			setCell(frame, symbol, provider.FieldLow, idx, quote.Low, i)
			setCell(frame, symbol, provider.FieldClose, idx, quote.Close, i)
			setCell(frame, symbol, provider.FieldVolume, idx, quote.Volume, i)
		}
	}
	return frame
}

func setCell(frame *provider.WideFrame, symbol string, field provider.Field, idx int, series []*float64, i int) {
	if i >= len(series) || series[i] == nil {
		return
	}
	frame.Set(symbol, field, idx, *series[i])
}

// dayOf truncates a unix timestamp to its UTC calendar day.
func dayOf(ts int64) time.Time {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
