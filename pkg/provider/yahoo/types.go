package yahoo

// ChartResponse is the envelope of the chart endpoint. One result per
// requested symbol; symbols the venue has no data for are simply absent.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *APIError     `json:"error"`
	} `json:"chart"`
}

// ChartResult carries the daily series for a single symbol. Value arrays
// align with Timestamps; a null entry means the venue has no value for
// that day.
type ChartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Timezone string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote []QuoteIndicators `json:"quote"`
	} `json:"indicators"`
}

// QuoteIndicators groups the OHLCV arrays of one symbol.
type QuoteIndicators struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// QuoteResponse is the envelope of the live quote endpoint.
type QuoteResponse struct {
	QuoteResponse struct {
		Result []QuoteResult `json:"result"`
		Error  *APIError     `json:"error"`
	} `json:"quoteResponse"`
}

// QuoteResult is a live snapshot for one symbol. Optional fields stay nil
// when the venue omits them, which callers treat as an incomplete quote.
type QuoteResult struct {
	Symbol               string   `json:"symbol"`
	RegularMarketPrice   *float64 `json:"regularMarketPrice"`
	RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
	RegularMarketOpen    *float64 `json:"regularMarketOpen"`
	RegularMarketVolume  *int64   `json:"regularMarketVolume"`
}

// APIError is the provider's structured error payload.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
