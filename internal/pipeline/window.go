package pipeline

import (
	"errors"
	"time"
)

// ErrEmptyWindow indicates the resolved ingest window has no span: the
// store is already caught up to the provider's settled data. Callers treat
// it as a no-op, not a failure.
var ErrEmptyWindow = errors.New("pipeline: empty ingest window")

// minStartDate is the provider-defined floor when a symbol has no history
// persisted at all.
var minStartDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// settlementHourUTC anchors the end of a settled trading day. Daily bars
// for day D are final only after the provider's end-of-day cutoff.
const settlementHourUTC = 22

// DefaultFetchPadDays is the history padding handed to the provider so
// the imputer has prior values to carry forward into the window.
const DefaultFetchPadDays = 30

// Window is a resolved ingest range. [Start, End] is what gets persisted;
// the padded fetch range handed to the provider is wider on both sides.
type Window struct {
	Start time.Time
	End   time.Time

	offsetDays int
	padDays    int
}

// ResolveWindow computes the next ingest window from the last persisted
// date (zero means no history) and the current instant. The end anchors to
// the settlement cutoff of "yesterday" in the provider's convention:
// Monday steps back over the weekend, Sunday over Saturday, and one buffer
// day applies in all cases.
func ResolveWindow(lastDate, now time.Time, padDays int) (Window, error) {
	start := minStartDate
	if !lastDate.IsZero() {
		start = lastDate.UTC().AddDate(0, 0, 1)
	}
	if padDays <= 0 {
		padDays = DefaultFetchPadDays
	}

	now = now.UTC()
	offset := 0
	switch now.Weekday() {
	case time.Monday:
		offset = 2
	case time.Sunday:
		offset = 1
	}
	offset++

	anchor := time.Date(now.Year(), now.Month(), now.Day(), settlementHourUTC, 0, 0, 0, time.UTC)
	end := anchor.AddDate(0, 0, -offset)

	if !start.Before(end) {
		return Window{}, ErrEmptyWindow
	}
	return Window{Start: start, End: end, offsetDays: offset, padDays: padDays}, nil
}

// FetchStart is the padded lower bound handed to the provider.
func (w Window) FetchStart() time.Time {
	return w.Start.AddDate(0, 0, -w.padDays)
}

// FetchEnd is the padded upper bound handed to the provider.
func (w Window) FetchEnd() time.Time {
	return w.End.AddDate(0, 0, w.offsetDays)
}
