package poller

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketsync/internal/registry"
)

// SessionOpen reports whether an instrument's exchange session is open at
// the given instant. The check happens in the instrument's local timezone:
// weekdays only, local time inside [session open, session close). Any
// failure to resolve the timezone or the session times is logged and
// counts as closed.
func SessionOpen(inst registry.Instrument, now time.Time) bool {
	loc, err := time.LoadLocation(inst.Timezone)
	if err != nil {
		logx.Errorf("gate: %s: resolve timezone %q: %v", inst.Symbol, inst.Timezone, err)
		return false
	}
	local := now.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}

	openSec, err := parseClock(inst.SessionOpen)
	if err != nil {
		logx.Errorf("gate: %s: parse session open %q: %v", inst.Symbol, inst.SessionOpen, err)
		return false
	}
	closeSec, err := parseClock(inst.SessionClose)
	if err != nil {
		logx.Errorf("gate: %s: parse session close %q: %v", inst.Symbol, inst.SessionClose, err)
		return false
	}

	cur := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return cur >= openSec && cur < closeSec
}

// parseClock converts "HH:MM" or "HH:MM:SS" into seconds of day.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("malformed clock value %q: %w", s, err)
		}
		values[i] = v
	}
	hour, minute, second := values[0], values[1], values[2]
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return hour*3600 + minute*60 + second, nil
}
