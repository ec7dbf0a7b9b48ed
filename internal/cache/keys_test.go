package cache

import (
	"testing"
	"time"

	"marketsync/internal/config"
)

func TestIntradayKeys(t *testing.T) {
	if got := IntradayLatestKey("AAPL"); got != "marketsync:intraday:latest:AAPL" {
		t.Fatalf("latest key got %q", got)
	}
	if got := IntradayStreamKey("AAPL"); got != "marketsync:intraday:stream:AAPL" {
		t.Fatalf("stream key got %q", got)
	}
	// Blank segments collapse instead of producing "::".
	if got := IntradayLatestKey("  "); got != "marketsync:intraday:latest" {
		t.Fatalf("blank symbol key got %q", got)
	}
}

func TestNewTTLSet(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{Short: 5, Medium: 90, Long: 600})
	if ttl.Short != 5*time.Second || ttl.Medium != 90*time.Second || ttl.Long != 600*time.Second {
		t.Fatalf("ttl set got %+v", ttl)
	}

	defaults := NewTTLSet(config.CacheTTL{})
	if defaults.Short != 10*time.Second || defaults.Medium != time.Minute || defaults.Long != 5*time.Minute {
		t.Fatalf("ttl defaults got %+v", defaults)
	}

	disabled := NewTTLSet(config.CacheTTL{Short: -1, Medium: 60, Long: 300})
	if disabled.Short != 0 {
		t.Fatalf("negative ttl should disable, got %v", disabled.Short)
	}
}

func TestTTLSetDuration(t *testing.T) {
	ttl := TTLSet{Short: time.Second, Medium: time.Minute, Long: time.Hour}
	if ttl.Duration(TTLShort) != time.Second || ttl.Duration(TTLMedium) != time.Minute || ttl.Duration(TTLLong) != time.Hour {
		t.Fatalf("Duration mapping wrong: %+v", ttl)
	}
	if ttl.Duration("bogus") != 0 {
		t.Fatalf("unknown class should be 0")
	}
	if IntradayLatestTTL(ttl) != time.Hour {
		t.Fatalf("latest ttl should use the long class")
	}
}
