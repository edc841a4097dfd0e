package settlement

import (
	"fmt"
	"sync"
	"time"
)

// GuardConfig defines request guard parameters.
type GuardConfig struct {
	// Per-request cap on the specified amount, in base units. 0 disables.
	MaxAmountPerSwap uint64

	// Rolling 24h cap on total specified volume, in base units. 0 disables.
	DailyLimit uint64

	// Asset allowlist by symbol (empty = allow all).
	AllowedAssets []string
}

// DefaultGuardConfig returns conservative limits.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxAmountPerSwap: 1_000_000_000,
		DailyLimit:       10_000_000_000,
		AllowedAssets:    nil,
	}
}

// GuardResult reports why a request was allowed or rejected.
type GuardResult struct {
	Allowed bool
	Reason  string

	ExceedsMaxAmount  bool
	ExceedsDailyLimit bool
	AssetNotAllowed   bool

	DailyUsed      uint64
	DailyRemaining uint64
}

// Guard enforces request limits before a swap reaches the engine.
type Guard struct {
	config  GuardConfig
	tracker *dailyTracker
}

func NewGuard(config GuardConfig) *Guard {
	return &Guard{
		config:  config,
		tracker: newDailyTracker(),
	}
}

// CheckRequest validates a request against all guard rules. amount is the
// absolute specified amount; asset0/asset1 are the pool's symbols.
func (g *Guard) CheckRequest(asset0, asset1 string, amount uint64) *GuardResult {
	result := &GuardResult{Allowed: true}

	if g.config.MaxAmountPerSwap > 0 && amount > g.config.MaxAmountPerSwap {
		result.Allowed = false
		result.ExceedsMaxAmount = true
		result.Reason = fmt.Sprintf("amount %d exceeds max %d per request", amount, g.config.MaxAmountPerSwap)
		return result
	}

	used := g.tracker.usage()
	result.DailyUsed = used
	if g.config.DailyLimit > 0 {
		result.DailyRemaining = g.config.DailyLimit - used
		if used+amount > g.config.DailyLimit {
			result.Allowed = false
			result.ExceedsDailyLimit = true
			result.Reason = fmt.Sprintf("daily limit exceeded: used %d + %d > %d", used, amount, g.config.DailyLimit)
			return result
		}
	}

	if len(g.config.AllowedAssets) > 0 {
		if !g.isAllowed(asset0) || !g.isAllowed(asset1) {
			result.Allowed = false
			result.AssetNotAllowed = true
			result.Reason = fmt.Sprintf("asset not allowed: %s or %s", asset0, asset1)
			return result
		}
	}

	return result
}

// RecordRequest records a settled request for daily limit tracking.
func (g *Guard) RecordRequest(amount uint64) {
	g.tracker.record(amount)
}

// DailyUsage returns the volume settled in the last 24 hours.
func (g *Guard) DailyUsage() uint64 {
	return g.tracker.usage()
}

func (g *Guard) isAllowed(symbol string) bool {
	for _, allowed := range g.config.AllowedAssets {
		if allowed == symbol {
			return true
		}
	}
	return false
}

// dailyTracker tracks rolling 24-hour settled volume.
type dailyTracker struct {
	mu      sync.Mutex
	entries []trackerEntry
}

type trackerEntry struct {
	timestamp time.Time
	amount    uint64
}

func newDailyTracker() *dailyTracker {
	return &dailyTracker{}
}

func (t *dailyTracker) record(amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, trackerEntry{timestamp: time.Now(), amount: amount})
	t.cleanup()
}

func (t *dailyTracker) usage() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanup()

	var total uint64
	for _, e := range t.entries {
		total += e.amount
	}
	return total
}

// cleanup removes entries older than 24 hours; requires t.mu held.
func (t *dailyTracker) cleanup() {
	cutoff := time.Now().Add(-24 * time.Hour)

	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}
