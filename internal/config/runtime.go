package config

import (
	"sync/atomic"
	"time"
)

// Settings is the runtime-mutable subset of the configuration. Components
// re-read it on every evaluation, so mutations through Runtime take effect
// on the next evaluation with no restart.
type Settings struct {
	Paused           bool
	Tier25Enabled    bool
	Tier50Enabled    bool
	MinTokenAgeHours float64
	MaxMarketCap     float64
	MinLiquidityUSD  float64
	Cooldown         time.Duration
}

// Runtime holds the live Settings behind an atomic pointer. Readers never
// block writers and vice versa; updates replace the whole value.
type Runtime struct {
	cur atomic.Pointer[Settings]
}

// NewRuntime seeds the runtime settings from the loaded configuration.
func NewRuntime(cfg *Config) *Runtime {
	r := &Runtime{}
	r.cur.Store(&Settings{
		Tier25Enabled:    cfg.Alerts.Tier25Enabled,
		Tier50Enabled:    cfg.Alerts.Tier50Enabled,
		MinTokenAgeHours: cfg.Monitor.MinTokenAgeHours,
		MaxMarketCap:     cfg.Monitor.MaxMarketCap,
		MinLiquidityUSD:  cfg.Monitor.MinLiquidityUSD,
		Cooldown:         time.Duration(cfg.Alerts.CooldownMs) * time.Millisecond,
	})
	return r
}

// Current returns the settings as of this instant. The returned value is a
// copy; callers may not mutate shared state through it.
func (r *Runtime) Current() Settings {
	return *r.cur.Load()
}

// Update applies fn to a copy of the current settings and publishes the
// result.
func (r *Runtime) Update(fn func(*Settings)) Settings {
	next := *r.cur.Load()
	fn(&next)
	r.cur.Store(&next)
	return next
}

// SetPaused toggles the monitor evaluation pause flag.
func (r *Runtime) SetPaused(paused bool) {
	r.Update(func(s *Settings) { s.Paused = paused })
}
