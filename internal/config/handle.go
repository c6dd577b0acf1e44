package config

import "sync/atomic"

// Handle is the process-wide holder for the active configuration.
// In-flight requests snapshot the current Config once and keep using it
// for their whole lifetime; Reload swaps in a complete replacement, so
// a reader observes either the old or the new configuration but never a
// mix of the two.
type Handle struct {
	current atomic.Pointer[Config]
}

// NewHandle creates a Handle holding the given configuration.
func NewHandle(cfg *Config) *Handle {
	h := &Handle{}
	h.current.Store(cfg)
	return h
}

// Current returns the active configuration. The returned value must be
// treated as read-only.
func (h *Handle) Current() *Config {
	return h.current.Load()
}

// Swap atomically replaces the active configuration.
func (h *Handle) Swap(cfg *Config) {
	h.current.Store(cfg)
}
