package config

import (
	"sync"

	"github.com/kabili207/lorachat/core"
)

// Runtime is the live, mutable copy of Settings shared by the router, the
// keep-alive scheduler and the user interface. All methods are safe for
// concurrent use.
type Runtime struct {
	mu sync.RWMutex
	s  Settings
}

// NewRuntime creates a Runtime holding s.
func NewRuntime(s Settings) *Runtime {
	s.Username = truncateName(s.Username)
	return &Runtime{s: s}
}

// Snapshot returns a copy of the current settings.
func (r *Runtime) Snapshot() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s
}

// Username returns the name sent in outgoing frames.
func (r *Runtime) Username() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.Username
}

// SetUsername changes the name, truncated to the wire limit.
func (r *Runtime) SetUsername(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Username = truncateName(name)
}

// PingMode reports whether keep-alive pings are enabled.
func (r *Runtime) PingMode() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.PingMode
}

// SetPingMode enables or disables keep-alive pings.
func (r *Runtime) SetPingMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.PingMode = on
}

// RepeatMode reports whether received messages are echoed back.
func (r *Runtime) RepeatMode() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.RepeatMode
}

// SetRepeatMode enables or disables echoing.
func (r *Runtime) SetRepeatMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.RepeatMode = on
}

// Radio returns the radio selected by the ESP-NOW mode setting.
func (r *Runtime) Radio() core.Radio {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return core.RadioFor(r.s.ESPNowMode)
}

// SetRadio records which radio is active.
func (r *Runtime) SetRadio(radio core.Radio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.ESPNowMode = radio == core.RadioESPNow
}

// SetBrightness changes the display brightness, clamped to 0..100.
func (r *Runtime) SetBrightness(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Brightness = clampBrightness(n)
}
