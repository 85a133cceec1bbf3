// Package presence tracks which peers have been heard recently on each radio.
//
// A record is keyed by (username, radio): the same username heard over LoRa
// and over ESP-NOW is two independent records. Records are never deleted.
// Whether a peer is still present is judged at query time by comparing the
// time since it was last seen against the presence timeout.
package presence

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kabili207/lorachat/core"
)

const (
	// DefaultTimeout is how long a peer stays present after it was last heard.
	DefaultTimeout = 3 * time.Minute
)

// Observation is the result of recording a frame from a peer.
type Observation int

const (
	// Refreshed means the peer was already present; its record was updated.
	Refreshed Observation = iota
	// Arrived means the peer had never been seen on this radio.
	Arrived
	// Renewed means the peer had timed out and has now been heard again.
	Renewed
)

func (o Observation) String() string {
	switch o {
	case Refreshed:
		return "refreshed"
	case Arrived:
		return "arrived"
	case Renewed:
		return "renewed"
	default:
		return "unknown"
	}
}

// IsArrival returns true for Arrived and Renewed, the observations that announce
// a peer appearing on the radio.
func (o Observation) IsArrival() bool {
	return o == Arrived || o == Renewed
}

// Record is the last known state of a peer on one radio.
type Record struct {
	Username string
	Radio    core.Radio
	RSSI     int
	LastSeen time.Time
}

type key struct {
	username string
	radio    core.Radio
}

// Config configures a Tracker.
type Config struct {
	// Timeout is how long a peer stays present after it was last seen.
	// Default: 3 minutes.
	Timeout time.Duration

	// Logger for presence events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Tracker is a thread-safe set of presence records.
type Tracker struct {
	cfg     Config
	log     *slog.Logger
	mu      sync.RWMutex
	records map[key]*Record

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// New creates a Tracker with the given configuration.
func New(cfg Config) *Tracker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:     cfg,
		log:     logger.WithGroup("presence"),
		records: make(map[key]*Record),
		nowFn:   time.Now,
	}
}

// Timeout returns the configured presence timeout.
func (t *Tracker) Timeout() time.Duration {
	return t.cfg.Timeout
}

// Observe records that username was heard on radio with the given signal
// strength and reports whether the peer is new, back after a timeout, or
// merely refreshed.
func (t *Tracker) Observe(username string, radio core.Radio, rssi int) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	k := key{username: username, radio: radio}

	r, ok := t.records[k]
	if !ok {
		t.records[k] = &Record{Username: username, Radio: radio, RSSI: rssi, LastSeen: now}
		t.log.Info("new presence", "username", username, "radio", radio, "rssi", rssi)
		return Arrived
	}

	gone := now.Sub(r.LastSeen) > t.cfg.Timeout
	r.RSSI = rssi
	r.LastSeen = now
	if gone {
		t.log.Debug("presence renewed", "username", username, "radio", radio)
		return Renewed
	}
	return Refreshed
}

// StrongestSignal returns the highest RSSI among peers on radio that are
// still present. ok is false when no peer qualifies. The result is computed
// from scratch on every call since records expire only by time.
func (t *Tracker) StrongestSignal(radio core.Radio) (rssi int, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.nowFn()
	for _, r := range t.records {
		if r.Radio != radio || now.Sub(r.LastSeen) > t.cfg.Timeout {
			continue
		}
		if !ok || r.RSSI > rssi {
			rssi = r.RSSI
			ok = true
		}
	}
	return rssi, ok
}

// IsPresent returns true if username was heard on radio no longer than the
// timeout ago. A peer stops being present at the instant Observe would
// report it Renewed.
func (t *Tracker) IsPresent(username string, radio core.Radio) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[key{username: username, radio: radio}]
	if !ok {
		return false
	}
	return t.nowFn().Sub(r.LastSeen) <= t.cfg.Timeout
}

// Records returns copies of every record on radio, expired ones included,
// most recently seen first.
func (t *Tracker) Records(radio core.Radio) []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		if r.Radio == radio {
			out = append(out, *r)
		}
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return out
}

// Count returns the number of records across all radios.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// FormatLastSeen renders the age of a record for the presence list: seconds
// by default, minutes once past timeout, hours after three hours.
func FormatLastSeen(age, timeout time.Duration) string {
	secs := int(age / time.Second)
	switch {
	case age > 3*time.Hour:
		return fmt.Sprintf("%dh", secs/3600)
	case age > timeout:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
