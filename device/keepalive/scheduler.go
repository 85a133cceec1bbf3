// Package keepalive sends presence pings while the device is otherwise quiet,
// so that peers do not time this device out of their presence lists.
package keepalive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kabili207/lorachat/core"
	"github.com/kabili207/lorachat/core/config"
)

const (
	// DefaultLoRaInterval is the quiet time after which a ping goes out on
	// the long-range radio.
	DefaultLoRaInterval = 60 * time.Second

	// DefaultESPNowInterval is the quiet time after which a ping goes out on
	// the local broadcast radio.
	DefaultESPNowInterval = 15 * time.Second

	// tickInterval is the resolution of the scheduler's timer check loop.
	tickInterval = time.Second
)

// Pinger sends pings and reports when the device last transmitted.
// *router.Router satisfies it.
type Pinger interface {
	SendPing() error
	Activity() (lastRx, lastTx time.Time)
}

// Config configures the keep-alive scheduler.
type Config struct {
	// Runtime supplies the ping mode flag and the active radio. Required.
	Runtime *config.Runtime

	// LoRaInterval is the ping interval on the long-range radio.
	// Default: 60s.
	LoRaInterval time.Duration

	// ESPNowInterval is the ping interval on the local broadcast radio.
	// Default: 15s.
	ESPNowInterval time.Duration

	// Logger for scheduler events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Scheduler issues a ping immediately on start, then whenever ping mode is on
// and nothing has been transmitted for the active radio's interval.
type Scheduler struct {
	cfg    Config
	log    *slog.Logger
	pinger Pinger

	mu     sync.Mutex
	cancel context.CancelFunc

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// NewScheduler creates a keep-alive scheduler that pings through p.
func NewScheduler(p Pinger, cfg Config) *Scheduler {
	if cfg.Runtime == nil {
		cfg.Runtime = config.NewRuntime(config.Defaults())
	}
	if cfg.LoRaInterval <= 0 {
		cfg.LoRaInterval = DefaultLoRaInterval
	}
	if cfg.ESPNowInterval <= 0 {
		cfg.ESPNowInterval = DefaultESPNowInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		log:    logger.WithGroup("keepalive"),
		pinger: p,
		nowFn:  time.Now,
	}
}

// Start sends one ping and then runs the check loop. It blocks until the
// context is cancelled. Typically called in a goroutine:
//
//	go scheduler.Start(ctx)
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.ping("startup")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTimer()
		}
	}
}

// Stop cancels the scheduler's context, stopping the loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Interval returns the ping interval for radio.
func (s *Scheduler) Interval(radio core.Radio) time.Duration {
	if radio == core.RadioESPNow {
		return s.cfg.ESPNowInterval
	}
	return s.cfg.LoRaInterval
}

// checkTimer pings if ping mode is on and the quiet period has run out.
func (s *Scheduler) checkTimer() {
	if !s.cfg.Runtime.PingMode() {
		return
	}
	_, lastTx := s.pinger.Activity()
	if s.nowFn().Sub(lastTx) > s.Interval(s.cfg.Runtime.Radio()) {
		s.ping("scheduled")
	}
}

func (s *Scheduler) ping(kind string) {
	if err := s.pinger.SendPing(); err != nil {
		s.log.Debug("keep-alive ping failed", "kind", kind, "error", err)
		return
	}
	s.log.Debug("sent keep-alive ping", "kind", kind)
}
