// Package scheduler decides when a capture cycle is requested: once per
// user request, or periodically while auto mode is on.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"visionbridge/internal/logger"
	"visionbridge/internal/service/metrics"
)

// DefaultInterval is the auto-mode period.
const DefaultInterval = 2500 * time.Millisecond

// Kind identifies what requested a cycle.
type Kind string

const (
	Manual Kind = "manual"
	Timer  Kind = "timer"
)

// Trigger asks the pipeline to start a cycle. It returns false when the
// request was dropped.
type Trigger func(kind Kind) bool

// Ticker is the subset of time.Ticker the scheduler relies on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates tickers; tests replace it with a manual clock.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("scheduler closed")

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithTickerFactory(f TickerFactory) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler owns the auto-mode ticker. Ticks and manual requests run
// under one mutex so a tick can never fire after auto mode was disabled.
type Scheduler struct {
	trigger   Trigger
	newTicker TickerFactory
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	enabled    bool
	interval   time.Duration
	generation uint64
	ticker     Ticker
	stop       chan struct{}
	closed     bool
	wg         sync.WaitGroup
}

// New creates a scheduler in manual mode.
func New(trigger Trigger, opts ...Option) *Scheduler {
	s := &Scheduler{
		trigger:   trigger,
		newTicker: NewRealTicker,
		logger:    logger.NewDiscard(),
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestManual fires one cycle request now. Manual requests are never
// queued: a dropped request is lost.
func (s *Scheduler) RequestManual() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.fire(Manual)
}

// SetAutoMode turns periodic triggering on or off. Enabling restarts the
// ticker with interval (DefaultInterval when zero or negative). The
// first auto cycle fires one interval after enabling.
func (s *Scheduler) SetAutoMode(enabled bool, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	s.cancelLocked()
	s.enabled = enabled
	s.interval = interval
	if enabled {
		s.startLocked()
	}
	s.mu.Unlock()

	s.metrics.SetAutoMode(enabled)
	if enabled {
		s.logger.Info("Auto mode enabled every %v", interval)
	} else {
		s.logger.Info("Auto mode disabled")
	}
	return nil
}

// AutoMode reports whether auto mode is on and its interval.
func (s *Scheduler) AutoMode() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, s.interval
}

// Close cancels the ticker and waits for its goroutine.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.enabled = false
	s.cancelLocked()
	s.mu.Unlock()

	s.wg.Wait()
	s.metrics.SetAutoMode(false)
}

func (s *Scheduler) startLocked() {
	s.generation++
	gen := s.generation
	ticker := s.newTicker(s.interval)
	stop := make(chan struct{})
	s.ticker = ticker
	s.stop = stop

	s.wg.Add(1)
	go s.run(gen, ticker, stop)
}

func (s *Scheduler) cancelLocked() {
	if s.ticker == nil {
		return
	}
	s.generation++
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.stop = nil
}

func (s *Scheduler) run(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			s.tick(gen)
		}
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A tick delivered after a cancel or restart belongs to an old ticker.
	if !s.enabled || s.closed || gen != s.generation {
		return
	}
	if !s.fire(Timer) {
		s.logger.Info("Auto tick skipped")
	}
}

func (s *Scheduler) fire(kind Kind) bool {
	return s.trigger(kind)
}
