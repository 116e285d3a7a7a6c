package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CompletionScheduler runs the simulated payment completion for development
// setups without Stripe webhooks. Each order has at most one timer. Timers are
// stopped on cancellation, and Stop waits for callbacks already running.
type CompletionScheduler struct {
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

// NewCompletionScheduler returns a scheduler firing after delay. A delay of
// zero or less disables scheduling entirely.
func NewCompletionScheduler(delay time.Duration, logger *zap.Logger) *CompletionScheduler {
	return &CompletionScheduler{
		delay:  delay,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Enabled reports whether Schedule will arm timers.
func (s *CompletionScheduler) Enabled() bool {
	return s != nil && s.delay > 0
}

// Schedule arms fn to run once for orderID after the configured delay.
func (s *CompletionScheduler) Schedule(orderID string, fn func()) {
	if !s.Enabled() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, exists := s.timers[orderID]; exists {
		return
	}

	var t *time.Timer
	s.wg.Add(1)
	t = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		if s.timers[orderID] == t {
			delete(s.timers, orderID)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[orderID] = t
	s.logger.Debug("Simulated completion scheduled", zap.String("order_id", orderID), zap.Duration("delay", s.delay))
}

// Cancel disarms the timer for orderID, if any. It reports whether a pending
// timer was stopped before firing.
func (s *CompletionScheduler) Cancel(orderID string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[orderID]
	if !ok {
		return false
	}
	delete(s.timers, orderID)
	if t.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending returns the number of armed timers.
func (s *CompletionScheduler) Pending() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer, rejects new ones and waits for running callbacks.
func (s *CompletionScheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
