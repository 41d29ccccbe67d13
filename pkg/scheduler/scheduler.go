package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
)

// Scheduler runs deferred, one-shot session closes.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	mu      sync.Mutex
	pending map[*Handle]struct{}
	wg      sync.WaitGroup
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLogger configures a logger for swallowed close errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Scheduler) {
		s.hooks = hooks
	}
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   RealClock,
		logger:  logging.NewNop(),
		pending: make(map[*Handle]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle refers to one scheduled close.
type Handle struct {
	s       *Scheduler
	closer  io.Closer
	id      domain.ResultID
	timer   Timer
	once    sync.Once
	settled bool // guarded by s.mu
}

// ScheduleClose closes c once delay has elapsed. It returns immediately.
func (s *Scheduler) ScheduleClose(c io.Closer, delay time.Duration) *Handle {
	return s.ScheduleCloseFor("", c, delay)
}

// ScheduleCloseFor is ScheduleClose with the result ID used in logs and events.
func (s *Scheduler) ScheduleCloseFor(id domain.ResultID, c io.Closer, delay time.Duration) *Handle {
	if delay < 0 {
		delay = 0
	}
	h := &Handle{s: s, closer: c, id: id}

	s.mu.Lock()
	s.pending[h] = struct{}{}
	s.wg.Add(1)
	h.timer = s.clock.AfterFunc(delay, h.fire)
	s.mu.Unlock()

	ev := domain.NewSessionEvent(domain.EventCloseScheduled, id, domain.PolicyDeferred)
	ev.Delay = delay
	domain.Emit(context.Background(), s.hooks.OnCloseScheduled, ev)
	s.logger.Debug("session close scheduled", "result_id", id, "delay", delay)
	return h
}

// settle removes h from the pending set. Only the first caller wins.
func (h *Handle) settle() bool {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.settled {
		return false
	}
	h.settled = true
	delete(s.pending, h)
	return true
}

func (h *Handle) fire() {
	if !h.settle() {
		return
	}
	defer h.s.wg.Done()
	h.close()
}

func (h *Handle) close() {
	h.once.Do(func() {
		s := h.s
		ctx := context.Background()
		if err := h.closer.Close(); err != nil {
			s.logger.Warn("deferred session close failed",
				"result_id", h.id,
				"err", err,
			)
			ev := domain.NewSessionEvent(domain.EventSessionCloseError, h.id, domain.PolicyDeferred)
			ev.Err = err
			domain.Emit(ctx, s.hooks.OnCloseError, ev)
			return
		}
		s.logger.Debug("deferred session closed", "result_id", h.id)
		domain.Emit(ctx, s.hooks.OnSessionClose, domain.NewSessionEvent(domain.EventSessionClose, h.id, domain.PolicyDeferred))
	})
}

// Cancel stops a pending close. It reports false if the close already ran or
// was cancelled. After a successful Cancel the caller owns the session again.
func (h *Handle) Cancel() bool {
	if !h.settle() {
		return false
	}
	h.timer.Stop()
	h.s.wg.Done()
	return true
}

// Pending returns the number of closes that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush closes every pending session now, on the calling goroutine.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.pending))
	for h := range s.pending {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		if !h.settle() {
			continue
		}
		h.timer.Stop()
		h.close()
		s.wg.Done()
	}
}

// Wait blocks until every scheduled close has fired or been cancelled, or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
