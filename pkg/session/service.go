package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/result"
	"github.com/aretw0/lattice/pkg/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/lattice/pkg/session"

// ErrNotExecuted marks failures that happened before the service took the
// session: the caller still owns it and must close it. Any other error from
// an Execute method means the service owns (and has disposed of) the session.
var ErrNotExecuted = errors.New("query not executed")

// Service executes queries and applies a disposal policy to each session.
type Service struct {
	registry  ports.Registry
	scheduler *scheduler.Scheduler
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	tracer    trace.Tracer
	newID     func() domain.ResultID
}

// Option configures the Service.
type Option func(*Service)

// WithRegistry injects the registry used by the manual policy.
func WithRegistry(reg ports.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithScheduler injects the scheduler used by the deferred policy.
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *Service) {
		s.scheduler = sched
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithIDGenerator replaces the UUID result ID generator.
func WithIDGenerator(fn func() domain.ResultID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService creates a Service with its own registry and scheduler unless injected.
func NewService(opts ...Option) *Service {
	s := &Service{
		logger: logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = registry.New()
	}
	if s.scheduler == nil {
		s.scheduler = scheduler.New(scheduler.WithLogger(s.logger), scheduler.WithHooks(s.hooks))
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.newID == nil {
		s.newID = result.NewID
	}
	return s
}

// Registry returns the registry holding manually released sessions.
func (s *Service) Registry() ports.Registry {
	return s.registry
}

// Scheduler returns the deferred close scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// run executes the query and wraps the raw stream. On error the caller still owns sess.
func (s *Service) run(ctx context.Context, sess ports.Session, policy domain.Policy, query string, params domain.Params) (*result.Cursor, error) {
	ctx, span := s.tracer.Start(ctx, "session.execute", trace.WithAttributes(
		attribute.String("lattice.policy", policy.String()),
		attribute.Int("lattice.params", len(params)),
	))
	defer span.End()

	raw, err := sess.Execute(ctx, query, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execute failed")
		s.logger.Debug("query failed", "policy", policy, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrNotExecuted, err)
	}

	cur := result.New(raw, result.WithID(s.newID()))
	span.SetAttributes(attribute.String("lattice.result_id", string(cur.ID())))
	domain.Emit(ctx, s.hooks.OnSessionOpen, domain.NewSessionEvent(domain.EventSessionOpen, cur.ID(), policy))
	return cur, nil
}

// closeOwned closes a session the service owns and reports the outcome through hooks.
func (s *Service) closeOwned(ctx context.Context, sess ports.Session, id domain.ResultID, policy domain.Policy) error {
	if err := sess.Close(); err != nil {
		ev := domain.NewSessionEvent(domain.EventSessionCloseError, id, policy)
		ev.Err = err
		domain.Emit(ctx, s.hooks.OnCloseError, ev)
		return err
	}
	domain.Emit(ctx, s.hooks.OnSessionClose, domain.NewSessionEvent(domain.EventSessionClose, id, policy))
	return nil
}

// ExecuteImmediate runs the query, buffers every record and closes the session
// before returning. The returned cursor holds no connection.
func (s *Service) ExecuteImmediate(ctx context.Context, sess ports.Session, query string, params domain.Params) (*result.Cursor, error) {
	cur, err := s.run(ctx, sess, domain.PolicyImmediate, query, params)
	if err != nil {
		return nil, err
	}

	records, listErr := cur.List(ctx)
	closeErr := s.closeOwned(ctx, sess, cur.ID(), domain.PolicyImmediate)
	if listErr != nil {
		return nil, listErr
	}
	if closeErr != nil {
		s.logger.Warn("session close failed", "result_id", cur.ID(), "err", closeErr)
	}

	buffered := result.NewBuffered(records, result.WithID(cur.ID()))
	s.onExhaustEvent(buffered, domain.PolicyImmediate)
	return buffered, nil
}

// ExecuteAndClose runs the query and closes the session once the returned
// cursor is exhausted, lazily or through List.
//
// A cursor abandoned before exhaustion never closes its session.
func (s *Service) ExecuteAndClose(ctx context.Context, sess ports.Session, query string, params domain.Params) (*result.Cursor, error) {
	cur, err := s.run(ctx, sess, domain.PolicyCloseOnExhaust, query, params)
	if err != nil {
		return nil, err
	}

	id := cur.ID()
	s.onExhaustEvent(cur, domain.PolicyCloseOnExhaust)
	cur.OnExhaust(func(ctx context.Context) error {
		if err := s.closeOwned(ctx, sess, id, domain.PolicyCloseOnExhaust); err != nil {
			s.logger.Warn("session close on exhaust failed", "result_id", id, "err", err)
		}
		return nil
	})
	return cur, nil
}

// ExecuteKeepOpen runs the query and hands the session to the scheduler, which
// closes it once delay has elapsed whether or not the cursor was read.
// Pick a delay longer than the expected read, or use ExecuteManual.
func (s *Service) ExecuteKeepOpen(ctx context.Context, sess ports.Session, query string, params domain.Params, delay time.Duration) (*result.Cursor, error) {
	cur, err := s.run(ctx, sess, domain.PolicyDeferred, query, params)
	if err != nil {
		return nil, err
	}

	s.onExhaustEvent(cur, domain.PolicyDeferred)
	s.scheduler.ScheduleCloseFor(cur.ID(), sess, delay)
	return cur, nil
}

// ExecuteManual runs the query and keeps the session open in the registry
// under the cursor's ID until ReleaseManual is called with it.
func (s *Service) ExecuteManual(ctx context.Context, sess ports.Session, query string, params domain.Params) (*result.Cursor, domain.ResultID, error) {
	cur, err := s.run(ctx, sess, domain.PolicyManual, query, params)
	if err != nil {
		return nil, "", err
	}

	id := cur.ID()
	if err := s.registry.Register(id, sess); err != nil {
		// The service owns sess now, so it must not leak on this path.
		if closeErr := s.closeOwned(ctx, sess, id, domain.PolicyManual); closeErr != nil {
			s.logger.Warn("session close failed", "result_id", id, "err", closeErr)
		}
		s.logger.Error("result registration failed", "result_id", id, "err", err)
		return nil, "", err
	}

	s.onExhaustEvent(cur, domain.PolicyManual)
	s.logger.Debug("result registered for manual release", "result_id", id)
	return cur, id, nil
}

// ReleaseManual removes and closes the session registered under id.
// It returns domain.ErrResultNotFound for unknown or already released IDs.
// A failing close is logged, not returned.
func (s *Service) ReleaseManual(ctx context.Context, id domain.ResultID) error {
	_, span := s.tracer.Start(ctx, "session.release", trace.WithAttributes(
		attribute.String("lattice.result_id", string(id)),
	))
	defer span.End()

	sess, err := s.registry.Release(id)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return err
	}

	domain.Emit(ctx, s.hooks.OnResultReleased, domain.NewSessionEvent(domain.EventResultReleased, id, domain.PolicyManual))
	if err := s.closeOwned(ctx, sess, id, domain.PolicyManual); err != nil {
		s.logger.Warn("manual session close failed", "result_id", id, "err", err)
	}
	return nil
}

// Execute dispatches on policy. delay only applies to domain.PolicyDeferred.
// The result ID is returned for every policy but only the manual one can be released.
func (s *Service) Execute(ctx context.Context, sess ports.Session, policy domain.Policy, query string, params domain.Params, delay time.Duration) (*result.Cursor, error) {
	switch policy {
	case domain.PolicyImmediate:
		return s.ExecuteImmediate(ctx, sess, query, params)
	case domain.PolicyCloseOnExhaust, "":
		return s.ExecuteAndClose(ctx, sess, query, params)
	case domain.PolicyDeferred:
		return s.ExecuteKeepOpen(ctx, sess, query, params, delay)
	case domain.PolicyManual:
		cur, _, err := s.ExecuteManual(ctx, sess, query, params)
		return cur, err
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrNotExecuted, policy)
	}
}

// Shutdown releases every manual session and closes every pending deferred
// session now. Close errors are joined and returned for reporting only.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	drained := s.registry.Drain()
	ids := make([]domain.ResultID, 0, len(drained))
	for id := range drained {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := s.closeOwned(ctx, drained[id], id, domain.PolicyManual); err != nil {
			errs = append(errs, fmt.Errorf("result %s: %w", id, err))
		}
	}
	s.scheduler.Flush()
	return errors.Join(errs...)
}

func (s *Service) onExhaustEvent(cur *result.Cursor, policy domain.Policy) {
	if s.hooks.OnResultExhausted == nil {
		return
	}
	id := cur.ID()
	cur.OnExhaust(func(ctx context.Context) error {
		s.hooks.OnResultExhausted(ctx, domain.NewSessionEvent(domain.EventResultExhausted, id, policy))
		return nil
	})
}
