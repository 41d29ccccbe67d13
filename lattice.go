package lattice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/result"
	"github.com/aretw0/lattice/pkg/scheduler"
	"github.com/aretw0/lattice/pkg/session"
)

// Version is the library version reported by the CLI.
const Version = "0.3.0"

// ErrClientClosed is returned by every call made after Close.
var ErrClientClosed = errors.New("lattice: client closed")

// Client is the high-level entry point. It opens one session per query and
// applies the chosen disposal policy to it.
type Client struct {
	driver  ports.Driver
	service *session.Service

	mu       sync.RWMutex
	cfg      config.Config
	closed   bool
	inflight sync.WaitGroup

	hooks    domain.LifecycleHooks
	metrics  *observability.Metrics
	registry ports.Registry
	sched    *scheduler.Scheduler
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithConfig sets the connection settings. Defaults to config.Default().
func WithConfig(cfg config.Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHooks registers lifecycle callbacks. Metrics hooks, if any, run after these.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Client) {
		c.hooks = hooks
	}
}

// WithMetrics records session lifecycle metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRegistry injects the registry for manual results.
func WithRegistry(reg ports.Registry) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithScheduler injects the deferred close scheduler.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(c *Client) {
		c.sched = s
	}
}

// New creates a Client over driver.
func New(driver ports.Driver, opts ...Option) *Client {
	c := &Client{
		driver: driver,
		cfg:    config.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}

	hooks := c.hooks
	if c.metrics != nil {
		hooks = domain.CombineHooks(hooks, c.metrics.Hooks())
	}

	svcOpts := []session.Option{
		session.WithLogger(c.logger),
		session.WithHooks(hooks),
	}
	if c.registry != nil {
		svcOpts = append(svcOpts, session.WithRegistry(c.registry))
	}
	if c.sched != nil {
		svcOpts = append(svcOpts, session.WithScheduler(c.sched))
	}
	c.service = session.NewService(svcOpts...)
	return c
}

// Config returns the current settings.
func (c *Client) Config() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Reconfigure swaps the connection settings. Sessions already open are
// unaffected; the next query connects with cfg.
func (c *Client) Reconfigure(cfg config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.logger.Info("client reconfigured", "address", cfg.Address(), "graph", cfg.Graph)
}

// Service exposes the underlying session service.
func (c *Client) Service() *session.Service {
	return c.service
}

// Session opens a session the caller owns and must close.
func (c *Client) Session(ctx context.Context) (ports.Session, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.inflight.Done()
	return c.open(ctx)
}

// begin counts a call in flight so Close can wait for it.
func (c *Client) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.inflight.Add(1)
	return nil
}

func (c *Client) open(ctx context.Context) (ports.Session, error) {
	cfg := c.Config()
	sess, err := c.driver.OpenSession(ctx, cfg.Address(), cfg.Credentials())
	if err != nil {
		c.logger.Error("open session failed", "address", cfg.Address(), "err", err)
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// AutoClosingSession opens a session that closes itself after delay.
// A zero delay uses the configured auto-close timeout.
func (c *Client) AutoClosingSession(ctx context.Context, delay time.Duration) (ports.Session, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.inflight.Done()

	sess, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.service.Scheduler().ScheduleClose(sess, c.delay(delay))
	return sess, nil
}

// Run executes query and closes its session once the cursor is exhausted.
// A cursor that is never drained keeps its session open.
func (c *Client) Run(ctx context.Context, query string, params domain.Params) (*result.Cursor, error) {
	return c.run(ctx, domain.PolicyCloseOnExhaust, query, params, 0)
}

// RunImmediate executes query, buffers every record and closes the session
// before returning.
func (c *Client) RunImmediate(ctx context.Context, query string, params domain.Params) (*result.Cursor, error) {
	return c.run(ctx, domain.PolicyImmediate, query, params, 0)
}

// RunDeferred executes query and closes its session after delay, read or not.
// A zero delay uses the configured auto-close timeout.
func (c *Client) RunDeferred(ctx context.Context, query string, params domain.Params, delay time.Duration) (*result.Cursor, error) {
	return c.run(ctx, domain.PolicyDeferred, query, params, c.delay(delay))
}

// RunManual executes query and keeps its session open until Release is
// called with the returned ID.
func (c *Client) RunManual(ctx context.Context, query string, params domain.Params) (*result.Cursor, domain.ResultID, error) {
	cur, err := c.run(ctx, domain.PolicyManual, query, params, 0)
	if err != nil {
		return nil, "", err
	}
	return cur, cur.ID(), nil
}

// RunPolicy dispatches on policy. delay only applies to domain.PolicyDeferred.
func (c *Client) RunPolicy(ctx context.Context, policy domain.Policy, query string, params domain.Params, delay time.Duration) (*result.Cursor, error) {
	if policy == domain.PolicyDeferred {
		delay = c.delay(delay)
	}
	return c.run(ctx, policy, query, params, delay)
}

// Release closes the manual session registered under id.
func (c *Client) Release(ctx context.Context, id domain.ResultID) error {
	return c.service.ReleaseManual(ctx, id)
}

// Pending lists the manual results not yet released.
func (c *Client) Pending() []domain.ResultID {
	return c.service.Registry().IDs()
}

// Close waits for queries still opening their session, then releases every
// manual session and runs every pending deferred close.
// Close errors are logged; only the first Close does any work.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.service.Shutdown(ctx); err != nil {
		c.logger.Warn("shutdown close errors", "err", err)
	}
	return c.service.Scheduler().Wait(ctx)
}

func (c *Client) run(ctx context.Context, policy domain.Policy, query string, params domain.Params, delay time.Duration) (*result.Cursor, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.inflight.Done()

	sess, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := c.service.Execute(ctx, sess, policy, query, params, delay)
	if err != nil {
		// Past ErrNotExecuted the service owns the session and has closed it.
		if errors.Is(err, session.ErrNotExecuted) {
			if closeErr := sess.Close(); closeErr != nil {
				c.logger.Warn("session close after failed query", "err", closeErr)
			}
		}
		return nil, err
	}
	return cur, nil
}

func (c *Client) delay(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg.AutoCloseTimeout > 0 {
		return c.cfg.AutoCloseTimeout
	}
	return domain.DefaultAutoCloseTimeout
}
