package lattice_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/scheduler"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver() *memory.Driver {
	return memory.NewDriver(
		memory.WithQuery("RETURN 1", domain.NewRecord([]string{"1"}, domain.Int(1))),
		memory.WithQuery("UNWIND range(0, 2) AS n RETURN n", testutils.Records(3)...),
	)
}

func TestClient_Run_ClosesOnExhaust(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	c := lattice.New(d)

	cur, err := c.Run(ctx, "UNWIND range(0, 2) AS n RETURN n", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, d.OpenSessions())

	records, err := cur.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 0, d.OpenSessions())
}

func TestClient_RunImmediate(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	c := lattice.New(d)

	cur, err := c.RunImmediate(ctx, "RETURN 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, d.OpenSessions(), "Session should close before returning")

	records, err := cur.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestClient_RunImmediate_TransportFailureClosesOnce(t *testing.T) {
	d := &testutils.Driver{
		Rows:   testutils.Records(3),
		OnOpen: func(s *testutils.Session) { s.FailAt = 1 },
	}
	c := lattice.New(d)

	cur, err := c.RunImmediate(context.Background(), "UNWIND range(0, 2) AS n RETURN n", nil)
	assert.Nil(t, cur)
	require.ErrorIs(t, err, testutils.ErrTransport)
	assert.Equal(t, 1, d.Last().Closes(), "Session should be closed exactly once")
}

func TestClient_Close_WaitsForInflightRun(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	d := &testutils.Driver{
		Rows: testutils.Records(1),
		OnOpen: func(*testutils.Session) {
			close(entered)
			<-release
		},
	}
	c := lattice.New(d)

	runErr := make(chan error, 1)
	go func() {
		_, _, err := c.RunManual(ctx, "RETURN 1", nil)
		runErr <- err
	}()
	<-entered

	closeErr := make(chan error, 1)
	go func() { closeErr <- c.Close(ctx) }()

	select {
	case <-closeErr:
		t.Fatal("Close returned while a run was still opening its session")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	require.NoError(t, <-runErr)
	require.NoError(t, <-closeErr)
	assert.Empty(t, c.Pending())
	assert.Equal(t, 1, d.Last().Closes())
}

func TestClient_RunManual_ReleaseOnce(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	c := lattice.New(d)

	_, id, err := c.RunManual(ctx, "RETURN 1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []domain.ResultID{id}, c.Pending())
	assert.Equal(t, 1, d.OpenSessions())

	require.NoError(t, c.Release(ctx, id))
	assert.Equal(t, 0, d.OpenSessions())
	assert.ErrorIs(t, c.Release(ctx, id), domain.ErrResultNotFound)
}

func TestClient_RunDeferred_UsesConfiguredTimeout(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	clock := testutils.NewClock()
	cfg := config.Default()
	cfg.AutoCloseTimeout = 100 * time.Millisecond

	c := lattice.New(d,
		lattice.WithConfig(cfg),
		lattice.WithScheduler(scheduler.New(scheduler.WithClock(clock))),
	)

	_, err := c.RunDeferred(ctx, "RETURN 1", nil, 0)
	require.NoError(t, err)

	clock.Advance(99 * time.Millisecond)
	assert.Equal(t, 1, d.OpenSessions())
	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, d.OpenSessions())
}

func TestClient_QueryError_ClosesSession(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	c := lattice.New(d)

	for _, policy := range []domain.Policy{
		domain.PolicyImmediate, domain.PolicyCloseOnExhaust, domain.PolicyDeferred, domain.PolicyManual,
	} {
		_, err := c.RunPolicy(ctx, policy, "MATCH (n) RETURN nonsense", nil, 0)
		assert.ErrorIs(t, err, domain.ErrQuery, "policy %s", policy)
	}
	assert.Equal(t, 0, d.OpenSessions())
	assert.Empty(t, c.Pending())
}

func TestClient_OpenErrors(t *testing.T) {
	ctx := context.Background()

	unreachable := lattice.New(memory.NewDriver(memory.WithUnreachable("localhost:6379")))
	_, err := unreachable.Run(ctx, "RETURN 1", nil)
	assert.ErrorIs(t, err, domain.ErrConnection)

	secured := lattice.New(memory.NewDriver(memory.WithCredentials(domain.Credentials{Username: "neo", Password: "pw"})))
	_, err = secured.Run(ctx, "RETURN 1", nil)
	assert.ErrorIs(t, err, domain.ErrAuth)

	cfg := config.Default()
	cfg.Username, cfg.Password = "neo", "pw"
	secured.Reconfigure(cfg)
	_, err = secured.RunImmediate(ctx, "RETURN 1", nil)
	assert.Error(t, err, "Unregistered query on a reachable engine")
	assert.ErrorIs(t, err, domain.ErrQuery)
}

func TestClient_Reconfigure(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Host = "old"
	d := memory.NewDriver(
		memory.WithUnreachable("old:6379"),
		memory.WithQuery("RETURN 1", domain.NewRecord([]string{"1"}, domain.Int(1))),
	)
	c := lattice.New(d, lattice.WithConfig(cfg))

	_, err := c.RunImmediate(ctx, "RETURN 1", nil)
	require.ErrorIs(t, err, domain.ErrConnection)

	cfg.Host = "new"
	c.Reconfigure(cfg)
	assert.Equal(t, "new:6379", c.Config().Address())

	_, err = c.RunImmediate(ctx, "RETURN 1", nil)
	assert.NoError(t, err)
}

func TestClient_AutoClosingSession(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	clock := testutils.NewClock()
	c := lattice.New(d, lattice.WithScheduler(scheduler.New(scheduler.WithClock(clock))))

	sess, err := c.AutoClosingSession(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, d.OpenSessions())

	clock.Advance(domain.DefaultAutoCloseTimeout)
	assert.Equal(t, 0, d.OpenSessions())
}

func TestClient_Session_CallerOwned(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	c := lattice.New(d)

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.OpenSessions())
	require.NoError(t, sess.Close())
	assert.Equal(t, 0, d.OpenSessions())
}

func TestClient_Close(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	c := lattice.New(d)

	_, _, err := c.RunManual(ctx, "RETURN 1", nil)
	require.NoError(t, err)
	_, err = c.RunDeferred(ctx, "RETURN 1", nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, d.OpenSessions())

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, 0, d.OpenSessions())
	assert.Empty(t, c.Pending())

	_, err = c.Run(ctx, "RETURN 1", nil)
	assert.ErrorIs(t, err, lattice.ErrClientClosed)
	assert.NoError(t, c.Close(ctx), "Second Close should be a no-op")
}

func TestClient_Metrics(t *testing.T) {
	ctx := context.Background()
	m := observability.NewMetrics(nil)
	var opened int
	c := lattice.New(newDriver(),
		lattice.WithMetrics(m),
		lattice.WithHooks(domain.LifecycleHooks{
			OnSessionOpen: func(context.Context, *domain.SessionEvent) { opened++ },
		}),
	)

	_, id, err := c.RunManual(ctx, "RETURN 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ManualPending))

	require.NoError(t, c.Release(ctx, id))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ManualPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsClosed.WithLabelValues("manual")))
	assert.Equal(t, 1, opened, "User hooks run alongside metrics")
}
