package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Driver implements ports.Driver against a RedisGraph/FalkorDB compatible
// server. Every session owns one dedicated connection.
type Driver struct {
	graph       string
	db          int
	dialTimeout time.Duration
	readTimeout time.Duration
}

var _ ports.Driver = (*Driver)(nil)

// Option configures the Driver.
type Option func(*Driver)

// WithGraph sets the graph key queries run against.
func WithGraph(graph string) Option {
	return func(d *Driver) {
		d.graph = graph
	}
}

// WithDB selects the logical database.
func WithDB(db int) Option {
	return func(d *Driver) {
		d.db = db
	}
}

// WithDialTimeout bounds connection setup.
func WithDialTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.dialTimeout = timeout
	}
}

// WithReadTimeout bounds how long a query may take to answer.
func WithReadTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.readTimeout = timeout
	}
}

// NewDriver creates a new Redis graph driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		graph:       "lattice",
		dialTimeout: 5 * time.Second,
		readTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenSession dials address, authenticates and pings.
func (d *Driver) OpenSession(ctx context.Context, address string, creds domain.Credentials) (ports.Session, error) {
	client := backend.NewClient(&backend.Options{
		Addr:            address,
		Username:        creds.Username,
		Password:        creds.Password,
		DB:              d.db,
		Protocol:        2,
		DialTimeout:     d.dialTimeout,
		ReadTimeout:     d.readTimeout,
		PoolSize:        1,
		MaxRetries:      -1,
		DisableIdentity: true,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, classifyOpenError(address, err)
	}

	return NewSessionFromClient(client, d.graph), nil
}

func classifyOpenError(address string, err error) error {
	msg := err.Error()
	for _, marker := range []string{"WRONGPASS", "NOAUTH", "invalid password", "invalid username-password"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s: %v", domain.ErrAuth, address, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrConnection, address, err)
}

// Session runs GRAPH.QUERY on one connection.
type Session struct {
	client *backend.Client
	graph  string
}

var _ ports.Session = (*Session)(nil)

// NewSessionFromClient wraps an existing client. The session takes ownership of it.
func NewSessionFromClient(client *backend.Client, graph string) *Session {
	return &Session{client: client, graph: graph}
}

// Execute runs query with params inlined as a CYPHER prefix.
func (s *Session) Execute(ctx context.Context, query string, params domain.Params) (ports.RawCursor, error) {
	text, err := WithParams(query, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuery, err)
	}

	reply, err := s.client.Do(ctx, "GRAPH.QUERY", s.graph, text).Slice()
	if err != nil {
		if errors.Is(err, backend.ErrClosed) {
			return nil, domain.ErrSessionClosed
		}
		var serverErr backend.Error
		if errors.As(err, &serverErr) {
			return nil, fmt.Errorf("%w: %v", domain.ErrQuery, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	return decodeReply(reply)
}

// Close closes the connection. Closing twice returns domain.ErrSessionClosed.
func (s *Session) Close() error {
	if err := s.client.Close(); err != nil {
		if errors.Is(err, backend.ErrClosed) {
			return domain.ErrSessionClosed
		}
		return err
	}
	return nil
}
