package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// QueryFunc answers one query. It receives the parameters the caller sent.
type QueryFunc func(ctx context.Context, params domain.Params) ([]domain.Record, error)

// Driver implements ports.Driver in memory. Queries are answered by handlers
// registered per query text. Safe for concurrent use.
type Driver struct {
	mu          sync.RWMutex
	handlers    map[string]QueryFunc
	creds       *domain.Credentials
	unreachable map[string]bool

	open   int
	opened int
}

var _ ports.Driver = (*Driver)(nil)

// Option configures the Driver.
type Option func(*Driver)

// WithQuery answers query with fixed records.
func WithQuery(query string, records ...domain.Record) Option {
	return func(d *Driver) {
		d.handlers[normalize(query)] = func(context.Context, domain.Params) ([]domain.Record, error) {
			return records, nil
		}
	}
}

// WithHandler answers query with fn.
func WithHandler(query string, fn QueryFunc) Option {
	return func(d *Driver) {
		d.handlers[normalize(query)] = fn
	}
}

// WithCredentials rejects sessions that do not present creds.
func WithCredentials(creds domain.Credentials) Option {
	return func(d *Driver) {
		d.creds = &creds
	}
}

// WithUnreachable makes OpenSession fail with domain.ErrConnection for address.
func WithUnreachable(address string) Option {
	return func(d *Driver) {
		d.unreachable[address] = true
	}
}

// NewDriver creates an in-memory driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		handlers:    make(map[string]QueryFunc),
		unreachable: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers fn for query after construction.
func (d *Driver) Handle(query string, fn QueryFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[normalize(query)] = fn
}

// Queries returns the registered query texts.
func (d *Driver) Queries() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for q := range d.handlers {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// OpenSessions returns how many sessions are currently open.
func (d *Driver) OpenSessions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.open
}

// OpenedSessions returns how many sessions were ever opened.
func (d *Driver) OpenedSessions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.opened
}

// OpenSession implements ports.Driver.
func (d *Driver) OpenSession(ctx context.Context, address string, creds domain.Credentials) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unreachable[address] {
		return nil, fmt.Errorf("%w: %s unreachable", domain.ErrConnection, address)
	}
	if d.creds != nil && creds != *d.creds {
		return nil, fmt.Errorf("%w: invalid credentials for %q", domain.ErrAuth, creds.Username)
	}

	d.open++
	d.opened++
	return &Session{driver: d}, nil
}

func (d *Driver) lookup(query string) (QueryFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.handlers[normalize(query)]
	return fn, ok
}

func (d *Driver) closed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open--
}

// Session is an in-memory ports.Session.
type Session struct {
	driver *Driver

	mu       sync.Mutex
	isClosed bool
}

// Execute implements ports.Session. Unknown queries fail with domain.ErrQuery.
func (s *Session) Execute(ctx context.Context, query string, params domain.Params) (ports.RawCursor, error) {
	s.mu.Lock()
	closed := s.isClosed
	s.mu.Unlock()
	if closed {
		return nil, domain.ErrSessionClosed
	}

	fn, ok := s.driver.lookup(query)
	if !ok {
		return nil, fmt.Errorf("%w: no handler for %q", domain.ErrQuery, query)
	}
	records, err := fn(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuery, err)
	}

	// Copy so the handler's slice cannot change under the cursor.
	rows := make([]domain.Record, len(records))
	copy(rows, records)
	return &Cursor{rows: rows, session: s}, nil
}

// Close implements ports.Session. A second call returns domain.ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return domain.ErrSessionClosed
	}
	s.isClosed = true
	s.driver.closed()
	return nil
}

// IsOpen reports whether Close has not been called yet.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.isClosed
}

// Cursor streams the records of one Execute call. Reading from a cursor
// whose session was closed fails like a dropped connection.
type Cursor struct {
	rows    []domain.Record
	pos     int
	current domain.Record
	err     error
	session *Session
}

// Next implements ports.RawCursor.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil || c.pos >= len(c.rows) {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.session.IsOpen() {
		c.err = domain.ErrSessionClosed
		return false
	}
	c.current = c.rows[c.pos]
	c.pos++
	return true
}

// Record implements ports.RawCursor.
func (c *Cursor) Record() domain.Record { return c.current }

// Err implements ports.RawCursor.
func (c *Cursor) Err() error { return c.err }

func normalize(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
