package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// ErrTransport simulates a connection dropping mid-stream.
var ErrTransport = errors.New("transport: connection reset")

// Records builds n single-column records {"n": i}.
func Records(n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.NewRecord([]string{"n"}, domain.Int(int64(i)))
	}
	return out
}

// RawCursor is a scripted ports.RawCursor.
// If FailAt >= 0 the stream fails with ErrTransport when asked for record FailAt.
type RawCursor struct {
	Rows   []domain.Record
	FailAt int

	Pulls   int
	pos     int
	current domain.Record
	err     error
}

// NewRawCursor returns a cursor over rows that never fails.
func NewRawCursor(rows []domain.Record) *RawCursor {
	return &RawCursor{Rows: rows, FailAt: -1}
}

func (c *RawCursor) Next(ctx context.Context) bool {
	c.Pulls++
	if c.err != nil {
		return false
	}
	if c.FailAt >= 0 && c.pos == c.FailAt {
		c.err = ErrTransport
		return false
	}
	if c.pos >= len(c.Rows) {
		return false
	}
	c.current = c.Rows[c.pos]
	c.pos++
	return true
}

func (c *RawCursor) Record() domain.Record { return c.current }

func (c *RawCursor) Err() error { return c.err }

// Session is a ports.Session double that counts Close calls.
// Closing twice returns domain.ErrSessionClosed, like most real drivers.
type Session struct {
	Rows      []domain.Record
	ExecErr   error
	FailAt    int
	closes    atomic.Int32
	mu        sync.Mutex
	Queries   []string
	LastParam domain.Params
}

// NewSession returns an open session that answers every query with rows.
func NewSession(rows ...domain.Record) *Session {
	return &Session{Rows: rows, FailAt: -1}
}

func (s *Session) Execute(ctx context.Context, query string, params domain.Params) (ports.RawCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, query)
	s.LastParam = params
	if s.ExecErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuery, s.ExecErr)
	}
	if s.closes.Load() > 0 {
		return nil, domain.ErrSessionClosed
	}
	cur := NewRawCursor(s.Rows)
	cur.FailAt = s.FailAt
	return cur, nil
}

func (s *Session) Close() error {
	if s.closes.Add(1) > 1 {
		return domain.ErrSessionClosed
	}
	return nil
}

// Closed reports whether Close was called at least once.
func (s *Session) Closed() bool { return s.closes.Load() > 0 }

// Closes returns how many times Close was called.
func (s *Session) Closes() int { return int(s.closes.Load()) }

// Driver hands out Sessions and remembers them.
type Driver struct {
	Rows    []domain.Record
	OpenErr error
	// OnOpen, when set, sees every session before OpenSession returns it.
	OnOpen func(*Session)

	mu       sync.Mutex
	Sessions []*Session
}

func (d *Driver) OpenSession(ctx context.Context, address string, creds domain.Credentials) (ports.Session, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := NewSession(d.Rows...)
	if d.OnOpen != nil {
		d.OnOpen(s)
	}
	d.mu.Lock()
	d.Sessions = append(d.Sessions, s)
	d.mu.Unlock()
	return s, nil
}

// Last returns the most recently opened session.
func (d *Driver) Last() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sessions) == 0 {
		return nil
	}
	return d.Sessions[len(d.Sessions)-1]
}
