package result

import (
	"context"
	"fmt"
	"iter"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/google/uuid"
)

// Handler is a side-effecting callback fired around traversal.
// A returned error propagates to the caller of the pull.
type Handler func(ctx context.Context) error

// Cursor is a lazy, event-instrumented view over one raw result stream.
type Cursor struct {
	id  domain.ResultID
	raw ports.RawCursor

	beforeNext []Handler
	onExhaust  []Handler
	fired      int // onExhaust handlers already run
	exhausted  bool
	broken     error
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithID overrides the generated result ID.
func WithID(id domain.ResultID) Option {
	return func(c *Cursor) {
		c.id = id
	}
}

// New wraps raw and mints a fresh result ID.
func New(raw ports.RawCursor, opts ...Option) *Cursor {
	c := &Cursor{
		id:  NewID(),
		raw: raw,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBuffered returns a cursor over records that were already materialized.
func NewBuffered(records []domain.Record, opts ...Option) *Cursor {
	return New(&sliceCursor{records: records}, opts...)
}

// NewID mints a globally unique result ID.
func NewID() domain.ResultID {
	return domain.ResultID(uuid.NewString())
}

// ID returns the result identifier.
func (c *Cursor) ID() domain.ResultID {
	return c.id
}

// Raw returns the wrapped driver stream.
func (c *Cursor) Raw() ports.RawCursor {
	return c.raw
}

// Exhausted reports whether the stream ended. Once true it stays true.
func (c *Cursor) Exhausted() bool {
	return c.exhausted
}

// OnBeforeNext registers a handler that runs before every pull, in registration order.
func (c *Cursor) OnBeforeNext(h Handler) {
	c.beforeNext = append(c.beforeNext, h)
}

// OnExhaust registers a handler that runs once the stream ends, in registration order.
// A handler added after lazy iteration has already finished only runs on a later List call.
func (c *Cursor) OnExhaust(h Handler) {
	c.onExhaust = append(c.onExhaust, h)
}

// Next pulls one record. It returns false once the stream is exhausted.
// After a handler or transport error the cursor must not be used again.
func (c *Cursor) Next(ctx context.Context) (domain.Record, bool, error) {
	if c.broken != nil {
		return domain.Record{}, false, c.broken
	}
	if c.exhausted {
		return domain.Record{}, false, nil
	}

	for _, h := range c.beforeNext {
		if err := h(ctx); err != nil {
			c.broken = fmt.Errorf("before next handler: %w", err)
			return domain.Record{}, false, c.broken
		}
	}

	if c.raw.Next(ctx) {
		return c.raw.Record(), true, nil
	}
	if err := c.raw.Err(); err != nil {
		c.broken = fmt.Errorf("result %s: %w", c.id, err)
		return domain.Record{}, false, c.broken
	}

	c.exhausted = true
	if err := c.fireExhaust(ctx); err != nil {
		return domain.Record{}, false, err
	}
	return domain.Record{}, false, nil
}

// All returns the lazy sequence of records. It is not restartable: ranging
// over it a second time continues where the first range stopped.
// An error is yielded once, as the last element.
func (c *Cursor) All(ctx context.Context) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		for {
			rec, ok, err := c.Next(ctx)
			if err != nil {
				yield(domain.Record{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// List drains the stream and returns the remaining records in engine order.
// OnExhaust handlers run exactly once; on an already exhausted cursor only
// handlers that never ran are fired.
func (c *Cursor) List(ctx context.Context) ([]domain.Record, error) {
	if c.broken != nil {
		return nil, c.broken
	}

	var records []domain.Record
	if !c.exhausted {
		for c.raw.Next(ctx) {
			records = append(records, c.raw.Record())
		}
		if err := c.raw.Err(); err != nil {
			c.broken = fmt.Errorf("result %s: %w", c.id, err)
			return records, c.broken
		}
		c.exhausted = true
	}

	if err := c.fireExhaust(ctx); err != nil {
		return records, err
	}
	return records, nil
}

func (c *Cursor) fireExhaust(ctx context.Context) error {
	for c.fired < len(c.onExhaust) {
		h := c.onExhaust[c.fired]
		c.fired++
		if err := h(ctx); err != nil {
			c.broken = fmt.Errorf("exhaust handler: %w", err)
			return c.broken
		}
	}
	return nil
}

// sliceCursor replays materialized records.
type sliceCursor struct {
	records []domain.Record
	pos     int
	current domain.Record
}

func (s *sliceCursor) Next(ctx context.Context) bool {
	if s.pos >= len(s.records) {
		return false
	}
	s.current = s.records[s.pos]
	s.pos++
	return true
}

func (s *sliceCursor) Record() domain.Record { return s.current }

func (s *sliceCursor) Err() error { return nil }
