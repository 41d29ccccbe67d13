package redis

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// decodeReply turns a GRAPH.QUERY reply into a cursor.
// The reply is [header, rows, stats] for reads and [stats] for pure writes.
func decodeReply(reply []any) (*Cursor, error) {
	switch len(reply) {
	case 0, 1:
		return &Cursor{}, nil
	case 3:
	default:
		return nil, fmt.Errorf("%w: unexpected reply with %d sections", domain.ErrQuery, len(reply))
	}

	header, ok := reply[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: malformed header %T", domain.ErrQuery, reply[0])
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = columnName(h)
	}

	rows, ok := reply[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: malformed rows %T", domain.ErrQuery, reply[1])
	}
	return &Cursor{keys: keys, rows: rows}, nil
}

// columnName accepts both the plain header and the compact [type, name] pair.
func columnName(h any) string {
	switch t := h.(type) {
	case string:
		return t
	case []any:
		if len(t) == 2 {
			if name, ok := t[1].(string); ok {
				return name
			}
		}
	}
	return fmt.Sprint(h)
}

func decodeValue(x any) domain.Value {
	switch t := x.(type) {
	case nil:
		return domain.Null()
	case string:
		return domain.String(t)
	case int64:
		return domain.Int(t)
	case float64:
		return domain.Float(t)
	case bool:
		return domain.Bool(t)
	case []any:
		items := make([]domain.Value, len(t))
		for i, item := range t {
			items[i] = decodeValue(item)
		}
		return domain.List(items...)
	case map[any]any:
		fields := make(map[string]domain.Value, len(t))
		for k, v := range t {
			fields[fmt.Sprint(k)] = decodeValue(v)
		}
		return domain.Map(fields)
	default:
		return domain.String(fmt.Sprint(t))
	}
}

// Cursor walks the rows of one reply. The graph module answers in a single
// reply, so the stream is already buffered client side.
type Cursor struct {
	keys    []string
	rows    []any
	pos     int
	current domain.Record
	err     error
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

	row, ok := c.rows[c.pos].([]any)
	if !ok {
		c.err = fmt.Errorf("malformed row %d: %T", c.pos, c.rows[c.pos])
		return false
	}
	values := make([]domain.Value, len(row))
	for i, cell := range row {
		values[i] = decodeValue(cell)
	}
	c.current = domain.NewRecord(c.keys, values...)
	c.pos++
	return true
}

// Record implements ports.RawCursor.
func (c *Cursor) Record() domain.Record { return c.current }

// Err implements ports.RawCursor.
func (c *Cursor) Err() error { return c.err }
