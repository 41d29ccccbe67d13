package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// Driver opens sessions against a query engine.
type Driver interface {
	// OpenSession connects and authenticates.
	// Errors wrap domain.ErrConnection or domain.ErrAuth.
	OpenSession(ctx context.Context, address string, creds domain.Credentials) (Session, error)
}

// Session is a live connection to the engine.
// Whoever holds responsibility for a Session must call Close exactly once.
type Session interface {
	// Execute runs a query. Errors wrap domain.ErrQuery.
	Execute(ctx context.Context, query string, params domain.Params) (RawCursor, error)

	// Close releases the connection. Behaviour on a second call is driver-defined.
	Close() error
}

// RawCursor is the driver's result stream. It is consumed destructively.
type RawCursor interface {
	// Next advances to the next record. It returns false when the stream is
	// exhausted or failed; Err tells the two apart.
	Next(ctx context.Context) bool

	// Record returns the record Next advanced to.
	Record() domain.Record

	// Err returns the transport failure that stopped the stream, if any.
	Err() error
}
