package ports

import "github.com/aretw0/lattice/pkg/domain"

// Registry tracks sessions whose close is deferred to an explicit release.
type Registry interface {
	// Register stores a session under id.
	// Returns domain.ErrDuplicateResultID if id is already present.
	Register(id domain.ResultID, session Session) error

	// Release removes and returns the session for id, or domain.ErrResultNotFound.
	// The removal happens before the caller closes the session.
	Release(id domain.ResultID) (Session, error)

	// IDs lists the pending result IDs.
	IDs() []domain.ResultID

	// Len returns the number of pending sessions.
	Len() int

	// Drain removes every pending session and returns them.
	Drain() map[domain.ResultID]Session
}
