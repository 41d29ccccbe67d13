package domain

import "errors"

// ErrConnection is returned when the engine endpoint cannot be reached.
var ErrConnection = errors.New("connection failed")

// ErrAuth is returned when the engine rejects the supplied credentials.
var ErrAuth = errors.New("authentication failed")

// ErrQuery is returned when the engine rejects a query or faults while running it.
var ErrQuery = errors.New("query failed")

// ErrResultNotFound is returned when releasing a result ID that is unknown or already released.
var ErrResultNotFound = errors.New("result not found")

// ErrDuplicateResultID is returned when a result ID is registered twice.
// Seeing it means identifier generation is broken.
var ErrDuplicateResultID = errors.New("duplicate result id")

// ErrSessionClosed is returned by sessions that are closed more than once.
var ErrSessionClosed = errors.New("session already closed")

// ErrUnsupportedValue is returned when a Go value has no engine parameter representation.
var ErrUnsupportedValue = errors.New("unsupported parameter value")
