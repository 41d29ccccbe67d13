// Package memory provides an in-memory engine driver for tests, demos and
// local development. Queries are answered by handlers registered per query text.
package memory
