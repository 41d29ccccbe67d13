// Package registry holds sessions left open for manual release, keyed by result ID.
package registry
