package ports

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRegistryContract runs a suite of tests to verify that a Registry implementation
// adheres to the defined interface contract. newSession must return a fresh session
// on every call.
func RunRegistryContract(t *testing.T, newRegistry func() Registry, newSession func() Session) {
	t.Run("Register and Release", func(t *testing.T) {
		reg := newRegistry()
		sess := newSession()

		require.NoError(t, reg.Register("r1", sess))
		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, []domain.ResultID{"r1"}, reg.IDs())

		got, err := reg.Release("r1")
		require.NoError(t, err)
		assert.Same(t, sess, got)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("Release Unknown", func(t *testing.T) {
		reg := newRegistry()
		_, err := reg.Release("missing")
		assert.ErrorIs(t, err, domain.ErrResultNotFound)
	})

	t.Run("Double Release", func(t *testing.T) {
		reg := newRegistry()
		require.NoError(t, reg.Register("r1", newSession()))

		_, err := reg.Release("r1")
		require.NoError(t, err)
		_, err = reg.Release("r1")
		assert.ErrorIs(t, err, domain.ErrResultNotFound)
	})

	t.Run("Duplicate Register", func(t *testing.T) {
		reg := newRegistry()
		first := newSession()
		require.NoError(t, reg.Register("r1", first))

		err := reg.Register("r1", newSession())
		assert.ErrorIs(t, err, domain.ErrDuplicateResultID)

		// The first entry survives.
		got, err := reg.Release("r1")
		require.NoError(t, err)
		assert.Same(t, first, got)
	})

	t.Run("Drain", func(t *testing.T) {
		reg := newRegistry()
		a, b := newSession(), newSession()
		require.NoError(t, reg.Register("a", a))
		require.NoError(t, reg.Register("b", b))

		drained := reg.Drain()
		assert.Len(t, drained, 2)
		assert.Same(t, a, drained["a"])
		assert.Equal(t, 0, reg.Len())
		assert.Empty(t, reg.Drain())

		_, err := reg.Release("a")
		assert.ErrorIs(t, err, domain.ErrResultNotFound)
	})

	t.Run("Concurrent Release", func(t *testing.T) {
		reg := newRegistry()
		require.NoError(t, reg.Register("r1", newSession()))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := reg.Release("r1"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load(), "exactly one release must win")
	})
}
