package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"contact-form-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, ttl time.Duration) (*FormStateStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewFormStateStore(ttl, 0)
	s.now = clock.Now
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func setFirstName(name string) func(domain.FormState) (domain.FormState, error) {
	return func(s domain.FormState) (domain.FormState, error) {
		s.Data.FirstName = name
		return s, nil
	}
}

func TestFormStateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should miss an unknown session", func(t *testing.T) {
		s, _ := newTestStore(t, time.Minute)

		_, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should start updates from a fresh form", func(t *testing.T) {
		s, _ := newTestStore(t, time.Minute)

		var seen domain.FormState
		_, err := s.Update(ctx, "s1", func(st domain.FormState) (domain.FormState, error) {
			seen = st
			return st, nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.NewFormState(), seen)
	})

	t.Run("Should store the updated state", func(t *testing.T) {
		s, _ := newTestStore(t, time.Minute)

		next, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)
		assert.Equal(t, "Ann", next.Data.FirstName)

		got, ok, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, next, got)
	})

	t.Run("Should keep the old state when the update fails", func(t *testing.T) {
		s, _ := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = s.Update(ctx, "s1", func(domain.FormState) (domain.FormState, error) {
			return domain.FormState{}, boom
		})
		assert.ErrorIs(t, err, boom)

		got, _, _ := s.Get(ctx, "s1")
		assert.Equal(t, "Ann", got.Data.FirstName)
	})

	t.Run("Should refuse a cancelled context", func(t *testing.T) {
		s, _ := newTestStore(t, time.Minute)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Update(cctx, "s1", setFirstName("Ann"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, s.Len())
	})

	t.Run("Should delete a session", func(t *testing.T) {
		s, _ := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "s1"))
		require.NoError(t, s.Delete(ctx, "s1"))

		_, ok, _ := s.Get(ctx, "s1")
		assert.False(t, ok)
	})
}

func TestFormStateStoreExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("Should expire idle sessions", func(t *testing.T) {
		s, clock := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		clock.Advance(time.Minute + time.Second)

		_, ok, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, s.Len())
	})

	t.Run("Should extend the ttl on update", func(t *testing.T) {
		s, clock := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		clock.Advance(40 * time.Second)
		_, err = s.Update(ctx, "s1", setFirstName("Bea"))
		require.NoError(t, err)
		clock.Advance(40 * time.Second)

		got, ok, _ := s.Get(ctx, "s1")
		require.True(t, ok)
		assert.Equal(t, "Bea", got.Data.FirstName)
	})

	t.Run("Should restart an expired session from scratch", func(t *testing.T) {
		s, clock := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)
		clock.Advance(2 * time.Minute)

		next, err := s.Update(ctx, "s1", func(st domain.FormState) (domain.FormState, error) {
			return st, nil
		})
		require.NoError(t, err)
		assert.Empty(t, next.Data.FirstName)
	})

	t.Run("Should sweep only expired entries", func(t *testing.T) {
		s, clock := newTestStore(t, time.Minute)
		_, _ = s.Update(ctx, "old", setFirstName("Ann"))
		clock.Advance(50 * time.Second)
		_, _ = s.Update(ctx, "new", setFirstName("Bea"))
		clock.Advance(20 * time.Second)

		s.sweep()

		assert.Equal(t, 1, s.Len())
		_, ok, _ := s.Get(ctx, "new")
		assert.True(t, ok)
	})

	t.Run("Should close more than once", func(t *testing.T) {
		s := NewFormStateStore(time.Minute, time.Millisecond)
		assert.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})
}
