package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"contact-form-service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*FormStateStore, *miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFormStateStore(client, ttl), mr, client
}

// unreachable returns a client for a port nothing listens on
func unreachable(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func setFirstName(name string) func(domain.FormState) (domain.FormState, error) {
	return func(s domain.FormState) (domain.FormState, error) {
		s.Data.FirstName = name
		return s, nil
	}
}

func TestFormStateStoreKey(t *testing.T) {
	s := NewFormStateStore(nil, time.Minute)
	assert.Equal(t, "contact:form:abc", s.key("abc"))
}

func TestFormStateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should miss an unknown session", func(t *testing.T) {
		s, _, _ := newTestStore(t, time.Minute)

		_, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should start updates from a fresh form", func(t *testing.T) {
		s, _, _ := newTestStore(t, time.Minute)

		var seen domain.FormState
		_, err := s.Update(ctx, "s1", func(st domain.FormState) (domain.FormState, error) {
			seen = st
			return st, nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.NewFormState(), seen)
	})

	t.Run("Should store the state with its ttl", func(t *testing.T) {
		s, mr, _ := newTestStore(t, time.Minute)

		next, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		got, ok, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, next, got)
		assert.Equal(t, time.Minute, mr.TTL(DefaultKeyPrefix+"s1"))
	})

	t.Run("Should round trip errors and phase", func(t *testing.T) {
		s, _, _ := newTestStore(t, time.Minute)
		want := domain.FormState{
			Data:  domain.FormData{Email: "not-an-email", Consent: true},
			Phase: domain.PhaseEditing,
			Errors: domain.ErrorMap{
				domain.FieldEmail: domain.MsgInvalidEmail,
				domain.FieldMsg:   domain.RequiredMessage(domain.FieldMsg),
			},
		}

		_, err := s.Update(ctx, "s1", func(domain.FormState) (domain.FormState, error) { return want, nil })
		require.NoError(t, err)

		got, _, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, want, got)

		_, err = s.Update(ctx, "s2", func(domain.FormState) (domain.FormState, error) {
			return domain.FormState{Phase: domain.PhaseSuccess}, nil
		})
		require.NoError(t, err)
		got, _, _ = s.Get(ctx, "s2")
		assert.Equal(t, domain.MsgSubmitted, got.SuccessMessage())
	})

	t.Run("Should keep sessions apart", func(t *testing.T) {
		s, _, _ := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)
		_, err = s.Update(ctx, "s2", setFirstName("Bea"))
		require.NoError(t, err)

		got, _, _ := s.Get(ctx, "s1")
		assert.Equal(t, "Ann", got.Data.FirstName)
	})

	t.Run("Should keep the old state when the update fails", func(t *testing.T) {
		s, _, _ := newTestStore(t, time.Minute)
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

	t.Run("Should delete a session", func(t *testing.T) {
		s, mr, _ := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "s1"))
		require.NoError(t, s.Delete(ctx, "s1"))
		assert.False(t, mr.Exists(DefaultKeyPrefix+"s1"))
	})

	t.Run("Should fail on a corrupt value", func(t *testing.T) {
		s, mr, _ := newTestStore(t, time.Minute)
		require.NoError(t, mr.Set(DefaultKeyPrefix+"s1", "{not json"))

		_, _, err := s.Get(ctx, "s1")
		assert.Error(t, err)
	})
}

func TestFormStateStoreExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("Should expire idle sessions", func(t *testing.T) {
		s, mr, _ := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		mr.FastForward(time.Minute + time.Second)

		_, ok, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should extend the ttl on update", func(t *testing.T) {
		s, mr, _ := newTestStore(t, time.Minute)
		_, err := s.Update(ctx, "s1", setFirstName("Ann"))
		require.NoError(t, err)

		mr.FastForward(40 * time.Second)
		_, err = s.Update(ctx, "s1", setFirstName("Bea"))
		require.NoError(t, err)
		mr.FastForward(40 * time.Second)

		got, ok, _ := s.Get(ctx, "s1")
		require.True(t, ok)
		assert.Equal(t, "Bea", got.Data.FirstName)
	})
}

func TestFormStateStoreConcurrentWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("Should retry after a concurrent write", func(t *testing.T) {
		s, _, other := newTestStore(t, time.Minute)
		runs := 0

		next, err := s.Update(ctx, "s1", func(st domain.FormState) (domain.FormState, error) {
			runs++
			if runs == 1 {
				require.NoError(t, other.Set(ctx, DefaultKeyPrefix+"s1", `{"data":{"lastName":"Lee"},"phase":"editing"}`, 0).Err())
			}
			st.Data.FirstName = "Ann"
			return st, nil
		})
		require.NoError(t, err)

		assert.Equal(t, 2, runs)
		assert.Equal(t, "Lee", next.Data.LastName)
		assert.Equal(t, "Ann", next.Data.FirstName)
	})

	t.Run("Should give up after repeated conflicts", func(t *testing.T) {
		s, _, other := newTestStore(t, time.Minute)
		runs := 0

		_, err := s.Update(ctx, "s1", func(st domain.FormState) (domain.FormState, error) {
			runs++
			require.NoError(t, other.Set(ctx, DefaultKeyPrefix+"s1", `{"phase":"editing"}`, 0).Err())
			return st, nil
		})

		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, maxUpdateRetries, runs)
	})
}

func TestFormStateStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s := NewFormStateStore(unreachable(t), time.Minute)

	t.Run("Should fail reads", func(t *testing.T) {
		_, ok, err := s.Get(ctx, "abc")
		require.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("Should not run the update", func(t *testing.T) {
		called := false
		_, err := s.Update(ctx, "abc", func(st domain.FormState) (domain.FormState, error) {
			called = true
			return st, nil
		})
		require.Error(t, err)
		assert.False(t, called)
	})

	t.Run("Should fail deletes", func(t *testing.T) {
		assert.Error(t, s.Delete(ctx, "abc"))
	})
}
