package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func sampleChallenge() *Challenge {
	return &Challenge{
		UserID:    uuid.New(),
		Methods:   []string{"email", "totp", "backup-code"},
		State:     StatePending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisChallengeStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*RedisChallengeStore, *miniredis.Miniredis) {
		t.Helper()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisChallengeStore(client), mr
	}

	t.Run("SaveGetRoundTrip", func(t *testing.T) {
		store, _ := newStore(t)
		challenge := sampleChallenge()

		assert.NoError(t, store.Save(ctx, "session-1", challenge, time.Minute))

		got, err := store.Get(ctx, "session-1")
		assert.NoError(t, err)
		assert.Equal(t, challenge.UserID, got.UserID)
		assert.Equal(t, challenge.Methods, got.Methods)
		assert.Equal(t, StatePending, got.State)
	})

	t.Run("ExpiryEvictsChallenge", func(t *testing.T) {
		store, mr := newStore(t)
		challenge := sampleChallenge()

		assert.NoError(t, store.Save(ctx, "session-1", challenge, time.Minute))
		mr.FastForward(2 * time.Minute)

		_, err := store.Get(ctx, "session-1")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("MissingSession", func(t *testing.T) {
		store, _ := newStore(t)

		_, err := store.Get(ctx, "never-created")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("DeleteRemovesChallenge", func(t *testing.T) {
		store, _ := newStore(t)
		challenge := sampleChallenge()

		assert.NoError(t, store.Save(ctx, "session-1", challenge, time.Minute))
		assert.NoError(t, store.Delete(ctx, "session-1"))

		_, err := store.Get(ctx, "session-1")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("UnreachableServerYieldsStoreUnavailable", func(t *testing.T) {
		store, mr := newStore(t)
		mr.Close()

		err := store.Save(ctx, "session-1", sampleChallenge(), time.Minute)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestMemoryChallengeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveGetRoundTrip", func(t *testing.T) {
		store := NewMemoryChallengeStore()
		challenge := sampleChallenge()

		assert.NoError(t, store.Save(ctx, "session-1", challenge, time.Minute))

		got, err := store.Get(ctx, "session-1")
		assert.NoError(t, err)
		assert.Equal(t, challenge.UserID, got.UserID)
	})

	t.Run("ReturnedChallengeIsACopy", func(t *testing.T) {
		store := NewMemoryChallengeStore()
		challenge := sampleChallenge()

		assert.NoError(t, store.Save(ctx, "session-1", challenge, time.Minute))

		first, err := store.Get(ctx, "session-1")
		assert.NoError(t, err)
		first.Attempts = 99
		first.Methods[0] = "tampered"

		second, err := store.Get(ctx, "session-1")
		assert.NoError(t, err)
		assert.Equal(t, 0, second.Attempts)
		assert.Equal(t, "email", second.Methods[0])
	})

	t.Run("SavedChallengeDetachedFromCaller", func(t *testing.T) {
		store := NewMemoryChallengeStore()
		challenge := sampleChallenge()

		assert.NoError(t, store.Save(ctx, "session-1", challenge, time.Minute))
		challenge.State = StateCodeSent

		got, err := store.Get(ctx, "session-1")
		assert.NoError(t, err)
		assert.Equal(t, StatePending, got.State)
	})

	t.Run("MissingSession", func(t *testing.T) {
		store := NewMemoryChallengeStore()

		_, err := store.Get(ctx, "never-created")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("DeleteRemovesChallenge", func(t *testing.T) {
		store := NewMemoryChallengeStore()

		assert.NoError(t, store.Save(ctx, "session-1", sampleChallenge(), time.Minute))
		assert.NoError(t, store.Delete(ctx, "session-1"))

		_, err := store.Get(ctx, "session-1")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})
}
