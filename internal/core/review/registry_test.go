package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SetGetDelete(t *testing.T) {
	reg := NewRegistry()
	s := NewSession(testFiles(), Options{})

	_, ok := reg.Get(s.ID())
	assert.False(t, ok)

	reg.Set(s)
	got, ok := reg.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Delete(s.ID()))
	assert.False(t, reg.Delete(s.ID()))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession(testFiles(), Options{})
			reg.Set(s)
			_, _ = reg.Get(s.ID())
			_ = reg.All()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, reg.Len())
}

func TestRegistry_ClearCancelsPending(t *testing.T) {
	reg := NewRegistry()

	pending := NewSession(testFiles(), Options{})
	done := NewSession(testFiles(), Options{})
	_, err := done.Complete(StatusApproved, "")
	require.NoError(t, err)

	reg.Set(pending)
	reg.Set(done)

	reg.Clear()
	assert.Equal(t, 0, reg.Len())

	_, err = pending.Signal().Wait(context.Background())
	require.ErrorIs(t, err, ErrReviewCancelled)
	assert.Contains(t, err.Error(), "shutting down")

	// Completed sessions keep their stored outcome.
	res, err := done.Signal().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
}

func TestRegistry_CleanupOld(t *testing.T) {
	reg := NewRegistry()

	oldDone := NewSession(testFiles(), Options{})
	oldDone.createdAt = time.Now().Add(-48 * time.Hour)
	_, err := oldDone.Complete(StatusApproved, "")
	require.NoError(t, err)

	oldPending := NewSession(testFiles(), Options{})
	oldPending.createdAt = time.Now().Add(-48 * time.Hour)

	freshDone := NewSession(testFiles(), Options{})
	_, err = freshDone.Complete(StatusApproved, "")
	require.NoError(t, err)

	reg.Set(oldDone)
	reg.Set(oldPending)
	reg.Set(freshDone)

	removed := reg.CleanupOld(24 * time.Hour)
	assert.Equal(t, 1, removed)

	// Old but pending survives: only the session timeout retires it.
	_, ok := reg.Get(oldPending.ID())
	assert.True(t, ok)
	_, ok = reg.Get(freshDone.ID())
	assert.True(t, ok)
	_, ok = reg.Get(oldDone.ID())
	assert.False(t, ok)
}
