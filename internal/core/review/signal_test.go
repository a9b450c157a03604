package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_ResolveReleasesAllWaiters(t *testing.T) {
	sig := NewSignal()

	const waiters = 10
	results := make(chan Result, waiters)

	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := sig.Wait(context.Background())
			assert.NoError(t, err)
			results <- res
		}()
	}

	want := Result{Status: StatusApproved, Feedback: "ship it"}
	assert.True(t, sig.Resolve(want))

	wg.Wait()
	close(results)

	count := 0
	for res := range results {
		count++
		assert.Equal(t, StatusApproved, res.Status)
		assert.Equal(t, "ship it", res.Feedback)
	}
	assert.Equal(t, waiters, count)
}

func TestSignal_FirstOutcomeWins(t *testing.T) {
	sig := NewSignal()

	require.True(t, sig.Resolve(Result{Status: StatusApproved}))
	assert.False(t, sig.Resolve(Result{Status: StatusChangesRequested}))
	assert.False(t, sig.Reject(errors.New("too late")))

	res, err := sig.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
}

func TestSignal_RejectSurfacesError(t *testing.T) {
	sig := NewSignal()

	cause := errors.New("review cancelled: user closed the tab")
	require.True(t, sig.Reject(cause))
	assert.False(t, sig.Reject(errors.New("double reject")))

	_, err := sig.Wait(context.Background())
	assert.Equal(t, cause, err)
}

func TestSignal_LateWaiterSeesStoredOutcome(t *testing.T) {
	sig := NewSignal()
	sig.Resolve(Result{Status: StatusChangesRequested, Feedback: "fix the tests"})

	// A waiter arriving after resolution must not block, even with an
	// already-cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := sig.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusChangesRequested, res.Status)
	assert.Equal(t, "fix the tests", res.Feedback)
}

func TestSignal_WaitHonorsContext(t *testing.T) {
	sig := NewSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sig.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The signal itself is untouched and can still fire.
	assert.True(t, sig.Resolve(Result{Status: StatusApproved}))
}

func TestSignal_Outcome(t *testing.T) {
	sig := NewSignal()

	_, _, fired := sig.Outcome()
	assert.False(t, fired)

	sig.Resolve(Result{Status: StatusApproved})

	res, err, fired := sig.Outcome()
	assert.True(t, fired)
	assert.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
}
