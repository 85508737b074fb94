package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorBoundsConcurrency(t *testing.T) {
	s := NewSupervisor(2, 0, zerolog.Nop())
	var running, peak int32
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Go(func(ctx context.Context) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
		}))
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestSupervisorAppliesJobTimeout(t *testing.T) {
	s := NewSupervisor(0, 20*time.Millisecond, zerolog.Nop())
	errs := make(chan error, 1)
	require.NoError(t, s.Go(func(ctx context.Context) {
		<-ctx.Done()
		errs <- ctx.Err()
	}))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatalf("task was not canceled by the job timeout")
	}
}

func TestSupervisorShutdownCancelsAfterDeadline(t *testing.T) {
	s := NewSupervisor(0, 0, zerolog.Nop())
	canceled := make(chan struct{})
	require.NoError(t, s.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-canceled

	assert.ErrorIs(t, s.Go(func(context.Context) {}), ErrShuttingDown)
}
