package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/SkelleTu/UltraPix/internal/infra"
)

// ErrShuttingDown is returned by Supervisor.Go once Shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// Supervisor runs background jobs detached from the request that started
// them. Concurrency and per-job deadlines are optional; zero means none.
type Supervisor struct {
	base    context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  infra.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewSupervisor(maxConcurrent int, timeout time.Duration, logger infra.Logger) *Supervisor {
	base, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		base:    base,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
	}
	if maxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return s
}

// Go starts task in its own goroutine and returns immediately. When a
// concurrency limit is set the task waits for a slot inside that goroutine.
func (s *Supervisor) Go(task func(ctx context.Context)) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx := s.base
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				// base is canceled; the task observes that and fails fast.
				task(ctx)
				return
			}
			defer s.sem.Release(1)
		}
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		task(ctx)
	}()
	return nil
}

// Shutdown stops accepting work and waits for running tasks. If ctx expires
// first, running tasks are canceled and Shutdown waits for them to unwind.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("shutdown deadline reached, canceling running jobs")
		s.cancel()
		<-done
		return ctx.Err()
	}
}
