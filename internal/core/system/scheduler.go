package system

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a handle to a scheduled recurring invocation.
type Task interface {
	// Cancel stops future invocations. It does not wait for an invocation
	// already in progress and is safe to call from inside the task itself.
	Cancel()
}

// Scheduler runs recurring tasks at a fixed rate, one goroutine per task.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel, log: log}
}

type fixedRateTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *fixedRateTask) Cancel() { t.cancel() }

// Done is closed once the task goroutine has exited.
func (t *fixedRateTask) Done() <-chan struct{} { return t.done }

// ScheduleAtFixedRate invokes fn after delay and then every period until the
// returned task is cancelled or the scheduler shuts down. Ticks that fall due
// while fn is still running are dropped.
func (s *Scheduler) ScheduleAtFixedRate(fn func(), delay, period time.Duration) Task {
	ctx, cancel := context.WithCancel(s.ctx)
	t := &fixedRateTask{cancel: cancel, done: make(chan struct{})}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			if ctx.Err() != nil {
				return
			}
			s.invoke(fn)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return t
}

func (s *Scheduler) invoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("scheduled task panic recovered", zap.Any("panic", rec))
		}
	}()
	fn()
}

// Shutdown cancels every task and waits for their goroutines to exit.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
