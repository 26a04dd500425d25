package uithread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("uithread: loop stopped")

// Claim states of a task queued by Do.
const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

// Loop is a single-consumer task queue. Every task posted to it runs on the
// goroutine that called Run, one at a time, in post order.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  *zap.Logger
}

// New creates a loop. The queue is unbounded so posting from inside a
// running task never blocks.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Post queues task for execution on the loop.
func (l *Loop) Post(task func()) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}

	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do posts task and waits for it to finish. Calling Do from a task running
// on the same loop deadlocks; tasks post instead.
//
// If ctx ends or the loop stops before task has started, task is abandoned
// and never runs. Once task has started, Do waits for it to finish.
func (l *Loop) Do(ctx context.Context, task func()) error {
	var claim atomic.Int32
	done := make(chan struct{})
	if err := l.Post(func() {
		if !claim.CompareAndSwap(taskPending, taskRunning) {
			return
		}
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	var err error
	select {
	case <-done:
		return nil
	case <-l.stopped:
		err = ErrStopped
	case <-ctx.Done():
		err = ctx.Err()
	}

	if claim.CompareAndSwap(taskPending, taskAbandoned) {
		return err
	}
	<-done
	return nil
}

// Run consumes tasks until ctx is cancelled or Stop is called. Tasks still
// queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()

	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.run(task)
			select {
			case <-l.stopped:
				return nil
			default:
			}
		}

		select {
		case <-l.wake:
		case <-l.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop ends Run and rejects further posts.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.stopped)

		l.mu.Lock()
		dropped := len(l.tasks)
		l.tasks = nil
		l.mu.Unlock()

		if dropped > 0 {
			l.logger.Debug("Loop stopped with pending tasks", zap.Int("dropped", dropped))
		}
	})
}

// Stopped is closed once the loop stops.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task, true
}

// run executes one task. Guard violations propagate; any other panic is
// logged and the loop continues.
func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			var violation *ConcurrentAccessError
			if e, ok := r.(error); ok && errors.As(e, &violation) {
				panic(r)
			}
			l.logger.Error("Loop task panicked", zap.Any("panic", r))
		}
	}()

	task()
}
