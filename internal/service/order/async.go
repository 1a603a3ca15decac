package order

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type taskError struct {
	task string
	err  error
}

// dispatcher runs fire-and-forget tasks. Failures never reach the caller;
// they flow through a bounded channel into a supervising drain goroutine
// that only logs them.
type dispatcher struct {
	logger *zap.Logger
	errs   chan taskError
	wg     sync.WaitGroup
	closed chan struct{}
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger,
		errs:   make(chan taskError, 64),
		closed: make(chan struct{}),
	}
	go d.drain()
	return d
}

func (d *dispatcher) drain() {
	for te := range d.errs {
		d.logger.Warn("background task failed", zap.String("task", te.task), zap.Error(te.err))
	}
	close(d.closed)
}

// Go launches fn detached from the caller's cancellation but keeps its
// span/trace values.
func (d *dispatcher) Go(ctx context.Context, task string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(ctx); err != nil {
			select {
			case d.errs <- taskError{task: task, err: err}:
			default:
				d.logger.Warn("background task failed, error channel full", zap.String("task", task), zap.Error(err))
			}
		}
	}()
}

// Close waits for in-flight tasks and stops the drain goroutine.
func (d *dispatcher) Close() {
	d.wg.Wait()
	close(d.errs)
	<-d.closed
}
