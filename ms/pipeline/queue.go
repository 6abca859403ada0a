package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-spectro/ms/model"
)

var errQueueStopped = errors.New("pipeline: queue stopped")

// Task is one queued operation.
type Task struct {
	ID        string
	Input     Input
	Operation Operation
	Payload   map[string]any
}

// Result is the output of a finished task.
type Result struct {
	Task   Task
	Output Output
}

// Failure records a task that failed or never ran.
type Failure struct {
	Task Task
	Err  error
}

// Source returns the identity of the file the failed task worked on.
func (f Failure) Source() string { return sourceOf(f.Task.Input) }

// Queue runs submitted tasks in FIFO order on a single worker, one task at
// a time. Stopping the queue or canceling its context is observed between
// tasks: the running task finishes and every pending task is failed.
type Queue struct {
	pc  *Context
	ctx context.Context

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []Task
	inFlight bool
	closed   bool
	results  []Result
	failed   []Failure

	stopped atomic.Bool
	done    chan struct{}
	release func() bool
}

// NewQueue starts a queue that runs tasks on pc until ctx is canceled or
// Stop is called.
func NewQueue(ctx context.Context, pc *Context) *Queue {
	q := &Queue{pc: pc, ctx: ctx, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	q.release = context.AfterFunc(ctx, q.wake)

	go q.work()

	return q
}

// Submit appends a task and returns its identifier.
func (q *Queue) Submit(in Input, op Operation, payload map[string]any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.stopped.Load() {
		return "", model.NewCanceled(errQueueStopped)
	}

	if err := q.ctx.Err(); err != nil {
		return "", model.NewCanceled(err)
	}

	t := Task{ID: model.NewID("task"), Input: in, Operation: op, Payload: payload}
	q.pending = append(q.pending, t)
	q.cond.Broadcast()

	return t.ID, nil
}

// Pending returns the number of tasks waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Results returns the finished tasks in completion order.
func (q *Queue) Results() []Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.results)
}

// Failed returns the failed set in the order failures were recorded.
func (q *Queue) Failed() []Failure {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.failed)
}

// Wait blocks until no task is pending or running.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 || q.inFlight {
		q.cond.Wait()
	}
}

// Stop requests cancellation, waits for the running task and fails the
// pending ones. It is safe to call more than once.
func (q *Queue) Stop() {
	q.stopped.Store(true)
	q.wake()
	<-q.done
}

func (q *Queue) wake() {
	q.mu.Lock()
	q.closed = q.closed || q.stopped.Load()
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) halted() bool {
	return q.closed || q.stopped.Load() || q.ctx.Err() != nil
}

func (q *Queue) work() {
	defer close(q.done)
	defer q.release()

	for {
		task, ok := q.next()
		if !ok {
			return
		}

		out, err := q.pc.Process(q.ctx, task.Input, task.Operation, task.Payload)

		q.mu.Lock()
		if err != nil {
			q.failed = append(q.failed, Failure{Task: task, Err: err})
		} else {
			q.results = append(q.results, Result{Task: task, Output: out})
		}
		q.inFlight = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// next blocks for the next task. It reports false once the queue is
// stopped or its context is done, after failing everything still pending.
func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.halted() {
		q.cond.Wait()
	}

	if q.halted() {
		cause := q.ctx.Err()
		if cause == nil {
			cause = errQueueStopped
		}

		for _, t := range q.pending {
			q.failed = append(q.failed, Failure{Task: t, Err: model.NewCanceled(cause)})
		}

		q.pending = nil
		q.closed = true
		q.cond.Broadcast()

		return Task{}, false
	}

	task := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = true

	return task, true
}

// Batch is the outcome of ProcessAll.
type Batch struct {
	Outputs  []Output  // outputs of the inputs that succeeded, in input order
	Failures []Failure // failed inputs, in input order
}

// ProcessAll runs op on every input concurrently, at most
// Config.Concurrency at a time. A failing input is recorded in the batch's
// failures and does not stop the others. The error is non-nil only when ctx
// is canceled; the batch then holds whatever completed.
func (c *Context) ProcessAll(ctx context.Context, inputs []Input, op Operation, payload map[string]any) (Batch, error) {
	outs := make([]Output, len(inputs))
	errs := make([]error, len(inputs))

	var g errgroup.Group
	if c.cfg.Concurrency > 0 {
		g.SetLimit(c.cfg.Concurrency)
	}

	for i, in := range inputs {
		g.Go(func() error {
			outs[i], errs[i] = c.Process(ctx, in, op, payload)
			return nil
		})
	}

	_ = g.Wait()

	var b Batch
	for i, err := range errs {
		if err == nil {
			b.Outputs = append(b.Outputs, outs[i])
			continue
		}

		task := Task{ID: model.NewID("task"), Input: inputs[i], Operation: op, Payload: payload}
		b.Failures = append(b.Failures, Failure{Task: task, Err: err})
		c.log.Warn("batch input failed", "op", op.String(), "source", sourceOf(inputs[i]), "err", err)
	}

	if err := ctx.Err(); err != nil {
		return b, model.NewCanceled(err)
	}

	return b, nil
}
