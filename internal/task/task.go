// Package task runs suspending sequences in lock step with a frame tick.
//
// Every task is a goroutine, but at most one of them (or the goroutine calling
// Tick) runs at any moment: control is handed over explicitly through
// unbuffered channels. Code inside a task may therefore touch the same state
// as the ticking goroutine without locks.
package task

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("scheduler closed")

type Func func(y *Yielder) error

type Task struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	resume chan struct{}
	yield  chan struct{}
	done   bool
	err    error
}

func (t *Task) Name() string { return t.name }

// Done reports whether the task has finished, normally or by cancellation.
func (t *Task) Done() bool { return t.done }

// Err is the task's result once Done.
func (t *Task) Err() error { return t.err }

// Cancel cancels the task. It is unwound on the next Tick.
func (t *Task) Cancel() { t.cancel() }

type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
	tasks  []*Task
	now    time.Duration
	dt     time.Duration
	closed bool
}

func NewScheduler(parent context.Context, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel, log: log.Named("task")}
}

// Now is the scheduler clock: the sum of every dt passed to Tick.
func (s *Scheduler) Now() time.Duration { return s.now }

func (s *Scheduler) Len() int { return len(s.tasks) }

// Go starts fn as a task owned by ctx and runs it up to its first suspension
// point before returning. Cancelling ctx cancels the task.
func (s *Scheduler) Go(ctx context.Context, name string, fn Func) *Task {
	tctx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   name,
		ctx:    tctx,
		cancel: cancel,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	if s.closed {
		cancel()
		t.done, t.err = true, ErrClosed
		return t
	}
	stop := context.AfterFunc(s.ctx, cancel)
	go s.run(t, fn, stop)
	s.tasks = append(s.tasks, t)
	s.step(t)
	return t
}

func (s *Scheduler) run(t *Task, fn Func, stop func() bool) {
	returned := false
	defer func() {
		stop()
		t.cancel()
		if !returned {
			t.err = context.Canceled
		}
		t.done = true
		if t.err != nil && !errors.Is(t.err, context.Canceled) {
			s.log.Debug("task failed", zap.String("task", t.name), zap.Error(t.err))
		}
		t.yield <- struct{}{}
	}()
	<-t.resume
	if err := t.ctx.Err(); err != nil {
		t.err = err
		returned = true
		return
	}
	t.err = fn(&Yielder{s: s, t: t})
	returned = true
}

func (s *Scheduler) step(t *Task) {
	t.resume <- struct{}{}
	<-t.yield
}

// Tick advances the clock by dt and resumes every live task once, in the
// order they were started. Cancelled tasks are resumed one last time so they
// can unwind.
func (s *Scheduler) Tick(dt time.Duration) {
	s.now += dt
	s.dt = dt
	for _, t := range slices.Clone(s.tasks) {
		if !t.done {
			s.step(t)
		}
	}
	s.tasks = slices.DeleteFunc(s.tasks, func(t *Task) bool { return t.done })
}

// Close cancels every task and unwinds them. Tasks started afterwards fail
// with ErrClosed.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	// AfterFunc cancels the tasks on its own goroutine; cancel them here so
	// every task sees its context error on the step below.
	for _, t := range s.tasks {
		t.cancel()
	}
	for _, t := range s.tasks {
		if !t.done {
			s.step(t)
		}
	}
	s.tasks = nil
}

// Yielder is handed to a running task. Its methods are the task's only
// suspension points and must be called from the task's own goroutine.
type Yielder struct {
	s *Scheduler
	t *Task
}

func (y *Yielder) Context() context.Context { return y.t.ctx }

func (y *Yielder) Now() time.Duration { return y.s.now }

// Delta is the dt of the tick that last resumed the task.
func (y *Yielder) Delta() time.Duration { return y.s.dt }

// Yield suspends until the next Tick. It returns the task's context error
// once the owner is cancelled; a task that suspends again after that is
// terminated without being resumed.
func (y *Yielder) Yield() error {
	if y.t.ctx.Err() != nil {
		runtime.Goexit()
	}
	y.t.yield <- struct{}{}
	<-y.t.resume
	return y.t.ctx.Err()
}

// Delay suspends until at least d of scheduler time has passed.
func (y *Yielder) Delay(d time.Duration) error {
	deadline := y.s.now + d
	for y.s.now < deadline {
		if err := y.Yield(); err != nil {
			return err
		}
	}
	return nil
}

// WaitUntil suspends until pred holds. pred is evaluated once per tick.
func (y *Yielder) WaitUntil(pred func() bool) error {
	for !pred() {
		if err := y.Yield(); err != nil {
			return err
		}
	}
	return nil
}

// Hold calls acquire, then fn, and always calls release exactly once
// afterwards, including when the task is cancelled or terminated inside fn.
func Hold(acquire, release func(), fn func() error) error {
	acquire()
	defer release()
	return fn()
}
