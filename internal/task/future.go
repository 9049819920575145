package task

// Future is a value that becomes available later, typically when a replicated
// field changes. The first Resolve or Fail wins.
type Future[T any] struct {
	done bool
	val  T
	err  error
}

func NewFuture[T any]() *Future[T] { return &Future[T]{} }

// Resolved returns a future that is already done.
func Resolved[T any](v T) *Future[T] { return &Future[T]{done: true, val: v} }

func (f *Future[T]) Resolve(v T) bool {
	if f.done {
		return false
	}
	f.done, f.val = true, v
	return true
}

func (f *Future[T]) Fail(err error) bool {
	if f.done {
		return false
	}
	f.done, f.err = true, err
	return true
}

func (f *Future[T]) Done() bool { return f.done }

func (f *Future[T]) Result() (T, error) { return f.val, f.err }

// Await suspends the calling task until f is done.
func Await[T any](y *Yielder, f *Future[T]) (T, error) {
	if err := y.WaitUntil(f.Done); err != nil {
		var zero T
		return zero, err
	}
	return f.Result()
}
