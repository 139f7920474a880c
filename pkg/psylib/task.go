package psylib

// TaskFunc is a unit of scheduled work. It receives the argument list
// bound at scheduling time and returns a ControlSignal. A non-nil error
// aborts the scheduler and propagates out of Start.
type TaskFunc func(args ...any) (ControlSignal, error)

// Task is a tagged variant: either a callable or a nested Scheduler.
// The zero value is malformed and surfaces ErrMalformedTask when run,
// not when added.
type Task struct {
	fn  TaskFunc
	sub *Scheduler
}

// FuncTask wraps a callable into a Task.
func FuncTask(fn TaskFunc) Task {
	return Task{fn: fn}
}

// SubTask wraps a nested Scheduler into a Task. Each time the parent
// visits it, the nested scheduler runs until it needs a render or its
// queue is exhausted.
func SubTask(s *Scheduler) Task {
	return Task{sub: s}
}

// taskEntry pairs a task with the arguments bound at Add time.
type taskEntry struct {
	task Task
	args []any
}
