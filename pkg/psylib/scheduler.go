package psylib

import (
	"context"
	"log"
	"sync"
	"time"
)

// Surface is the external display abstraction the Scheduler renders to.
// Render is called exactly once per frame that produced a FLIP signal.
type Surface interface {
	Render() error
}

// NopSurface is a Surface that renders nothing. It is the default when
// a Scheduler is created without one.
type NopSurface struct{}

// Render does nothing.
func (NopSurface) Render() error { return nil }

// SchedulerStatus is the run state of a Scheduler.
type SchedulerStatus int

const (
	// SchedulerStopped is the initial and terminal state.
	SchedulerStopped SchedulerStatus = iota
	// SchedulerRunning means the frame loop is active.
	SchedulerRunning
)

// String returns the status name.
func (s SchedulerStatus) String() string {
	if s == SchedulerRunning {
		return "RUNNING"
	}
	return "STOPPED"
}

// SchedulerOpts contains optional parameters for NewScheduler.
type SchedulerOpts struct {
	// Surface receives one Render call per rendering frame.
	Surface Surface
	// Clock paces the frame loop. Defaults to a 60fps TickerClock.
	Clock FrameClock
	// ExperimentEnded reports whether the overall experiment has ended.
	// It decides whether a nested scheduler's QUIT propagates to the
	// parent or is translated into NEXT.
	ExperimentEnded func() bool
	// Logger receives scheduler diagnostics.
	Logger *log.Logger
}

// Scheduler owns an ordered queue of (task, arguments) pairs and drives
// them one runnable slice per rendered frame. Tasks are advanced by
// their returned ControlSignal, never preempted. Nested schedulers and
// conditional branching are expressed as ordinary tasks.
type Scheduler struct {
	mu               sync.Mutex
	queue            []taskEntry
	current          *taskEntry
	status           SchedulerStatus
	stopAtNextTask   bool
	stopAtNextUpdate bool

	surface Surface
	clock   FrameClock
	ended   func() bool
	l       *log.Logger

	lastFrame  time.Time
	frameDelta time.Duration
}

// NewScheduler creates a scheduler ready for Add and Start.
func NewScheduler(opts *SchedulerOpts) *Scheduler {
	if opts == nil {
		opts = &SchedulerOpts{}
	}
	s := &Scheduler{
		surface: opts.Surface,
		clock:   opts.Clock,
		ended:   opts.ExperimentEnded,
		l:       opts.Logger,
	}
	if s.surface == nil {
		s.surface = NopSurface{}
	}
	return s
}

// Add appends a (task, args) pair to the queue. The task's shape is not
// validated here; a malformed task surfaces an error when it is run.
func (s *Scheduler) Add(task Task, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, taskEntry{task: task, args: args})
}

// AddConditional schedules a synthetic task that evaluates condition
// and enqueues thenSched or elseSched accordingly, then advances. This
// is how branching is expressed without special scheduler syntax.
func (s *Scheduler) AddConditional(condition func() (bool, error), thenSched, elseSched *Scheduler) {
	s.Add(FuncTask(func(...any) (ControlSignal, error) {
		ok, err := condition()
		if err != nil {
			return SignalQuit, err
		}
		if ok {
			if thenSched != nil {
				s.Add(SubTask(thenSched))
			}
		} else if elseSched != nil {
			s.Add(SubTask(elseSched))
		}
		return SignalNext, nil
	}))
}

// Status returns the current run state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stop requests a graceful shutdown. It takes effect at the next task
// or frame boundary, never interrupting an in-flight task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = SchedulerStopped
	s.stopAtNextTask = true
	s.stopAtNextUpdate = true
}

// FrameDelta returns the duration between the two most recent frames,
// or zero before the second frame.
func (s *Scheduler) FrameDelta() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameDelta
}

// ActualFrameRate returns the measured frame rate in frames per second,
// or zero before the second frame.
func (s *Scheduler) ActualFrameRate() float64 {
	d := s.FrameDelta()
	if d <= 0 {
		return 0
	}
	return 1 / d.Seconds()
}

// Start runs the per-frame execution loop until the queue is exhausted,
// a task returns QUIT, Stop is called, or the context is cancelled. It
// blocks until the scheduler reaches SchedulerStopped and returns the
// first task error, if any. The Scheduler performs no retries: a task
// error aborts the loop and propagates to the caller.
//
// A stopped scheduler may be started again if tasks remain queued.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == SchedulerRunning {
		s.mu.Unlock()
		return ErrSchedulerRunning
	}
	s.status = SchedulerRunning
	s.stopAtNextTask = false
	s.stopAtNextUpdate = false
	s.lastFrame = time.Time{}
	s.frameDelta = 0
	clock := s.clock
	s.mu.Unlock()

	// Nested schedulers never drive their own frame loop, so the
	// default clock is only created when Start actually runs.
	if clock == nil {
		tc := NewTickerClock(DefaultFrameRate)
		defer tc.Stop()
		clock = tc
	}

	defer func() {
		s.mu.Lock()
		s.status = SchedulerStopped
		s.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		stop := s.stopAtNextUpdate
		s.mu.Unlock()
		if stop {
			return nil
		}

		sig, err := s.runNextTasks(ctx)
		if err != nil {
			return err
		}
		if sig == SignalQuit {
			return nil
		}

		// sig is FLIP_REPEAT or FLIP_NEXT: exactly one render, then
		// wait for the next frame.
		if err := s.surface.Render(); err != nil {
			return err
		}
		now, err := clock.Wait(ctx)
		if err != nil {
			return err
		}
		s.recordFrame(now)
	}
}

func (s *Scheduler) recordFrame(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastFrame.IsZero() {
		s.frameDelta = now.Sub(s.lastFrame)
	}
	s.lastFrame = now
}

// popNext promotes the next queue entry to current. Reports false when
// the queue is empty.
func (s *Scheduler) popNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return false
	}
	entry := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &entry
	return true
}

func (s *Scheduler) clearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

func (s *Scheduler) experimentEnded() bool {
	return s.ended != nil && s.ended()
}

// runNextTasks advances scheduled work within a single frame. Only NEXT
// keeps the inner loop spinning, so multiple non-rendering tasks may
// run in one frame; FLIP_REPEAT and FLIP_NEXT both exit to trigger a
// render, the difference being whether the same task stays current.
func (s *Scheduler) runNextTasks(ctx context.Context) (ControlSignal, error) {
	sig := SignalNext
	for sig == SignalNext {
		s.mu.Lock()
		stop := s.stopAtNextTask
		cur := s.current
		s.mu.Unlock()
		if stop {
			return SignalQuit, nil
		}
		if cur == nil {
			if !s.popNext() {
				return SignalQuit, nil
			}
			s.mu.Lock()
			cur = s.current
			s.mu.Unlock()
		}

		var err error
		switch {
		case cur.task.fn != nil:
			sig, err = cur.task.fn(cur.args...)
			if err != nil {
				return SignalQuit, err
			}
		case cur.task.sub != nil:
			sig, err = cur.task.sub.runNextTasks(ctx)
			if err != nil {
				return SignalQuit, err
			}
			// An inner QUIT means the nested scheduler is exhausted,
			// not that the experiment is over, unless the global flag
			// says otherwise.
			if sig == SignalQuit && !s.experimentEnded() {
				sig = SignalNext
			}
		default:
			return SignalQuit, newResourceError("scheduler", "running task", ErrMalformedTask)
		}

		if sig != SignalFlipRepeat {
			s.clearCurrent()
		}
	}
	return sig, nil
}
