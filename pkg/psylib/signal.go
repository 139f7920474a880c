// Package psylib provides the run-time core of the psykit experiment
// player: the frame-synchronized cooperative Scheduler and the
// ResourceManager that acquires remote assets before and during a
// running session.
package psylib

// ControlSignal is the value every scheduled task returns to tell the
// Scheduler how to proceed.
type ControlSignal int

const (
	// SignalNext advances to the next task without rendering.
	SignalNext ControlSignal = iota
	// SignalFlipRepeat renders the surface, then runs the same task
	// again on the next frame.
	SignalFlipRepeat
	// SignalFlipNext renders the surface, then advances to the next task.
	SignalFlipNext
	// SignalQuit terminates the scheduler.
	SignalQuit
)

// String returns the signal name.
func (s ControlSignal) String() string {
	switch s {
	case SignalNext:
		return "NEXT"
	case SignalFlipRepeat:
		return "FLIP_REPEAT"
	case SignalFlipNext:
		return "FLIP_NEXT"
	case SignalQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}
