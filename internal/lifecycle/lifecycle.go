// Package lifecycle holds the run state shared between a capture engine and
// the producer thread of its backend.
package lifecycle

import "sync/atomic"

// State is the run state of one capture session.
type State uint32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Lifecycle is an Idle -> Running -> Stopping -> Idle state machine backed by
// a single atomic word. The zero value is Idle.
//
// Producer loops poll Load; controllers move the state with Arm, Disarm and
// Reset. No mutex is involved so a poll loop observes a transition on its
// next check without blocking.
type Lifecycle struct {
	v atomic.Uint32
}

func (l *Lifecycle) Load() State {
	return State(l.v.Load())
}

// Arm moves Idle to Running. It reports false if the state was not Idle.
func (l *Lifecycle) Arm() bool {
	return l.v.CompareAndSwap(uint32(Idle), uint32(Running))
}

// Disarm moves Idle or Running to Stopping and returns the previous state.
// Calling it while already Stopping is a no-op.
func (l *Lifecycle) Disarm() State {
	for {
		prev := l.v.Load()
		if State(prev) == Stopping {
			return Stopping
		}
		if l.v.CompareAndSwap(prev, uint32(Stopping)) {
			return State(prev)
		}
	}
}

// Reset moves Stopping back to Idle once the producer has exited. It reports
// false if the state was not Stopping.
func (l *Lifecycle) Reset() bool {
	return l.v.CompareAndSwap(uint32(Stopping), uint32(Idle))
}
