// Package scheduler implements the cycle-driven cooperative scheduler that
// arbitrates between the CPU and the four DMA channels ("drivers") and a
// time-ordered list of pending events (HBlank, VBlank, timer overflow,
// IRQ-line edges). It is the root of the emulator: every other component
// either is a driver or schedules events against it.
package scheduler

// DriverKind identifies an engageable driver. Ordered low-to-high priority:
// the CPU yields to any DMA channel, and DMA0 preempts DMA1/2/3.
type DriverKind int

const (
	DriverCPU DriverKind = iota
	DriverDMA3
	DriverDMA2
	DriverDMA1
	DriverDMA0
)

func (k DriverKind) String() string {
	switch k {
	case DriverCPU:
		return "cpu"
	case DriverDMA3:
		return "dma3"
	case DriverDMA2:
		return "dma2"
	case DriverDMA1:
		return "dma1"
	case DriverDMA0:
		return "dma0"
	default:
		return "unknown"
	}
}

// EventKind tags a scheduled event so it can be found again by
// ChangeEventTime/RemoveEvent without holding a reference to it.
type EventKind int

const (
	EventHBlank EventKind = iota
	EventHBlankSetFlag
	EventIRQLatch
	EventNewScanline
	EventTimerOverflow0
	EventTimerOverflow1
	EventTimerOverflow2
	EventTimerOverflow3
	EventDMAActivate
	EventAPUFrameSequencer
	EventAPUSample
)

// RunFunc runs a driver for up to budget cycles and returns the number of
// cycles actually consumed; it must return promptly once asked to suspend.
type RunFunc func(budget uint64) uint64

// SuspendFunc asks a running driver to stop at its next safe point.
type SuspendFunc func()

// EventCallback fires once an event's absolute time has been reached.
type EventCallback func()

type driver struct {
	kind    DriverKind
	run     RunFunc
	suspend SuspendFunc
}

type event struct {
	kind EventKind
	time uint64
	cb   EventCallback
}

// Scheduler holds the global cycle counter, the ordered event list, and the
// priority-ordered list of engaged drivers. It is not safe for concurrent
// use — by design there is only ever one goroutine driving it (§5).
type Scheduler struct {
	now     uint64
	events  []event  // ordered by ascending time; stable on ties
	drivers []driver // ordered by descending priority; drivers[0] runs
	stopped bool
}

// New returns an empty Scheduler. Callers must EngageDriver at least the
// CPU and AddEvent at least one event before calling Run.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the current global cycle count.
func (s *Scheduler) Now() uint64 { return s.now }

// AddEvent inserts an event at now+delay. If it becomes the new head of the
// event list, the currently running driver is asked to suspend so Run's
// inner loop re-evaluates its budget against the new soonest event.
func (s *Scheduler) AddEvent(kind EventKind, delay uint64, cb EventCallback) {
	at := s.now + delay
	idx := len(s.events)
	for i, e := range s.events {
		if at < e.time {
			idx = i
			break
		}
	}
	s.events = append(s.events, event{})
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = event{kind: kind, time: at, cb: cb}
	if idx == 0 {
		s.suspendRunning()
	}
}

// ChangeEventTime reschedules the first event matching kind to now+newDelay.
func (s *Scheduler) ChangeEventTime(kind EventKind, newDelay uint64) {
	for i, e := range s.events {
		if e.kind == kind {
			cb := e.cb
			s.events = append(s.events[:i], s.events[i+1:]...)
			s.AddEvent(kind, newDelay, cb)
			return
		}
	}
}

// RemoveEvent deletes the first event matching kind, if any.
func (s *Scheduler) RemoveEvent(kind EventKind) {
	for i, e := range s.events {
		if e.kind == kind {
			if i == 0 {
				s.suspendRunning()
			}
			s.events = append(s.events[:i], s.events[i+1:]...)
			return
		}
	}
}

// HasEvent reports whether an event of kind kind is currently pending.
func (s *Scheduler) HasEvent(kind EventKind) bool {
	for _, e := range s.events {
		if e.kind == kind {
			return true
		}
	}
	return false
}

// EngageDriver inserts a driver into the priority-ordered list. If it
// becomes the new head (highest priority), the previously-running driver is
// suspended.
func (s *Scheduler) EngageDriver(kind DriverKind, run RunFunc, suspend SuspendFunc) {
	idx := len(s.drivers)
	for i, d := range s.drivers {
		if kind > d.kind {
			idx = i
			break
		}
	}
	s.drivers = append(s.drivers, driver{})
	copy(s.drivers[idx+1:], s.drivers[idx:])
	s.drivers[idx] = driver{kind: kind, run: run, suspend: suspend}
	if idx == 0 && len(s.drivers) > 1 {
		s.drivers[1].suspend()
	}
}

// DisengageDriver removes a driver from the priority-ordered list.
func (s *Scheduler) DisengageDriver(kind DriverKind) {
	for i, d := range s.drivers {
		if d.kind == kind {
			s.drivers = append(s.drivers[:i], s.drivers[i+1:]...)
			return
		}
	}
}

// IsEngaged reports whether a driver of kind kind is currently engaged.
func (s *Scheduler) IsEngaged(kind DriverKind) bool {
	for _, d := range s.drivers {
		if d.kind == kind {
			return true
		}
	}
	return false
}

func (s *Scheduler) suspendRunning() {
	if len(s.drivers) > 0 {
		s.drivers[0].suspend()
	}
}

// Run loops forever: it runs the highest-priority engaged driver up to the
// next event's time, snaps the clock to that event (truncating any
// overrun), and fires the event's callback. Stop() causes it to return at
// the next event boundary.
func (s *Scheduler) Run() {
	s.stopped = false
	for !s.stopped {
		if len(s.events) == 0 || len(s.drivers) == 0 {
			return
		}
		for s.now < s.events[0].time {
			budget := s.events[0].time - s.now
			s.now += s.drivers[0].run(budget)
			if s.stopped {
				return
			}
		}
		top := s.events[0]
		s.events = s.events[1:]
		s.now = top.time
		top.cb()
	}
}

// Stop causes Run's loop to exit at the next event boundary.
func (s *Scheduler) Stop() { s.stopped = true }
