// Package timer implements the GBA's four cascaded 16-bit up-counters.
// Each timer either free-runs off a prescaled system clock or, in
// count-up ("cascade") mode, increments once per overflow of the timer
// below it. Overflow reloads the counter and can raise an IRQ.
package timer

import (
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
)

var prescalerToPeriod = [4]uint64{1, 64, 256, 1024}

var overflowEvents = [4]scheduler.EventKind{
	scheduler.EventTimerOverflow0,
	scheduler.EventTimerOverflow1,
	scheduler.EventTimerOverflow2,
	scheduler.EventTimerOverflow3,
}

var irqSources = [4]irq.Source{irq.Timer0, irq.Timer1, irq.Timer2, irq.Timer3}

// Timer is one TMxCNT_L/TMxCNT_H pair.
type Timer struct {
	index int

	counter uint16
	reload  uint16

	prescaler  uint8 // 0..3 indexing prescalerToPeriod
	countUp    bool  // cascade off the previous timer's overflow instead of the prescaled clock
	irqEnable  bool
	enable     bool
	isCounting bool // enable && (index==0 || !countUp || prev.isCounting)
}

// Chain owns all four timers and wires overflow into the IRQ controller
// and the scheduler.
type Chain struct {
	timers [4]Timer
	sched  *scheduler.Scheduler
	irqSrc *irq.Controller
}

// New constructs an idle Chain bound to sched and irqSrc.
func New(sched *scheduler.Scheduler, irqSrc *irq.Controller) *Chain {
	c := &Chain{sched: sched, irqSrc: irqSrc}
	for i := range c.timers {
		c.timers[i].index = i
	}
	return c
}

// Reset stops every timer and clears its registers.
func (c *Chain) Reset() {
	for i := range c.timers {
		idx := c.timers[i].index
		c.timers[i] = Timer{index: idx}
		c.sched.RemoveEvent(overflowEvents[i])
	}
}

func (c *Chain) prev(i int) *Timer {
	if i == 0 {
		return nil
	}
	return &c.timers[i-1]
}

// ReadCounter returns timer i's counter (TMxCNT_L). A prescaler-clocked
// timer's counter is only updated when the timer starts or overflows, so a
// read returns the value set then, not one advanced by the cycles elapsed
// since; a count-up timer's counter is live.
func (c *Chain) ReadCounter(i int) uint16 { return c.timers[i].counter }

// ReadControl returns timer i's control byte (TMxCNT_H, low byte).
func (c *Chain) ReadControl(i int) uint8 {
	t := &c.timers[i]
	var v uint8
	v |= t.prescaler & 3
	if t.countUp {
		v |= 1 << 2
	}
	if t.irqEnable {
		v |= 1 << 6
	}
	if t.enable {
		v |= 1 << 7
	}
	return v
}

// WriteReload sets timer i's reload register; it only takes effect the
// next time the timer (re)starts or overflows, matching hardware.
func (c *Chain) WriteReload(i int, v uint16) {
	c.timers[i].reload = v
}

// WriteControl writes timer i's control byte and starts/stops it,
// rescheduling its overflow event as needed.
func (c *Chain) WriteControl(i int, v uint8) {
	t := &c.timers[i]
	wasEnabled := t.enable
	t.prescaler = v & 3
	t.countUp = v&(1<<2) != 0 && i != 0
	t.irqEnable = v&(1<<6) != 0
	t.enable = v&(1<<7) != 0

	if !t.enable {
		if wasEnabled {
			c.sched.RemoveEvent(overflowEvents[i])
		}
		t.isCounting = false
		return
	}
	if !wasEnabled {
		t.counter = t.reload
	}
	t.isCounting = !t.countUp || (c.prev(i) != nil && c.prev(i).isCounting)
	if !t.countUp {
		c.scheduleOverflow(i)
	} else {
		c.sched.RemoveEvent(overflowEvents[i])
	}
}

func (c *Chain) scheduleOverflow(i int) {
	t := &c.timers[i]
	period := prescalerToPeriod[t.prescaler]
	remaining := uint64(0x10000-uint32(t.counter)) * period
	c.sched.RemoveEvent(overflowEvents[i])
	c.sched.AddEvent(overflowEvents[i], remaining, func() { c.overflow(i) })
}

// overflow fires when a prescaler-clocked timer's counter wraps past
// 0xFFFF: it reloads, raises its IRQ if enabled, reschedules itself, and
// cascades into the next timer if that timer is in count-up mode.
func (c *Chain) overflow(i int) {
	t := &c.timers[i]
	t.counter = t.reload
	if t.irqEnable {
		c.irqSrc.Raise(irqSources[i])
	}
	c.scheduleOverflow(i)
	if i+1 < len(c.timers) {
		next := &c.timers[i+1]
		if next.enable && next.countUp {
			c.cascadeIncrement(i + 1)
		}
	}
}

// cascadeIncrement increments a count-up timer by one on the timer below
// it overflowing, recursing into further cascaded timers on its own
// overflow.
func (c *Chain) cascadeIncrement(i int) {
	t := &c.timers[i]
	if t.counter == 0xFFFF {
		t.counter = t.reload
		if t.irqEnable {
			c.irqSrc.Raise(irqSources[i])
		}
		if i+1 < len(c.timers) {
			next := &c.timers[i+1]
			if next.enable && next.countUp {
				c.cascadeIncrement(i + 1)
			}
		}
	} else {
		t.counter++
	}
}

// StreamState saves/loads all four timers' registers.
func (c *Chain) StreamState(s *serialize.Stream) {
	for i := range c.timers {
		t := &c.timers[i]
		s.U16(&t.counter)
		s.U16(&t.reload)
		var flags uint16
		if s.Mode() == serialize.ModeSave {
			flags = uint16(t.prescaler)
			if t.countUp {
				flags |= 1 << 2
			}
			if t.irqEnable {
				flags |= 1 << 6
			}
			if t.enable {
				flags |= 1 << 7
			}
			if t.isCounting {
				flags |= 1 << 8
			}
		}
		s.U16(&flags)
		if s.Mode() == serialize.ModeLoad {
			t.prescaler = uint8(flags & 3)
			t.countUp = flags&(1<<2) != 0
			t.irqEnable = flags&(1<<6) != 0
			t.enable = flags&(1<<7) != 0
			t.isCounting = flags&(1<<8) != 0
		}
	}
}
