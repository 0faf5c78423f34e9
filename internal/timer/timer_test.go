package timer

import (
	"testing"

	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func runUntilStopped(sched *scheduler.Scheduler) {
	sched.EngageDriver(scheduler.DriverCPU, func(budget uint64) uint64 { return budget }, func() {})
	sched.Run()
}

func TestTimer0OverflowReloadsAndRaisesIRQ(t *testing.T) {
	sched := scheduler.New()
	ic := irq.New(sched)
	ic.WriteIE(1 << irq.Timer0)
	ic.WriteIME(1)
	c := New(sched, ic)

	c.WriteReload(0, 0xFFFE)
	c.WriteControl(0, (1<<7)|(1<<6)) // enable, IRQ on overflow, prescaler /1
	require.EqualValues(t, 0xFFFE, c.ReadCounter(0))

	sched.AddEvent(scheduler.EventNewScanline, 10, sched.Stop)
	runUntilStopped(sched)

	require.EqualValues(t, 0xFFFE, c.ReadCounter(0), "each overflow reloads the counter")
	require.NotZero(t, ic.ReadIF()&(1<<irq.Timer0), "overflow raises the Timer0 IRQ")
}

func TestTimer0OverflowCascadesIntoTimer1(t *testing.T) {
	sched := scheduler.New()
	ic := irq.New(sched)
	c := New(sched, ic)

	c.WriteReload(0, 0xFFFE) // overflows after 2 cycles
	c.WriteControl(0, 1<<7)
	c.WriteReload(1, 0)
	c.WriteControl(1, (1<<7)|(1<<2)) // enable, count-up

	sched.AddEvent(scheduler.EventNewScanline, 2, sched.Stop)
	runUntilStopped(sched)

	require.EqualValues(t, 1, c.ReadCounter(1), "timer1 increments once per timer0 overflow")
}

func TestDisablingTimerRemovesOverflowEvent(t *testing.T) {
	sched := scheduler.New()
	ic := irq.New(sched)
	c := New(sched, ic)

	c.WriteReload(0, 0xFFFF)
	c.WriteControl(0, 1<<7)
	require.True(t, sched.HasEvent(scheduler_eventFor(0)))

	c.WriteControl(0, 0)
	require.False(t, sched.HasEvent(scheduler_eventFor(0)))
}

func scheduler_eventFor(i int) scheduler.EventKind { return overflowEvents[i] }
