package irq

import (
	"testing"

	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func TestLineStaysLowUntilIMEAndIESet(t *testing.T) {
	sched := scheduler.New()
	c := New(sched)
	sched.EngageDriver(scheduler.DriverCPU, func(budget uint64) uint64 { return budget }, func() {})
	sched.AddEvent(scheduler.EventNewScanline, 1000, sched.Stop)

	c.Raise(VBlank)
	require.False(t, c.Line())

	sched.Run()
	require.False(t, c.Line(), "IF set but IE/IME still clear")

	c.WriteIE(uint16(1 << VBlank))
	c.WriteIME(1)
	c.Raise(VBlank)
	require.False(t, c.Line(), "latch has not fired yet")
}

func TestLineLatchesThreeCyclesAfterRaise(t *testing.T) {
	sched := scheduler.New()
	c := New(sched)
	c.WriteIE(uint16(1 << VBlank))
	c.WriteIME(1)
	sched.EngageDriver(scheduler.DriverCPU, func(budget uint64) uint64 { return budget }, func() {})
	sched.AddEvent(scheduler.EventNewScanline, latchDelayCycles, sched.Stop)

	c.Raise(VBlank)
	sched.Run()

	require.True(t, c.Line())
	require.EqualValues(t, latchDelayCycles, sched.Now())
}

func TestWriteIFAcknowledgesBits(t *testing.T) {
	c := New(nil)
	c.Raise(VBlank)
	c.Raise(HBlank)
	require.EqualValues(t, (1<<VBlank)|(1<<HBlank), c.ReadIF())

	c.WriteIF(1 << VBlank)
	require.EqualValues(t, 1<<HBlank, c.ReadIF())
}
