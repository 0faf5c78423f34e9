package dma

import (
	"testing"

	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mem map[uint32]uint32
}

func newFakeBus() *fakeBus { return &fakeBus{mem: map[uint32]uint32{}} }

func (b *fakeBus) Read16(addr uint32) uint16    { return uint16(b.mem[addr]) }
func (b *fakeBus) Write16(addr uint32, v uint16) { b.mem[addr] = uint32(v) }
func (b *fakeBus) Read32(addr uint32) uint32    { return b.mem[addr] }
func (b *fakeBus) Write32(addr uint32, v uint32) { b.mem[addr] = v }

func runToCompletion(sched *scheduler.Scheduler) {
	if !sched.IsEngaged(scheduler.DriverCPU) {
		sched.EngageDriver(scheduler.DriverCPU, func(budget uint64) uint64 { return budget }, func() {})
	}
	sched.AddEvent(scheduler.EventNewScanline, 1<<20, sched.Stop)
	sched.Run()
}

func TestImmediateDMACopiesWordsAndDisables(t *testing.T) {
	sched := scheduler.New()
	ic := irq.New(sched)
	bus := newFakeBus()
	c := New(sched, bus, ic)

	bus.mem[0x1000] = 0xCAFEBABE
	bus.mem[0x1004] = 0xDEADBEEF

	c.WriteSrcAddr(3, 0x1000)
	c.WriteDstAddr(3, 0x2000)
	c.WriteCount(3, 2)
	c.WriteControl(3, (1<<15)|(1<<10)) // enable, 32-bit, immediate, increment/increment

	runToCompletion(sched)

	require.EqualValues(t, 0xCAFEBABE, bus.mem[0x2000])
	require.EqualValues(t, 0xDEADBEEF, bus.mem[0x2004])
	require.False(t, c.ReadControl(3)&(1<<15) != 0, "non-repeat channel disables itself")
}

func TestDMARaisesIRQWhenEnabled(t *testing.T) {
	sched := scheduler.New()
	ic := irq.New(sched)
	ic.WriteIE(1 << irq.DMA0)
	ic.WriteIME(1)
	bus := newFakeBus()
	c := New(sched, bus, ic)

	c.WriteSrcAddr(0, 0x1000)
	c.WriteDstAddr(0, 0x2000)
	c.WriteCount(0, 1)
	c.WriteControl(0, (1<<15)|(1<<14)) // enable, IRQ enable, 16-bit, immediate

	runToCompletion(sched)

	require.True(t, ic.Line())
}

func TestRepeatChannelReactivatesOnVBlank(t *testing.T) {
	sched := scheduler.New()
	ic := irq.New(sched)
	bus := newFakeBus()
	c := New(sched, bus, ic)

	bus.mem[0x1000] = 0x1111
	c.WriteSrcAddr(1, 0x1000)
	c.WriteDstAddr(1, 0x2000)
	c.WriteCount(1, 1)
	c.WriteControl(1, (1<<15)|(1<<9)|(1<<12)) // enable, repeat, VBlank start

	c.OnVBlank()
	runToCompletion(sched)
	require.EqualValues(t, 0x1111, bus.mem[0x2000])

	// Repeat reloads only the count (and the destination only for
	// increment-reload), so the second transfer continues at 0x1002 -> 0x2002.
	bus.mem[0x1002] = 0x2222
	bus.mem[0x2002] = 0
	c.OnVBlank()
	runToCompletion(sched)
	require.EqualValues(t, 0x2222, bus.mem[0x2002])
}
