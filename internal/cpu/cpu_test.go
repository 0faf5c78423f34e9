package cpu

import (
	"testing"

	"github.com/retrocore-emu/gbacore/internal/bus"
	"github.com/retrocore-emu/gbacore/internal/cart"
	"github.com/retrocore-emu/gbacore/internal/dma"
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/keypad"
	"github.com/retrocore-emu/gbacore/internal/ppu"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/timer"
	"github.com/stretchr/testify/require"
)

type stubAPU struct{ regs [0x50]byte }

func (a *stubAPU) ReadRegister8(off uint32) byte     { return a.regs[off%uint32(len(a.regs))] }
func (a *stubAPU) WriteRegister8(off uint32, v byte) { a.regs[off%uint32(len(a.regs))] = v }

// newTestCPU builds a CPU wired to a full bus so instruction spot checks can
// execute real fetches out of WRAM, mirroring bus_test.go's harness.
func newTestCPU(t *testing.T) (*CPU, *bus.Bus, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.New()
	irqSrc := irq.New(sched)
	c := cart.New(make([]byte, 0x8000))
	p := ppu.New(sched, irqSrc)
	k := keypad.New(irqSrc)
	tm := timer.New(sched, irqSrc)
	b := bus.New(c, p, nil, tm, &stubAPU{}, k, irqSrc)
	d := dma.New(sched, b.DMAView(), irqSrc)
	b.SetDMA(d)
	cp := New(b, irqSrc, sched)
	return cp, b, sched
}

// primePipeline points the CPU's PC at addr and runs the two fetch steps of
// a pipeline refill, so both prefetch slots hold the program's first two
// opcodes without executing anything.
func primePipeline(c *CPU, addr uint32) {
	c.SetPC(addr)
	c.stepPipeline()
	c.stepPipeline()
}

func TestADDSetsOverflowOnSignedWrap(t *testing.T) {
	c, b, _ := newTestCPU(t)
	base := uint32(0x02000000)
	// ADDS r0, r1, r2
	b.Write32(base, 0xE0910002)
	c.r[1] = 0x7FFFFFFF
	c.r[2] = 1
	primePipeline(c, base)

	c.stepPipeline()

	require.Equal(t, uint32(0x80000000), c.r[0])
	require.True(t, c.flagN())
	require.False(t, c.flagZ())
	require.False(t, c.flagC())
	require.True(t, c.flagV())
}

func TestSUBSBorrowClearsCarry(t *testing.T) {
	c, b, _ := newTestCPU(t)
	base := uint32(0x02000000)
	// SUBS r0, r1, r2
	b.Write32(base, 0xE0510002)
	c.r[1] = 0
	c.r[2] = 1
	primePipeline(c, base)

	c.stepPipeline()

	require.Equal(t, uint32(0xFFFFFFFF), c.r[0])
	require.True(t, c.flagN())
	require.False(t, c.flagZ())
	require.False(t, c.flagC())
	require.False(t, c.flagV())
}

func TestLSRImmediateZeroIsLSR32(t *testing.T) {
	c, b, _ := newTestCPU(t)
	base := uint32(0x02000000)
	// MOVS r0, r1, LSR #0  (encodes LSR #32)
	b.Write32(base, 0xE1B00021)
	c.r[1] = 0x80000000
	primePipeline(c, base)

	c.stepPipeline()

	require.Equal(t, uint32(0), c.r[0])
	require.True(t, c.flagC())
}

func TestMULWithoutSLeavesFlagsUntouched(t *testing.T) {
	c, b, _ := newTestCPU(t)
	base := uint32(0x02000000)
	// MUL r0, r1, r2 (no S bit)
	b.Write32(base, 0xE0000291)
	c.r[1] = 3
	c.r[2] = 0x55555555
	c.setFlagZ(true)
	c.setFlagN(true)
	primePipeline(c, base)

	c.stepPipeline()

	require.Equal(t, uint32(0xFFFFFFFF), c.r[0])
	require.True(t, c.flagZ(), "flags must be untouched without S")
	require.True(t, c.flagN())
}

func TestThumbAddNegativeOffsetToSP(t *testing.T) {
	c, b, _ := newTestCPU(t)
	base := uint32(0x02000000)
	c.setExecutionState(true)
	// ADD sp, #-0x20  (format 13, sign bit set, imm7=8 -> 8*4=0x20)
	b.Write16(base, 0xB088)
	c.r[13] = 0x3007F00
	primePipeline(c, base)

	c.stepPipeline()

	require.Equal(t, uint32(0x3007EE0), c.r[13])
}

func TestIRQAssertedThreeCyclesAfterIMEEnable(t *testing.T) {
	c, b, sched := newTestCPU(t)
	base := uint32(0x02000000)

	// A long run of NOPs (MOV r0, r0) so the CPU just free-runs while the
	// scheduler carries the IRQ line's 3-cycle latch delay.
	for i := uint32(0); i < 256; i++ {
		b.Write32(base+i*4, 0xE1A00000)
	}
	c.SetPC(base)
	c.irqSrc.WriteIE(0x0001)
	c.irqSrc.Raise(irq.VBlank)
	c.irqSrc.WriteIME(1)

	sched.AddEvent(scheduler.EventNewScanline, 1000, sched.Stop)
	sched.Run()

	require.True(t, c.irqSrc.Line())
	require.Equal(t, ModeIRQ, c.currentMode())
	require.Equal(t, uint32(vectorIRQ), c.r[15])
}
