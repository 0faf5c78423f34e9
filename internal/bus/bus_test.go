package bus

import (
	"testing"

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

func (a *stubAPU) ReadRegister8(off uint32) byte  { return a.regs[off%uint32(len(a.regs))] }
func (a *stubAPU) WriteRegister8(off uint32, v byte) { a.regs[off%uint32(len(a.regs))] = v }

func newTestBus(rom []byte) *Bus {
	sched := scheduler.New()
	irqSrc := irq.New(sched)
	c := cart.New(rom)
	p := ppu.New(sched, irqSrc)
	k := keypad.New(irqSrc)
	t := timer.New(sched, irqSrc)
	b := New(c, p, nil, t, &stubAPU{}, k, irqSrc)
	d := dma.New(sched, b.DMAView(), irqSrc)
	b.SetDMA(d)
	return b
}

func TestWRAMRoundTrips(t *testing.T) {
	b := newTestBus(make([]byte, 0x8000))
	b.Write8(0x02000100, 0x42)
	v, _ := b.Read8(0x02000100)
	require.Equal(t, byte(0x42), v)

	b.Write16(0x03000100, 0xBEEF)
	v16, _ := b.Read16(0x03000100)
	require.Equal(t, uint16(0xBEEF), v16)
}

func TestCartROMReadMirrorsThroughBus(t *testing.T) {
	rom := make([]byte, 0x4000)
	rom[0x10] = 0x99
	b := newTestBus(rom)
	v, _ := b.Read8(0x08000010)
	require.Equal(t, byte(0x99), v)
	// Mirrored: rom padded to power of two (0x4000), so offset 0x4010 repeats byte 0x10.
	v2, _ := b.Read8(0x08004010)
	require.Equal(t, byte(0x99), v2)
}

func TestSRAMRoundTrips(t *testing.T) {
	b := newTestBus(make([]byte, 0x8000))
	b.Write8(0x0E000000, 0x7A)
	v, _ := b.Read8(0x0E000000)
	require.Equal(t, byte(0x7A), v)
}

func TestWaitcntAffectsCartROMCycleCost(t *testing.T) {
	b := newTestBus(make([]byte, 0x100000))
	// Wait state 0, first access, setting = 0 -> 5 cycles (cartWait1stAccess[0]).
	b.Write16(0x04000204, 0)
	_, cyclesDefault := b.Read8(0x08000000)
	require.Equal(t, uint64(5), cyclesDefault)

	// Setting 3 for wait state 0's first-access field -> 9 cycles.
	b.Write16(0x04000204, 0x0C)
	b.nextSeqAddr = 0 // force non-sequential
	_, cyclesFast := b.Read8(0x08000000)
	require.Equal(t, uint64(9), cyclesFast)
}

func TestBIOSReadOutsideRangeIsOpenBus(t *testing.T) {
	b := newTestBus(make([]byte, 0x8000))
	b.SetBIOS(make([]byte, 0x4000))
	v, cycles := b.Read32(0x00004000)
	require.Equal(t, uint32(0), v)
	require.Equal(t, uint64(1), cycles)
}
