// Package bus implements the GBA's 28-bit address space: region dispatch
// to WRAM, the I/O register block, PPU memories, cartridge ROM/SRAM, and
// WAITCNT-driven wait-state accounting, including the GamePak's forced
// non-sequential access at 128-KiB block boundaries and simplified
// open-bus behavior.
package bus

import (
	"github.com/retrocore-emu/gbacore/internal/cart"
	"github.com/retrocore-emu/gbacore/internal/dma"
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/keypad"
	"github.com/retrocore-emu/gbacore/internal/ppu"
	"github.com/retrocore-emu/gbacore/internal/serialize"
	"github.com/retrocore-emu/gbacore/internal/timer"
)

// cartWait1stAccess/cartWait2ndAccess/sramWaitTable are WAITCNT's wait-state
// lookup tables, one entry per 2-bit field value.
var cartWait1stAccess = [4]uint8{5, 4, 3, 9}
var cartWait2ndAccess = [3][2]uint8{{3, 2}, {5, 2}, {9, 2}}
var sramWaitTable = [4]uint8{5, 4, 3, 9}

// APU is the subset of register access the bus needs from the sound unit.
// Kept narrow so this package's dependency on internal/apu is one-directional.
type APU interface {
	ReadRegister8(offset uint32) byte
	WriteRegister8(offset uint32, v byte)
}

// Bus dispatches CPU- and DMA-visible memory accesses across the GBA's
// memory map and owns the components with no memory of their own (WRAM).
type Bus struct {
	boardWRAM [0x40000]byte // 0x02000000, 256 KiB, general-purpose on-board WRAM
	chipWRAM  [0x8000]byte  // 0x03000000, 32 KiB, fast on-chip WRAM

	biosROM []byte

	cart    *cart.Cartridge
	ppu     *ppu.PPU
	dma     *dma.Controller
	timers  *timer.Chain
	apu     APU
	keypad  *keypad.Keypad
	irqSrc  *irq.Controller

	waitcntRaw uint16
	cartWait   [3][2]uint8 // [wait region 0-2][sequential 0/1]
	sramWait   uint8
	prefetch   bool

	nextSeqAddr uint32
}

// New constructs a Bus wired to its component owners. biosROM may be nil
// until LoadBIOS supplies it.
func New(c *cart.Cartridge, p *ppu.PPU, d *dma.Controller, t *timer.Chain, a APU, k *keypad.Keypad, irqSrc *irq.Controller) *Bus {
	b := &Bus{cart: c, ppu: p, dma: d, timers: t, apu: a, keypad: k, irqSrc: irqSrc}
	b.applyWaitcnt(0)
	return b
}

// SetBIOS installs the 16-KiB system ROM mapped at 0x00000000-0x00003FFF.
func (b *Bus) SetBIOS(data []byte) { b.biosROM = data }

// SetDMA wires the DMA controller after construction, breaking the
// circular dependency between Bus (which the DMA engine reads/writes
// through) and dma.Controller (which New's caller must build from
// b.DMAView()).
func (b *Bus) SetDMA(d *dma.Controller) { b.dma = d }

// Reset clears WRAM and WAITCNT; component owners are reset independently
// by their own Reset methods (internal/gba.Core.Reset coordinates this).
func (b *Bus) Reset() {
	b.boardWRAM = [0x40000]byte{}
	b.chipWRAM = [0x8000]byte{}
	b.nextSeqAddr = 0
	b.applyWaitcnt(0)
}

// regionOf returns the top nibble of a 28-bit (masked to 32-bit) address,
// the region selector for every switch in this file.
func regionOf(addr uint32) uint32 { return addr >> 24 & 0xF }

// Read8/Read16/Read32 dispatch a CPU-driven read and return the cycle cost
// to add to the caller's own local counter (spec.md §4.3's contract).
func (b *Bus) Read8(addr uint32) (byte, uint64) {
	v, c := b.read(addr, 1)
	return byte(v), c
}

func (b *Bus) Read16(addr uint32) (uint16, uint64) {
	v, c := b.read(addr&^1, 2)
	return uint16(v), c
}

func (b *Bus) Read32(addr uint32) (uint32, uint64) {
	v, c := b.read(addr&^3, 4)
	return v, c
}

// Write8/Write16/Write32 mirror Read* for writes.
func (b *Bus) Write8(addr uint32, v byte) uint64  { return b.write(addr, 1, uint32(v)) }
func (b *Bus) Write16(addr uint32, v uint16) uint64 { return b.write(addr&^1, 2, uint32(v)) }
func (b *Bus) Write32(addr uint32, v uint32) uint64 { return b.write(addr&^3, 4, v) }

// dmaBus adapts Bus to dma.Bus: the DMA engine's per-unit transfer loop
// does not itself account wait-state cycles (spec.md §4.4 charges it a
// flat one "cycle" per unit against its own budget), but every transfer
// still passes through the same region dispatch and updates the shared
// sequential-access predictor, matching the hardware's single shared bus.
type dmaBus struct{ b *Bus }

func (a dmaBus) Read16(addr uint32) uint16     { v, _ := a.b.Read16(addr); return v }
func (a dmaBus) Write16(addr uint32, v uint16) { a.b.Write16(addr, v) }
func (a dmaBus) Read32(addr uint32) uint32     { v, _ := a.b.Read32(addr); return v }
func (a dmaBus) Write32(addr uint32, v uint32) { a.b.Write32(addr, v) }

// DMAView returns the narrow view of this bus the DMA controller is wired
// against at construction time.
func (b *Bus) DMAView() dma.Bus { return dmaBus{b} }

func (b *Bus) read(addr uint32, size uint32) (uint32, uint64) {
	sequential := addr == b.nextSeqAddr
	b.nextSeqAddr = addr + size

	if addr&0xF0000000 != 0 {
		return b.openBus(addr), 1
	}

	switch regionOf(addr) {
	case 0x0:
		if addr <= 0x3FFF && int(addr)+int(size) <= len(b.biosROM) {
			return readLE(b.biosROM, addr, size), 1
		}
		return b.openBus(addr), 1

	case 0x2:
		return readLE(b.boardWRAM[:], addr&0x3FFFF, size), wramBoardCycles(size)

	case 0x3:
		return readLE(b.chipWRAM[:], addr&0x7FFF, size), 1

	case 0x4:
		return b.readIO(addr, size), 1

	case 0x5:
		return b.readPalette(addr, size), paletteVRAMCycles(size)

	case 0x6:
		return b.readVRAM(addr, size), paletteVRAMCycles(size)

	case 0x7:
		return b.readOAM(addr, size), 1

	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		val := b.readCartROM(addr, size)
		waitRegion := addr >> 25 & 3
		seq := sequential && addr&0x1FFFF != 0 // forced non-sequential at 128 KiB boundaries
		cycles := uint64(b.cartWait[waitRegion][boolIdx(seq)])
		if size == 4 {
			cycles += uint64(b.cartWait[waitRegion][1])
		}
		return val, cycles

	case 0xE:
		if size == 1 {
			return uint32(b.cart.ReadSRAM(addr & 0xFFFF)), uint64(b.sramWait)
		}
		return b.openBus(addr), 1

	default:
		return b.openBus(addr), 1
	}
}

func (b *Bus) write(addr uint32, size uint32, v uint32) uint64 {
	sequential := addr == b.nextSeqAddr
	b.nextSeqAddr = addr + size

	if addr&0xF0000000 != 0 {
		return 1
	}

	switch regionOf(addr) {
	case 0x2:
		writeLE(b.boardWRAM[:], addr&0x3FFFF, size, v)
		return wramBoardCycles(size)

	case 0x3:
		writeLE(b.chipWRAM[:], addr&0x7FFF, size, v)
		return 1

	case 0x4:
		b.writeIO(addr, size, v)
		return 1

	case 0x5:
		b.writePalette(addr, size, v)
		return paletteVRAMCycles(size)

	case 0x6:
		b.writeVRAM(addr, size, v)
		return paletteVRAMCycles(size)

	case 0x7:
		if size != 1 {
			b.writeOAM(addr, size, v)
		}
		return 1

	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		waitRegion := addr >> 25 & 3
		seq := sequential && addr&0x1FFFF != 0
		cycles := uint64(b.cartWait[waitRegion][boolIdx(seq)])
		if size == 4 {
			cycles += uint64(b.cartWait[waitRegion][1])
		}
		return cycles

	case 0xE:
		if size == 1 {
			b.cart.WriteSRAM(addr&0xFFFF, byte(v))
			return uint64(b.sramWait)
		}
		return 1

	default:
		return 1
	}
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

func wramBoardCycles(size uint32) uint64 {
	if size == 4 {
		return 6
	}
	return 3
}

func paletteVRAMCycles(size uint32) uint64 {
	if size == 4 {
		return 2
	}
	return 1
}

// openBus approximates GBA open-bus reads as zero (spec.md §4.3: "return
// open-bus ... simplified here to zero").
func (b *Bus) openBus(addr uint32) uint32 { return 0 }

func (b *Bus) readCartROM(addr uint32, size uint32) uint32 {
	off := addr & 0x01FFFFFF
	var v uint32
	for i := uint32(0); i < size; i++ {
		v |= uint32(b.cart.ReadROM(off+i)) << (8 * i)
	}
	return v
}

func readLE(data []byte, addr uint32, size uint32) uint32 {
	var v uint32
	for i := uint32(0); i < size; i++ {
		idx := int(addr + i)
		if idx >= len(data) {
			continue
		}
		v |= uint32(data[idx]) << (8 * i)
	}
	return v
}

func writeLE(data []byte, addr uint32, size uint32, v uint32) {
	for i := uint32(0); i < size; i++ {
		idx := int(addr + i)
		if idx >= len(data) {
			continue
		}
		data[idx] = byte(v >> (8 * i))
	}
}

// applyWaitcnt decodes WAITCNT into the cached per-region wait tables used
// by the hot read/write paths.
func (b *Bus) applyWaitcnt(v uint16) {
	b.waitcntRaw = v & 0x7FFF
	b.sramWait = sramWaitTable[v&3]
	b.cartWait[0][0] = cartWait1stAccess[v>>2&3]
	b.cartWait[0][1] = cartWait2ndAccess[0][v>>4&1]
	b.cartWait[1][0] = cartWait1stAccess[v>>5&3]
	b.cartWait[1][1] = cartWait2ndAccess[1][v>>7&1]
	b.cartWait[2][0] = cartWait1stAccess[v>>8&3]
	b.cartWait[2][1] = cartWait2ndAccess[2][v>>10&1]
	b.prefetch = v&(1<<14) != 0
}

// StreamState saves/loads WRAM and WAITCNT. Component owners (cart, ppu,
// dma, timers, apu, keypad, irq) stream their own state independently.
func (b *Bus) StreamState(s *serialize.Stream) {
	board := b.boardWRAM[:]
	chip := b.chipWRAM[:]
	s.Bytes(&board)
	s.Bytes(&chip)
	if s.Mode() == serialize.ModeLoad {
		copy(b.boardWRAM[:], board)
		copy(b.chipWRAM[:], chip)
	}
	s.U16(&b.waitcntRaw)
	if s.Mode() == serialize.ModeLoad {
		b.applyWaitcnt(b.waitcntRaw)
	}
}
