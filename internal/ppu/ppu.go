// Package ppu implements the GBA scanline renderer: six video modes, four
// priority-ordered backgrounds (two of which can be affine), a sprite
// layer, and the window/blend pixel pipeline (mosaic settings are stored
// but not applied). It owns VRAM, OAM,
// and palette RAM and schedules its own HBlank/VBlank timeline.
package ppu

import (
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
)

const (
	screenWidth  = 240
	screenHeight = 160
	totalLines   = 228

	cyclesPerLine          = 1232
	cyclesUntilHBlank      = 960
	cyclesUntilSetHBlankFl = 1006
)

// Frame is one completed RGB888 framebuffer, row-major, 240x160.
type Frame struct {
	Pixels [screenWidth * screenHeight]uint32 // 0x00RRGGBB
}

// HBlankHook and VBlankHook let the DMA controller hook scanline timing
// without this package importing internal/dma.
type HBlankHook func()
type VBlankHook func()

// PPU owns VRAM/OAM/palette RAM, the DISPCNT-family registers, and the
// scanline timeline.
type PPU struct {
	vram    [0x18000]byte // 96 KiB: BG (+ OBJ tiles from 0x10000) char/map data
	oam     [0x400]byte   // 1 KiB: 128 sprite entries + affine params
	palette [0x400]byte   // 1 KiB: 256 BG + 256 OBJ 15-bit colors

	dispcnt  uint16
	greenSwp uint16
	dispstat uint16
	vcount   uint16

	bgcnt [4]uint16
	bgh   [4]uint16
	bgv   [4]uint16

	// BG2/BG3 affine parameters.
	bgpa, bgpb, bgpc, bgpd [2]int16
	bgx, bgy               [2]int32
	bgxRef, bgyRef         [2]int32 // reference point, reloaded into bgx/bgy each time VCOUNT re-enters line 0

	winh, winv    [2]uint16
	winin, winout uint16
	mosaic        uint16
	bldcnt        uint16
	bldalpha      uint16
	bldy          uint16

	front, back *Frame
	sink        func(*Frame)

	inHBlank, inVBlank bool

	sched    *scheduler.Scheduler
	irqSrc   *irq.Controller
	onHBlank HBlankHook
	onVBlank VBlankHook
}

// New constructs a PPU bound to sched for its HBlank/VBlank/NewScanline
// timeline and irqSrc for VBlank/HBlank/VCounter interrupts.
func New(sched *scheduler.Scheduler, irqSrc *irq.Controller) *PPU {
	return &PPU{sched: sched, irqSrc: irqSrc, front: &Frame{}, back: &Frame{}}
}

// SetHBlankHook/SetVBlankHook register the DMA controller's activation
// callbacks.
func (p *PPU) SetHBlankHook(fn HBlankHook) { p.onHBlank = fn }
func (p *PPU) SetVBlankHook(fn VBlankHook) { p.onVBlank = fn }

// SetFrameSink registers the callback invoked with a completed frame at
// the start of each VBlank.
func (p *PPU) SetFrameSink(fn func(*Frame)) { p.sink = fn }

// Reset clears registers and memories and arms the scanline timeline.
func (p *PPU) Reset() {
	*p = PPU{
		sched: p.sched, irqSrc: p.irqSrc, front: &Frame{}, back: &Frame{},
		sink: p.sink, onHBlank: p.onHBlank, onVBlank: p.onVBlank,
	}
	p.sched.AddEvent(scheduler.EventHBlank, cyclesUntilHBlank, p.onHBlankEvent)
}

func (p *PPU) onHBlankEvent() {
	p.sched.AddEvent(scheduler.EventHBlankSetFlag, cyclesUntilSetHBlankFl-cyclesUntilHBlank, p.onHBlankSetFlag)
	p.inHBlank = true
	if p.onHBlank != nil {
		p.onHBlank()
	}
}

func (p *PPU) onHBlankSetFlag() {
	p.sched.AddEvent(scheduler.EventNewScanline, cyclesPerLine-cyclesUntilSetHBlankFl, p.onNewScanline)
	p.dispstat |= 1 << 1
	if p.dispstat&(1<<4) != 0 {
		p.irqSrc.Raise(irq.HBlank)
	}
}

func (p *PPU) onNewScanline() {
	if p.vcount < screenHeight {
		p.renderScanline(int(p.vcount))
	}
	p.sched.AddEvent(scheduler.EventHBlank, cyclesUntilHBlank, p.onHBlankEvent)
	p.dispstat &^= 1 << 1
	p.inHBlank = false
	p.vcount++

	matchSetting := (p.dispstat >> 8) & 0xFF
	wasMatch := p.dispstat&(1<<2) != 0
	match := p.vcount == matchSetting
	if match {
		p.dispstat |= 1 << 2
	} else {
		p.dispstat &^= 1 << 2
	}
	if match && !wasMatch && p.dispstat&(1<<5) != 0 {
		p.irqSrc.Raise(irq.VCounter)
	}

	switch {
	case p.vcount < screenHeight:
		p.latchAffineReference()
	case p.vcount == screenHeight:
		p.front, p.back = p.back, p.front
		if p.sink != nil {
			p.sink(p.front)
		}
		p.dispstat |= 1 << 0
		p.inVBlank = true
		if p.dispstat&(1<<3) != 0 {
			p.irqSrc.Raise(irq.VBlank)
		}
		if p.onVBlank != nil {
			p.onVBlank()
		}
	case p.vcount == totalLines-1:
		p.dispstat &^= 1 << 0
		p.inVBlank = false
	default:
		if p.vcount >= totalLines {
			p.vcount %= totalLines
			p.latchAffineReference()
		}
	}
}

// latchAffineReference reloads BG2X/BG3X's running accumulator from the
// reference point when VCOUNT wraps to line 0. Real hardware advances the
// accumulator by dmx/dmy every line; this core leaves it at the reference
// point and affineBGLineAsColor offsets line ly by ly*(PB, PD) instead,
// which draws the same picture unless the reference point is rewritten
// mid-frame.
func (p *PPU) latchAffineReference() {
	if p.vcount == 0 {
		p.bgx[0], p.bgy[0] = p.bgxRef[0], p.bgyRef[0]
		p.bgx[1], p.bgy[1] = p.bgxRef[1], p.bgyRef[1]
	}
}

// VCount, InHBlank, InVBlank expose timeline state for the bus's open-bus
// and wait-state accounting.
func (p *PPU) VCount() uint16 { return p.vcount }
func (p *PPU) InHBlank() bool { return p.inHBlank }
func (p *PPU) InVBlank() bool { return p.inVBlank }

// StreamState saves/loads VRAM, OAM, palette RAM, and every register.
func (p *PPU) StreamState(s *serialize.Stream) {
	vram := p.vram[:]
	oam := p.oam[:]
	pal := p.palette[:]
	s.Bytes(&vram)
	s.Bytes(&oam)
	s.Bytes(&pal)
	if s.Mode() == serialize.ModeLoad {
		copy(p.vram[:], vram)
		copy(p.oam[:], oam)
		copy(p.palette[:], pal)
	}
	s.U16(&p.dispcnt)
	s.U16(&p.dispstat)
	s.U16(&p.vcount)
	for i := range p.bgcnt {
		s.U16(&p.bgcnt[i])
		s.U16(&p.bgh[i])
		s.U16(&p.bgv[i])
	}
	for i := 0; i < 2; i++ {
		var a, b, c, d uint16
		if s.Mode() == serialize.ModeSave {
			a, b, c, d = uint16(p.bgpa[i]), uint16(p.bgpb[i]), uint16(p.bgpc[i]), uint16(p.bgpd[i])
		}
		s.U16(&a)
		s.U16(&b)
		s.U16(&c)
		s.U16(&d)
		if s.Mode() == serialize.ModeLoad {
			p.bgpa[i], p.bgpb[i], p.bgpc[i], p.bgpd[i] = int16(a), int16(b), int16(c), int16(d)
		}
		bgxU, bgyU := uint32(p.bgxRef[i]), uint32(p.bgyRef[i])
		s.U32(&bgxU)
		s.U32(&bgyU)
		if s.Mode() == serialize.ModeLoad {
			p.bgxRef[i], p.bgyRef[i] = int32(bgxU), int32(bgyU)
			p.bgx[i], p.bgy[i] = p.bgxRef[i], p.bgyRef[i]
		}
	}
	s.U16(&p.winh[0])
	s.U16(&p.winh[1])
	s.U16(&p.winv[0])
	s.U16(&p.winv[1])
	s.U16(&p.winin)
	s.U16(&p.winout)
	s.U16(&p.mosaic)
	s.U16(&p.bldcnt)
	s.U16(&p.bldalpha)
	s.U16(&p.bldy)
}
