// Package dma implements the GBA's four-channel DMA engine. Each channel
// is a scheduler driver: once activated it copies words or halfwords from
// source to destination until its count reaches zero or it is preempted
// by a higher-priority channel.
package dma

import (
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
)

// StartTiming selects when a channel activates.
type StartTiming uint8

const (
	StartImmediate StartTiming = iota
	StartVBlank
	StartHBlank
	StartSpecial
)

// AddrControl selects how an address advances after each unit transferred.
type AddrControl uint8

const (
	AddrIncrement AddrControl = iota
	AddrDecrement
	AddrFixed
	AddrIncrementReload // destination only: increments, and reloads on repeat
)

// Bus is the subset of the memory bus a DMA channel needs to move data.
// Kept as a narrow interface so this package never imports internal/bus.
type Bus interface {
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)
}

var driverKinds = [4]scheduler.DriverKind{
	scheduler.DriverDMA0, scheduler.DriverDMA1, scheduler.DriverDMA2, scheduler.DriverDMA3,
}

var irqSources = [4]irq.Source{irq.DMA0, irq.DMA1, irq.DMA2, irq.DMA3}

// Channel is one DMA0-3CNT register set plus its live transfer state.
type Channel struct {
	index int

	srcAddr, dstAddr uint32
	count            uint32 // 0 is loaded as the channel's max count (0x4000, or 0x10000 for channel 3); ReadCount returns the raw 0

	currentSrc, currentDst uint32
	currentCount           uint32

	dstCtrl, srcCtrl AddrControl
	repeat           bool
	transferWord     bool // true = 32-bit transfers, false = 16-bit
	gamePakDRQ       bool
	startTiming      StartTiming
	irqEnable        bool
	enable           bool

	nextIsRepeat bool
	suspended    bool
	engaged      bool
}

func (c *Channel) maxCount() uint32 {
	if c.index == 3 {
		return 0x10000
	}
	return 0x4000
}

// Controller owns all four channels and the scheduler/bus/irq they are
// wired to.
type Controller struct {
	channels [4]Channel
	sched    *scheduler.Scheduler
	bus      Bus
	irqSrc   *irq.Controller
}

// New constructs an idle Controller.
func New(sched *scheduler.Scheduler, bus Bus, irqSrc *irq.Controller) *Controller {
	c := &Controller{sched: sched, bus: bus, irqSrc: irqSrc}
	for i := range c.channels {
		c.channels[i].index = i
	}
	return c
}

// Reset disengages every channel and clears its registers.
func (c *Controller) Reset() {
	for i := range c.channels {
		if c.channels[i].engaged {
			c.sched.DisengageDriver(driverKinds[i])
		}
		idx := c.channels[i].index
		c.channels[i] = Channel{index: idx}
	}
}

// OnHBlank activates every enabled channel whose start timing is HBlank.
func (c *Controller) OnHBlank() {
	for i := range c.channels {
		ch := &c.channels[i]
		if ch.enable && ch.startTiming == StartHBlank {
			c.activate(i)
		}
	}
}

// OnVBlank activates every enabled channel whose start timing is VBlank.
func (c *Controller) OnVBlank() {
	for i := range c.channels {
		ch := &c.channels[i]
		if ch.enable && ch.startTiming == StartVBlank {
			c.activate(i)
		}
	}
}

func (c *Controller) activate(i int) {
	ch := &c.channels[i]
	if ch.engaged {
		return
	}
	ch.engaged = true
	idx := i
	c.sched.EngageDriver(driverKinds[i],
		func(budget uint64) uint64 { return c.run(idx, budget) },
		func() { c.channels[idx].suspended = true })
}

func (c *Controller) run(i int, maxCycles uint64) uint64 {
	ch := &c.channels[i]
	var cycles uint64

	// nextIsRepeat is only set between a completed transfer and the next
	// activation's first run, so a suspend that lands before that first run
	// (an event added at the head of the queue) does not skip the reload.
	if ch.nextIsRepeat {
		ch.currentCount = ch.count
		if ch.currentCount == 0 {
			ch.currentCount = ch.maxCount()
		}
		if ch.dstCtrl == AddrIncrementReload {
			ch.currentDst = ch.dstAddr
		}
		ch.nextIsRepeat = false
	}
	ch.suspended = false

	srcIncr := addrIncrement(ch.srcCtrl, ch.transferWord)
	dstIncr := addrIncrement(ch.dstCtrl, ch.transferWord)

	for ch.currentCount > 0 && cycles < maxCycles {
		if ch.transferWord {
			c.bus.Write32(ch.currentDst, c.bus.Read32(ch.currentSrc))
		} else {
			c.bus.Write16(ch.currentDst, c.bus.Read16(ch.currentSrc))
		}
		ch.currentCount--
		ch.currentDst = uint32(int64(ch.currentDst) + int64(dstIncr))
		ch.currentSrc = uint32(int64(ch.currentSrc) + int64(srcIncr))
		cycles++
	}

	if ch.currentCount == 0 {
		c.sched.DisengageDriver(driverKinds[i])
		ch.engaged = false
		if ch.irqEnable {
			c.irqSrc.Raise(irqSources[i])
		}
		if ch.repeat && ch.startTiming != StartImmediate {
			ch.nextIsRepeat = true
		} else {
			ch.enable = false
		}
	}
	return cycles
}

func addrIncrement(ctrl AddrControl, word bool) int32 {
	unit := int32(2)
	if word {
		unit = 4
	}
	switch ctrl {
	case AddrDecrement:
		return -unit
	case AddrFixed:
		return 0
	default: // Increment, IncrementReload
		return unit
	}
}

// ReadSrcAddr, ReadDstAddr, ReadCount read back the raw write-only-in-
// practice registers (real hardware returns open bus; kept for symmetry
// with a test harness that wants to inspect state).
func (c *Controller) ReadSrcAddr(i int) uint32 { return c.channels[i].srcAddr }
func (c *Controller) ReadDstAddr(i int) uint32 { return c.channels[i].dstAddr }
func (c *Controller) ReadCount(i int) uint32   { return c.channels[i].count }

// WriteSrcAddr, WriteDstAddr set DMAxSAD/DMAxDAD; bit widths are masked
// per channel (channel 0 source is 27-bit internal-only, others 28-bit).
func (c *Controller) WriteSrcAddr(i int, v uint32) {
	mask := uint32(0x0FFFFFFF)
	if i == 0 {
		mask = 0x07FFFFFF
	}
	c.channels[i].srcAddr = v & mask
}
func (c *Controller) WriteDstAddr(i int, v uint32) { c.channels[i].dstAddr = v & 0x0FFFFFFF }
func (c *Controller) WriteCount(i int, v uint32)   { c.channels[i].count = v & 0xFFFF }

// ReadControl returns the 16-bit DMAxCNT_H control register.
func (c *Controller) ReadControl(i int) uint16 {
	ch := &c.channels[i]
	var v uint16
	v |= uint16(ch.dstCtrl) << 5
	v |= uint16(ch.srcCtrl) << 7
	if ch.repeat {
		v |= 1 << 9
	}
	if ch.transferWord {
		v |= 1 << 10
	}
	if ch.gamePakDRQ {
		v |= 1 << 11
	}
	v |= uint16(ch.startTiming) << 12
	if ch.irqEnable {
		v |= 1 << 14
	}
	if ch.enable {
		v |= 1 << 15
	}
	return v
}

// WriteControl writes DMAxCNT_H. A 0->1 transition on the enable bit
// reloads the current address/count latches and, for immediate-start
// channels, activates the transfer right away.
func (c *Controller) WriteControl(i int, v uint16) {
	ch := &c.channels[i]
	wasEnabled := ch.enable
	decodeControl(ch, v)

	if ch.enable && !wasEnabled {
		ch.currentSrc = ch.srcAddr
		ch.currentDst = ch.dstAddr
		ch.currentCount = ch.count
		if ch.currentCount == 0 {
			ch.currentCount = ch.maxCount()
		}
		ch.nextIsRepeat = false
		if ch.startTiming == StartImmediate {
			c.activate(i)
		}
	} else if !ch.enable && wasEnabled {
		if ch.engaged {
			c.sched.DisengageDriver(driverKinds[i])
			ch.engaged = false
		}
	}
}

// decodeControl unpacks a DMAxCNT_H value into ch's fields without
// triggering the activation side effects WriteControl performs — used by
// StreamState, where currentSrc/currentDst/currentCount are restored
// verbatim rather than recomputed from srcAddr/dstAddr/count.
func decodeControl(ch *Channel, v uint16) {
	ch.dstCtrl = AddrControl(v >> 5 & 3)
	ch.srcCtrl = AddrControl(v >> 7 & 3)
	ch.repeat = v&(1<<9) != 0
	ch.transferWord = v&(1<<10) != 0
	ch.gamePakDRQ = v&(1<<11) != 0
	ch.startTiming = StartTiming(v >> 12 & 3)
	ch.irqEnable = v&(1<<14) != 0
	ch.enable = v&(1<<15) != 0
}

// StreamState saves/loads all four channels' registers and live transfer
// state. Whether a channel is engaged with the scheduler is neither saved
// nor changed by a load, and internal/gba.Core does not re-engage channels
// afterwards: a channel that was mid-transfer when the state was saved
// continues only if the loading Controller already has it engaged or its
// HBlank/VBlank trigger activates it again.
func (c *Controller) StreamState(s *serialize.Stream) {
	for i := range c.channels {
		ch := &c.channels[i]
		s.U32(&ch.srcAddr)
		s.U32(&ch.dstAddr)
		s.U32(&ch.count)
		s.U32(&ch.currentSrc)
		s.U32(&ch.currentDst)
		s.U32(&ch.currentCount)
		ctrl := c.ReadControl(i)
		s.U16(&ctrl)
		if s.Mode() == serialize.ModeLoad {
			decodeControl(ch, ctrl)
		}
		s.Bool(&ch.nextIsRepeat)
	}
}
