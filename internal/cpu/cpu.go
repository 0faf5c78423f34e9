// Package cpu implements the ARM7TDMI fetch/decode/execute loop: ARM and
// THUMB instruction sets, banked registers across the seven processor
// modes, the two-stage pipeline (and its flush-on-branch semantics), and
// the seven prioritized exceptions. The CPU is the scheduler's lowest-
// priority driver; every other driver (the four DMA channels) preempts it
// at an instruction boundary.
package cpu

import (
	"github.com/retrocore-emu/gbacore/internal/bus"
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
)

// Mode is the CPSR mode field's 5-bit encoding.
type Mode uint32

const (
	ModeUser       Mode = 0b10000
	ModeFIQ        Mode = 0b10001
	ModeIRQ        Mode = 0b10010
	ModeSupervisor Mode = 0b10011
	ModeAbort      Mode = 0b10111
	ModeUndefined  Mode = 0b11011
	ModeSystem     Mode = 0b11111
)

// CPSR bit positions.
const (
	bitN = 31
	bitZ = 30
	bitC = 29
	bitV = 28
	bitI = 7
	bitF = 6
	bitT = 5
)

type pipeline struct {
	opcode [2]uint32
	index  int
	step   int
}

// CPU holds the full ARM7TDMI register and control state.
type CPU struct {
	r    [16]uint32
	cpsr uint32
	spsr uint32 // active mode's SPSR (meaningless in User/System mode)

	r8_12NonFIQ [5]uint32
	r8_12FIQ    [5]uint32

	r13Usr, r14Usr uint32
	r13FIQ, r14FIQ uint32
	r13SVC, r14SVC uint32
	r13Abt, r14Abt uint32
	r13IRQ, r14IRQ uint32
	r13Und, r14Und uint32

	spsrFIQ, spsrSVC, spsrAbt, spsrIRQ, spsrUnd uint32

	pipe pipeline

	exceptionPending  bool
	exceptionPriority int
	exceptionHandler  func()

	bus    *bus.Bus
	irqSrc *irq.Controller
	sched  *scheduler.Scheduler

	cycles uint64
}

// New constructs a CPU wired to its bus, interrupt aggregator, and
// scheduler, engages it as the scheduler's CPU driver, and resets it to
// the power-on reset state (see Reset).
func New(b *bus.Bus, irqSrc *irq.Controller, sched *scheduler.Scheduler) *CPU {
	c := &CPU{bus: b, irqSrc: irqSrc, sched: sched}
	c.Reset()
	sched.EngageDriver(scheduler.DriverCPU, c.run, func() {})
	return c
}

// Reset puts the CPU in Supervisor mode with both interrupt lines masked,
// ARM state, and PC at the reset vector — the ARM7TDMI's power-on state,
// before any BIOS code has run (internal/gba.Core then runs the BIOS from
// the reset vector, or moves PC to the cartridge entry point with SetPC
// when no BIOS is loaded).
func (c *CPU) Reset() {
	*c = CPU{bus: c.bus, irqSrc: c.irqSrc, sched: c.sched}
	c.cpsr = uint32(ModeSupervisor) | 1<<bitI | 1<<bitF
	c.pipe = pipeline{}
}

// SetPC seeds PC and forces a pipeline refill; used by tests and by a
// direct-ROM-entry boot path that skips the BIOS. The next two
// stepPipeline calls only fetch, so the first instruction executed is the
// one at addr.
func (c *CPU) SetPC(addr uint32) {
	c.r[15] = addr
	c.flushPipeline()
	c.pipe.step = 0
}

// currentMode returns the live CPSR mode field.
func (c *CPU) currentMode() Mode { return Mode(c.cpsr & 0x1F) }

func (c *CPU) thumbState() bool { return c.cpsr&(1<<bitT) != 0 }

func (c *CPU) flagN() bool { return c.cpsr&(1<<bitN) != 0 }
func (c *CPU) flagZ() bool { return c.cpsr&(1<<bitZ) != 0 }
func (c *CPU) flagC() bool { return c.cpsr&(1<<bitC) != 0 }
func (c *CPU) flagV() bool { return c.cpsr&(1<<bitV) != 0 }

func (c *CPU) setCPSRBit(bit uint, v bool) {
	if v {
		c.cpsr |= 1 << bit
	} else {
		c.cpsr &^= 1 << bit
	}
}

func (c *CPU) setFlagN(v bool) { c.setCPSRBit(bitN, v) }
func (c *CPU) setFlagZ(v bool) { c.setCPSRBit(bitZ, v) }
func (c *CPU) setFlagC(v bool) { c.setCPSRBit(bitC, v) }
func (c *CPU) setFlagV(v bool) { c.setCPSRBit(bitV, v) }
func (c *CPU) setFlagI(v bool) { c.setCPSRBit(bitI, v) }
func (c *CPU) setFlagF(v bool) { c.setCPSRBit(bitF, v) }

// reg reads register n as the currently active bank sees it. r15 always
// reads as the address of the next fetch, which — because Fetch advances
// PC before the fetched opcode is executed two steps later — already
// equals PC+8 (ARM) / PC+4 (THUMB) by construction; no special case
// needed here.
func (c *CPU) reg(n uint32) uint32 { return c.r[n&0xF] }

// setReg writes register n, masking and flushing the pipeline when n is
// r15 (every write to PC retires the two prefetched opcodes).
func (c *CPU) setReg(n uint32, v uint32) {
	if n == 15 {
		if c.thumbState() {
			v &^= 1
		} else {
			v &^= 3
		}
		c.r[15] = v
		c.flushPipeline()
		return
	}
	c.r[n&0xF] = v
}

// setExecutionState switches between ARM and THUMB, flushing the pipeline
// only on an actual change (BX and exception entry/return are the only
// callers that can change it).
func (c *CPU) setExecutionState(thumb bool) {
	if c.thumbState() == thumb {
		return
	}
	c.setCPSRBit(bitT, thumb)
	c.flushPipeline()
}

// flushPipeline discards both prefetched opcodes. Matching the pipeline's
// own step/index bookkeeping, a flush leaves step at 1: the next
// StepPipeline call fetches one opcode immediately, so the first refetch
// after a flush is treated as already in flight.
func (c *CPU) flushPipeline() {
	c.pipe.index = 0
	c.pipe.step = 1
}

// storeBank saves the live r8-r14 (and, for privileged modes, SPSR) into
// the banked storage for mode before it stops being active.
func (c *CPU) storeBank(mode Mode) {
	switch mode {
	case ModeSystem, ModeUser:
		copy(c.r8_12NonFIQ[:], c.r[8:13])
		c.r13Usr, c.r14Usr = c.r[13], c.r[14]
	case ModeIRQ:
		copy(c.r8_12NonFIQ[:], c.r[8:13])
		c.r13IRQ, c.r14IRQ = c.r[13], c.r[14]
		c.spsrIRQ = c.spsr
	case ModeSupervisor:
		copy(c.r8_12NonFIQ[:], c.r[8:13])
		c.r13SVC, c.r14SVC = c.r[13], c.r[14]
		c.spsrSVC = c.spsr
	case ModeAbort:
		copy(c.r8_12NonFIQ[:], c.r[8:13])
		c.r13Abt, c.r14Abt = c.r[13], c.r[14]
		c.spsrAbt = c.spsr
	case ModeUndefined:
		copy(c.r8_12NonFIQ[:], c.r[8:13])
		c.r13Und, c.r14Und = c.r[13], c.r[14]
		c.spsrUnd = c.spsr
	case ModeFIQ:
		copy(c.r8_12FIQ[:], c.r[8:13])
		c.r13FIQ, c.r14FIQ = c.r[13], c.r[14]
		c.spsrFIQ = c.spsr
	}
}

// loadBank installs mode's banked r8-r14/SPSR as the live registers.
func (c *CPU) loadBank(mode Mode) {
	switch mode {
	case ModeSystem, ModeUser:
		copy(c.r[8:13], c.r8_12NonFIQ[:])
		c.r[13], c.r[14] = c.r13Usr, c.r14Usr
	case ModeIRQ:
		c.spsr = c.spsrIRQ
		copy(c.r[8:13], c.r8_12NonFIQ[:])
		c.r[13], c.r[14] = c.r13IRQ, c.r14IRQ
	case ModeSupervisor:
		c.spsr = c.spsrSVC
		copy(c.r[8:13], c.r8_12NonFIQ[:])
		c.r[13], c.r[14] = c.r13SVC, c.r14SVC
	case ModeAbort:
		c.spsr = c.spsrAbt
		copy(c.r[8:13], c.r8_12NonFIQ[:])
		c.r[13], c.r[14] = c.r13Abt, c.r14Abt
	case ModeUndefined:
		c.spsr = c.spsrUnd
		copy(c.r[8:13], c.r8_12NonFIQ[:])
		c.r[13], c.r[14] = c.r13Und, c.r14Und
	case ModeFIQ:
		c.spsr = c.spsrFIQ
		copy(c.r[8:13], c.r8_12FIQ[:])
		c.r[13], c.r[14] = c.r13FIQ, c.r14FIQ
	}
}

// setMode banks out the current mode's registers and banks in newMode's.
func (c *CPU) setMode(newMode Mode) {
	old := c.currentMode()
	c.storeBank(old)
	c.loadBank(newMode)
	c.cpsr = c.cpsr&^0x1F | uint32(newMode)
}

// adoptCPSR replaces CPSR wholesale (MSR to CPSR with the control-field
// mask set, or a data-processing/LDM return-from-exception). Only the
// mode field drives a bank swap; every other bit is just copied over.
func (c *CPU) adoptCPSR(v uint32) {
	old := c.currentMode()
	c.cpsr = v
	newMode := c.currentMode()
	if newMode != old {
		c.storeBank(old)
		c.loadBank(newMode)
		c.cpsr = c.cpsr&^0x1F | uint32(newMode)
	}
}

// fetch reads one instruction-sized opcode from PC, advances PC, and
// charges the bus's returned cycle cost to this run's local counter —
// the Read<Int,Driver> contract applied to the CPU as the calling driver.
func (c *CPU) fetch() uint32 {
	if c.thumbState() {
		v, cyc := c.bus.Read16(c.r[15])
		c.cycles += cyc
		c.r[15] += 2
		return uint32(v)
	}
	v, cyc := c.bus.Read32(c.r[15])
	c.cycles += cyc
	c.r[15] += 4
	return v
}

func (c *CPU) read8(addr uint32) uint32 {
	v, cyc := c.bus.Read8(addr)
	c.cycles += cyc
	return uint32(v)
}
func (c *CPU) read16(addr uint32) uint32 {
	v, cyc := c.bus.Read16(addr)
	c.cycles += cyc
	return uint32(v)
}
func (c *CPU) read32(addr uint32) uint32 {
	v, cyc := c.bus.Read32(addr)
	c.cycles += cyc
	return v
}
func (c *CPU) write8(addr uint32, v uint32) {
	c.cycles += c.bus.Write8(addr, byte(v))
}
func (c *CPU) write16(addr uint32, v uint32) {
	c.cycles += c.bus.Write16(addr, uint16(v))
}
func (c *CPU) write32(addr uint32, v uint32) {
	c.cycles += c.bus.Write32(addr, v)
}

// checkCondition evaluates one of the 16 4-bit ARM condition codes
// against NZCV. NV (1111) never executes.
func (c *CPU) checkCondition(cond uint32) bool {
	n, z, cy, v := c.flagN(), c.flagZ(), c.flagC(), c.flagV()
	switch cond & 0xF {
	case 0:
		return z
	case 1:
		return !z
	case 2:
		return cy
	case 3:
		return !cy
	case 4:
		return n
	case 5:
		return !n
	case 6:
		return v
	case 7:
		return !v
	case 8:
		return cy && !z
	case 9:
		return !cy || z
	case 10:
		return n == v
	case 11:
		return n != v
	case 12:
		return !z && n == v
	case 13:
		return z || n != v
	case 14:
		return true
	default:
		return false
	}
}

// decodeExecute runs one fetched opcode: evaluates its condition (ARM
// only — THUMB instructions are unconditional except branches) and
// dispatches to the ARM or THUMB executor, then services any exception
// signaled during (or just before) this instruction.
func (c *CPU) decodeExecute(opcode uint32) {
	if c.thumbState() {
		c.executeTHUMB(uint16(opcode))
	} else if c.checkCondition(opcode >> 28) {
		c.executeARM(opcode)
	}
	if c.exceptionPending {
		h := c.exceptionHandler
		c.exceptionPending = false
		c.exceptionHandler = nil
		h()
	}
}

// stepPipeline advances the two-stage pipeline by one slot: execute the
// opcode fetched two steps ago, then fetch its replacement.
func (c *CPU) stepPipeline() {
	if c.pipe.step >= 2 {
		opcode := c.pipe.opcode[c.pipe.index]
		c.decodeExecute(opcode)
		c.pipe.opcode[c.pipe.index] = c.fetch()
		c.pipe.index ^= 1
	} else {
		c.pipe.opcode[c.pipe.index] = c.fetch()
		c.pipe.index ^= 1
		c.pipe.step++
	}
}

// pollIRQ implements the instruction-boundary IRQ check: the aggregator's
// combinatorial line, further gated by CPSR.irq_disable (which the
// aggregator itself knows nothing about, per spec.md §4.2).
func (c *CPU) pollIRQ() {
	if !c.irqDisabled() && c.irqSrc.Line() {
		c.signalException(excIRQ)
	}
}

func (c *CPU) irqDisabled() bool { return c.cpsr&(1<<bitI) != 0 }

// run is the scheduler RunFunc for DriverCPU: step the pipeline, polling
// for IRQ at every instruction boundary, until the budget is exhausted.
// Like the DMA channels' run loop, a step that starts before budget is
// exhausted is allowed to finish, so this can overshoot by up to one
// instruction's cost.
func (c *CPU) run(budget uint64) uint64 {
	c.cycles = 0
	for c.cycles < budget {
		c.pollIRQ()
		c.stepPipeline()
	}
	return c.cycles
}

// StreamState saves/loads the full register file, CPSR/SPSR banks, and
// pipeline state.
func (c *CPU) StreamState(s *serialize.Stream) {
	for i := range c.r {
		s.U32(&c.r[i])
	}
	s.U32(&c.cpsr)
	s.U32(&c.spsr)
	for i := range c.r8_12NonFIQ {
		s.U32(&c.r8_12NonFIQ[i])
	}
	for i := range c.r8_12FIQ {
		s.U32(&c.r8_12FIQ[i])
	}
	s.U32(&c.r13Usr)
	s.U32(&c.r14Usr)
	s.U32(&c.r13FIQ)
	s.U32(&c.r14FIQ)
	s.U32(&c.r13SVC)
	s.U32(&c.r14SVC)
	s.U32(&c.r13Abt)
	s.U32(&c.r14Abt)
	s.U32(&c.r13IRQ)
	s.U32(&c.r14IRQ)
	s.U32(&c.r13Und)
	s.U32(&c.r14Und)
	s.U32(&c.spsrFIQ)
	s.U32(&c.spsrSVC)
	s.U32(&c.spsrAbt)
	s.U32(&c.spsrIRQ)
	s.U32(&c.spsrUnd)
	var idx, step uint32
	idx, step = uint32(c.pipe.index), uint32(c.pipe.step)
	s.U32(&c.pipe.opcode[0])
	s.U32(&c.pipe.opcode[1])
	s.U32(&idx)
	s.U32(&step)
	if s.Mode() == serialize.ModeLoad {
		c.pipe.index, c.pipe.step = int(idx), int(step)
	}
}
