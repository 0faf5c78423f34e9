// Package apu implements the GBA's PSG sound unit: the four DMG-derived
// channels (pulse+sweep, pulse, wave, noise) carried forward unchanged by
// the GBA hardware, clocked off the GBA's 16.78 MHz system clock instead of
// the DMG's 4.19 MHz one. It drives its own frame sequencer and sample
// generation off scheduler events rather than a CPU-synchronous Tick call,
// and mixes to floating-point stereo rather than a mono int16 ring buffer,
// matching the rest of the CORE's driver/event architecture and the host
// audio backend's float32 sample format.
package apu

import (
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
)

// System clock in Hz (GBA).
const cpuHz = 16777216

// Register block byte offsets. bus.Bus dispatches the 0x04000060..0x040000AF
// I/O window to the APU without rebasing, so these are absolute offsets
// within that window, matching the real SOUNDxCNT_y register map. The GBA
// packs each DMG-style 8-bit register into one byte of the corresponding
// 16-bit register, in the same low/high split the original hardware uses.
const (
	offNR10 = 0x060
	offNR11 = 0x062
	offNR12 = 0x063
	offNR13 = 0x064
	offNR14 = 0x065
	offNR21 = 0x068
	offNR22 = 0x069
	offNR23 = 0x06C
	offNR24 = 0x06D
	offNR30 = 0x070
	offNR31 = 0x072
	offNR32 = 0x073
	offNR33 = 0x074
	offNR34 = 0x075
	offNR41 = 0x078
	offNR42 = 0x079
	offNR43 = 0x07C
	offNR44 = 0x07D
	offNR50 = 0x080
	offNR51 = 0x081
	offNR52 = 0x084
	offWaveRAMLo = 0x090
	offWaveRAMHi = 0x09F
)

// AudioSink receives batches of stereo samples in [-1, 1] as parallel left
// and right slices.
type AudioSink func(l, r []float32)

// APU owns the four PSG channels, the 512 Hz frame sequencer, and a small
// stereo float ring buffer drained into an AudioSink on demand (Core drains
// it once per video frame, on PPU VBlank).
type APU struct {
	sched *scheduler.Scheduler

	enabled    bool
	sampleRate int
	sink       AudioSink

	fsStep int // 0..7

	bufL, bufR []float32
	bufHead    int

	nr50 byte
	nr51 byte

	ch1 chSquare
	ch2 chSquare
	ch3 chWave
	ch4 chNoise
}

type chSquare struct {
	enabled bool
	duty    byte
	length  int
	lenEn   bool
	vol     byte
	envDir  int8
	envPer  byte
	curVol  byte
	envTmr  byte
	freq    uint16
	timer   int
	phase   int

	sweepPer    byte
	sweepNeg    bool
	sweepShift  byte
	sweepTmr    byte
	sweepEn     bool
	sweepShadow uint16
}

type chWave struct {
	enabled bool
	dacEn   bool
	length  int
	lenEn   bool
	volCode byte
	freq    uint16
	timer   int
	pos     int
	ram     [16]byte
}

type chNoise struct {
	enabled bool
	length  int
	lenEn   bool
	vol     byte
	envDir  int8
	envPer  byte
	curVol  byte
	envTmr  byte
	shift   byte
	width7  bool
	divSel  byte
	timer   int
	lfsr    uint16
}

var dutyTable = [4][8]byte{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 0},
}

// New constructs a powered-down APU bound to sched. SetSampleRate and
// SetSink must be called before Reset engages its scheduler events.
func New(sched *scheduler.Scheduler) *APU {
	return &APU{
		sched:      sched,
		sampleRate: 48000,
		bufL:       make([]float32, 2048),
		bufR:       make([]float32, 2048),
	}
}

// SetSampleRate configures the host sample rate; call before Reset.
func (a *APU) SetSampleRate(hz int) {
	if hz <= 0 {
		hz = 48000
	}
	a.sampleRate = hz
}

// SetSink installs the callback Drain flushes buffered stereo samples into.
func (a *APU) SetSink(sink AudioSink) { a.sink = sink }

// Reset powers the unit on with hardware-default mixing registers and
// (re)engages its frame-sequencer and sample-generation scheduler events.
func (a *APU) Reset() {
	*a = APU{sched: a.sched, sampleRate: a.sampleRate, sink: a.sink,
		bufL: make([]float32, 2048), bufR: make([]float32, 2048)}
	a.enabled = true
	a.nr50 = 0x77
	a.nr51 = 0xFF
	a.sched.RemoveEvent(scheduler.EventAPUFrameSequencer)
	a.sched.RemoveEvent(scheduler.EventAPUSample)
	a.sched.AddEvent(scheduler.EventAPUFrameSequencer, cpuHz/512, a.stepFrameSequencer)
	a.sched.AddEvent(scheduler.EventAPUSample, uint64(cpuHz)/uint64(a.sampleRate), a.stepSample)
}

// ReadRegister8 satisfies bus.APU for the sound I/O window; offsets are
// absolute I/O-region offsets (0x060..0x0AF), as internal/bus passes them.
func (a *APU) ReadRegister8(off uint32) byte {
	switch off {
	case offNR10:
		n := (a.ch1.sweepPer & 7) << 4
		if a.ch1.sweepNeg {
			n |= 1 << 3
		}
		n |= a.ch1.sweepShift & 7
		return 0x80 | n
	case offNR11:
		return (a.ch1.duty << 6) | byte(0x3F-(a.ch1.length&0x3F))
	case offNR12:
		return packEnvelope(a.ch1.vol, a.ch1.envDir, a.ch1.envPer)
	case offNR13:
		return byte(a.ch1.freq & 0xFF)
	case offNR14:
		return (boolToByte(a.ch1.lenEn) << 6) | byte((a.ch1.freq>>8)&7)
	case offNR21:
		return (a.ch2.duty << 6) | byte(0x3F-(a.ch2.length&0x3F))
	case offNR22:
		return packEnvelope(a.ch2.vol, a.ch2.envDir, a.ch2.envPer)
	case offNR23:
		return byte(a.ch2.freq & 0xFF)
	case offNR24:
		return (boolToByte(a.ch2.lenEn) << 6) | byte((a.ch2.freq>>8)&7)
	case offNR30:
		if a.ch3.dacEn {
			return 0x80
		}
		return 0x00
	case offNR31:
		return byte(0xFF - (a.ch3.length & 0xFF))
	case offNR32:
		return (a.ch3.volCode << 5) | 0x9F
	case offNR33:
		return byte(a.ch3.freq & 0xFF)
	case offNR34:
		return (boolToByte(a.ch3.lenEn) << 6) | byte((a.ch3.freq>>8)&7)
	case offNR41:
		return byte(0x3F - (a.ch4.length & 0x3F))
	case offNR42:
		return packEnvelope(a.ch4.vol, a.ch4.envDir, a.ch4.envPer)
	case offNR43:
		w := byte(0)
		if a.ch4.width7 {
			w = 1
		}
		return (a.ch4.shift << 4) | (w << 3) | (a.ch4.divSel & 7)
	case offNR44:
		return boolToByte(a.ch4.lenEn) << 6
	case offNR50:
		return a.nr50
	case offNR51:
		return a.nr51
	case offNR52:
		chFlags := byte(0)
		if a.ch1.enabled {
			chFlags |= 1 << 0
		}
		if a.ch2.enabled {
			chFlags |= 1 << 1
		}
		if a.ch3.enabled {
			chFlags |= 1 << 2
		}
		if a.ch4.enabled {
			chFlags |= 1 << 3
		}
		return 0x70 | (boolToByte(a.enabled) << 7) | chFlags
	default:
		if off >= offWaveRAMLo && off <= offWaveRAMHi {
			return a.ch3.ram[off-offWaveRAMLo]
		}
		return 0xFF
	}
}

// WriteRegister8 satisfies bus.APU.
func (a *APU) WriteRegister8(off uint32, v byte) {
	switch off {
	case offNR10:
		a.ch1.sweepPer = (v >> 4) & 7
		a.ch1.sweepNeg = v&(1<<3) != 0
		a.ch1.sweepShift = v & 7
	case offNR11:
		a.ch1.duty = (v >> 6) & 3
		a.ch1.length = 64 - int(v&0x3F)
	case offNR12:
		a.ch1.vol, a.ch1.envDir, a.ch1.envPer = unpackEnvelope(v)
		if v&0xF8 == 0 {
			a.ch1.enabled = false
		}
	case offNR13:
		a.ch1.freq = (a.ch1.freq & 0x0700) | uint16(v)
		a.reloadTimer(&a.ch1.timer, a.ch1.freq, 4)
	case offNR14:
		a.ch1.lenEn = v&(1<<6) != 0
		a.ch1.freq = (a.ch1.freq & 0x00FF) | (uint16(v&7) << 8)
		if v&(1<<7) != 0 {
			a.triggerCh1()
		}
	case offNR21:
		a.ch2.duty = (v >> 6) & 3
		a.ch2.length = 64 - int(v&0x3F)
	case offNR22:
		a.ch2.vol, a.ch2.envDir, a.ch2.envPer = unpackEnvelope(v)
		if v&0xF8 == 0 {
			a.ch2.enabled = false
		}
	case offNR23:
		a.ch2.freq = (a.ch2.freq & 0x0700) | uint16(v)
		a.reloadTimer(&a.ch2.timer, a.ch2.freq, 4)
	case offNR24:
		a.ch2.lenEn = v&(1<<6) != 0
		a.ch2.freq = (a.ch2.freq & 0x00FF) | (uint16(v&7) << 8)
		if v&(1<<7) != 0 {
			a.triggerCh2()
		}
	case offNR30:
		a.ch3.dacEn = v&0x80 != 0
		if !a.ch3.dacEn {
			a.ch3.enabled = false
		}
	case offNR31:
		a.ch3.length = 256 - int(v)
	case offNR32:
		a.ch3.volCode = (v >> 5) & 3
	case offNR33:
		a.ch3.freq = (a.ch3.freq & 0x0700) | uint16(v)
		a.reloadTimer(&a.ch3.timer, a.ch3.freq, 2)
	case offNR34:
		a.ch3.lenEn = v&(1<<6) != 0
		a.ch3.freq = (a.ch3.freq & 0x00FF) | (uint16(v&7) << 8)
		if v&(1<<7) != 0 {
			a.triggerCh3()
		}
	case offNR41:
		a.ch4.length = 64 - int(v&0x3F)
	case offNR42:
		a.ch4.vol, a.ch4.envDir, a.ch4.envPer = unpackEnvelope(v)
		if v&0xF8 == 0 {
			a.ch4.enabled = false
		}
	case offNR43:
		a.ch4.shift = (v >> 4) & 0x0F
		a.ch4.width7 = v&(1<<3) != 0
		a.ch4.divSel = v & 7
		a.reloadCh4Timer()
	case offNR44:
		a.ch4.lenEn = v&(1<<6) != 0
		if v&(1<<7) != 0 {
			a.triggerCh4()
		}
	case offNR50:
		a.nr50 = v
	case offNR51:
		a.nr51 = v
	case offNR52:
		pwr := v&(1<<7) != 0
		if !pwr && a.enabled {
			sink, rate, sched := a.sink, a.sampleRate, a.sched
			*a = APU{sched: sched, sampleRate: rate, sink: sink,
				bufL: make([]float32, 2048), bufR: make([]float32, 2048)}
			a.enabled = false
		} else if pwr {
			a.enabled = true
		}
	default:
		if off >= offWaveRAMLo && off <= offWaveRAMHi {
			a.ch3.ram[off-offWaveRAMLo] = v
		}
	}
}

func packEnvelope(vol byte, dir int8, per byte) byte {
	d := byte(0)
	if dir > 0 {
		d = 1
	}
	return (vol << 4) | (d << 3) | (per & 7)
}

func unpackEnvelope(v byte) (vol byte, dir int8, per byte) {
	vol = (v >> 4) & 0x0F
	if v&(1<<3) != 0 {
		dir = 1
	} else {
		dir = -1
	}
	per = v & 7
	return
}

func (a *APU) reloadTimer(timer *int, freq uint16, mult int) {
	period := mult * (2048 - int(freq&0x7FF))
	if period < mult*2 {
		period = mult * 2
	}
	*timer = period
}

func (a *APU) reloadCh4Timer() {
	divTable := [8]int{8, 16, 32, 48, 64, 80, 96, 112}
	div := divTable[a.ch4.divSel&7]
	period := div << (int(a.ch4.shift) + 4)
	if period < 2 {
		period = 2
	}
	a.ch4.timer = period
}

func (a *APU) triggerCh1() {
	a.ch1.enabled = !(a.ch1.vol == 0 && a.ch1.envDir < 0)
	if a.ch1.length == 0 {
		a.ch1.length = 64
	}
	a.ch1.phase = 0
	a.reloadTimer(&a.ch1.timer, a.ch1.freq, 4)
	a.ch1.curVol = a.ch1.vol
	per := a.ch1.envPer
	if per == 0 {
		per = 8
	}
	a.ch1.envTmr = per
	a.ch1.sweepShadow = a.ch1.freq & 0x7FF
	a.ch1.sweepEn = a.ch1.sweepPer != 0 || a.ch1.sweepShift != 0
	st := a.ch1.sweepPer
	if st == 0 {
		st = 8
	}
	a.ch1.sweepTmr = st
	if a.ch1.sweepShift != 0 && a.calcCh1Sweep(true) > 2047 {
		a.ch1.enabled = false
	}
}

func (a *APU) triggerCh2() {
	if a.ch2.vol == 0 && a.ch2.envDir < 0 {
		a.ch2.enabled = false
		return
	}
	a.ch2.enabled = true
	if a.ch2.length == 0 {
		a.ch2.length = 64
	}
	a.ch2.phase = 0
	a.reloadTimer(&a.ch2.timer, a.ch2.freq, 4)
	a.ch2.curVol = a.ch2.vol
	per := a.ch2.envPer
	if per == 0 {
		per = 8
	}
	a.ch2.envTmr = per
}

func (a *APU) triggerCh3() {
	a.ch3.enabled = a.ch3.dacEn
	if a.ch3.length == 0 {
		a.ch3.length = 256
	}
	a.ch3.pos = 0
	a.reloadTimer(&a.ch3.timer, a.ch3.freq, 2)
}

func (a *APU) triggerCh4() {
	a.ch4.enabled = !(a.ch4.vol == 0 && a.ch4.envDir < 0)
	if a.ch4.length == 0 {
		a.ch4.length = 64
	}
	a.ch4.curVol = a.ch4.vol
	per := a.ch4.envPer
	if per == 0 {
		per = 8
	}
	a.ch4.envTmr = per
	a.ch4.lfsr = 0x7FFF
	a.reloadCh4Timer()
}

// stepFrameSequencer advances the 512 Hz length/sweep/envelope clock and
// reschedules itself; it runs regardless of sample rate so save states
// taken between samples stay phase-accurate.
func (a *APU) stepFrameSequencer() {
	a.sched.AddEvent(scheduler.EventAPUFrameSequencer, cpuHz/512, a.stepFrameSequencer)
	if !a.enabled {
		return
	}
	a.fsStep = (a.fsStep + 1) & 7
	if a.fsStep%2 == 0 {
		a.clockLength()
	}
	if a.fsStep == 2 || a.fsStep == 6 {
		a.clockSweep()
	}
	if a.fsStep == 7 {
		a.clockEnvelope()
	}
}

// stepSample advances every channel's own timer by one sample period's
// worth of system cycles, mixes one stereo sample, and reschedules itself.
func (a *APU) stepSample() {
	period := uint64(cpuHz) / uint64(a.sampleRate)
	a.sched.AddEvent(scheduler.EventAPUSample, period, a.stepSample)
	if !a.enabled {
		a.push(0, 0)
		return
	}
	cycles := int(period)
	advanceChannel(&a.ch1.timer, &a.ch1.enabled, a.ch1.enabled, cycles, func() {
		a.ch1.phase = (a.ch1.phase + 1) & 7
		a.reloadTimer(&a.ch1.timer, a.ch1.freq, 4)
	})
	advanceChannel(&a.ch2.timer, &a.ch2.enabled, a.ch2.enabled, cycles, func() {
		a.ch2.phase = (a.ch2.phase + 1) & 7
		a.reloadTimer(&a.ch2.timer, a.ch2.freq, 4)
	})
	advanceChannel(&a.ch3.timer, &a.ch3.enabled, a.ch3.enabled, cycles, func() {
		a.ch3.pos = (a.ch3.pos + 1) & 31
		a.reloadTimer(&a.ch3.timer, a.ch3.freq, 2)
	})
	advanceChannel(&a.ch4.timer, &a.ch4.enabled, a.ch4.enabled, cycles, func() {
		x := (a.ch4.lfsr ^ (a.ch4.lfsr >> 1)) & 1
		a.ch4.lfsr >>= 1
		a.ch4.lfsr |= x << 14
		if a.ch4.width7 {
			a.ch4.lfsr &^= 1 << 6
			a.ch4.lfsr |= x << 6
		}
		a.reloadCh4Timer()
	})
	l, r := a.mix()
	a.push(l, r)
}

// advanceChannel steps a single down-counting channel timer forward by
// cycles system cycles, firing onUnderflow (and reloading via its own
// closure) once per period elapsed, without looping per-cycle.
func advanceChannel(timer *int, enabled *bool, wasEnabled bool, cycles int, onUnderflow func()) {
	if !wasEnabled || *timer <= 0 {
		return
	}
	remaining := cycles
	for remaining > 0 && *enabled {
		if remaining < *timer {
			*timer -= remaining
			return
		}
		remaining -= *timer
		*timer = 0
		onUnderflow()
	}
}

func (a *APU) clockLength() {
	for _, ch := range []struct {
		lenEn   bool
		length  *int
		enabled *bool
	}{
		{a.ch1.lenEn, &a.ch1.length, &a.ch1.enabled},
		{a.ch2.lenEn, &a.ch2.length, &a.ch2.enabled},
		{a.ch3.lenEn, &a.ch3.length, &a.ch3.enabled},
		{a.ch4.lenEn, &a.ch4.length, &a.ch4.enabled},
	} {
		if ch.lenEn && *ch.length > 0 {
			*ch.length--
			if *ch.length <= 0 {
				*ch.enabled = false
			}
		}
	}
}

func clockOneEnvelope(enabled bool, envPer byte, envTmr *byte, envDir int8, curVol *byte) {
	if !enabled || envPer == 0 {
		return
	}
	if *envTmr > 0 {
		*envTmr--
	}
	if *envTmr == 0 {
		*envTmr = envPer
		if envDir > 0 && *curVol < 15 {
			*curVol++
		} else if envDir < 0 && *curVol > 0 {
			*curVol--
		}
	}
}

func (a *APU) clockEnvelope() {
	clockOneEnvelope(a.ch1.enabled, a.ch1.envPer, &a.ch1.envTmr, a.ch1.envDir, &a.ch1.curVol)
	clockOneEnvelope(a.ch2.enabled, a.ch2.envPer, &a.ch2.envTmr, a.ch2.envDir, &a.ch2.curVol)
	clockOneEnvelope(a.ch4.enabled, a.ch4.envPer, &a.ch4.envTmr, a.ch4.envDir, &a.ch4.curVol)
}

func (a *APU) clockSweep() {
	if !a.ch1.enabled || !a.ch1.sweepEn || a.ch1.sweepPer == 0 {
		return
	}
	if a.ch1.sweepTmr > 0 {
		a.ch1.sweepTmr--
	}
	if a.ch1.sweepTmr == 0 {
		a.ch1.sweepTmr = a.ch1.sweepPer
		nf := a.calcCh1Sweep(true)
		if nf > 2047 {
			a.ch1.enabled = false
		} else {
			a.ch1.sweepShadow = uint16(nf)
			a.ch1.freq = (a.ch1.freq &^ 0x07FF) | (uint16(nf) & 0x07FF)
			a.reloadTimer(&a.ch1.timer, a.ch1.freq, 4)
			if a.calcCh1Sweep(false) > 2047 {
				a.ch1.enabled = false
			}
		}
	}
}

func (a *APU) calcCh1Sweep(applyShift bool) int {
	base := int(a.ch1.sweepShadow)
	if a.ch1.sweepShift == 0 {
		return base
	}
	delta := base >> a.ch1.sweepShift
	if a.ch1.sweepNeg {
		return base - delta
	}
	if applyShift {
		return base + delta
	}
	return base + delta
}

// mix computes one stereo sample pair in [-1, 1] from the four channels'
// current state, routed per NR51 and scaled by NR50.
func (a *APU) mix() (float32, float32) {
	var c1, c2, c3, c4 float64
	if a.ch1.enabled {
		c1 = signedAmp(dutyTable[a.ch1.duty][a.ch1.phase] != 0, a.ch1.curVol)
	}
	if a.ch2.enabled {
		c2 = signedAmp(dutyTable[a.ch2.duty][a.ch2.phase] != 0, a.ch2.curVol)
	}
	if a.ch3.enabled && a.ch3.dacEn {
		b := a.ch3.ram[a.ch3.pos>>1]
		var n4 byte
		if a.ch3.pos&1 == 0 {
			n4 = (b >> 4) & 0x0F
		} else {
			n4 = b & 0x0F
		}
		if a.ch3.volCode != 0 {
			shift := a.ch3.volCode - 1
			scaled := float64(n4 >> shift)
			max := float64(byte(15) >> shift)
			if max < 1 {
				max = 1
			}
			c3 = (scaled/max)*2.0 - 1.0
		}
	}
	if a.ch4.enabled {
		c4 = signedAmp((^a.ch4.lfsr)&1 != 0, a.ch4.curVol)
	}

	rMask := a.nr51 & 0x0F
	lMask := (a.nr51 >> 4) & 0x0F
	if rMask == 0 && lMask == 0 {
		rMask, lMask = 0x0F, 0x0F
	}
	var l, r float64
	if lMask&0x1 != 0 {
		l += c1
	}
	if lMask&0x2 != 0 {
		l += c2
	}
	if lMask&0x4 != 0 {
		l += c3
	}
	if lMask&0x8 != 0 {
		l += c4
	}
	if rMask&0x1 != 0 {
		r += c1
	}
	if rMask&0x2 != 0 {
		r += c2
	}
	if rMask&0x4 != 0 {
		r += c3
	}
	if rMask&0x8 != 0 {
		r += c4
	}
	lv := float64((a.nr50>>4)&0x07) / 7.0
	rv := float64(a.nr50&0x07) / 7.0
	l = clamp1(l * lv * 0.25)
	r = clamp1(r * rv * 0.25)
	return float32(l), float32(r)
}

func signedAmp(high bool, vol byte) float64 {
	amp := float64(vol) / 15.0
	if high {
		return amp
	}
	return -amp
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func (a *APU) push(l, r float32) {
	if len(a.bufL) == 0 {
		return
	}
	a.bufL[a.bufHead%len(a.bufL)] = l
	a.bufR[a.bufHead%len(a.bufR)] = r
	a.bufHead++
	if a.bufHead >= len(a.bufL)*64 {
		a.bufHead %= len(a.bufL)
	}
}

// Drain flushes up to one buffer's worth of samples to the installed sink.
// Core calls this once per video frame, from the PPU's VBlank hook.
func (a *APU) Drain() {
	if a.sink == nil {
		return
	}
	n := a.bufHead
	if n > len(a.bufL) {
		n = len(a.bufL)
	}
	if n == 0 {
		return
	}
	a.sink(a.bufL[:n], a.bufR[:n])
	a.bufHead = 0
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// StreamState saves/loads every channel's register and runtime state.
func (a *APU) StreamState(s *serialize.Stream) {
	s.Bool(&a.enabled)
	s.U8(&a.nr50)
	s.U8(&a.nr51)
	i32 := func(v int) int32 { return int32(v) }
	var fsStep32 int32
	if s.Mode() == serialize.ModeSave {
		fsStep32 = i32(a.fsStep)
	}
	s.I32(&fsStep32)
	if s.Mode() == serialize.ModeLoad {
		a.fsStep = int(fsStep32)
	}
	a.streamSquare(s, &a.ch1, true)
	a.streamSquare(s, &a.ch2, false)
	a.streamWave(s)
	a.streamNoise(s)
}

func (a *APU) streamSquare(s *serialize.Stream, ch *chSquare, sweep bool) {
	s.Bool(&ch.enabled)
	s.U8(&ch.duty)
	var length, timer, phase int32
	if s.Mode() == serialize.ModeSave {
		length, timer, phase = int32(ch.length), int32(ch.timer), int32(ch.phase)
	}
	s.I32(&length)
	s.Bool(&ch.lenEn)
	s.U8(&ch.vol)
	var envDir int8
	if s.Mode() == serialize.ModeSave {
		envDir = ch.envDir
	}
	s.I8(&envDir)
	s.U8(&ch.envPer)
	s.U8(&ch.curVol)
	s.U8(&ch.envTmr)
	s.U16(&ch.freq)
	s.I32(&timer)
	s.I32(&phase)
	if s.Mode() == serialize.ModeLoad {
		ch.length, ch.timer, ch.phase = int(length), int(timer), int(phase)
		ch.envDir = envDir
	}
	if sweep {
		s.U8(&ch.sweepPer)
		s.Bool(&ch.sweepNeg)
		s.U8(&ch.sweepShift)
		s.U8(&ch.sweepTmr)
		s.Bool(&ch.sweepEn)
		s.U16(&ch.sweepShadow)
	}
}

func (a *APU) streamWave(s *serialize.Stream) {
	ch := &a.ch3
	s.Bool(&ch.enabled)
	s.Bool(&ch.dacEn)
	var length, timer, pos int32
	if s.Mode() == serialize.ModeSave {
		length, timer, pos = int32(ch.length), int32(ch.timer), int32(ch.pos)
	}
	s.I32(&length)
	s.Bool(&ch.lenEn)
	s.U8(&ch.volCode)
	s.U16(&ch.freq)
	s.I32(&timer)
	s.I32(&pos)
	if s.Mode() == serialize.ModeLoad {
		ch.length, ch.timer, ch.pos = int(length), int(timer), int(pos)
	}
	ram := ch.ram[:]
	s.Bytes(&ram)
	if s.Mode() == serialize.ModeLoad {
		copy(ch.ram[:], ram)
	}
}

func (a *APU) streamNoise(s *serialize.Stream) {
	ch := &a.ch4
	s.Bool(&ch.enabled)
	var length, timer int32
	if s.Mode() == serialize.ModeSave {
		length, timer = int32(ch.length), int32(ch.timer)
	}
	s.I32(&length)
	s.Bool(&ch.lenEn)
	s.U8(&ch.vol)
	var envDir int8
	if s.Mode() == serialize.ModeSave {
		envDir = ch.envDir
	}
	s.I8(&envDir)
	s.U8(&ch.envPer)
	s.U8(&ch.curVol)
	s.U8(&ch.envTmr)
	s.U8(&ch.shift)
	s.Bool(&ch.width7)
	s.U8(&ch.divSel)
	s.I32(&timer)
	s.U16(&ch.lfsr)
	if s.Mode() == serialize.ModeLoad {
		ch.length, ch.timer = int(length), int(timer)
		ch.envDir = envDir
	}
}
