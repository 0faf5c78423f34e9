// Package gba wires the scheduler, ARM7TDMI core, bus, DMA engine, PPU,
// timer chain, APU, keypad, and cartridge together into the single
// machine a host application drives. It is the module's only exported
// entry point — everything else in internal/ is reachable only through it
// (or directly, from each package's own tests).
package gba

import (
	"github.com/retrocore-emu/gbacore/internal/apu"
	"github.com/retrocore-emu/gbacore/internal/bus"
	"github.com/retrocore-emu/gbacore/internal/cart"
	"github.com/retrocore-emu/gbacore/internal/cpu"
	"github.com/retrocore-emu/gbacore/internal/dma"
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/keypad"
	"github.com/retrocore-emu/gbacore/internal/ppu"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
	"github.com/retrocore-emu/gbacore/internal/timer"
)

const biosSize = 0x4000 // 16 KiB

// Option configures a Core at construction time, before Init.
type Option func(*Core)

// WithSampleRate overrides the default 48 kHz audio sample rate. Must be
// set before Init.
func WithSampleRate(hz int) Option {
	return func(c *Core) { c.sampleRate = hz }
}

// Core owns every CORE component. Host applications (cmd/gbacore,
// internal/ui) construct exactly one and drive it entirely through this
// type's exported methods.
type Core struct {
	sampleRate int

	sched  *scheduler.Scheduler
	irqSrc *irq.Controller
	ppuDev *ppu.PPU
	keys   *keypad.Keypad
	timers *timer.Chain
	sound  *apu.APU

	cart *cart.Cartridge
	bus  *bus.Bus
	dma  *dma.Controller
	cpu  *cpu.CPU

	biosData []byte
	romData  []byte

	frameSink func(*ppu.Frame)
}

// New returns an un-initialized Core; call Init before loading BIOS/ROM.
func New(opts ...Option) *Core {
	c := &Core{sampleRate: 48000}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init builds the scheduler and every component that does not depend on a
// loaded cartridge; LoadROM finishes wiring once ROM data is available.
// It never fails today but returns error per the host contract so a future
// precondition (e.g. a required Option) can reject construction cleanly.
func (c *Core) Init() error {
	c.sched = scheduler.New()
	c.irqSrc = irq.New(c.sched)
	c.ppuDev = ppu.New(c.sched, c.irqSrc)
	c.keys = keypad.New(c.irqSrc)
	c.timers = timer.New(c.sched, c.irqSrc)
	c.sound = apu.New(c.sched)
	c.sound.SetSampleRate(c.sampleRate)
	c.ppuDev.SetFrameSink(c.onFrame)
	c.ppuDev.SetVBlankHook(c.onVBlank)
	return nil
}

// LoadBIOS installs the 16 KiB system ROM. Run executes it from the reset
// vector like real hardware rather than skipping straight to the
// cartridge's entry point; without a loaded BIOS, Reset seeds PC directly
// at the cartridge's ROM base instead.
func (c *Core) LoadBIOS(data []byte) error {
	if len(data) != biosSize {
		return fileSizeMismatch("BIOS image", biosSize, len(data))
	}
	c.biosData = data
	if c.bus != nil {
		c.bus.SetBIOS(c.biosData)
	}
	return nil
}

// LoadROM installs a cartridge image and builds the bus/DMA/CPU stack
// around it. Calling it again swaps in a fresh cartridge (and fresh SRAM —
// the CORE does not carry a previous cart's save data into a new one).
func (c *Core) LoadROM(data []byte) error {
	if c.sched == nil {
		return newError(UnsupportedFeature, "Init must be called before LoadROM")
	}
	if len(data) == 0 {
		return newError(UnsupportedFeature, "empty ROM image")
	}
	c.romData = data
	c.cart = cart.New(data)
	c.bus = bus.New(c.cart, c.ppuDev, nil, c.timers, c.sound, c.keys, c.irqSrc)
	c.dma = dma.New(c.sched, c.bus.DMAView(), c.irqSrc)
	c.bus.SetDMA(c.dma)
	if c.biosData != nil {
		c.bus.SetBIOS(c.biosData)
	}
	c.ppuDev.SetHBlankHook(c.dma.OnHBlank)
	if c.cpu != nil {
		c.sched.DisengageDriver(scheduler.DriverCPU)
	}
	c.cpu = cpu.New(c.bus, c.irqSrc, c.sched)
	if c.biosData == nil {
		c.cpu.SetPC(0x08000000)
	}
	return nil
}

// Reset returns every component to its post-power-on state without
// reloading ROM/BIOS data or clearing cartridge SRAM, mirroring the GBA's
// physical reset button (battery-backed SRAM survives a reset).
func (c *Core) Reset() {
	if c.sched == nil {
		return
	}
	c.irqSrc.Reset()
	c.ppuDev.Reset()
	c.keys.Reset()
	c.timers.Reset()
	c.sound.Reset()
	if c.bus == nil {
		return
	}
	c.bus.Reset()
	c.dma.Reset()
	c.cpu.Reset()
	if c.biosData == nil {
		c.cpu.SetPC(0x08000000)
	}
}

// Run enters the scheduler's cooperative loop and blocks until Stop is
// called. Callers driving a UI concurrently should run it on its own
// goroutine; the Notify*/SetFramebufferSink/SetAudioSink methods and the
// sink callbacks they install are the only safe cross-goroutine contact
// points, since the scheduler itself is not safe for concurrent use.
func (c *Core) Run() {
	if c.sched != nil {
		c.sched.Run()
	}
}

// Stop asks Run to return at the next event boundary.
func (c *Core) Stop() {
	if c.sched != nil {
		c.sched.Stop()
	}
}

// NotifyButtonState reports one physical button's pressed state. player
// exists for API symmetry with multi-pad hosts; the GBA has exactly one
// local player, so any value but 0 is ignored.
func (c *Core) NotifyButtonState(player int, button keypad.Button, pressed bool) {
	if player != 0 || c.keys == nil {
		return
	}
	c.keys.SetButtonState(button, pressed)
}

// NotifyAxisState is a documented no-op: the GBA has no analog input.
func (c *Core) NotifyAxisState(player int, axis keypad.Axis, value float32) {}

// GetInputNames returns the ten GBA button names in KEYINPUT bit order:
// A, B, Select, Start, Right, Left, Up, Down, R, L.
func (c *Core) GetInputNames() []string {
	names := make([]string, len(keypad.Names))
	copy(names, keypad.Names[:])
	return names
}

// SetFramebufferSink installs the callback invoked once per completed
// video frame, on the PPU's VBlank, with the just-rendered frame.
func (c *Core) SetFramebufferSink(fn func(frame *ppu.Frame)) { c.frameSink = fn }

// SetAudioSink installs the callback the APU flushes its buffered stereo
// samples into, once per video frame alongside the framebuffer.
func (c *Core) SetAudioSink(fn func(l, r []float32)) {
	if c.sound != nil {
		c.sound.SetSink(apu.AudioSink(fn))
	}
}

func (c *Core) onFrame(f *ppu.Frame) {
	if c.frameSink != nil {
		c.frameSink(f)
	}
}

// onVBlank is PPU's VBlank hook: it fires the DMA engine's vblank-timed
// transfers and drains the APU's sample buffer, both of which are
// documented to happen once per frame at this exact boundary.
func (c *Core) onVBlank() {
	if c.dma != nil {
		c.dma.OnVBlank()
	}
	if c.sound != nil {
		c.sound.Drain()
	}
}

// StreamState saves or loads every stateful component except the
// cartridge's ROM image, which the host reloads from disk via LoadROM.
func (c *Core) StreamState(s *serialize.Stream) error {
	if c.sched == nil || c.bus == nil {
		return newError(InvalidSaveState, "no cartridge loaded")
	}
	c.irqSrc.StreamState(s)
	c.ppuDev.StreamState(s)
	c.keys.StreamState(s)
	c.timers.StreamState(s)
	c.sound.StreamState(s)
	c.cart.StreamState(s)
	c.bus.StreamState(s)
	c.dma.StreamState(s)
	c.cpu.StreamState(s)
	if s.Err() != nil {
		return newError(InvalidSaveState, "%v", s.Err())
	}
	return nil
}
