package gba

import (
	"bytes"
	"testing"

	"github.com/retrocore-emu/gbacore/internal/keypad"
	"github.com/retrocore-emu/gbacore/internal/ppu"
	"github.com/retrocore-emu/gbacore/internal/scheduler"
	"github.com/retrocore-emu/gbacore/internal/serialize"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	c := New()
	require.NoError(t, c.Init())
	rom := make([]byte, 0x1000)
	// Cartridge entry point (0x08000000), where Reset puts PC when no BIOS is
	// loaded: an infinite branch-to-self so Run idles harmlessly.
	rom[0], rom[1], rom[2], rom[3] = 0xFE, 0xFF, 0xFF, 0xEA
	require.NoError(t, c.LoadROM(rom))
	c.Reset()
	return c
}

func TestLoadROMWiresEveryComponent(t *testing.T) {
	c := newTestCore(t)
	require.NotNil(t, c.bus)
	require.NotNil(t, c.dma)
	require.NotNil(t, c.cpu)
	require.True(t, c.sched.IsEngaged(scheduler.DriverCPU))
}

func TestLoadBIOSRejectsWrongSize(t *testing.T) {
	c := New()
	require.NoError(t, c.Init())
	err := c.LoadBIOS(make([]byte, 100))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFileSizeMismatch)
}

func TestGetInputNamesMatchesKeypadOrder(t *testing.T) {
	c := newTestCore(t)
	require.Equal(t, keypad.Names[:], c.GetInputNames())
}

func TestFramebufferSinkFiresOnVBlank(t *testing.T) {
	c := newTestCore(t)
	var got *ppu.Frame
	c.SetFramebufferSink(func(f *ppu.Frame) { got = f; c.Stop() })
	c.Run()

	require.NotNil(t, got, "expected at least one VBlank frame within one frame's worth of cycles")
}

func TestNotifyButtonStateIgnoresOtherPlayers(t *testing.T) {
	c := newTestCore(t)
	c.NotifyButtonState(1, keypad.ButtonA, true)
	require.Equal(t, uint16(0x03FF), c.keys.ReadKeyInput(), "player 1 must not affect the single local pad")
	c.NotifyButtonState(0, keypad.ButtonA, true)
	require.NotEqual(t, uint16(0x03FF), c.keys.ReadKeyInput())
}

func TestStreamStateRoundTrips(t *testing.T) {
	c := newTestCore(t)
	c.NotifyButtonState(0, keypad.ButtonStart, true)

	data := serialize.StateOf(func(s *serialize.Stream) { require.NoError(t, c.StreamState(s)) })

	c2 := newTestCore(t)
	err := serialize.LoadInto(data, func(s *serialize.Stream) { require.NoError(t, c2.StreamState(s)) })
	require.NoError(t, err)
	require.Equal(t, c.keys.ReadKeyInput(), c2.keys.ReadKeyInput())
}

func TestStreamStateWithoutROMIsInvalid(t *testing.T) {
	c := New()
	require.NoError(t, c.Init())
	var buf bytes.Buffer
	err := c.StreamState(serialize.NewSaveStream(&buf))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidSaveState)
}
