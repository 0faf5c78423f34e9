package keypad

import (
	"testing"

	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/stretchr/testify/require"
)

func TestReadKeyInputActiveLow(t *testing.T) {
	k := New(irq.New(nil))
	require.EqualValues(t, 0x3FF, k.ReadKeyInput(), "no buttons held reads all-1s")

	k.SetButtonState(ButtonA, true)
	require.EqualValues(t, 0x3FF&^1, k.ReadKeyInput())

	k.SetButtonState(ButtonA, false)
	require.EqualValues(t, 0x3FF, k.ReadKeyInput())
}

func TestKeyCntORConditionRaisesIRQ(t *testing.T) {
	ic := irq.New(nil)
	ic.WriteIE(1 << irq.Keypad)
	ic.WriteIME(1)
	k := New(ic)

	k.WriteKeyCnt((1 << 14) | (1 << ButtonStart)) // IRQ enabled, OR mode, select Start
	require.False(t, ic.Line())

	k.SetButtonState(ButtonStart, true)
	require.True(t, ic.Line())
}

func TestKeyCntANDConditionRequiresAllSelected(t *testing.T) {
	ic := irq.New(nil)
	ic.WriteIE(1 << irq.Keypad)
	ic.WriteIME(1)
	k := New(ic)

	mask := uint16(1<<ButtonA | 1<<ButtonB)
	k.WriteKeyCnt((1 << 14) | (1 << 15) | mask) // AND mode

	k.SetButtonState(ButtonA, true)
	require.False(t, ic.Line(), "only one of two required buttons held")

	k.SetButtonState(ButtonB, true)
	require.True(t, ic.Line())
}
