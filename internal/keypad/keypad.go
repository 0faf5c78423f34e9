// Package keypad implements the GBA's KEYINPUT/KEYCNT button interface: a
// flat active-low 10-button register plus an AND/OR interrupt condition,
// replacing the DMG's row-selected JOYP matrix.
package keypad

import (
	"github.com/retrocore-emu/gbacore/internal/irq"
	"github.com/retrocore-emu/gbacore/internal/serialize"
)

// Button identifies one of the ten physical GBA buttons, matching its bit
// position within KEYINPUT/KEYCNT (active-low: 0 means pressed).
type Button uint

const (
	ButtonA Button = iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonRight
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonR
	ButtonL
)

// Axis exists only for trait symmetry with other cores that support
// analog input; the GBA has none, so SetAxisState is always a no-op.
type Axis uint

const numButtons = 10

// Names lists the ten button names in KEYINPUT bit order, for front ends
// that need to label input bindings.
var Names = [numButtons]string{
	"A", "B", "Select", "Start", "Right", "Left", "Up", "Down", "R", "L",
}

// Keypad tracks the live button state and raises a Keypad IRQ when the
// condition programmed into KEYCNT is met.
type Keypad struct {
	pressed [numButtons]bool

	keycnt uint16 // bits 0-9 select mask, bit 14 enables IRQ, bit 15 selects AND vs OR
	irqSrc *irq.Controller
}

// New returns a Keypad with no buttons held and IRQ generation disabled.
func New(irqSrc *irq.Controller) *Keypad {
	return &Keypad{irqSrc: irqSrc}
}

// Reset releases every button and clears KEYCNT.
func (k *Keypad) Reset() {
	k.pressed = [numButtons]bool{}
	k.keycnt = 0
}

// SetButtonState updates one button's held state and re-evaluates the IRQ
// condition.
func (k *Keypad) SetButtonState(b Button, pressed bool) {
	k.pressed[b] = pressed
	k.checkIRQ()
}

// SetAxisState is a no-op: the GBA has no analog input. Kept so a Keypad can
// satisfy the same notification trait as cores with analog sticks.
func (k *Keypad) SetAxisState(Axis, float32) {}

// ReadKeyInput returns the KEYINPUT register: bits 0-9 are active-low
// button state, bits 10-15 read 0.
func (k *Keypad) ReadKeyInput() uint16 {
	var v uint16 = 0x3FF
	for i, p := range k.pressed {
		if p {
			v &^= 1 << uint(i)
		}
	}
	return v
}

// ReadKeyCnt returns the raw KEYCNT register.
func (k *Keypad) ReadKeyCnt() uint16 { return k.keycnt }

// WriteKeyCnt replaces KEYCNT and re-evaluates the IRQ condition, since the
// selected mask or AND/OR mode may now be satisfied.
func (k *Keypad) WriteKeyCnt(v uint16) {
	k.keycnt = v
	k.checkIRQ()
}

// checkIRQ implements KEYCNT's condition: bit 14 enables the check; bit 15
// selects AND (all selected buttons held) vs OR (any selected button held).
func (k *Keypad) checkIRQ() {
	if k.keycnt&(1<<14) == 0 {
		return
	}
	mask := k.keycnt & 0x3FF
	held := (^k.ReadKeyInput()) & 0x3FF
	var satisfied bool
	if k.keycnt&(1<<15) != 0 {
		satisfied = held&mask == mask
	} else {
		satisfied = held&mask != 0
	}
	if satisfied && k.irqSrc != nil {
		k.irqSrc.Raise(irq.Keypad)
	}
}

// StreamState saves/loads button state and KEYCNT.
func (k *Keypad) StreamState(s *serialize.Stream) {
	for i := range k.pressed {
		s.Bool(&k.pressed[i])
	}
	s.U16(&k.keycnt)
}
