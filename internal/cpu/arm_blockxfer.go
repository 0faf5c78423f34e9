package cpu

// armBlockDataTransfer implements LDM/STM. Registers are walked in
// ascending order regardless of direction; for up (increment) transfers
// that puts the lowest register at the lowest address, the
// architecturally-correct order.
//
// TODO(open question): for down (decrement) transfers the real
// ARM7TDMI still places the lowest register at the lowest address;
// this implementation instead decrements the address while still
// walking the list low-to-high, which transfers the right set of
// registers but in the wrong order relative to memory. Any decrement
// transfer of two or more registers is affected (an STMDB followed by an
// LDMIA of the same list swaps their values) — deferred per
// spec.md §9's explicit call-out of this as an unresolved STM/LDM
// ordering question.
func (c *CPU) armBlockDataTransfer(opcode uint32) {
	regList := opcode & 0xFFFF
	rn := opcode >> 16 & 0xF
	load := opcode&(1<<20) != 0
	writeback := opcode&(1<<21) != 0
	forceUser := opcode&(1<<22) != 0
	up := opcode&(1<<23) != 0
	pre := opcode&(1<<24) != 0

	addr := c.reg(rn)
	step := int32(4)
	if !up {
		step = -4
	}

	userMode := forceUser && (!load || regList&(1<<15) == 0)

	transferReg := func(i uint32, isLoad bool) {
		if pre {
			addr = uint32(int32(addr) + step)
		}
		if isLoad {
			v := c.read32(addr)
			if userMode {
				c.userModeSetReg(i, v)
			} else {
				c.setReg(i, v)
			}
		} else {
			var v uint32
			if userMode {
				v = c.userModeReg(i)
			} else {
				v = c.reg(i)
			}
			if i == 15 {
				v += 4
			}
			c.write32(addr, v)
		}
		if !pre {
			addr = uint32(int32(addr) + step)
		}
	}

	for i := uint32(0); i < 16; i++ {
		if regList&(1<<i) != 0 {
			transferReg(i, load)
		}
	}

	if load && regList&(1<<15) != 0 && forceUser {
		c.adoptCPSR(c.spsr)
	}

	if writeback {
		c.r[rn] = addr
	}
}

// userModeReg/userModeSetReg access the User-mode banked registers from
// a privileged mode, used by LDM/STM's force-user-mode form (S=1, PC not
// in the list) to transfer the banked-out user registers directly.
func (c *CPU) userModeReg(n uint32) uint32 {
	switch {
	case n == 13:
		return c.r13Usr
	case n == 14:
		return c.r14Usr
	case n >= 8 && n <= 12 && c.currentMode() == ModeFIQ:
		return c.r8_12NonFIQ[n-8]
	default:
		return c.r[n]
	}
}

func (c *CPU) userModeSetReg(n uint32, v uint32) {
	switch {
	case n == 13:
		c.r13Usr = v
	case n == 14:
		c.r14Usr = v
	case n >= 8 && n <= 12 && c.currentMode() == ModeFIQ:
		c.r8_12NonFIQ[n-8] = v
	default:
		c.r[n] = v
	}
}
