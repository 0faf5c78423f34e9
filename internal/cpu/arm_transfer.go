package cpu

// armSingleDataTransfer implements LDR/STR (word and byte), with register
// or immediate offset, pre/post-indexing, and up/down direction.
func (c *CPU) armSingleDataTransfer(opcode uint32) {
	rd := opcode >> 12 & 0xF
	rn := opcode >> 16 & 0xF
	load := opcode&(1<<20) != 0
	writeback := opcode&(1<<21) != 0
	byteSize := opcode&(1<<22) != 0
	up := opcode&(1<<23) != 0
	pre := opcode&(1<<24) != 0
	regOffset := opcode&(1<<25) != 0

	var offset int32
	if regOffset {
		offset = int32(c.shiftedRegisterOffset(opcode))
	} else {
		offset = int32(opcode & 0xFFF)
	}
	if !up {
		offset = -offset
	}

	base := c.reg(rn)
	addr := base
	if pre {
		addr = uint32(int32(base) + offset)
	}

	if load {
		var v uint32
		if byteSize {
			v = c.read8(addr)
		} else {
			v = c.read32(addr)
		}
		c.setReg(rd, v)
	} else {
		src := c.reg(rd)
		if rd == 15 {
			src += 4 // STR PC stores PC+12
		}
		if byteSize {
			c.write8(addr, src)
		} else {
			c.write32(addr, src)
		}
	}

	if writeback || !pre {
		if !pre {
			addr = uint32(int32(base) + offset)
		}
		c.r[rn] = addr
	}
}

// shiftedRegisterOffset computes a single-data-transfer register offset:
// always an immediate-amount shift (the register-specified-shift
// encoding in this bit position belongs to the halfword-transfer format
// instead), so the carry output is irrelevant here.
func (c *CPU) shiftedRegisterOffset(opcode uint32) uint32 {
	shiftType := opcode >> 5 & 3
	amount := opcode >> 7 & 0x1F
	rm := opcode & 0xF
	v, _ := c.barrelShift(shiftType, amount, c.reg(rm), true)
	return v
}

// armHalfwordDataTransfer implements LDRH/STRH/LDRSB/LDRSH, with either a
// register or a split-immediate offset (spec.md §4.2's "register and
// immediate-offset variants").
func (c *CPU) armHalfwordDataTransfer(opcode uint32, regOffset bool) {
	sh := opcode >> 5 & 3
	rd := opcode >> 12 & 0xF
	rn := opcode >> 16 & 0xF
	load := opcode&(1<<20) != 0
	writeback := opcode&(1<<21) != 0
	up := opcode&(1<<23) != 0
	pre := opcode&(1<<24) != 0

	var offset int32
	if regOffset {
		offset = int32(c.reg(opcode & 0xF))
	} else {
		offset = int32(opcode>>4&0xF0 | opcode&0xF)
	}
	if !up {
		offset = -offset
	}

	base := c.reg(rn)
	addr := base
	if pre {
		addr = uint32(int32(base) + offset)
	}

	if load {
		var v uint32
		switch sh {
		case 1:
			v = c.read16(addr)
		case 2:
			v = uint32(int32(int8(c.read8(addr))))
		case 3:
			v = uint32(int32(int16(c.read16(addr))))
		}
		c.setReg(rd, v)
	} else {
		src := c.reg(rd)
		if rd == 15 {
			src += 4
		}
		switch sh {
		case 1:
			c.write16(addr, src)
		case 2:
			c.write8(addr, src)
		case 3:
			c.write16(addr, src)
		}
	}

	if writeback || !pre {
		if !pre {
			addr = uint32(int32(base) + offset)
		}
		c.r[rn] = addr
	}
}

// armSingleDataSwap implements SWP/SWPB: atomic (on this single-threaded
// CORE, trivially so) read-then-write exchange with a register.
func (c *CPU) armSingleDataSwap(opcode uint32) {
	rm := opcode & 0xF
	rd := opcode >> 12 & 0xF
	rn := opcode >> 16 & 0xF
	byteSize := opcode&(1<<22) != 0
	addr := c.reg(rn)

	if byteSize {
		old := c.read8(addr)
		c.write8(addr, c.reg(rm))
		c.setReg(rd, old)
	} else {
		old := c.read32(addr)
		c.write32(addr, c.reg(rm))
		c.setReg(rd, old)
	}
}
