package cpu

// armMultiply implements MUL/MLA. Resolved open question: carry is left
// untouched on these opcodes (the real ARM7TDMI's carry output after a
// multiply is officially unpredictable; this CORE follows the original
// implementation's choice of simply not touching it rather than modeling
// unpredictable behavior).
func (c *CPU) armMultiply(opcode uint32) {
	rm := opcode & 0xF
	rs := opcode >> 8 & 0xF
	rd := opcode >> 16 & 0xF
	setFlags := opcode&(1<<20) != 0
	accumulate := opcode&(1<<21) != 0

	result := c.reg(rm) * c.reg(rs)
	if accumulate {
		rn := opcode >> 12 & 0xF
		result += c.reg(rn)
	}
	c.setReg(rd, result)

	if setFlags {
		c.setFlagZ(result == 0)
		c.setFlagN(result&(1<<31) != 0)
	}
}

// armMultiplyLong implements UMULL/UMLAL/SMULL/SMLAL (32x32->64).
func (c *CPU) armMultiplyLong(opcode uint32) {
	rm := opcode & 0xF
	rs := opcode >> 8 & 0xF
	rdLo := opcode >> 12 & 0xF
	rdHi := opcode >> 16 & 0xF
	setFlags := opcode&(1<<20) != 0
	accumulate := opcode&(1<<21) != 0
	signed := opcode&(1<<22) != 0

	var result int64
	if signed {
		result = int64(int32(c.reg(rm))) * int64(int32(c.reg(rs)))
	} else {
		result = int64(uint64(c.reg(rm)) * uint64(c.reg(rs)))
	}
	if accumulate {
		result += int64(uint64(c.reg(rdLo)) | uint64(c.reg(rdHi))<<32)
	}

	c.setReg(rdLo, uint32(result))
	c.setReg(rdHi, uint32(result>>32))

	if setFlags {
		c.setFlagZ(result == 0)
		c.setFlagN(result < 0)
	}
}
