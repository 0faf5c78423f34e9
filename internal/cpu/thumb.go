package cpu

// executeTHUMB dispatches a 16-bit THUMB opcode across the 19 formats
// spec.md §4.2 lists. THUMB instructions are unconditional except the
// two branch formats, which check their own embedded condition/offset.
func (c *CPU) executeTHUMB(opcode uint16) {
	switch opcode >> 12 & 0xF {
	case 0b0000, 0b0001:
		if opcode&0x1800 == 0x1800 {
			c.thumbAddSubtract(opcode)
		} else {
			c.thumbShift(opcode)
		}

	case 0b0010, 0b0011:
		c.thumbMoveCompareAddSubtractImm(opcode)

	case 0b0100:
		switch {
		case opcode&0x800 != 0:
			c.thumbPCRelativeLoad(opcode)
		case opcode&0x400 != 0:
			c.thumbHiReg(opcode)
		default:
			c.thumbALU(opcode)
		}

	case 0b0101:
		if opcode&0x200 != 0 {
			c.thumbLoadStoreSignExtended(opcode)
		} else {
			c.thumbLoadStoreRegOffset(opcode)
		}

	case 0b0110:
		c.thumbLoadStoreImmOffset(opcode, false)

	case 0b0111:
		c.thumbLoadStoreImmOffset(opcode, true)

	case 0b1000:
		c.thumbLoadStoreHalfword(opcode)

	case 0b1001:
		c.thumbSPRelativeLoadStore(opcode)

	case 0b1010:
		c.thumbLoadAddress(opcode)

	case 0b1011:
		if opcode&0x400 != 0 {
			c.thumbPushPop(opcode)
		} else {
			c.thumbAddOffsetToSP(opcode)
		}

	case 0b1100:
		c.thumbMultipleLoadStore(opcode)

	case 0b1101:
		if opcode&0xF00 == 0xF00 {
			c.signalException(excSWI)
		} else {
			c.thumbConditionalBranch(opcode)
		}

	case 0b1110:
		c.thumbUnconditionalBranch(opcode)

	case 0b1111:
		c.thumbLongBranchWithLink(opcode)
	}
}

// thumbShift implements Format 1: LSL/LSR/ASR by a 5-bit immediate.
func (c *CPU) thumbShift(opcode uint16) {
	rd := uint32(opcode & 7)
	rs := uint32(opcode >> 3 & 7)
	amount := uint32(opcode >> 6 & 0x1F)
	op := opcode >> 11 & 3

	val := c.reg(rs)
	var result uint32
	switch op {
	case 0b00: // LSL
		if amount == 0 {
			result = val
		} else {
			c.setFlagC(val&(1<<(32-amount)) != 0)
			result = val << amount
		}
	case 0b01: // LSR
		if amount == 0 {
			c.setFlagC(val&(1<<31) != 0)
			result = 0
		} else {
			c.setFlagC(val&(1<<(amount-1)) != 0)
			result = val >> amount
		}
	case 0b10: // ASR
		if amount == 0 {
			bit31 := val&(1<<31) != 0
			c.setFlagC(bit31)
			if bit31 {
				result = 0xFFFFFFFF
			}
		} else {
			c.setFlagC(val&(1<<(amount-1)) != 0)
			result = uint32(int32(val) >> amount)
		}
	}

	c.setReg(rd, result)
	c.setFlagZ(result == 0)
	c.setFlagN(result&(1<<31) != 0)
}

// thumbAddSubtract implements Format 2: ADD/SUB, register or 3-bit
// immediate operand.
func (c *CPU) thumbAddSubtract(opcode uint16) {
	rd := uint32(opcode & 7)
	rs := uint32(opcode >> 3 & 7)
	operand := uint32(opcode >> 6 & 7)
	sub := opcode&(1<<9) != 0
	useImm := opcode&(1<<10) != 0

	op1 := c.reg(rs)
	var op2 uint32
	if useImm {
		op2 = operand
	} else {
		op2 = c.reg(operand)
	}

	var result uint32
	if sub {
		result = op1 - op2
		c.setFlagC(op2 <= op1)
		c.setFlagV((op1^op2)&(op1^result)&0x80000000 != 0)
	} else {
		sum := uint64(op1) + uint64(op2)
		result = uint32(sum)
		c.setFlagC(sum > 0xFFFFFFFF)
		c.setFlagV((op1^result)&(op2^result)&0x80000000 != 0)
	}
	c.setReg(rd, result)
	c.setFlagZ(result == 0)
	c.setFlagN(result&(1<<31) != 0)
}

// thumbMoveCompareAddSubtractImm implements Format 3: MOV/CMP/ADD/SUB
// Rd, #imm8.
func (c *CPU) thumbMoveCompareAddSubtractImm(opcode uint16) {
	imm := uint32(opcode & 0xFF)
	rd := uint32(opcode >> 8 & 7)
	op := opcode >> 11 & 3

	switch op {
	case 0b00: // MOV
		c.setReg(rd, imm)
		c.setFlagN(false)
		c.setFlagZ(imm == 0)
	case 0b01: // CMP
		rdVal := c.reg(rd)
		result := rdVal - imm
		c.setFlagV((rdVal^imm)&(rdVal^result)&0x80000000 != 0)
		c.setFlagC(imm <= rdVal)
		c.setFlagN(result&(1<<31) != 0)
		c.setFlagZ(result == 0)
	case 0b10: // ADD
		rdVal := c.reg(rd)
		sum := uint64(rdVal) + uint64(imm)
		result := uint32(sum)
		c.setFlagV((rdVal^result)&(imm^result)&0x80000000 != 0)
		c.setFlagC(sum > 0xFFFFFFFF)
		c.setFlagN(result&(1<<31) != 0)
		c.setFlagZ(result == 0)
		c.setReg(rd, result)
	case 0b11: // SUB
		rdVal := c.reg(rd)
		result := rdVal - imm
		c.setFlagV((rdVal^imm)&(rdVal^result)&0x80000000 != 0)
		c.setFlagC(imm <= rdVal)
		c.setFlagN(result&(1<<31) != 0)
		c.setFlagZ(result == 0)
		c.setReg(rd, result)
	}
}

// thumbALU implements Format 4's 16 two-register ALU ops.
func (c *CPU) thumbALU(opcode uint16) {
	rd := uint32(opcode & 7)
	rs := uint32(opcode >> 3 & 7)
	op1 := c.reg(rd)
	op2 := c.reg(rs)

	var result uint32
	writesResult := true
	isArith := false

	switch opcode >> 6 & 0xF {
	case 0: // AND
		result = op1 & op2
	case 1: // EOR
		result = op1 ^ op2
	case 2: // LSL
		amount := op2 & 0xFF
		switch {
		case amount == 0:
			result = op1
		case amount < 32:
			c.setFlagC(op1&(1<<(32-amount)) != 0)
			result = op1 << amount
		default:
			if amount == 32 {
				c.setFlagC(op1&1 != 0)
			} else {
				c.setFlagC(false)
			}
		}
	case 3: // LSR
		amount := op2 & 0xFF
		switch {
		case amount == 0:
			result = op1
		case amount < 32:
			c.setFlagC(op1&(1<<(amount-1)) != 0)
			result = op1 >> amount
		default:
			if amount == 32 {
				c.setFlagC(op1&(1<<31) != 0)
			} else {
				c.setFlagC(false)
			}
		}
	case 4: // ASR
		amount := op2 & 0xFF
		switch {
		case amount == 0:
			result = op1
		case amount < 32:
			c.setFlagC(op1&(1<<(amount-1)) != 0)
			result = uint32(int32(op1) >> amount)
		default:
			bit31 := op1&(1<<31) != 0
			c.setFlagC(bit31)
			if bit31 {
				result = 0xFFFFFFFF
			}
		}
	case 5: // ADC
		sum := uint64(op1) + uint64(op2) + uint64(boolToU32(c.flagC()))
		result = uint32(sum)
		c.setFlagC(sum > 0xFFFFFFFF)
		isArith = true
	case 6: // SBC
		result = op1 - op2 - boolToU32(!c.flagC())
		c.setFlagC(uint64(op2)+uint64(boolToU32(!c.flagC())) <= uint64(op1))
		isArith = true
	case 7: // ROR
		amount := op2 & 0xFF
		if amount == 0 {
			result = op1
		} else {
			sh := (amount - 1) & 0x1F
			c.setFlagC(op1>>sh&1 != 0)
			rot := amount & 31
			result = op1>>rot | op1<<(32-rot)
		}
	case 8: // TST
		result, writesResult = op1&op2, false
	case 9: // NEG
		result = uint32(-int32(op2))
		c.setFlagC(op2 == 0)
		isArith = true
	case 10: // CMP
		result, writesResult = op1-op2, false
		c.setFlagC(op2 <= op1)
		isArith = true
	case 11: // CMN
		sum := uint64(op1) + uint64(op2)
		result, writesResult = uint32(sum), false
		c.setFlagC(sum > 0xFFFFFFFF)
		isArith = true
	case 12: // ORR
		result = op1 | op2
	case 13: // MUL
		result = op1 * op2
		c.setFlagC(false)
	case 14: // BIC
		result = op1 &^ op2
	case 15: // MVN
		result = ^op2
	}

	if writesResult {
		c.setReg(rd, result)
	}
	c.setFlagZ(result == 0)
	c.setFlagN(result&(1<<31) != 0)
	if isArith {
		var cond uint32
		switch opcode >> 6 & 0xF {
		case 5, 11: // ADC, CMN
			cond = (op1 ^ result) & (op2 ^ result)
		case 6, 10: // SBC, CMP
			cond = (op1 ^ op2) & (op1 ^ result)
		case 9: // NEG
			cond = op2 & result
		}
		c.setFlagV(cond&(1<<31) != 0)
	}
}

// thumbHiReg implements Format 5: ADD/CMP/MOV/BX over any register
// (including the high r8-r15 bank) with only CMP affecting flags.
func (c *CPU) thumbHiReg(opcode uint16) {
	rs := uint32(opcode>>3&7) + uint32(opcode>>6&1)<<3
	op := opcode >> 8 & 3

	oper := c.reg(rs)
	if rs == 15 {
		oper &^= 1
	}

	switch op {
	case 0b00: // ADD
		rd := uint32(opcode&7) + uint32(opcode>>7&1)<<3
		c.setReg(rd, c.reg(rd)+oper)
	case 0b01: // CMP
		rd := uint32(opcode&7) + uint32(opcode>>7&1)<<3
		rdVal := c.reg(rd)
		result := rdVal - oper
		c.setFlagV((rdVal^oper)&(rdVal^result)&0x80000000 != 0)
		c.setFlagC(oper <= rdVal)
		c.setFlagZ(result == 0)
		c.setFlagN(result&(1<<31) != 0)
	case 0b10: // MOV
		rd := uint32(opcode&7) + uint32(opcode>>7&1)<<3
		c.setReg(rd, oper)
	case 0b11: // BX
		thumb := oper&1 != 0
		c.setExecutionState(thumb)
		if thumb {
			oper &^= 1
		} else {
			oper &^= 3
		}
		c.r[15] = oper
		c.flushPipeline()
	}
}

// thumbPCRelativeLoad implements Format 6: LDR Rd, [PC, #imm].
func (c *CPU) thumbPCRelativeLoad(opcode uint16) {
	offset := uint32(opcode&0xFF) << 2
	rd := uint32(opcode >> 8 & 7)
	c.setReg(rd, c.read32(c.reg(15)&^2+offset))
}

// thumbLoadStoreRegOffset implements Format 7: LDR/LDRB/STR/STRB
// [Rb + Ro].
func (c *CPU) thumbLoadStoreRegOffset(opcode uint16) {
	rd := uint32(opcode & 7)
	rb := uint32(opcode >> 3 & 7)
	ro := uint32(opcode >> 6 & 7)
	byteSize := opcode&(1<<10) != 0
	load := opcode&(1<<11) != 0
	addr := c.reg(rb) + c.reg(ro)

	if load {
		if byteSize {
			c.setReg(rd, c.read8(addr))
		} else {
			c.setReg(rd, c.read32(addr))
		}
	} else {
		if byteSize {
			c.write8(addr, c.reg(rd))
		} else {
			c.write32(addr, c.reg(rd))
		}
	}
}

// thumbLoadStoreSignExtended implements Format 8: STRH/LDSB/LDRH/LDSH
// [Rb + Ro].
func (c *CPU) thumbLoadStoreSignExtended(opcode uint16) {
	rd := uint32(opcode & 7)
	rb := uint32(opcode >> 3 & 7)
	ro := uint32(opcode >> 6 & 7)
	addr := c.reg(rb) + c.reg(ro)

	switch opcode >> 10 & 3 {
	case 0b00:
		c.write16(addr, c.reg(rd))
	case 0b01:
		c.setReg(rd, uint32(int32(int8(c.read8(addr)))))
	case 0b10:
		c.setReg(rd, c.read16(addr))
	case 0b11:
		c.setReg(rd, uint32(int32(int16(c.read16(addr)))))
	}
}

// thumbLoadStoreImmOffset implements Format 9: LDR/STR (word) or
// LDRB/STRB (byte) [Rb + #imm].
func (c *CPU) thumbLoadStoreImmOffset(opcode uint16, byteSize bool) {
	rd := uint32(opcode & 7)
	rb := uint32(opcode >> 3 & 7)
	load := opcode&(1<<11) != 0

	if byteSize {
		offset := uint32(opcode >> 6 & 0x1F)
		addr := c.reg(rb) + offset
		if load {
			c.setReg(rd, c.read8(addr))
		} else {
			c.write8(addr, c.reg(rd))
		}
	} else {
		offset := uint32(opcode>>4&0x7C)
		addr := c.reg(rb) + offset
		if load {
			c.setReg(rd, c.read32(addr))
		} else {
			c.write32(addr, c.reg(rd))
		}
	}
}

// thumbLoadStoreHalfword implements Format 10: LDRH/STRH [Rb + #imm].
func (c *CPU) thumbLoadStoreHalfword(opcode uint16) {
	rd := uint32(opcode & 7)
	rb := uint32(opcode >> 3 & 7)
	offset := uint32(opcode >> 5 & 0x3E)
	load := opcode&(1<<11) != 0
	addr := c.reg(rb) + offset

	if load {
		c.setReg(rd, c.read16(addr))
	} else {
		c.write16(addr, c.reg(rd))
	}
}

// thumbSPRelativeLoadStore implements Format 11: LDR/STR [SP + #imm].
func (c *CPU) thumbSPRelativeLoadStore(opcode uint16) {
	imm := uint32(opcode & 0xFF)
	rd := uint32(opcode >> 8 & 7)
	load := opcode&(1<<11) != 0
	addr := c.reg(13) + imm<<2

	if load {
		c.setReg(rd, c.read32(addr))
	} else {
		c.write32(addr, c.reg(rd))
	}
}

// thumbLoadAddress implements Format 12: ADD Rd, PC|SP, #imm.
func (c *CPU) thumbLoadAddress(opcode uint16) {
	imm := uint32(opcode & 0xFF)
	rd := uint32(opcode >> 8 & 7)
	usePC := opcode&(1<<11) == 0

	if usePC {
		c.setReg(rd, c.reg(15)&^2+imm<<2)
	} else {
		c.setReg(rd, c.reg(13)+imm<<2)
	}
}

// thumbAddOffsetToSP implements Format 13: ADD SP, #+/-imm.
func (c *CPU) thumbAddOffsetToSP(opcode uint16) {
	offset := int32(opcode&0x7F) << 2
	if opcode&(1<<7) != 0 {
		offset = -offset
	}
	c.r[13] = uint32(int32(c.r[13]) + offset)
}

// thumbPushPop implements Format 14: PUSH/POP {Rlist, LR|PC}.
func (c *CPU) thumbPushPop(opcode uint16) {
	regList := opcode & 0xFF
	transferLRPC := opcode&(1<<8) != 0
	load := opcode&(1<<11) != 0

	if load {
		for i := uint32(0); i < 8; i++ {
			if regList&(1<<i) != 0 {
				c.r[i] = c.read32(c.r[13])
				c.r[13] += 4
			}
		}
		if transferLRPC {
			addr := c.read32(c.r[13])
			c.r[13] += 4
			c.r[15] = addr &^ 1
			c.flushPipeline()
		}
	} else {
		if transferLRPC {
			c.r[13] -= 4
			c.write32(c.r[13], c.r[14])
		}
		for i := int(7); i >= 0; i-- {
			if regList&(1<<uint(i)) != 0 {
				c.r[13] -= 4
				c.write32(c.r[13], c.r[i])
			}
		}
	}
}

// thumbMultipleLoadStore implements Format 15: LDMIA/STMIA Rb!, {Rlist}.
func (c *CPU) thumbMultipleLoadStore(opcode uint16) {
	regList := opcode & 0xFF
	rb := uint32(opcode >> 8 & 7)
	load := opcode&(1<<11) != 0

	if regList == 0 {
		// Empty register list: real hardware still transfers PC and
		// advances the base by a full 16-register block.
		if load {
			c.r[15] = c.read32(c.r[rb]) &^ 1
			c.flushPipeline()
		} else {
			c.write32(c.r[rb], c.r[15])
		}
		c.r[rb] += 0x40
		return
	}

	if load {
		for i := uint32(0); i < 8; i++ {
			if regList&(1<<i) != 0 {
				c.r[i] = c.read32(c.r[rb])
				c.r[rb] += 4
			}
		}
	} else {
		for i := uint32(0); i < 8; i++ {
			if regList&(1<<i) != 0 {
				c.write32(c.r[rb], c.r[i])
				c.r[rb] += 4
			}
		}
	}
}

// thumbConditionalBranch implements Format 16: 14 condition-coded
// branches (BAL/BNV are reserved: BLX/SWI's territory).
func (c *CPU) thumbConditionalBranch(opcode uint16) {
	cond := uint32(opcode >> 8 & 0xF)
	if !c.checkCondition(cond) {
		return
	}
	offset := signExtend(uint32(opcode)<<1&0x1FE, 9)
	c.setReg(15, uint32(int32(c.reg(15))+offset))
}

// thumbUnconditionalBranch implements Format 18: B.
func (c *CPU) thumbUnconditionalBranch(opcode uint16) {
	offset := signExtend(uint32(opcode)<<1&0xFFE, 12)
	c.setReg(15, uint32(int32(c.reg(15))+offset))
}

// thumbLongBranchWithLink implements Format 19: BL, built from two
// half-instructions (high-offset-to-LR, then low-offset-and-link).
func (c *CPU) thumbLongBranchWithLink(opcode uint16) {
	imm := uint32(opcode & 0x7FF)
	if opcode&(1<<11) == 0 {
		offset := signExtend(imm<<12, 23)
		c.r[14] = uint32(int32(c.reg(15)) + offset)
		return
	}
	offset := imm << 1
	prevPC := c.reg(15)
	target := c.r[14] + offset
	c.r[14] = (prevPC - 2) | 1
	c.r[15] = target
	c.flushPipeline()
}
