package cpu

import "math/bits"

// executeARM dispatches a 32-bit ARM opcode by the bit-pattern
// discrimination order spec.md §4.2 lists: branch-and-exchange first
// (it sits inside what would otherwise look like a data-processing
// encoding), then block/branch/SWI, then the remaining load/store and
// multiply families, falling through to data processing.
func (c *CPU) executeARM(opcode uint32) {
	switch {
	case opcode&0x0FFFFFF0 == 0x012FFF10:
		c.armBranchExchange(opcode)

	case opcode&0x0E000000 == 0x08000000:
		c.armBlockDataTransfer(opcode)

	case opcode&0x0F000000 == 0x0A000000:
		c.armBranch(opcode)

	case opcode&0x0F000000 == 0x0B000000:
		c.armBranchLink(opcode)

	case opcode&0x0E000000 == 0x0E000000 && opcode&0x10 != 0:
		c.signalException(excUndefinedInstr) // coprocessor instruction space: unimplemented

	case opcode&0x0F000000 == 0x0F000000:
		c.signalException(excSWI)

	case opcode&0x0C000000 == 0x04000000:
		c.armSingleDataTransfer(opcode)

	case opcode&0x0FB00FF0 == 0x01000090:
		c.armSingleDataSwap(opcode)

	case opcode&0x0FC000F0 == 0x00000090:
		c.armMultiply(opcode)

	case opcode&0x0F8000F0 == 0x00800090:
		c.armMultiplyLong(opcode)

	case opcode&0x0E400F90 == 0x00000090:
		c.armHalfwordDataTransfer(opcode, true)

	case opcode&0x0E400090 == 0x00400090:
		c.armHalfwordDataTransfer(opcode, false)

	case opcode&0x0FBF0FFF == 0x010F0000:
		c.armMRS(opcode, false)

	case opcode&0x0FBF0FFF == 0x014F0000:
		c.armMRS(opcode, true)

	case opcode&0x0FB0FFF0 == 0x0120F000 || opcode&0x0FB0F000 == 0x0320F000:
		c.armMSR(opcode)

	default:
		c.armDataProcessing(opcode)
	}
}

// operand2 computes a data-processing instruction's second operand and
// the carry the barrel shifter would feed to CPSR when S=1.
func (c *CPU) operand2(opcode uint32) (value uint32, shiftCarry bool) {
	shiftCarry = c.flagC()
	if opcode&(1<<25) != 0 {
		imm := opcode & 0xFF
		rotate := opcode >> 8 & 0xF * 2
		if rotate == 0 {
			return imm, shiftCarry
		}
		value = bits.RotateLeft32(imm, -int(rotate))
		return value, value&(1<<31) != 0
	}

	shiftType := opcode >> 5 & 3
	rm := opcode & 0xF
	val := c.reg(rm)
	byRegister := opcode&(1<<4) != 0
	var amount uint32
	if byRegister {
		if rm == 15 {
			val += 4
		}
		rs := opcode >> 8 & 0xF
		amount = c.reg(rs) & 0xFF
		if amount == 0 {
			return val, shiftCarry
		}
	} else {
		amount = opcode >> 7 & 0x1F
	}
	return c.barrelShift(shiftType, amount, val, !byRegister)
}

// barrelShift implements LSL/LSR/ASR/ROR plus the immediate-shift-by-0
// corner cases spec.md §4.2 calls out: LSL#0 leaves carry untouched;
// LSR#0 means LSR#32 (result 0, C=bit31); ASR#0 means ASR#32 (result is
// the sign extension); ROR#0 is RRX through carry. immediateZero is false
// when the shift amount came from a register — that case already handled
// by the caller when the register's low byte is 0.
func (c *CPU) barrelShift(shiftType uint32, amount uint32, value uint32, immediateZero bool) (uint32, bool) {
	carry := c.flagC()
	switch shiftType {
	case 0: // LSL
		switch {
		case amount == 0:
			return value, carry
		case amount < 32:
			return value << amount, value&(1<<(32-amount)) != 0
		case amount == 32:
			return 0, value&1 != 0
		default:
			return 0, false
		}

	case 1: // LSR
		switch {
		case amount == 0 && immediateZero:
			return 0, value&(1<<31) != 0
		case amount == 0:
			return value, carry
		case amount < 32:
			return value >> amount, value&(1<<(amount-1)) != 0
		case amount == 32:
			return 0, value&(1<<31) != 0
		default:
			return 0, false
		}

	case 2: // ASR
		signFill := uint32(0)
		if value&(1<<31) != 0 {
			signFill = 0xFFFFFFFF
		}
		switch {
		case amount == 0 && immediateZero:
			return signFill, signFill != 0
		case amount == 0:
			return value, carry
		case amount >= 32:
			return signFill, signFill != 0
		default:
			return uint32(int32(value) >> amount), value&(1<<(amount-1)) != 0
		}

	default: // ROR / RRX
		if amount == 0 {
			if !immediateZero {
				return value, carry
			}
			newCarry := value&1 != 0
			result := value >> 1
			if carry {
				result |= 1 << 31
			}
			return result, newCarry
		}
		amount &= 31
		if amount == 0 {
			return value, value&(1<<31) != 0
		}
		return bits.RotateLeft32(value, -int(amount)), value&(1<<(amount-1)) != 0
	}
}

func addWithCarry(a, b, carryIn uint32) (result uint32, carryOut, overflow bool) {
	sum := uint64(a) + uint64(b) + uint64(carryIn)
	result = uint32(sum)
	carryOut = sum > 0xFFFFFFFF
	overflow = (a^b)&0x80000000 == 0 && (a^result)&0x80000000 != 0
	return
}

func subWithCarry(a, b, borrowIn uint32) (uint32, bool, bool) {
	return addWithCarry(a, ^b, borrowIn)
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// armDataProcessing implements the 16 ALU opcodes (spec.md §4.2): AND,
// EOR, SUB, RSB, ADD, ADC, SBC, RSC, TST, TEQ, CMP, CMN, ORR, MOV, BIC,
// MVN.
func (c *CPU) armDataProcessing(opcode uint32) {
	op := opcode >> 21 & 0xF
	s := opcode&(1<<20) != 0
	rn := opcode >> 16 & 0xF
	rd := opcode >> 12 & 0xF

	op2, shiftCarry := c.operand2(opcode)
	op1 := c.reg(rn)
	if rn == 15 && opcode&(1<<25) == 0 {
		op1 += 4 // register-form operand1: PC reads as fetch-ahead + shifter-stage offset
	}

	var result uint32
	var carryOut, overflow bool
	writesResult := true
	isArith := false

	switch op {
	case 0x0: // AND
		result, carryOut = op1&op2, shiftCarry
	case 0x1: // EOR
		result, carryOut = op1^op2, shiftCarry
	case 0x2: // SUB
		result, carryOut, overflow = subWithCarry(op1, op2, 1)
		isArith = true
	case 0x3: // RSB
		result, carryOut, overflow = subWithCarry(op2, op1, 1)
		isArith = true
	case 0x4: // ADD
		result, carryOut, overflow = addWithCarry(op1, op2, 0)
		isArith = true
	case 0x5: // ADC
		result, carryOut, overflow = addWithCarry(op1, op2, boolToU32(c.flagC()))
		isArith = true
	case 0x6: // SBC
		result, carryOut, overflow = subWithCarry(op1, op2, boolToU32(c.flagC()))
		isArith = true
	case 0x7: // RSC
		result, carryOut, overflow = subWithCarry(op2, op1, boolToU32(c.flagC()))
		isArith = true
	case 0x8: // TST
		result, carryOut, writesResult = op1&op2, shiftCarry, false
	case 0x9: // TEQ
		result, carryOut, writesResult = op1^op2, shiftCarry, false
	case 0xA: // CMP
		result, carryOut, overflow = subWithCarry(op1, op2, 1)
		isArith, writesResult = true, false
	case 0xB: // CMN
		result, carryOut, overflow = addWithCarry(op1, op2, 0)
		isArith, writesResult = true, false
	case 0xC: // ORR
		result, carryOut = op1|op2, shiftCarry
	case 0xD: // MOV
		result, carryOut = op2, shiftCarry
	case 0xE: // BIC
		result, carryOut = op1&^op2, shiftCarry
	case 0xF: // MVN
		result, carryOut = ^op2, shiftCarry
	}

	if s {
		if rd == 15 {
			// Rd=PC with S=1: restore CPSR from SPSR (return from
			// exception), not just flag bits.
			if c.currentMode() != ModeUser && c.currentMode() != ModeSystem {
				c.adoptCPSR(c.spsr)
			}
		} else {
			c.setFlagZ(result == 0)
			c.setFlagN(result&(1<<31) != 0)
			c.setFlagC(carryOut)
			if isArith {
				c.setFlagV(overflow)
			}
		}
	}

	if writesResult {
		c.setReg(rd, result)
	}
}

// armMRS implements MRS Rd, CPSR|SPSR.
func (c *CPU) armMRS(opcode uint32, spsr bool) {
	rd := opcode >> 12 & 0xF
	if spsr {
		c.setReg(rd, c.spsr)
	} else {
		c.setReg(rd, c.cpsr)
	}
}

// armMSR implements MSR CPSR_fsxc|SPSR_fsxc, #imm|Rm, masking the write
// to only the field bytes selected by the instruction's fsxc bits
// (bit19=flags, bit18=status, bit17=extension, bit16=control) and
// restricting User mode to the flag byte only.
func (c *CPU) armMSR(opcode uint32) {
	toSPSR := opcode&(1<<22) != 0
	if toSPSR && (c.currentMode() == ModeUser || c.currentMode() == ModeSystem) {
		return
	}

	var oper uint32
	if opcode&(1<<25) != 0 {
		imm := opcode & 0xFF
		rot := opcode >> 7 & 0x1E
		oper = bits.RotateLeft32(imm, -int(rot))
	} else {
		oper = c.reg(opcode & 0xF)
	}

	var mask uint32
	if opcode&(1<<19) != 0 {
		mask |= 0xFF000000
	}
	if opcode&(1<<18) != 0 {
		mask |= 0x00FF0000
	}
	if opcode&(1<<17) != 0 {
		mask |= 0x0000FF00
	}
	if c.currentMode() == ModeUser {
		mask &= 0xFF000000
	} else if opcode&(1<<16) != 0 {
		mask |= 0x000000FF
	}

	if toSPSR {
		c.spsr = oper&mask | c.spsr&^mask
		return
	}

	if mask&0xFF != 0 {
		oper |= 1 << 4 // bit 4 of CPSR mode field is architecturally fixed at 1
		c.adoptCPSR(oper&mask | c.cpsr&^mask)
	} else {
		c.cpsr = oper&mask | c.cpsr&^mask
	}
}

// armBranch implements B: PC += sign_extend(offset<<2).
func (c *CPU) armBranch(opcode uint32) {
	offset := signExtend(opcode&0xFFFFFF, 24) << 2
	c.setReg(15, uint32(int32(c.reg(15))+offset))
}

// armBranchLink implements BL: LR <- return address, then branch.
func (c *CPU) armBranchLink(opcode uint32) {
	offset := signExtend(opcode&0xFFFFFF, 24) << 2
	c.setReg(14, c.reg(15)-4)
	c.setReg(15, uint32(int32(c.reg(15))+offset))
}

// armBranchExchange implements BX: jump to Rn, switching to THUMB state
// if its bit 0 is set.
func (c *CPU) armBranchExchange(opcode uint32) {
	target := c.reg(opcode & 0xF)
	thumb := target&1 != 0
	c.setExecutionState(thumb)
	if thumb {
		target &^= 1
	} else {
		target &^= 3
	}
	c.r[15] = target
	c.flushPipeline()
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
