package ppu

// Register addresses, relative to the IO region base (0x04000000).
const (
	RegDISPCNT  = 0x000
	RegDISPSTAT = 0x004
	RegVCOUNT   = 0x006
	RegBG0CNT   = 0x008
	RegBG1CNT   = 0x00A
	RegBG2CNT   = 0x00C
	RegBG3CNT   = 0x00E
	RegBG0HOFS  = 0x010
	RegBG0VOFS  = 0x012
	RegBG1HOFS  = 0x014
	RegBG1VOFS  = 0x016
	RegBG2HOFS  = 0x018
	RegBG2VOFS  = 0x01A
	RegBG3HOFS  = 0x01C
	RegBG3VOFS  = 0x01E
	RegBG2PA    = 0x020
	RegBG2PB    = 0x022
	RegBG2PC    = 0x024
	RegBG2PD    = 0x026
	RegBG2X     = 0x028
	RegBG2Y     = 0x02C
	RegBG3PA    = 0x030
	RegBG3PB    = 0x032
	RegBG3PC    = 0x034
	RegBG3PD    = 0x036
	RegBG3X     = 0x038
	RegBG3Y     = 0x03C
	RegWIN0H    = 0x040
	RegWIN1H    = 0x042
	RegWIN0V    = 0x044
	RegWIN1V    = 0x046
	RegWININ    = 0x048
	RegWINOUT   = 0x04A
	RegMOSAIC   = 0x04C
	RegBLDCNT   = 0x050
	RegBLDALPHA = 0x052
	RegBLDY     = 0x054
)

// ReadRegister16 reads a DISPCNT-family register by its IO-relative
// offset; unmapped offsets return 0 (open-bus handling is the bus's job).
func (p *PPU) ReadRegister16(offset uint32) uint16 {
	switch offset {
	case RegDISPCNT:
		return p.dispcnt
	case RegDISPSTAT:
		return p.dispstat
	case RegVCOUNT:
		return p.vcount
	case RegBG0CNT:
		return p.bgcnt[0]
	case RegBG1CNT:
		return p.bgcnt[1]
	case RegBG2CNT:
		return p.bgcnt[2]
	case RegBG3CNT:
		return p.bgcnt[3]
	case RegWININ:
		return p.winin
	case RegWINOUT:
		return p.winout
	case RegBLDCNT:
		return p.bldcnt
	case RegBLDALPHA:
		return p.bldalpha
	default:
		return 0
	}
}

// WriteRegister16 writes a DISPCNT-family register by its IO-relative
// offset.
func (p *PPU) WriteRegister16(offset uint32, v uint16) {
	switch offset {
	case RegDISPCNT:
		p.dispcnt = v
	case RegDISPSTAT:
		p.dispstat = (p.dispstat & 0x0007) | (v &^ 0x0007)
	case RegBG0CNT:
		p.bgcnt[0] = v
	case RegBG1CNT:
		p.bgcnt[1] = v
	case RegBG2CNT:
		p.bgcnt[2] = v
	case RegBG3CNT:
		p.bgcnt[3] = v
	case RegBG0HOFS:
		p.bgh[0] = v & 0x1FF
	case RegBG0VOFS:
		p.bgv[0] = v & 0x1FF
	case RegBG1HOFS:
		p.bgh[1] = v & 0x1FF
	case RegBG1VOFS:
		p.bgv[1] = v & 0x1FF
	case RegBG2HOFS:
		p.bgh[2] = v & 0x1FF
	case RegBG2VOFS:
		p.bgv[2] = v & 0x1FF
	case RegBG3HOFS:
		p.bgh[3] = v & 0x1FF
	case RegBG3VOFS:
		p.bgv[3] = v & 0x1FF
	case RegBG2PA:
		p.bgpa[0] = int16(v)
	case RegBG2PB:
		p.bgpb[0] = int16(v)
	case RegBG2PC:
		p.bgpc[0] = int16(v)
	case RegBG2PD:
		p.bgpd[0] = int16(v)
	case RegBG2X:
		p.setAffineRefLo(0, true, v)
	case RegBG2X + 2:
		p.setAffineRefHi(0, true, v)
	case RegBG2Y:
		p.setAffineRefLo(0, false, v)
	case RegBG2Y + 2:
		p.setAffineRefHi(0, false, v)
	case RegBG3PA:
		p.bgpa[1] = int16(v)
	case RegBG3PB:
		p.bgpb[1] = int16(v)
	case RegBG3PC:
		p.bgpc[1] = int16(v)
	case RegBG3PD:
		p.bgpd[1] = int16(v)
	case RegBG3X:
		p.setAffineRefLo(1, true, v)
	case RegBG3X + 2:
		p.setAffineRefHi(1, true, v)
	case RegBG3Y:
		p.setAffineRefLo(1, false, v)
	case RegBG3Y + 2:
		p.setAffineRefHi(1, false, v)
	case RegWIN0H:
		p.winh[0] = v
	case RegWIN1H:
		p.winh[1] = v
	case RegWIN0V:
		p.winv[0] = v
	case RegWIN1V:
		p.winv[1] = v
	case RegWININ:
		p.winin = v
	case RegWINOUT:
		p.winout = v
	case RegMOSAIC:
		p.mosaic = v
	case RegBLDCNT:
		p.bldcnt = v
	case RegBLDALPHA:
		p.bldalpha = v
	case RegBLDY:
		p.bldy = v & 0x1F
	}
}

// setAffineRefLo/Hi assemble a 28-bit signed fixed-point reference
// coordinate from its two 16-bit halves and immediately reload the
// running accumulator, matching real hardware's BGXY write behavior.
func (p *PPU) setAffineRefLo(bg int, isX bool, lo uint16) {
	var ref *int32
	if isX {
		ref = &p.bgxRef[bg]
	} else {
		ref = &p.bgyRef[bg]
	}
	*ref = (*ref &^ 0xFFFF) | int32(lo)
	p.reloadAffineAccumulator(bg, isX)
}

func (p *PPU) setAffineRefHi(bg int, isX bool, hi uint16) {
	var ref *int32
	if isX {
		ref = &p.bgxRef[bg]
	} else {
		ref = &p.bgyRef[bg]
	}
	signExtended := int32(int16(hi<<4)>>4) // hi holds bits 16-27, sign-extend from bit 27
	*ref = (*ref & 0xFFFF) | (signExtended << 16)
	p.reloadAffineAccumulator(bg, isX)
}

func (p *PPU) reloadAffineAccumulator(bg int, isX bool) {
	if isX {
		p.bgx[bg] = p.bgxRef[bg]
	} else {
		p.bgy[bg] = p.bgyRef[bg]
	}
}
