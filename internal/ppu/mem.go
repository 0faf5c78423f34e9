package ppu

// ReadVRAM8/16/32 and WriteVRAM8/16/32 give the bus CPU-facing access to
// VRAM. WriteVRAM8 stores the single byte at addr in every VRAM region;
// 8-bit writes are not widened to halfwords.
func (p *PPU) ReadVRAM8(addr uint32) byte {
	if int(addr) >= len(p.vram) {
		return 0
	}
	return p.vram[addr]
}

func (p *PPU) ReadVRAM16(addr uint32) uint16 {
	addr &^= 1
	if int(addr)+1 >= len(p.vram) {
		return 0
	}
	return uint16(p.vram[addr]) | uint16(p.vram[addr+1])<<8
}

func (p *PPU) ReadVRAM32(addr uint32) uint32 {
	addr &^= 3
	return uint32(p.ReadVRAM16(addr)) | uint32(p.ReadVRAM16(addr+2))<<16
}

func (p *PPU) WriteVRAM8(addr uint32, v byte) {
	if int(addr) < len(p.vram) {
		p.vram[addr] = v
	}
}

func (p *PPU) WriteVRAM16(addr uint32, v uint16) {
	addr &^= 1
	if int(addr)+1 < len(p.vram) {
		p.vram[addr] = byte(v)
		p.vram[addr+1] = byte(v >> 8)
	}
}

func (p *PPU) WriteVRAM32(addr uint32, v uint32) {
	addr &^= 3
	p.WriteVRAM16(addr, uint16(v))
	p.WriteVRAM16(addr+2, uint16(v>>16))
}

// OAM and palette RAM accessors, used the same way.

func (p *PPU) ReadOAM16(addr uint32) uint16 {
	addr &^= 1
	addr %= uint32(len(p.oam))
	return uint16(p.oam[addr]) | uint16(p.oam[addr+1])<<8
}

func (p *PPU) WriteOAM16(addr uint32, v uint16) {
	addr &^= 1
	addr %= uint32(len(p.oam))
	p.oam[addr] = byte(v)
	p.oam[addr+1] = byte(v >> 8)
}

func (p *PPU) ReadOAM32(addr uint32) uint32 {
	return uint32(p.ReadOAM16(addr&^3)) | uint32(p.ReadOAM16((addr&^3)+2))<<16
}

func (p *PPU) WriteOAM32(addr uint32, v uint32) {
	p.WriteOAM16(addr&^3, uint16(v))
	p.WriteOAM16((addr&^3)+2, uint16(v>>16))
}

func (p *PPU) ReadOAM8(addr uint32) byte {
	return p.oam[addr%uint32(len(p.oam))]
}

func (p *PPU) ReadPalette16(addr uint32) uint16 {
	addr &^= 1
	addr %= uint32(len(p.palette))
	return uint16(p.palette[addr]) | uint16(p.palette[addr+1])<<8
}

func (p *PPU) WritePalette16(addr uint32, v uint16) {
	addr &^= 1
	addr %= uint32(len(p.palette))
	p.palette[addr] = byte(v)
	p.palette[addr+1] = byte(v >> 8)
}

func (p *PPU) ReadPalette32(addr uint32) uint32 {
	return uint32(p.ReadPalette16(addr&^3)) | uint32(p.ReadPalette16((addr&^3)+2))<<16
}

func (p *PPU) WritePalette32(addr uint32, v uint32) {
	p.WritePalette16(addr&^3, uint16(v))
	p.WritePalette16((addr&^3)+2, uint16(v>>16))
}

func (p *PPU) ReadPalette8(addr uint32) byte {
	return p.palette[addr%uint32(len(p.palette))]
}

func (p *PPU) bgColor(idx byte) uint16 {
	if idx == 0 {
		return 0
	}
	return p.ReadPalette16(uint32(idx) * 2)
}

func (p *PPU) objColor(idx byte) uint16 {
	if idx == 0 {
		return 0
	}
	return p.ReadPalette16(0x200 + uint32(idx)*2)
}
