// Package cart implements the GBA cartridge backing: a flat, unbanked ROM
// mirrored up to the next power of two, and a 64 KiB byte-accessible SRAM
// region. The GBA has no MBC-style bank-switching, so unlike its DMG
// ancestor this package has only one implementation.
package cart

import "github.com/retrocore-emu/gbacore/internal/serialize"

const sramSize = 0x10000 // 64 KiB

// Cartridge holds the loaded ROM image (mirrored to a power-of-two size)
// and the battery-backed SRAM.
type Cartridge struct {
	rom     []byte
	romMask uint32
	sram    [sramSize]byte
}

// New mirrors rom up to the next power-of-two size and initializes SRAM to
// 0xFF, matching an erased flash/SRAM chip.
func New(rom []byte) *Cartridge {
	c := &Cartridge{}
	c.loadROM(rom)
	for i := range c.sram {
		c.sram[i] = 0xFF
	}
	return c
}

func (c *Cartridge) loadROM(rom []byte) {
	size := uint32(1)
	for size < uint32(len(rom)) {
		size <<= 1
	}
	mirrored := make([]byte, size)
	if len(rom) > 0 {
		for off := uint32(0); off < size; off += uint32(len(rom)) {
			if copy(mirrored[off:], rom) == 0 {
				break
			}
		}
	} else {
		for i := range mirrored {
			mirrored[i] = 0xFF
		}
	}
	c.rom = mirrored
	c.romMask = size - 1
}

// ReadROM reads a byte at a ROM-relative offset (0-based, not a CPU
// address), wrapping within the mirrored image.
func (c *Cartridge) ReadROM(offset uint32) byte {
	if len(c.rom) == 0 {
		return 0xFF
	}
	return c.rom[offset&c.romMask]
}

// Size returns the mirrored ROM's size in bytes.
func (c *Cartridge) Size() uint32 { return uint32(len(c.rom)) }

// ReadSRAM reads a byte from the 64 KiB SRAM region. SRAM is an 8-bit bus;
// the bus answers 16- and 32-bit SRAM reads with open bus (0) rather than
// calling this.
func (c *Cartridge) ReadSRAM(offset uint32) byte {
	return c.sram[offset%sramSize]
}

// WriteSRAM writes a byte to the SRAM region.
func (c *Cartridge) WriteSRAM(offset uint32, v byte) {
	c.sram[offset%sramSize] = v
}

// StreamState saves/loads SRAM contents; the ROM image itself is not part
// of save-state (it is reloaded from the cartridge file).
func (c *Cartridge) StreamState(s *serialize.Stream) {
	sram := c.sram[:]
	s.Bytes(&sram)
	if s.Mode() == serialize.ModeLoad {
		copy(c.sram[:], sram)
	}
}
