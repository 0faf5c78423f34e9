package ppu

var spriteSizeTable = [4][4][2]int{
	0: {{8, 8}, {16, 16}, {32, 32}, {64, 64}},
	1: {{16, 8}, {32, 8}, {32, 16}, {64, 32}},
	2: {{8, 16}, {8, 32}, {16, 32}, {32, 64}},
}

type oamEntry struct {
	y, x          int
	w, h          int
	affine        bool
	affineIdx     int
	doubleSize    bool
	disabled      bool
	objMode       int // 0 normal, 1 semi-transparent, 2 window
	mosaic        bool
	hi256         bool
	tileNum       uint16
	priority      byte
	palBank       byte
	hFlip, vFlip  bool
}

func decodeOAMEntry(oam []byte, i int) oamEntry {
	base := i * 8
	attr0 := uint16(oam[base]) | uint16(oam[base+1])<<8
	attr1 := uint16(oam[base+2]) | uint16(oam[base+3])<<8
	attr2 := uint16(oam[base+4]) | uint16(oam[base+5])<<8

	shape := attr0 >> 14 & 3
	size := attr1 >> 14 & 3
	dims := spriteSizeTable[shape][size]

	var e oamEntry
	e.y = int(attr0 & 0xFF)
	if e.y >= 160 {
		e.y -= 256
	}
	e.affine = attr0&(1<<8) != 0
	e.doubleSize = e.affine && attr0&(1<<9) != 0
	e.disabled = !e.affine && attr0&(1<<9) != 0
	e.objMode = int(attr0 >> 10 & 3)
	e.mosaic = attr0&(1<<12) != 0
	e.hi256 = attr0&(1<<13) != 0
	e.w, e.h = dims[0], dims[1]

	e.x = int(attr1 & 0x1FF)
	if e.x >= 256 {
		e.x -= 512
	}
	if e.affine {
		e.affineIdx = int(attr1 >> 9 & 0x1F)
	} else {
		e.hFlip = attr1&(1<<12) != 0
		e.vFlip = attr1&(1<<13) != 0
	}

	e.tileNum = attr2 & 0x3FF
	e.priority = byte(attr2 >> 10 & 3)
	e.palBank = byte(attr2 >> 12 & 0xF)
	return e
}

// renderSprites decodes OAM in priority order (entry 0 highest) and fills
// objLine with the topmost opaque sprite pixel at each x, honoring
// priority, object-window mode, and semi-transparency. Affine sprites are
// rendered as if unrotated (sampled the same way as regular sprites);
// their rotation/scale parameters are decoded but not applied.
func (p *PPU) renderSprites(ly int, objLine *[screenWidth]objPixel) {
	objMapping1D := p.dispcnt&(1<<6) != 0
	var bestPriority [screenWidth]int8
	for i := range bestPriority {
		bestPriority[i] = 4
	}

	for i := 0; i < 128; i++ {
		e := decodeOAMEntry(p.oam[:], i)
		if e.disabled {
			continue
		}
		h := e.h
		if e.doubleSize {
			h *= 2
		}
		row := ((ly - e.y) % 256 + 256) % 256
		if row >= h {
			continue
		}

		spriteRow := row
		w := e.w
		if e.doubleSize {
			w *= 2
			spriteRow -= e.h / 2
			if spriteRow < 0 || spriteRow >= e.h {
				continue
			}
		}

		for sx := 0; sx < w; sx++ {
			screenX := e.x + sx
			if screenX < 0 || screenX >= screenWidth {
				continue
			}
			if e.priority >= byte(bestPriority[screenX]) {
				continue
			}
			localX := sx
			if e.doubleSize {
				localX -= e.w / 2
				if localX < 0 || localX >= e.w {
					continue
				}
			}
			fx, fy := localX, spriteRow
			if e.hFlip {
				fx = e.w - 1 - fx
			}
			if e.vFlip {
				fy = e.h - 1 - fy
			}
			idx := p.sampleObjTile(e, fx, fy, objMapping1D)
			if idx == 0 {
				continue
			}
			bestPriority[screenX] = int8(e.priority)
			objLine[screenX] = objPixel{
				idx:       resolveObjPaletteIndex(idx, e.palBank, e.hi256),
				priority:  e.priority,
				semiTrans: e.objMode == 1,
				isWindow:  e.objMode == 2,
				present:   e.objMode != 2,
			}
		}
	}
}

// resolveObjPaletteIndex folds a raw 4bpp/8bpp tile index and palette bank
// into the flat 256-entry OBJ palette index used by objColor.
func resolveObjPaletteIndex(tileIdx byte, palBank byte, hi256 bool) byte {
	if hi256 {
		return tileIdx
	}
	return palBank<<4 | tileIdx&0xF
}

// sampleObjTile reads one pixel's raw palette index out of OBJ tile data
// (VRAM base 0x10000), following 1D or 2D object mapping.
func (p *PPU) sampleObjTile(e oamEntry, fx, fy int, mapping1D bool) byte {
	const objBase = 0x10000
	tileW, tileH := e.w/8, e.h/8
	tileX, tileY := fx/8, fy/8
	px, py := fx&7, fy&7

	tileStep := uint16(1)
	if e.hi256 {
		tileStep = 2
	}

	var tileNum uint16
	if mapping1D {
		tileNum = e.tileNum + uint16(tileY*tileW+tileX)*tileStep
	} else {
		const mapRowTiles = 32
		tileNum = e.tileNum + uint16(tileY*mapRowTiles+tileX)*tileStep
	}
	_ = tileH

	tileAddr := objBase + uint32(tileNum)*32
	if e.hi256 {
		rowAddr := tileAddr + uint32(py)*8 + uint32(px)
		return p.vramByteSafe(rowAddr)
	}
	rowAddr := tileAddr + uint32(py)*4 + uint32(px/2)
	b := p.vramByteSafe(rowAddr)
	if px&1 == 0 {
		return b & 0xF
	}
	return b >> 4
}

func (p *PPU) vramByteSafe(addr uint32) byte {
	if int(addr) >= len(p.vram) {
		return 0
	}
	return p.vram[addr]
}
