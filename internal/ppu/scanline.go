package ppu

// screenSizeTiles returns a text BG's map width/height in tiles for the
// four BGCNT screen-size settings (0..3): 32x32, 64x32, 32x64, 64x64.
func screenSizeTiles(screenSize uint16) (w, h int) {
	switch screenSize {
	case 0:
		return 32, 32
	case 1:
		return 64, 32
	case 2:
		return 32, 64
	default:
		return 64, 64
	}
}

// renderTextBGLine renders 240 resolved palette indices (0 = transparent)
// for one text-mode background, reading its tilemap and tile data
// straight from VRAM.
func renderTextBGLine(vram []byte, bgcnt, hofs, vofs uint16, ly int) [screenWidth]byte {
	var out [screenWidth]byte

	screenBase := uint32(bgcnt>>8&0x1F) * 0x800
	charBase := uint32(bgcnt>>2&3) * 0x4000
	hi256 := bgcnt&(1<<7) != 0
	mapW, mapH := screenSizeTiles(bgcnt >> 14 & 3)

	bgY := (ly + int(vofs)) % (mapH * 8)
	fineY := bgY & 7
	mapTileY := bgY / 8

	var q fifo
	f := newBGFetcher(vram, &q)
	f.Configure(charBase, hi256)

	fetchCol := func(mapTileX int) {
		// Screen blocks are 32x32-tile (2 KiB) pages; wrap tile coords into
		// the correct page for map sizes wider/taller than one page.
		page := 0
		px, py := mapTileX, mapTileY
		if mapW == 64 && px >= 32 {
			page += 1
			px -= 32
		}
		if mapH == 64 && py >= 32 {
			if mapW == 64 {
				page += 2
			} else {
				page += 1
			}
			py -= 32
		}
		entryAddr := screenBase + uint32(page)*0x800 + uint32(py*32+px)*2
		entry := uint16(0)
		if int(entryAddr)+1 < len(vram) {
			entry = uint16(vram[entryAddr]) | uint16(vram[entryAddr+1])<<8
		}
		tileNum := entry & 0x3FF
		hFlip := entry&(1<<10) != 0
		vFlip := entry&(1<<11) != 0
		palBank := byte(entry >> 12 & 0xF)
		f.Fetch(tileNum, fineY, hFlip, vFlip, palBank)
	}

	startX := int(hofs) % (mapW * 8)
	tileX := startX / 8
	fineX := startX % 8
	fetchCol(tileX)
	for i := 0; i < fineX; i++ {
		q.Pop()
	}
	for x := 0; x < screenWidth; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) % mapW
			fetchCol(tileX)
		}
		v, _ := q.Pop()
		out[x] = v
	}
	return out
}

// renderAffineBGLine samples an affine (rotated/scaled) background at
// (refX,refY)+(x*pa) along the current row; out-of-bounds samples either
// wrap or read transparent depending on the overflow bit.
func renderAffineBGLine(vram []byte, bgcnt uint16, refX, refY int32, pa, pc int16, wrap bool) [screenWidth]byte {
	var out [screenWidth]byte
	charBase := uint32(bgcnt>>2&3) * 0x4000
	screenBase := uint32(bgcnt>>8&0x1F) * 0x800
	sizeTiles := 16 << uint(bgcnt>>14&3) // 128,256,512,1024 px square map
	sizePx := sizeTiles * 8

	x, y := refX, refY
	for i := 0; i < screenWidth; i++ {
		px, py := int(x>>8), int(y>>8)
		if wrap {
			px = ((px % sizePx) + sizePx) % sizePx
			py = ((py % sizePx) + sizePx) % sizePx
		} else if px < 0 || py < 0 || px >= sizePx || py >= sizePx {
			out[i] = 0
			x += int32(pa)
			y += int32(pc)
			continue
		}
		tileX, tileY := px/8, py/8
		mapTilesPerRow := sizePx / 8
		entryAddr := screenBase + uint32(tileY*mapTilesPerRow+tileX)
		tileNum := byte(0)
		if int(entryAddr) < len(vram) {
			tileNum = vram[entryAddr]
		}
		fineX, fineY := px&7, py&7
		rowBase := charBase + uint32(tileNum)*64 + uint32(fineY)*8
		idx := byte(0)
		if int(rowBase)+fineX < len(vram) {
			idx = vram[rowBase+uint32(fineX)]
		}
		out[i] = idx
		x += int32(pa)
		y += int32(pc)
	}
	return out
}

// renderBitmapMode3Line reads 240 direct RGB555 pixels from a mode-3
// bitmap frame (one 240x160 buffer, no palette).
func renderBitmapMode3Line(vram []byte, ly int) [screenWidth]uint16 {
	var out [screenWidth]uint16
	base := uint32(ly*screenWidth) * 2
	for x := 0; x < screenWidth; x++ {
		addr := base + uint32(x)*2
		if int(addr)+1 < len(vram) {
			out[x] = uint16(vram[addr]) | uint16(vram[addr+1])<<8
		}
	}
	return out
}

// renderBitmapMode4Line reads 240 palette indices from a mode-4 bitmap
// frame (two swappable 240x160 8bpp pages).
func renderBitmapMode4Line(vram []byte, ly int, frameSelect bool) [screenWidth]byte {
	var out [screenWidth]byte
	var base uint32
	if frameSelect {
		base = 0xA000
	}
	base += uint32(ly * screenWidth)
	for x := 0; x < screenWidth; x++ {
		addr := base + uint32(x)
		if int(addr) < len(vram) {
			out[x] = vram[addr]
		}
	}
	return out
}

// renderBitmapMode5Line reads direct RGB555 pixels from a mode-5 bitmap
// frame (160x128, smaller than the 240x160 screen; pixels outside the
// bitmap's bounds are left at zero).
func renderBitmapMode5Line(vram []byte, ly int, frameSelect bool) [screenWidth]uint16 {
	var out [screenWidth]uint16
	const bmpW, bmpH = 160, 128
	if ly >= bmpH {
		return out
	}
	var base uint32
	if frameSelect {
		base = 0xA000
	}
	base += uint32(ly*bmpW) * 2
	for x := 0; x < bmpW; x++ {
		addr := base + uint32(x)*2
		if int(addr)+1 < len(vram) {
			out[x] = uint16(vram[addr]) | uint16(vram[addr+1])<<8
		}
	}
	return out
}
