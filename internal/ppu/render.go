package ppu

// objPixel is one resolved sprite pixel candidate for a scanline.
type objPixel struct {
	idx        byte
	priority   byte
	semiTrans  bool
	isWindow   bool
	present    bool
}

// renderScanline renders background and sprite layers for line ly into
// the back framebuffer, applying windows and blending. The MOSAIC register
// and the BGCNT/OBJ mosaic flags are not applied.
func (p *PPU) renderScanline(ly int) {
	mode := p.dispcnt & 7
	forceBlank := p.dispcnt&(1<<7) != 0

	var bgLines [4][screenWidth]uint16 // resolved RGB555, 0x8000 bit used as "opaque" marker
	var bgActive [4]bool

	if !forceBlank {
		switch mode {
		case 0:
			for i := 0; i < 4; i++ {
				if p.dispcnt&(1<<(8+i)) != 0 {
					bgLines[i] = p.textBGLineAsColor(i, ly)
					bgActive[i] = true
				}
			}
		case 1:
			for i := 0; i < 2; i++ {
				if p.dispcnt&(1<<(8+i)) != 0 {
					bgLines[i] = p.textBGLineAsColor(i, ly)
					bgActive[i] = true
				}
			}
			if p.dispcnt&(1<<10) != 0 {
				bgLines[2] = p.affineBGLineAsColor(0, ly)
				bgActive[2] = true
			}
		case 2:
			for i, bg := range []int{2, 3} {
				if p.dispcnt&(1<<(8+bg)) != 0 {
					bgLines[bg] = p.affineBGLineAsColor(i, ly)
					bgActive[bg] = true
				}
			}
		case 3:
			if p.dispcnt&(1<<10) != 0 {
				row := renderBitmapMode3Line(p.vram[:], ly)
				bgLines[2] = markOpaqueAll(row)
				bgActive[2] = true
			}
		case 4:
			if p.dispcnt&(1<<10) != 0 {
				row := renderBitmapMode4Line(p.vram[:], ly, p.dispcnt&(1<<4) != 0)
				for x, idx := range row {
					if idx != 0 {
						bgLines[2][x] = p.bgColor(idx) | 0x8000
					}
				}
				bgActive[2] = true
			}
		case 5:
			if p.dispcnt&(1<<10) != 0 {
				row := renderBitmapMode5Line(p.vram[:], ly, p.dispcnt&(1<<4) != 0)
				bgLines[2] = markOpaqueAll(row)
				bgActive[2] = true
			}
		}
	}

	var objLine [screenWidth]objPixel
	if !forceBlank && p.dispcnt&(1<<12) != 0 {
		p.renderSprites(ly, &objLine)
	}

	win0On := p.dispcnt&(1<<13) != 0
	win1On := p.dispcnt&(1<<14) != 0
	winObjOn := p.dispcnt&(1<<15) != 0
	anyWindow := win0On || win1On || winObjOn

	for x := 0; x < screenWidth; x++ {
		enableMask := uint16(0x3F) // bit i = BG i enabled, bit4 = OBJ, bit5 = blend effects
		if anyWindow {
			enableMask = p.windowMaskAt(x, ly, win0On, win1On, winObjOn, objLine[x].isWindow)
		}

		bgOrder := priorityOrder(p.bgcnt, bgActive, mode)
		var topColor uint16
		var topLayer int = -1 // 0-3 = BG, 4 = OBJ, -1 = backdrop
		var secondColor uint16
		secondLayer := -1

		consider := func(layer int, color uint16, enabled bool) {
			if !enabled || color&0x8000 == 0 {
				return
			}
			if topLayer == -1 {
				topLayer, topColor = layer, color
			} else if secondLayer == -1 {
				secondLayer, secondColor = layer, color
			}
		}

		if objLine[x].present && enableMask&(1<<4) != 0 && !objLine[x].isWindow {
			consider(4, p.objColor(objLine[x].idx)|0x8000, true)
		}
		for _, bg := range bgOrder {
			consider(bg, bgLines[bg][x], enableMask&(1<<uint(bg)) != 0)
		}
		if topLayer == -1 {
			topColor = p.bgColor(0) | 0x8000 // backdrop = BG palette entry 0
		}

		finalColor := topColor &^ 0x8000
		if enableMask&(1<<5) != 0 {
			finalColor = p.applyBlend(topLayer, topColor, secondLayer, secondColor, objLine[x].semiTrans)
		}
		p.back.Pixels[ly*screenWidth+x] = rgb555To888(finalColor)
	}
}

func markOpaqueAll(row [screenWidth]uint16) [screenWidth]uint16 {
	for i := range row {
		row[i] |= 0x8000
	}
	return row
}

// textBGLineAsColor renders text BG i and resolves each palette index to
// an RGB555 color, OR'ing in the opaque marker bit for non-transparent
// pixels.
func (p *PPU) textBGLineAsColor(i int, ly int) [screenWidth]uint16 {
	indices := renderTextBGLine(p.vram[:], p.bgcnt[i], p.bgh[i], p.bgv[i], ly)
	var out [screenWidth]uint16
	for x, idx := range indices {
		if idx != 0 {
			out[x] = p.bgColor(idx) | 0x8000
		}
	}
	return out
}

// affineBGLineAsColor renders affine background slot (0 for BG2, 1 for
// BG3) using its own reference point and rotation/scale parameters.
func (p *PPU) affineBGLineAsColor(slot int, ly int) [screenWidth]uint16 {
	bg := slot + 2
	wrap := p.bgcnt[bg]&(1<<13) != 0
	x := p.bgx[slot] + int32(ly)*int32(p.bgpb[slot])
	y := p.bgy[slot] + int32(ly)*int32(p.bgpd[slot])
	indices := renderAffineBGLine(p.vram[:], p.bgcnt[bg], x, y, p.bgpa[slot], p.bgpc[slot], wrap)
	var out [screenWidth]uint16
	for x, idx := range indices {
		if idx != 0 {
			out[x] = p.bgColor(idx) | 0x8000
		}
	}
	return out
}

// priorityOrder returns active BG indices for mode, front-to-back
// (numerically lowest BGCNT priority first), with ties broken by BG
// index (lower index first, matching hardware).
func priorityOrder(bgcnt [4]uint16, active [4]bool, mode uint16) []int {
	var order []int
	for i := 0; i < 4; i++ {
		if active[i] {
			order = append(order, i)
		}
	}
	// Stable insertion sort by ascending (priority, index) so the final
	// slice, consumed front-to-back by consider(), yields highest
	// priority (numerically lowest BGCNT priority) first.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0; j-- {
			a, b := order[j-1], order[j]
			pa, pb := bgcnt[a]&3, bgcnt[b]&3
			if pa > pb || (pa == pb && a > b) {
				order[j-1], order[j] = order[j], order[j-1]
			} else {
				break
			}
		}
	}
	return order
}

// windowMaskAt computes which layers are visible at (x,ly) given the
// enabled windows, returning bit i = BG i, bit4 = OBJ, bit5 = blend.
func (p *PPU) windowMaskAt(x, ly int, win0, win1, winObj bool, isObjWindow bool) uint16 {
	inWin := func(h, v uint16) bool {
		x1, x2 := int(h>>8), int(h&0xFF)
		y1, y2 := int(v>>8), int(v&0xFF)
		if x2 > screenWidth || x2 <= x1 {
			x2 = screenWidth
		}
		if y2 > screenHeight || y2 <= y1 {
			y2 = screenHeight
		}
		return x >= x1 && x < x2 && ly >= y1 && ly < y2
	}
	if win0 && inWin(p.winh[0], p.winv[0]) {
		return p.winin & 0x3F
	}
	if win1 && inWin(p.winh[1], p.winv[1]) {
		return (p.winin >> 8) & 0x3F
	}
	if winObj && isObjWindow {
		return (p.winout >> 8) & 0x3F
	}
	if win0 || win1 || winObj {
		return p.winout & 0x3F
	}
	return 0x3F
}

// applyBlend implements BLDCNT's alpha-blend and brightness effects
// between the topmost two visible layers.
func (p *PPU) applyBlend(topLayer int, topColor uint16, secondLayer int, secondColor uint16, objSemiTrans bool) uint16 {
	effect := p.bldcnt >> 6 & 3
	targetA := p.bldcnt & 0x3F
	targetB := p.bldcnt >> 8 & 0x3F

	isTargetA := topLayer >= 0 && targetA&(1<<uint(topLayer)) != 0
	isTargetB := secondLayer >= 0 && targetB&(1<<uint(secondLayer)) != 0

	if objSemiTrans && secondLayer != -1 && isTargetB {
		return alphaBlend(topColor, secondColor, int(p.bldalpha&0x1F), int(p.bldalpha>>8&0x1F))
	}

	switch effect {
	case 1: // alpha blend
		if isTargetA && isTargetB {
			return alphaBlend(topColor, secondColor, int(p.bldalpha&0x1F), int(p.bldalpha>>8&0x1F))
		}
	case 2: // brightness increase
		if isTargetA {
			return brightness(topColor, int(p.bldy&0x1F), true)
		}
	case 3: // brightness decrease
		if isTargetA {
			return brightness(topColor, int(p.bldy&0x1F), false)
		}
	}
	return topColor
}

func alphaBlend(a, b uint16, evaRaw, evbRaw int) uint16 {
	clamp := func(v int) int {
		if v > 31 {
			return 31
		}
		return v
	}
	if evaRaw > 16 {
		evaRaw = 16
	}
	if evbRaw > 16 {
		evbRaw = 16
	}
	channel := func(shift uint) int {
		ca := int(a >> shift & 0x1F)
		cb := int(b >> shift & 0x1F)
		return clamp((ca*evaRaw + cb*evbRaw) / 16)
	}
	return uint16(channel(0)) | uint16(channel(5))<<5 | uint16(channel(10))<<10
}

func brightness(c uint16, evy int, up bool) uint16 {
	if evy > 16 {
		evy = 16
	}
	channel := func(shift uint) int {
		v := int(c >> shift & 0x1F)
		if up {
			v += (31 - v) * evy / 16
		} else {
			v -= v * evy / 16
		}
		return v
	}
	return uint16(channel(0)) | uint16(channel(5))<<5 | uint16(channel(10))<<10
}

func rgb555To888(c uint16) uint32 {
	r := uint32(c&0x1F) * 255 / 31
	g := uint32(c>>5&0x1F) * 255 / 31
	b := uint32(c>>10&0x1F) * 255 / 31
	return r<<16 | g<<8 | b
}
