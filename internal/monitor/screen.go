package monitor

import (
	"image"
	"image/color"
)

// 48K display file layout: a 6144-byte bitmap at 4000H followed by
// 768 attribute bytes.
const (
	ScreenWidth  = 256
	ScreenHeight = 192

	bitmapBase = 0x4000
	attrBase   = 0x5800
)

var palette = func() [16]color.RGBA {
	var p [16]color.RGBA
	for i := 0; i < 16; i++ {
		level := byte(0xD7)
		if i >= 8 {
			level = 0xFF
		}
		var c color.RGBA
		c.A = 0xFF
		if i&1 != 0 {
			c.B = level
		}
		if i&2 != 0 {
			c.R = level
		}
		if i&4 != 0 {
			c.G = level
		}
		p[i] = c
	}
	return p
}()

// pixelAddr maps a screen row and column byte to its bitmap address.
func pixelAddr(y, col int) uint16 {
	return uint16(bitmapBase | (y&0xC0)<<5 | (y&0x07)<<8 | (y&0x38)<<2 | col)
}

// Screen renders the display file in mem. invert selects the second phase
// of flashing cells.
func Screen(mem Memory, invert bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	for y := 0; y < ScreenHeight; y++ {
		for col := 0; col < ScreenWidth/8; col++ {
			bits := mem.Read(pixelAddr(y, col))
			attr := mem.Read(uint16(attrBase + (y>>3)*32 + col))
			bright := int(attr>>6&1) * 8
			ink := palette[int(attr&7)+bright]
			paper := palette[int(attr>>3&7)+bright]
			if invert && attr&0x80 != 0 {
				ink, paper = paper, ink
			}
			for i := 0; i < 8; i++ {
				c := paper
				if bits&(0x80>>i) != 0 {
					c = ink
				}
				img.SetRGBA(col*8+i, y, c)
			}
		}
	}
	return img
}
