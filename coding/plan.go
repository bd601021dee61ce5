// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import "sync"

// A Plan describes how to construct a QR code
// with a specific version and level.
type Plan struct {
	Version Version // QR code version
	Level   Level   // QR error correction Level

	DataBits int // number of data bits
	Size     int // number of pixels on a side

	Map     []byte    // pixel map: 0 is data or checksum, 1 is other
	Pattern [8][]byte // position and alignment boxes, timing, format, mask
}

// NewPlan returns a Plan for a QR code with the given version and level.
// The Plan is a copy and may be modified by the caller.
func NewPlan(version Version, level Level) (*Plan, error) {
	pp, err := makePlan(version, level)
	if err != nil {
		return nil, err
	}
	p := *pp
	p.Map = append([]byte(nil), pp.Map...)
	for i := range p.Pattern {
		p.Pattern[i] = append([]byte(nil), pp.Pattern[i]...)
	}
	return &p, nil
}

// Pre-allocated Plans.  A Plan is created the first time a
// combination of version and level is used and never modified
// afterwards.  Each plan holds 9 Code bitmaps, from 567 bytes for
// version 1 to 36 KB for version 40.
var plans [MaxVersion + 1][H + 1]struct {
	once sync.Once
	p    *Plan
}

// makePlan returns plans[version][level].
// If it doesn't exist, it is created.
func makePlan(version Version, level Level) (*Plan, error) {
	if !version.valid() {
		return nil, ErrVersion
	}
	if !level.valid() {
		return nil, ErrLevel
	}
	p := &plans[version][level]
	p.once.Do(func() {
		pp := vplan(version, level)
		for mask, fb := range ftab[level] {
			fplan(fb, mask, pp)
			mplan(Mask(mask), pp)
		}
		p.p = pp
	})
	return p.p, nil
}

// A grid sets pixels in a Plan's Map and base pattern.
type grid struct {
	m, b   []byte
	stride int
}

// reserve marks the pixel at (x, y) as not holding data.
func (g grid) reserve(x, y int) {
	g.m[y*g.stride+x>>3] |= 0x80 >> (x & 7)
}

// set reserves the pixel at (x, y) and sets its colour.
func (g grid) set(x, y int, black bool) {
	off, bit := y*g.stride+x>>3, byte(0x80)>>(x&7)
	g.m[off] |= bit
	if black {
		g.b[off] |= bit
	} else {
		g.b[off] &^= bit
	}
}

// vplan creates a Plan for the given version, with Pattern[0] holding
// the fixed patterns shared by all masks.
func vplan(v Version, l Level) *Plan {
	siz := v.Size()
	stride := (siz + 7) >> 3
	p := &Plan{
		Version:  v,
		Level:    l,
		DataBits: v.DataBits(l),
		Size:     siz,
	}
	bitmap := make([]byte, stride*siz*9)
	p.Map, bitmap = bitmap[:stride*siz], bitmap[stride*siz:]
	g := grid{m: p.Map, b: bitmap[:stride*siz], stride: stride}

	// Timing strips (partly overwritten by boxes).
	for i := 0; i < siz; i++ {
		g.set(i, 6, i&1 == 0)
		g.set(6, i, i&1 == 0)
	}

	// Position boxes with their separators.
	for _, o := range [3][2]int{{0, 0}, {siz - 7, 0}, {0, siz - 7}} {
		for dy := -1; dy <= 7; dy++ {
			for dx := -1; dx <= 7; dx++ {
				x, y := o[0]+dx, o[1]+dy
				if x < 0 || x >= siz || y < 0 || y >= siz {
					continue
				}
				d := max(abs(dx-3), abs(dy-3))
				g.set(x, y, d != 2 && d != 4)
			}
		}
	}

	// Alignment boxes, except where they would hit position boxes.
	apos := v.Alignment()
	last := len(apos) - 1
	for i, y := range apos {
		for j, x := range apos {
			if i == 0 && (j == 0 || j == last) || j == 0 && i == last {
				continue
			}
			for dy := -2; dy <= 2; dy++ {
				for dx := -2; dx <= 2; dx++ {
					g.set(x+dx, y+dy, max(abs(dx), abs(dy)) != 1)
				}
			}
		}
	}

	// Format areas, filled in by fplan.
	for i := 0; i < 9; i++ {
		g.reserve(8, i)
		g.reserve(i, 8)
	}
	for i := 0; i < 8; i++ {
		g.reserve(siz-1-i, 8)
		g.reserve(8, siz-1-i)
	}

	// Version pattern: 6x3 pixels at (siz-11, 0) and 3x6 at (0, siz-11).
	if pat := vtab[v].pattern; pat != 0 {
		for i := 0; i < 18; i++ {
			a, b := siz-11+i%3, i/3
			black := pat>>i&1 != 0
			g.set(a, b, black)
			g.set(b, a, black)
		}
	}

	// One lonely black pixel
	g.set(8, siz-8, true)

	sz := len(p.Map)
	for n := sz; n < len(bitmap); {
		n += copy(bitmap[n:], bitmap[:n])
	}
	for i := range p.Pattern {
		p.Pattern[i], bitmap = bitmap[:sz], bitmap[sz:]
	}
	return p
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// formatPixels returns the coordinates of the 15 format bits, least
// significant first, in the two copies of the format information.
func formatPixels(siz int) (a, b [15][2]int) {
	for i := 0; i < 15; i++ {
		switch {
		case i < 6:
			a[i] = [2]int{8, i}
		case i < 8:
			a[i] = [2]int{8, i + 1}
		case i == 8:
			a[i] = [2]int{7, 8}
		default:
			a[i] = [2]int{14 - i, 8}
		}
		if i < 8 {
			b[i] = [2]int{siz - 1 - i, 8}
		} else {
			b[i] = [2]int{8, siz - 15 + i}
		}
	}
	return a, b
}

// versionPixels returns the coordinates of the 18 version bits, least
// significant first, in the two copies of the version information.
func versionPixels(siz int) (a, b [18][2]int) {
	for i := range a {
		a[i] = [2]int{siz - 11 + i%3, i / 3}
		b[i] = [2]int{i / 3, siz - 11 + i%3}
	}
	return a, b
}

// fplan sets the format bits
func fplan(fb uint16, mask int, p *Plan) {
	stride := (p.Size + 7) >> 3
	g := grid{m: p.Map, b: p.Pattern[mask], stride: stride}
	a, b := formatPixels(p.Size)
	for i := 0; i < 15; i++ {
		black := fb>>i&1 != 0
		g.set(a[i][0], a[i][1], black)
		g.set(b[i][0], b[i][1], black)
	}
}

// Mask patterns:
//
//	0: ▄▀▄▀▄▀▄▀▄▀▄▀  1: ▄▄▄▄▄▄▄▄▄▄▄▄  2:  ██ ██ ██ ██  3: ▄█▀▄█▀▄█▀▄█▀
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     ▀▄█▀▄█▀▄█▀▄█
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     █▀▄█▀▄█▀▄█▀▄
//
//	4:    ███   ███  5:  ▄▄▄▄▄ ▄▄▄▄▄  6:    ▄▄▄   ▄▄▄  7: ▄█▄▀ ▀▄█▄▀ ▀
//	   ███   ███         █▀▄▀█ █▀▄▀█      ▄▀▄ █ ▄▀▄ █     ▄▀█▀▄ ▄▀█▀▄
//	      ███   ███      ██▄██ ██▄██      █▄▄▀  █▄▄▀      ▄  ▀██▄  ▀██
//
// Black reports whether mask m inverts the pixel at (x, y).
func (m Mask) Black(x, y int) bool {
	switch m {
	case 0:
		return (y+x)%2 == 0
	case 1:
		return y%2 == 0
	case 2:
		return x%3 == 0
	case 3:
		return (y+x)%3 == 0
	case 4:
		return (y/2+x/3)%2 == 0
	case 5:
		return y*x%2+y*x%3 == 0
	case 6:
		return (y*x%2+y*x%3)%2 == 0
	case 7:
		return ((y+x)%2+y*x%3)%2 == 0
	}
	return false
}

// mplan edits a version+level-only Plan to add the mask.
func mplan(mask Mask, p *Plan) {
	siz := p.Size
	stride := (siz + 7) >> 3
	b := p.Pattern[mask]
	for y := 0; y < siz; y++ {
		for x := 0; x < siz; x++ {
			off, bit := y*stride+x>>3, byte(0x80)>>(x&7)
			if p.Map[off]&bit == 0 && mask.Black(x, y) {
				b[off] |= bit
			}
		}
	}
}

// walk calls f for each data pixel in zigzag scan order: two pixel
// wide columns from the right, alternately upwards and downwards,
// skipping the vertical timing strip.
func (p *Plan) walk(f func(off int, bit byte)) {
	siz := p.Size
	stride := (siz + 7) >> 3
	up := true
	for x := siz - 1; x > 0; x -= 2 {
		if x == 6 { // vertical timing strip
			x--
		}
		for i := 0; i < siz; i++ {
			y := i
			if up {
				y = siz - 1 - i
			}
			for _, xx := range [2]int{x, x - 1} {
				off, bit := y*stride+xx>>3, byte(0x80)>>(xx&7)
				if p.Map[off]&bit == 0 {
					f(off, bit)
				}
			}
		}
		up = !up
	}
}

// Serialise writes bits from s to the bitmap in zigzag scan order.
func (p *Plan) Serialise(s BitStream, bitmap []byte) {
	p.walk(func(off int, bit byte) {
		if s.Next() != 0 {
			bitmap[off] |= bit
		}
	})
}

// Deserialise reads the codewords from the bitmap in zigzag scan
// order.  Remainder bits are dropped.
func (p *Plan) Deserialise(bitmap []byte) []byte {
	b := make([]byte, vtab[p.Version].bytes)
	n := 0
	p.walk(func(off int, bit byte) {
		if i := n >> 3; i < len(b) && bitmap[off]&bit != 0 {
			b[i] |= 0x80 >> (n & 7)
		}
		n++
	})
	return b
}
