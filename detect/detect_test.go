// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupsmanager/cupqr/coding"
)

// render draws c with the given module size and quiet zone, rotated
// clockwise by rot quarter turns.
func render(c *coding.Code, scale, border, rot int) *image.Gray {
	n := (c.Size + 2*border) * scale
	g := image.NewGray(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			// (x, y) in the output comes from (sx, sy) unrotated
			sx, sy := x, y
			for i := 0; i < rot; i++ {
				sx, sy = sy, n-1-sx
			}
			v := uint8(0xff)
			if c.Black(sx/scale-border, sy/scale-border) {
				v = 0
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	return g
}

func TestDetectRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		v     coding.Version
		l     coding.Level
		scale int
		rot   int
	}{
		{1, coding.M, 4, 0},
		{1, coding.H, 3, 1},
		{2, coding.L, 5, 0},
		{3, coding.Q, 4, 2},
		{7, coding.M, 4, 0},
		{10, coding.H, 3, 3},
		{20, coding.Q, 3, 1},
		{25, coding.L, 3, 0},
		{40, coding.M, 3, 2},
	} {
		data := []byte("https://cups.example/42")
		data = data[:min(len(data), tc.v.ByteCapacity(tc.l))]
		c, err := coding.Encode(tc.v, tc.l, data)
		require.NoError(t, err)
		for _, b := range []Binarizer{Hybrid{}, Global{}} {
			m := b.Binarize(render(c, tc.scale, 4, tc.rot))
			got, err := Detect(m)
			require.NoError(t, err, "version %v, %T", tc.v, b)
			assert.Equal(t, c.Size, got.Size)
			assert.Equal(t, c.Bitmap, got.Bitmap, "version %v, %T", tc.v, b)
			payload, err := coding.Decode(got)
			require.NoError(t, err)
			assert.Equal(t, data, payload)
		}
	}
}

// warp draws c with a quiet zone of border modules into the
// quadrilateral q (top left, top right, bottom right, bottom left) of a
// w x h image.
func warp(c *coding.Code, border, w, h int, q [4]Point) *image.Gray {
	n := float64(c.Size + 2*border)
	t := QuadToQuad(q, [4]Point{{0, 0}, {n, 0}, {n, n}, {0, n}})
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mx, my := t.Apply(float64(x)+0.5, float64(y)+0.5)
			v := uint8(0xff)
			if c.Black(int(math.Floor(mx))-border, int(math.Floor(my))-border) {
				v = 0
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	return g
}

// keystone returns a square of the given side at (off, off) with its
// top edge shortened by k times the side, turned by rot radians about
// its centre.
func keystone(side, off, k, rot float64) [4]Point {
	in := k * side / 2
	q := [4]Point{
		{off + in, off}, {off + side - in, off},
		{off + side, off + side}, {off, off + side},
	}
	c := off + side/2
	sin, cos := math.Sincos(rot)
	for i, p := range q {
		x, y := p.X-c, p.Y-c
		q[i] = Point{c + x*cos - y*sin, c + x*sin + y*cos}
	}
	return q
}

func TestDetectKeystone(t *testing.T) {
	for _, tc := range []struct {
		v     coding.Version
		scale int
		k     float64
		rot   float64
	}{
		{7, 8, 0.10, 0},
		{7, 8, 0.15, 0},
		{10, 7, 0.12, 0.1},
		{13, 6, 0.10, 0},
		{13, 6, 0.10, 0.1},
	} {
		data := make([]byte, tc.v.ByteCapacity(coding.M))
		for i := range data {
			data[i] = byte(i*73 + 11)
		}
		c, err := coding.Encode(tc.v, coding.M, data)
		require.NoError(t, err)
		side := float64((c.Size + 8) * tc.scale)
		n := int(side) + 64
		g := warp(c, 4, n, n, keystone(side, 32, tc.k, tc.rot))
		for _, b := range []Binarizer{Hybrid{}, Global{}} {
			got, err := Detect(b.Binarize(g))
			require.NoError(t, err, "version %v keystone %v, %T", tc.v, tc.k, b)
			payload, err := coding.Decode(got)
			require.NoError(t, err, "version %v keystone %v, %T", tc.v, tc.k, b)
			assert.Equal(t, data, payload)
		}
	}
}

// finders draws finder patterns with the given module size centred on
// each of the points in a white w x h image.
func finders(w, h, mod int, centres ...image.Point) *BitMatrix {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 0xff
	}
	for _, p := range centres {
		x0, y0 := p.X-7*mod/2, p.Y-7*mod/2
		for y := 0; y < 7*mod; y++ {
			for x := 0; x < 7*mod; x++ {
				// the second ring from the outside is white
				if max(abs(x/mod-3), abs(y/mod-3)) != 2 {
					g.Pix[(y0+y)*g.Stride+x0+x] = 0
				}
			}
		}
	}
	return Global{}.Binarize(g)
}

func TestDetectBadCorner(t *testing.T) {
	// three patterns in a row
	m := finders(240, 100, 4, image.Pt(40, 50), image.Pt(120, 50), image.Pt(200, 50))
	_, err := Detect(m)
	assert.ErrorIs(t, err, ErrPerspective)

	// a corner of 115 degrees
	m = finders(280, 200, 4, image.Pt(100, 40), image.Pt(220, 40), image.Pt(58, 131))
	_, err = Detect(m)
	assert.ErrorIs(t, err, ErrPerspective)
}

func TestDetectNotFound(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range g.Pix {
		g.Pix[i] = 0xff
	}
	_, err := Detect(Hybrid{}.Binarize(g))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSampleOutside(t *testing.T) {
	id := Transform{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	m := NewBitMatrix(10, 10)
	m.Set(9, 9)
	_, err := Sample(m, &id, 21)
	assert.ErrorIs(t, err, ErrPerspective)

	// module centres up to 10.5 are clamped onto the edge
	c, err := Sample(m, &id, 11)
	require.NoError(t, err)
	assert.True(t, c.Black(9, 9))
	assert.True(t, c.Black(10, 10))
	assert.False(t, c.Black(0, 0))
}

func TestSquareToQuad(t *testing.T) {
	for _, q := range [][4]Point{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		{{1, 2}, {11, 3}, {12, 13}, {2, 12}}, // parallelogram
		{{5, 5}, {40, 8}, {37, 50}, {2, 33}},
	} {
		tr := SquareToQuad(q)
		for i, s := range [4]Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
			x, y := tr.Apply(s.X, s.Y)
			assert.InDelta(t, q[i].X, x, 1e-9)
			assert.InDelta(t, q[i].Y, y, 1e-9)
		}
	}
}

func TestQuadToQuad(t *testing.T) {
	src := [4]Point{{3.5, 3.5}, {17.5, 3.5}, {14.5, 14.5}, {3.5, 17.5}}
	dst := [4]Point{{20, 30}, {150, 40}, {130, 160}, {15, 170}}
	tr := QuadToQuad(src, dst)
	for i := range src {
		x, y := tr.Apply(src[i].X, src[i].Y)
		assert.InDelta(t, dst[i].X, x, 1e-6)
		assert.InDelta(t, dst[i].Y, y, 1e-6)
	}

	id := QuadToQuad(src, src)
	x, y := id.Apply(7.25, 9.75)
	assert.InDelta(t, 7.25, x, 1e-9)
	assert.InDelta(t, 9.75, y, 1e-9)
}

func TestGlobalThreshold(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(200)
			if x < 8 {
				v = 30
			}
			g.SetGray(x, y, color.Gray{v})
		}
	}
	th := Global{}.Threshold(g)
	assert.GreaterOrEqual(t, th, 30)
	assert.Less(t, th, 200)
	m := Global{}.Binarize(g)
	assert.True(t, m.Get(7, 5))
	assert.False(t, m.Get(8, 5))

	for i := range g.Pix {
		g.Pix[i] = 90
	}
	assert.Equal(t, -1, Global{}.Threshold(g))
	assert.False(t, Global{}.Binarize(g).Get(3, 3))
}

func TestHybridUnevenLight(t *testing.T) {
	// 16 pixel squares lit from the left.
	const n = 128
	g := image.NewGray(image.Rect(0, 0, n, n))
	dark := func(x, y int) bool { return (x/16+y/16)%2 == 0 }
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			light := 250 - x*150/n
			v := light
			if dark(x, y) {
				v = light / 5
			}
			g.SetGray(x, y, color.Gray{uint8(v)})
		}
	}
	m := Hybrid{}.Binarize(g)
	for y := 8; y < n; y += 16 {
		for x := 8; x < n; x += 16 {
			assert.Equal(t, dark(x, y), m.Get(x, y), "(%d, %d)", x, y)
		}
	}
}

func TestLuminance(t *testing.T) {
	nrgba := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	nrgba.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0}) // transparent
	nrgba.SetNRGBA(1, 0, color.NRGBA{0, 0, 0, 0xff})
	g := Luminance(nrgba)
	assert.Equal(t, []uint8{0xff, 0}, g.Pix)

	rgba := image.NewRGBA(image.Rect(3, 3, 5, 4))
	rgba.SetRGBA(3, 3, color.RGBA{0xff, 0xff, 0xff, 0xff})
	rgba.SetRGBA(4, 3, color.RGBA{0, 0, 0, 0xff})
	g = Luminance(rgba)
	assert.Equal(t, image.Rect(0, 0, 2, 1), g.Bounds())
	assert.Equal(t, []uint8{0xff, 0}, g.Pix)

	pal := image.NewPaletted(image.Rect(0, 0, 2, 1),
		color.Palette{color.White, color.Black})
	pal.SetColorIndex(1, 0, 1)
	assert.Equal(t, []uint8{0xff, 0}, Luminance(pal).Pix)

	gray16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	gray16.SetGray16(0, 0, color.Gray16{0x8080})
	assert.Equal(t, []uint8{0x80}, Luminance(gray16).Pix)
}
