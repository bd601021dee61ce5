// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import "image"

// A Binarizer converts a grey image into black and white.
type Binarizer interface {
	Binarize(g *image.Gray) *BitMatrix
}

// Global thresholds the whole image at one level chosen by Otsu's
// method.  It suits evenly lit images.
type Global struct{}

// Hybrid thresholds each 8x8 block at the average of the 5x5 blocks
// around it, so it tolerates uneven lighting.  Images smaller than 40
// pixels on a side are passed to Global.
type Hybrid struct{}

const (
	blockBits       = 3
	blockSize       = 1 << blockBits
	minDynamicRange = 24
	minHybridSize   = blockSize * 5
)

// pix returns the row y of g, starting at its left edge.
func pix(g *image.Gray, y int) []uint8 {
	b := g.Bounds()
	i := g.PixOffset(b.Min.X, b.Min.Y+y)
	return g.Pix[i : i+b.Dx()]
}

// Threshold returns the Otsu threshold of g: pixels with luminance
// at or below it are black.  It returns -1 for an image of one colour.
func (Global) Threshold(g *image.Gray) int {
	var hist [256]int
	h := g.Bounds().Dy()
	for y := 0; y < h; y++ {
		for _, v := range pix(g, y) {
			hist[v]++
		}
	}
	total, sum := 0, 0
	for v, n := range hist {
		total += n
		sum += v * n
	}
	best, t := 0.0, -1
	n0, sum0 := 0, 0
	for v := 0; v < 255; v++ {
		n0 += hist[v]
		sum0 += v * hist[v]
		n1 := total - n0
		if n0 == 0 || n1 == 0 {
			continue
		}
		m0 := float64(sum0) / float64(n0)
		m1 := float64(sum-sum0) / float64(n1)
		between := float64(n0) * float64(n1) * (m0 - m1) * (m0 - m1)
		if between > best {
			best, t = between, v
		}
	}
	return t
}

func (gb Global) Binarize(g *image.Gray) *BitMatrix {
	b := g.Bounds()
	m := NewBitMatrix(b.Dx(), b.Dy())
	t := gb.Threshold(g)
	for y := 0; y < m.Height; y++ {
		for x, v := range pix(g, y) {
			if int(v) <= t {
				m.Set(x, y)
			}
		}
	}
	return m
}

func (Hybrid) Binarize(g *image.Gray) *BitMatrix {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < minHybridSize || h < minHybridSize {
		return Global{}.Binarize(g)
	}
	bw := (w + blockSize - 1) >> blockBits
	bh := (h + blockSize - 1) >> blockBits
	black := blackPoints(g, bw, bh)
	m := NewBitMatrix(w, h)
	for by := 0; by < bh; by++ {
		y0 := min(by<<blockBits, h-blockSize)
		top := clamp(by, 2, bh-3)
		for bx := 0; bx < bw; bx++ {
			x0 := min(bx<<blockBits, w-blockSize)
			left := clamp(bx, 2, bw-3)
			sum := 0
			for dy := -2; dy <= 2; dy++ {
				row := black[(top+dy)*bw:]
				for dx := -2; dx <= 2; dx++ {
					sum += row[left+dx]
				}
			}
			t := sum / 25
			for y := y0; y < y0+blockSize; y++ {
				row := pix(g, y)
				for x := x0; x < x0+blockSize; x++ {
					if int(row[x]) <= t {
						m.Set(x, y)
					}
				}
			}
		}
	}
	return m
}

// blackPoints returns the threshold estimate of every block.  Blocks
// at the right and bottom edges are shifted inwards to stay whole.
// A block of low contrast gets half its minimum, taken as white,
// unless its neighbours already seen suggest it is black.
func blackPoints(g *image.Gray, bw, bh int) []int {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	bp := make([]int, bw*bh)
	for by := 0; by < bh; by++ {
		y0 := min(by<<blockBits, h-blockSize)
		for bx := 0; bx < bw; bx++ {
			x0 := min(bx<<blockBits, w-blockSize)
			sum, lo, hi := 0, 0xff, 0
			for y := y0; y < y0+blockSize; y++ {
				for _, v := range pix(g, y)[x0 : x0+blockSize] {
					sum += int(v)
					lo = min(lo, int(v))
					hi = max(hi, int(v))
				}
			}
			avg := sum >> (2 * blockBits)
			if hi-lo <= minDynamicRange {
				avg = lo / 2
				if by > 0 && bx > 0 {
					nb := (bp[(by-1)*bw+bx] + 2*bp[by*bw+bx-1] +
						bp[(by-1)*bw+bx-1]) / 4
					if lo < nb {
						avg = nb
					}
				}
			}
			bp[by*bw+bx] = avg
		}
	}
	return bp
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
