// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import "math"

// Tolerances for accepting three finder patterns as a symbol.
const (
	maxModuleRatio = 1.4  // largest to smallest finder module size
	maxCos         = 0.34 // |cos| of the corner angle, 90°±20°
	minLegRatio    = 0.7  // shorter to longer side
	minModuleSize  = 1.0  // pixels
	minDimension   = 21
	maxDimension   = maxModules
)

// moduleSize estimates the module size from the black-white-black runs
// of the finder patterns along the sides of the corner.
func moduleSize(m *BitMatrix, c *corner) float64 {
	return (moduleSizeOneWay(m, c.tl, c.tr) + moduleSizeOneWay(m, c.tl, c.bl)) / 2
}

func moduleSizeOneWay(m *BitMatrix, a, b *pattern) float64 {
	s1, ok1 := runBothWays(m, int(a.X), int(a.Y), int(b.X), int(b.Y))
	s2, ok2 := runBothWays(m, int(b.X), int(b.Y), int(a.X), int(a.Y))
	switch {
	case ok1 && ok2:
		return (s1 + s2) / 14
	case ok1:
		return s1 / 7
	case ok2:
		return s2 / 7
	}
	return 0
}

// runBothWays measures the finder pattern at (x0, y0) across its
// centre towards (x1, y1): the black-white-black run towards the other
// pattern plus the one away from it.
func runBothWays(m *BitMatrix, x0, y0, x1, y1 int) (float64, bool) {
	r1, ok1 := bwbRun(m, x0, y0, x1, y1)

	// away from (x1, y1), clipped to the image
	scale := 1.0
	ox := x0 - (x1 - x0)
	if ox < 0 {
		scale = float64(x0) / float64(x0-ox)
		ox = 0
	} else if ox >= m.Width {
		scale = float64(m.Width-1-x0) / float64(ox-x0)
		ox = m.Width - 1
	}
	oy := int(float64(y0) - float64(y1-y0)*scale)
	scale = 1.0
	if oy < 0 {
		scale = float64(y0) / float64(y0-oy)
		oy = 0
	} else if oy >= m.Height {
		scale = float64(m.Height-1-y0) / float64(oy-y0)
		oy = m.Height - 1
	}
	ox = int(float64(x0) + float64(ox-x0)*scale)

	r2, ok2 := bwbRun(m, x0, y0, ox, oy)
	if !ok1 || !ok2 {
		return 0, false
	}
	// the centre pixel is counted twice
	return r1 + r2 - 1, true
}

// bwbRun walks a Bresenham line from (x0, y0) towards (x1, y1) through
// black, white and black runs and returns the distance to the first
// pixel past them.
func bwbRun(m *BitMatrix, x0, y0, x1, y1 int) (float64, bool) {
	steep := abs(y1-y0) > abs(x1-x0)
	if steep {
		x0, y0, x1, y1 = y0, x0, y1, x1
	}
	dx, dy := abs(x1-x0), abs(y1-y0)
	e := -dx / 2
	xstep, ystep := 1, 1
	if x0 > x1 {
		xstep = -1
	}
	if y0 > y1 {
		ystep = -1
	}
	state := 0
	for x, y := x0, y0; x != x1+xstep; x += xstep {
		px, py := x, y
		if steep {
			px, py = y, x
		}
		// states 0 and 2 look for white, state 1 for black
		if (state == 1) == m.Get(px, py) {
			if state == 2 {
				return math.Hypot(float64(x-x0), float64(y-y0)), true
			}
			state++
		}
		e += dy
		if e > 0 {
			if y == y1 {
				break
			}
			y += ystep
			e -= dx
		}
	}
	if state == 2 {
		return math.Hypot(float64(x1+xstep-x0), float64(y1-y0)), true
	}
	return 0, false
}

// dimension returns the number of modules on a side, rounded to the
// nearest valid symbol size.
func dimension(c *corner, module float64) int {
	across := int(math.Round(dist(c.tl, c.tr) / module))
	down := int(math.Round(dist(c.tl, c.bl) / module))
	d := (across+down)/2 + 7
	switch d & 3 {
	case 0:
		d++
	case 2:
		d--
	case 3:
		d -= 2
	}
	return d
}

// alignmentEstimate returns where the bottom-right alignment pattern
// is expected for a symbol of dimension dim.
func alignmentEstimate(c *corner, dim int) (int, int) {
	brx := c.tr.X - c.tl.X + c.bl.X
	bry := c.tr.Y - c.tl.Y + c.bl.Y
	k := 1 - 3/float64(dim-7)
	return int(c.tl.X + k*(brx-c.tl.X)), int(c.tl.Y + k*(bry-c.tl.Y))
}

// findAlignment looks for the alignment pattern within allowance
// modules of (x, y).
func findAlignment(m *BitMatrix, module float64, x, y int, allowance float64) *pattern {
	r := int(allowance * module)
	left, right := max(0, x-r), min(m.Width-1, x+r)
	top, bottom := max(0, y-r), min(m.Height-1, y+r)
	if float64(right-left) < module*3 || float64(bottom-top) < module*3 {
		return nil
	}
	a := &aligner{m: m, x0: left, y0: top, w: right - left, h: bottom - top,
		module: module}
	return a.find(float64(x), float64(y))
}

// symbolTransform returns the map from symbol coordinates, in modules,
// to image coordinates.  Without an alignment pattern, the fourth
// corner completes a parallelogram.
func symbolTransform(c *corner, align *pattern, dim int) Transform {
	far := float64(dim) - 3.5
	br := Point{c.tr.X - c.tl.X + c.bl.X, c.tr.Y - c.tl.Y + c.bl.Y}
	sbr := Point{far, far}
	if align != nil {
		br = Point{align.X, align.Y}
		sbr = Point{far - 3, far - 3}
	}
	return QuadToQuad(
		[4]Point{{3.5, 3.5}, {far, 3.5}, sbr, {3.5, far}},
		[4]Point{{c.tl.X, c.tl.Y}, {c.tr.X, c.tr.Y}, br, {c.bl.X, c.bl.Y}},
	)
}
