// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import "math"

// aligner searches a region of a BitMatrix for an alignment pattern:
// a black module in a white ring in a black ring.  Candidates are found
// as 1:1:1 white, black, white runs through the centre and kept only
// if both rings show across, down and along the diagonals.
type aligner struct {
	m            *BitMatrix
	x0, y0, w, h int
	module       float64
	centres      []*pattern
}

// ratio reports whether all runs in sc are about one module long.
func (a *aligner) ratio(sc [3]int) bool {
	v := a.module / 2
	for _, n := range sc {
		if math.Abs(a.module-float64(n)) >= v {
			return false
		}
	}
	return true
}

// find returns the alignment pattern closest to (ex, ey), preferring
// ones seen in more than one row, or nil.
func (a *aligner) find(ex, ey float64) *pattern {
	m := a.m
	x1 := a.x0 + a.w
	for y := a.y0; y <= a.y0+a.h; y++ {
		var sc [3]int
		x := a.x0
		for x < x1 && !m.Get(x, y) {
			x++
		}
		state := 0
		for ; x < x1; x++ {
			if !m.Get(x, y) {
				if state == 1 {
					state++
				}
				sc[state]++
				continue
			}
			if state == 1 {
				sc[1]++
				continue
			}
			if state == 2 {
				if a.ratio(sc) {
					a.candidate(sc, x, y)
				}
				sc = [3]int{sc[2], 1, 0}
				state = 1
				continue
			}
			state++
			sc[state]++
		}
		if a.ratio(sc) {
			a.candidate(sc, x1, y)
		}
	}
	var best *pattern
	bd := 0.0
	for _, p := range a.centres {
		d := math.Hypot(p.X-ex, p.Y-ey)
		if best == nil || p.Count > 1 && best.Count == 1 ||
			(p.Count > 1) == (best.Count > 1) && d < bd {
			best, bd = p, d
		}
	}
	return best
}

// crossCheck confirms a pattern vertically through (x, y) and returns
// its centre row.
func (a *aligner) crossCheck(x, y, limit, orig int) (float64, bool) {
	m := a.m
	var sc [3]int
	i := y
	for i >= 0 && m.Get(x, i) && sc[1] <= limit {
		sc[1]++
		i--
	}
	if i < 0 || sc[1] > limit {
		return 0, false
	}
	for i >= 0 && !m.Get(x, i) && sc[0] <= limit {
		sc[0]++
		i--
	}
	if sc[0] > limit {
		return 0, false
	}
	i = y + 1
	for i < m.Height && m.Get(x, i) && sc[1] <= limit {
		sc[1]++
		i++
	}
	if i == m.Height || sc[1] > limit {
		return 0, false
	}
	for i < m.Height && !m.Get(x, i) && sc[2] <= limit {
		sc[2]++
		i++
	}
	if sc[2] > limit {
		return 0, false
	}
	t := sc[0] + sc[1] + sc[2]
	if 5*abs(t-orig) >= 2*orig || !a.ratio(sc) {
		return 0, false
	}
	return float64(i-sc[2]) - float64(sc[1])/2, true
}

// candidate checks a possible pattern ending before x in row y and
// records its centre.
func (a *aligner) candidate(sc [3]int, x, y int) {
	orig := sc[0] + sc[1] + sc[2]
	cx := float64(x-sc[2]) - float64(sc[1])/2
	cy, ok := a.crossCheck(int(cx), y, 2*sc[1], orig)
	if !ok {
		return
	}
	mod := float64(orig) / 3
	for _, d := range ringDirs {
		if !a.ring(cx, cy, mod, d[0], d[1]) {
			return
		}
	}
	for _, p := range a.centres {
		if p.near(cx, cy, mod) {
			p.merge(cx, cy, mod)
			return
		}
	}
	a.centres = append(a.centres, &pattern{X: cx, Y: cy, Module: mod, Count: 1})
}

// ring reports whether the line through (cx, cy) along (dx, dy) crosses
// a black centre, a white run on each side and black beyond them.  Any
// line through the centre of the pattern cuts its squares in equal
// runs, so the runs are measured against the centre run, which must be
// within a factor of two of mod.  The outer black runs need only be
// half as long, as data modules may continue them.
func (a *aligner) ring(cx, cy, mod float64, dx, dy int) bool {
	m := a.m
	x0, y0 := int(cx), int(cy)
	if !m.in(x0, y0) || !m.Get(x0, y0) {
		return false
	}
	limit := int(3*mod) + 1
	var sc [5]int // outer, white, centre, white, outer
	sc[2] = 1
	for _, s := range [2]int{-1, 1} {
		k := 2
		for x, y := x0+s*dx, y0+s*dy; m.in(x, y); x, y = x+s*dx, y+s*dy {
			// runs alternate, so a change of colour moves one run out
			if m.Get(x, y) != (k != 2+s) {
				if k == 2+2*s {
					break
				}
				k += s
			}
			sc[k]++
			if sc[k] > limit {
				if k == 2+2*s {
					break
				}
				return false
			}
		}
	}
	u := float64(sc[2])
	if 2*u < mod || u > 2*mod {
		return false
	}
	for _, n := range [2]int{sc[1], sc[3]} {
		if math.Abs(u-float64(n)) >= u/2 {
			return false
		}
	}
	return 2*sc[0] >= sc[2] && 2*sc[4] >= sc[2]
}

// ringDirs are the lines checked through a candidate centre.
var ringDirs = [...][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
