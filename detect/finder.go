// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"math"
	"sort"
)

// A pattern is a finder or alignment pattern centre found in an image.
type pattern struct {
	X, Y   float64 // centre
	Module float64 // estimated module size in pixels
	Count  int     // number of times seen
}

// near reports whether a sighting at (x, y) with module size m is the
// same pattern as p.
func (p *pattern) near(x, y, m float64) bool {
	if math.Abs(y-p.Y) > m || math.Abs(x-p.X) > m {
		return false
	}
	d := math.Abs(m - p.Module)
	return d <= 1 || d <= p.Module
}

// merge adds the sighting at (x, y) with module size m to p.
func (p *pattern) merge(x, y, m float64) {
	n := float64(p.Count)
	p.X = (n*p.X + x) / (n + 1)
	p.Y = (n*p.Y + y) / (n + 1)
	p.Module = (n*p.Module + m) / (n + 1)
	p.Count++
}

func dist(a, b *pattern) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// finder searches a BitMatrix for finder patterns: 1:1:3:1:1 runs of
// black, white, black, white, black in rows, columns and diagonals.
type finder struct {
	m       *BitMatrix
	centres []*pattern
}

// The largest symbol has 177 modules on a side.  A finder pattern of
// the smallest module size that fills the image spans 7/177 of the
// height, so rows are scanned at a third of that.
const maxModules = 177

// find scans the image and returns the finder centres seen at least
// quorum times.
func (f *finder) find() []*pattern {
	h := f.m.Height
	skip := max(1, 3*h/(4*maxModules))
	quorum := 2
	if skip == 1 {
		quorum = 1
	}
	for y := skip - 1; y < h; y += skip {
		if f.scanRow(y) {
			skip = min(skip, 2)
		}
	}
	var found []*pattern
	for _, p := range f.centres {
		if p.Count >= quorum {
			found = append(found, p)
		}
	}
	return found
}

// ratio reports whether the run lengths in sc fit 1:1:3:1:1 within
// the given fraction of a module.
func ratio(sc [5]int, variance float64) bool {
	total := 0
	for _, n := range sc {
		if n == 0 {
			return false
		}
		total += n
	}
	if total < 7 {
		return false
	}
	m := float64(total) / 7
	v := m * variance
	return math.Abs(m-float64(sc[0])) < v &&
		math.Abs(m-float64(sc[1])) < v &&
		math.Abs(3*m-float64(sc[2])) < 3*v &&
		math.Abs(m-float64(sc[3])) < v &&
		math.Abs(m-float64(sc[4])) < v
}

// scanRow looks for finder patterns in row y and reports whether any
// was confirmed.
func (f *finder) scanRow(y int) bool {
	w := f.m.Width
	var sc [5]int
	state := 0
	found := false
	for x := 0; x < w; x++ {
		if f.m.Get(x, y) {
			if state&1 == 1 {
				state++
			}
			sc[state]++
			continue
		}
		if state&1 == 1 {
			sc[state]++
			continue
		}
		if state != 4 {
			state++
			sc[state]++
			continue
		}
		if ratio(sc, 0.5) && f.candidate(sc, x, y) {
			found = true
			state, sc = 0, [5]int{}
			continue
		}
		// keep the last black-white-black as the start of the next try
		sc = [5]int{sc[2], sc[3], sc[4], 1, 0}
		state = 3
	}
	if ratio(sc, 0.5) && f.candidate(sc, w, y) {
		found = true
	}
	return found
}

// centreFromEnd returns the centre of the middle run given the
// position just past the last one.
func centreFromEnd(sc [5]int, end int) float64 {
	return float64(end-sc[4]-sc[3]) - float64(sc[2])/2
}

// runs measures the five runs through (x, y) along (dx, dy).  The
// middle run contains (x, y).  Outer runs longer than limit fail.  It
// returns the run lengths and the number of steps from (x, y) to the
// first pixel past the last run.
func (f *finder) runs(x, y, dx, dy, limit int) (sc [5]int, end int, ok bool) {
	m := f.m
	i := 0
	for m.in(x-i*dx, y-i*dy) && m.Get(x-i*dx, y-i*dy) {
		sc[2]++
		i++
	}
	for m.in(x-i*dx, y-i*dy) && !m.Get(x-i*dx, y-i*dy) && sc[1] <= limit {
		sc[1]++
		i++
	}
	if !m.in(x-i*dx, y-i*dy) || sc[1] > limit {
		return sc, 0, false
	}
	for m.in(x-i*dx, y-i*dy) && m.Get(x-i*dx, y-i*dy) && sc[0] <= limit {
		sc[0]++
		i++
	}
	if sc[0] > limit {
		return sc, 0, false
	}

	i = 1
	for m.in(x+i*dx, y+i*dy) && m.Get(x+i*dx, y+i*dy) {
		sc[2]++
		i++
	}
	for m.in(x+i*dx, y+i*dy) && !m.Get(x+i*dx, y+i*dy) && sc[3] <= limit {
		sc[3]++
		i++
	}
	if !m.in(x+i*dx, y+i*dy) || sc[3] > limit {
		return sc, 0, false
	}
	for m.in(x+i*dx, y+i*dy) && m.Get(x+i*dx, y+i*dy) && sc[4] <= limit {
		sc[4]++
		i++
	}
	if sc[4] > limit {
		return sc, 0, false
	}
	return sc, i, true
}

func total(sc [5]int) int {
	return sc[0] + sc[1] + sc[2] + sc[3] + sc[4]
}

// crossCheck confirms a pattern through (x, y) along (dx, dy) whose
// row total was orig, allowing a difference of slack*orig.  It returns
// the centre offset from (x, y) along the direction.
func (f *finder) crossCheck(x, y, dx, dy, limit, orig int, slack float64) (float64, bool) {
	sc, end, ok := f.runs(x, y, dx, dy, limit)
	if !ok || math.Abs(float64(total(sc)-orig)) >= slack*float64(orig) ||
		!ratio(sc, 0.5) {
		return 0, false
	}
	return centreFromEnd(sc, end), true
}

// candidate checks a possible pattern ending before x in row y and
// records its centre.
func (f *finder) candidate(sc [5]int, x, y int) bool {
	orig := total(sc)
	cx := centreFromEnd(sc, x)
	off, ok := f.crossCheck(int(cx), y, 0, 1, sc[2], orig, 0.4)
	if !ok {
		return false
	}
	cy := float64(y) + off
	off, ok = f.crossCheck(int(cx), int(cy), 1, 0, sc[2], orig, 0.2)
	if !ok {
		return false
	}
	cx = float64(int(cx)) + off
	if d, _, ok := f.runs(int(cx), int(cy), 1, 1, math.MaxInt32); !ok || !ratio(d, 0.75) {
		return false
	}
	m := float64(orig) / 7
	for _, p := range f.centres {
		if p.near(cx, cy, m) {
			p.merge(cx, cy, m)
			return true
		}
	}
	f.centres = append(f.centres, &pattern{X: cx, Y: cy, Module: m, Count: 1})
	return true
}

// corner describes three finder centres as a candidate symbol.
type corner struct {
	tl, tr, bl *pattern
	cos        float64 // cosine of the angle at tl
	legs       float64 // ratio of the shorter leg to the longer one
}

// score is 0 for a perfect square corner and grows with distortion.
func (c *corner) score() float64 {
	return math.Abs(c.cos) + math.Abs(1-c.legs)
}

// newCorner orders a, b and c into top-left, top-right and
// bottom-left: top-left is opposite the longest side, and the other
// two are swapped if needed so that the symbol is not mirrored.
func newCorner(a, b, c *pattern) *corner {
	ab, bc, ac := dist(a, b), dist(b, c), dist(a, c)
	var tl, p, q *pattern
	switch {
	case bc >= ab && bc >= ac:
		tl, p, q = a, b, c
	case ac >= ab && ac >= bc:
		tl, p, q = b, a, c
	default:
		tl, p, q = c, a, b
	}
	// p is bottom-left if (q-tl)x(p-tl) is positive in image
	// coordinates, y pointing down.
	if (q.X-tl.X)*(p.Y-tl.Y)-(q.Y-tl.Y)*(p.X-tl.X) < 0 {
		p, q = q, p
	}
	ux, uy := q.X-tl.X, q.Y-tl.Y
	vx, vy := p.X-tl.X, p.Y-tl.Y
	lu, lv := math.Hypot(ux, uy), math.Hypot(vx, vy)
	r := &corner{tl: tl, tr: q, bl: p}
	if lu == 0 || lv == 0 {
		r.cos = 1
		return r
	}
	r.cos = (ux*vx + uy*vy) / (lu * lv)
	r.legs = min(lu, lv) / max(lu, lv)
	return r
}

// bestCorner returns the triple of finder centres that best forms the
// corner of a symbol, or nil if fewer than three centres have similar
// module sizes.
func bestCorner(ps []*pattern) *corner {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Module < ps[j].Module })
	var best *corner
	for i := 0; i < len(ps)-2; i++ {
		for j := i + 1; j < len(ps)-1; j++ {
			for k := j + 1; k < len(ps); k++ {
				if ps[k].Module > ps[i].Module*maxModuleRatio {
					break
				}
				c := newCorner(ps[i], ps[j], ps[k])
				if best == nil || c.score() < best.score() {
					best = c
				}
			}
		}
	}
	return best
}
