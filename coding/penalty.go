// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

// Total penalty is the sum of penalties for runs and boxes
// of same-colour pixels, finder patterns and colour balance.
//
//   - RunP: for non-overlapping runs of n pixels, n>=5 -> n-2
//   - BoxP: for possibly overlapping 2x2 boxes -> 3
//   - FindP: for possibly overlapping finder patterns -> 40
//     The pattern is 1011101 with 0000 on either side;
//     may extend into the quiet zone
//   - BalP: for n% of black pixels -> 10*(ceiling(abs(n-50)/5)-1)
//
// https://www.nayuki.io/page/creating-a-qr-code-step-by-step
const (
	MinRun    = 5  // RunP:  minimum run length
	RunPDelta = -2 // RunP:  add to run length
	BoxPP     = 3  // BoxP:  points per box
	FindPP    = 40 // FindP: points per pattern
	BalPP     = 10 // BalP:  10 points
	BalPMul   = 20 //        for every 5% (1/20)

	findCore  = 0b1011101 // finder pattern without quiet zone
	findLen   = 7
	findQuiet = 4
)

// Penalty returns the penalty value for the code.  The value is used
// for choosing the mask.
func (c *Code) Penalty() int {
	siz := c.Size
	p := 0
	for i := 0; i < siz; i++ {
		p += c.linePenalty(i, true)
		p += c.linePenalty(i, false)
	}

	// BoxP
	dark := 0
	for y := 0; y < siz; y++ {
		for x := 0; x < siz; x++ {
			b := c.Black(x, y)
			if b {
				dark++
			}
			if x+1 < siz && y+1 < siz && b == c.Black(x+1, y) &&
				b == c.Black(x, y+1) && b == c.Black(x+1, y+1) {
				p += BoxPP
			}
		}
	}

	// BalP.  Exact percentages get less penalty.  E.g., 40% and 60%
	// get 10 points like 41%, not 20 like 39%.  No need to handle
	// 50% as c.Size is always odd.
	sq := siz * siz
	dev := abs(dark*BalPMul - sq*BalPMul/2)
	p += ((dev+sq-1)/sq - 1) * BalPP
	return p
}

// linePenalty returns RunP and FindP for row i, or column i if row is
// false.
func (c *Code) linePenalty(i int, row bool) int {
	siz := c.Size
	black := func(j int) bool {
		if row {
			return c.Black(j, i)
		}
		return c.Black(i, j)
	}
	p := 0
	r := 0 // current run length
	var pat uint32
	for j := 0; j < siz; j++ {
		b := black(j)
		if j > 0 && b != black(j-1) {
			if r >= MinRun {
				p += r + RunPDelta
			}
			r = 0
		}
		r++
		pat = pat<<1 | b2u(b)
		if j < findLen-1 || pat&(1<<findLen-1) != findCore {
			continue
		}
		// pattern at j-6..j; pixels outside the code are white
		start := j - findLen + 1
		if !anyBlack(black, start-findQuiet, start, siz) {
			p += FindPP
		}
		if !anyBlack(black, j+1, j+1+findQuiet, siz) {
			p += FindPP
		}
	}
	if r >= MinRun {
		p += r + RunPDelta
	}
	return p
}

func anyBlack(black func(int) bool, from, to, siz int) bool {
	for j := max(from, 0); j < min(to, siz); j++ {
		if black(j) {
			return true
		}
	}
	return false
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
