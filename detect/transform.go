// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

// A Point is a position in image or symbol coordinates.
type Point struct {
	X, Y float64
}

// A Transform is a projective map of the plane, a 3x3 matrix applied
// to column vectors (x, y, 1).
type Transform [3][3]float64

// Apply maps (x, y) through t.
func (t *Transform) Apply(x, y float64) (float64, float64) {
	w := t[2][0]*x + t[2][1]*y + t[2][2]
	return (t[0][0]*x + t[0][1]*y + t[0][2]) / w,
		(t[1][0]*x + t[1][1]*y + t[1][2]) / w
}

// Mul returns the transform applying u, then t.
func (t *Transform) Mul(u *Transform) Transform {
	var r Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += t[i][k] * u[k][j]
			}
		}
	}
	return r
}

// adjugate returns the adjugate of t, its inverse up to scale.
func (t *Transform) adjugate() Transform {
	return Transform{
		{t[1][1]*t[2][2] - t[1][2]*t[2][1],
			t[0][2]*t[2][1] - t[0][1]*t[2][2],
			t[0][1]*t[1][2] - t[0][2]*t[1][1]},
		{t[1][2]*t[2][0] - t[1][0]*t[2][2],
			t[0][0]*t[2][2] - t[0][2]*t[2][0],
			t[0][2]*t[1][0] - t[0][0]*t[1][2]},
		{t[1][0]*t[2][1] - t[1][1]*t[2][0],
			t[0][1]*t[2][0] - t[0][0]*t[2][1],
			t[0][0]*t[1][1] - t[0][1]*t[1][0]},
	}
}

// SquareToQuad returns the transform mapping the corners of the unit
// square (0,0), (1,0), (1,1), (0,1) to q[0], q[1], q[2], q[3].
// It is affine when q is a parallelogram.
func SquareToQuad(q [4]Point) Transform {
	dx3 := q[0].X - q[1].X + q[2].X - q[3].X
	dy3 := q[0].Y - q[1].Y + q[2].Y - q[3].Y
	if dx3 == 0 && dy3 == 0 {
		return Transform{
			{q[1].X - q[0].X, q[2].X - q[1].X, q[0].X},
			{q[1].Y - q[0].Y, q[2].Y - q[1].Y, q[0].Y},
			{0, 0, 1},
		}
	}
	dx1, dx2 := q[1].X-q[2].X, q[3].X-q[2].X
	dy1, dy2 := q[1].Y-q[2].Y, q[3].Y-q[2].Y
	den := dx1*dy2 - dx2*dy1
	g := (dx3*dy2 - dx2*dy3) / den
	h := (dx1*dy3 - dx3*dy1) / den
	return Transform{
		{q[1].X - q[0].X + g*q[1].X, q[3].X - q[0].X + h*q[3].X, q[0].X},
		{q[1].Y - q[0].Y + g*q[1].Y, q[3].Y - q[0].Y + h*q[3].Y, q[0].Y},
		{g, h, 1},
	}
}

// QuadToQuad returns the transform mapping src[i] to dst[i].
func QuadToQuad(src, dst [4]Point) Transform {
	s, d := SquareToQuad(src), SquareToQuad(dst)
	inv := s.adjugate()
	return d.Mul(&inv)
}
