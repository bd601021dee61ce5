// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

// A BitMatrix is a black and white image packed like a coding.Code:
// one bit per pixel, most significant bit first, 1 is black.
type BitMatrix struct {
	Bits   []byte
	Width  int
	Height int
	Stride int // number of bytes per row
}

// NewBitMatrix returns a white BitMatrix of the given size.
func NewBitMatrix(w, h int) *BitMatrix {
	stride := (w + 7) >> 3
	return &BitMatrix{
		Bits:   make([]byte, stride*h),
		Width:  w,
		Height: h,
		Stride: stride,
	}
}

// Get reports whether the pixel at (x, y) is black.  Pixels outside
// the matrix are white.
func (m *BitMatrix) Get(x, y int) bool {
	return 0 <= x && x < m.Width && 0 <= y && y < m.Height &&
		m.Bits[y*m.Stride+x>>3]&(0x80>>(x&7)) != 0
}

// Set makes the pixel at (x, y) black.
func (m *BitMatrix) Set(x, y int) {
	m.Bits[y*m.Stride+x>>3] |= 0x80 >> (x & 7)
}

// in reports whether (x, y) is inside m.
func (m *BitMatrix) in(x, y int) bool {
	return 0 <= x && x < m.Width && 0 <= y && y < m.Height
}
