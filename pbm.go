// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bufio"
	"io"
	"strconv"
)

// EncodePBM writes a raw (P4) Portable Bit Map image displaying the
// code to w, for use with netpbm.  c.Reverse swaps black and white.
func (c *Code) EncodePBM(w io.Writer) error {
	if w == nil {
		return ErrArgs
	}
	m, err := c.paletted()
	if err != nil {
		return err
	}
	n := m.Rect.Dx()
	b := bufio.NewWriter(w)
	ls := strconv.Itoa(n)
	if _, err := b.WriteString("P4\n" + ls + " " + ls + "\n"); err != nil {
		return err
	}
	row := make([]byte, (n+7)/8)
	for y := 0; y < n; y++ {
		packRow(row, m.Pix[y*m.Stride:y*m.Stride+n])
		if _, err := b.Write(row); err != nil {
			return err
		}
	}
	return b.Flush()
}

// packRow packs palette indices, one per pixel, into dst at one bit
// per pixel, most significant bit first.  Index 1 sets the bit, as 1
// is black in PBM.
func packRow(dst, pix []uint8) {
	for i := range dst {
		dst[i] = 0
	}
	for x, p := range pix {
		dst[x>>3] |= (p & 1) << (7 - x&7)
	}
}
