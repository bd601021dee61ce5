// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
)

var palette = color.Palette{color.Gray{0xff}, color.Gray{0x00}}

// PNG returns a PNG image displaying the code, or nil if c is not valid
// or the image would be too large.
func (c *Code) PNG() []byte {
	var b bytes.Buffer
	if err := c.EncodePNG(&b); err != nil {
		return nil
	}
	return b.Bytes()
}

// EncodePNG writes a PNG image displaying the code to w.  The image has
// a two colour palette, stored at one bit per pixel.
func (c *Code) EncodePNG(w io.Writer) error {
	if w == nil {
		return ErrArgs
	}
	m, err := c.paletted()
	if err != nil {
		return err
	}
	e := png.Encoder{CompressionLevel: png.BestCompression}
	return e.Encode(w, m)
}

// paletted draws the code with its quiet zone.  Index 1 is black.
func (c *Code) paletted() (*image.Paletted, error) {
	n, err := c.side()
	if err != nil {
		return nil, err
	}
	m := image.NewPaletted(image.Rect(0, 0, n, n), palette)
	var white, black uint8 = 0, 1
	if c.Reverse {
		white, black = black, white
		for i := range m.Pix {
			m.Pix[i] = white
		}
	}
	scale := c.Scale
	off := c.Border * scale
	for y := 0; y < c.Size; y++ {
		top := (off + y*scale) * m.Stride
		row := m.Pix[top : top+n]
		for x := 0; x < c.Size; x++ {
			if c.Black(x, y) {
				p := row[off+x*scale : off+(x+1)*scale]
				for i := range p {
					p[i] = black
				}
			}
		}
		for i := 1; i < scale; i++ {
			copy(m.Pix[top+i*m.Stride:], row)
		}
	}
	return m, nil
}

// String returns the code as lines of UTF-8 half block characters, two
// rows of pixels per line, quiet zone included.  Black pixels are drawn
// as ink.
func (c *Code) String() string {
	if !c.isValid() {
		return ""
	}
	var blocks = [4]string{" ", "▀", "▄", "█"}
	if c.Reverse {
		blocks = [4]string{"█", "▄", "▀", " "}
	}
	siz, bord := c.Size, c.Border
	var b strings.Builder
	b.Grow((siz + 2*bord + 1) * (siz/2 + bord + 1) * 3)
	for y := -bord; y < siz+bord; y += 2 {
		for x := -bord; x < siz+bord; x++ {
			i := 0
			if c.Black(x, y) {
				i |= 1
			}
			if y+1 < siz+bord && c.Black(x, y+1) {
				i |= 2
			}
			b.WriteString(blocks[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ASCII returns the code drawn with two '#' characters per black pixel
// and two spaces per white one, quiet zone included.
func (c *Code) ASCII() string {
	if !c.isValid() {
		return ""
	}
	siz, bord := c.Size, c.Border
	pix := siz + 2*bord
	ink, paper := byte('#'), byte(' ')
	if c.Reverse {
		ink, paper = paper, ink
	}
	b := make([]byte, (pix*2+1)*pix)
	i := 0
	for y := -bord; y < siz+bord; y++ {
		for x := -bord; x < siz+bord; x++ {
			p := paper
			if c.Black(x, y) {
				p = ink
			}
			_ = b[i+1]
			b[i], b[i+1] = p, p
			i += 2
		}
		b[i] = '\n'
		i++
	}
	return string(b)
}
