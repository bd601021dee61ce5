// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// EncodeSVG writes an SVG image displaying the code to w.  The view box
// is measured in QR pixels, quiet zone included, and the image is
// c.Scale image pixels per QR pixel.  Each horizontal run of black
// pixels is one rectangle of the path.
func (c *Code) EncodeSVG(w io.Writer) error {
	n, err := c.side()
	if err != nil {
		return err
	}
	if w == nil {
		return ErrArgs
	}
	siz := c.Size
	bord := c.Border
	bg, fg := "#fff", "#000"
	if c.Reverse {
		bg, fg = fg, bg
	}
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, `<?xml version="1.0" standalone="yes"?>
<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="%s" d="`,
		n, n, siz+2*bord, siz+2*bord, bg, fg)
	for y := 0; y < siz; y++ {
		for x := 0; x < siz; {
			for x < siz && !c.Black(x, y) {
				x++
			}
			if x == siz {
				break
			}
			s := x
			for x < siz && c.Black(x, y) {
				x++
			}
			fmt.Fprintf(b, "M%d %dh%dv1h-%dz", s+bord, y+bord, x-s, x-s)
		}
	}
	b.WriteString("\"/>\n</svg>\n")
	return b.Flush()
}

// SVG returns an SVG image displaying the code, at least minSize image
// pixels on a side.  The scale is the smallest whole number of image
// pixels per QR pixel that reaches minSize, or c.Scale if minSize is
// not positive.  SVG returns nil if c is not valid.
func (c *Code) SVG(minSize int) []byte {
	if !c.isValid() {
		return nil
	}
	cc := *c
	if minSize > 0 {
		pix := c.Size + 2*c.Border
		cc.Scale = max(1, (minSize+pix-1)/pix)
	}
	var b bytes.Buffer
	if err := cc.EncodeSVG(&b); err != nil {
		return nil
	}
	return b.Bytes()
}

// Generate encodes payload at the given level and returns it as an SVG
// image at least minSize pixels on a side.
func Generate(payload []byte, level Level, minSize int) ([]byte, error) {
	if minSize < 0 {
		return nil, ErrArgs
	}
	c, err := Encode(payload, level)
	if err != nil {
		return nil, err
	}
	svg := c.SVG(minSize)
	if svg == nil {
		return nil, ErrLargeImage
	}
	return svg, nil
}
