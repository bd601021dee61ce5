// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import "image"

// luma returns the luminance of an opaque 8-bit colour, with the
// weights of color.GrayModel.
func luma(r, g, b uint32) uint8 {
	return uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
}

// Luminance returns the luminance of img as an 8-bit grey image with
// its origin at (0, 0).  Translucent pixels are composited over white.
func Luminance(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[i:i+w])
		}
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			i := src.YOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Y[i:i+w])
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				p := s[x*4 : x*4+4]
				// premultiplied: add the white background
				bg := 0xff - uint32(p[3])
				d[x] = luma(uint32(p[0])+bg, uint32(p[1])+bg, uint32(p[2])+bg)
			}
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				p := s[x*4 : x*4+4]
				a := uint32(p[3])
				bg := 0xff * (0xff - a)
				d[x] = luma((uint32(p[0])*a+bg)/0xff,
					(uint32(p[1])*a+bg)/0xff, (uint32(p[2])*a+bg)/0xff)
			}
		}
	case *image.Paletted:
		pal := make([]uint8, len(src.Palette))
		for i, c := range src.Palette {
			pal[i] = lumaOver(c.RGBA())
		}
		for y := 0; y < h; y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				if int(s[x]) < len(pal) {
					d[x] = pal[s[x]]
				} else {
					d[x] = 0xff
				}
			}
		}
	default:
		for y := 0; y < h; y++ {
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				d[x] = lumaOver(img.At(b.Min.X+x, b.Min.Y+y).RGBA())
			}
		}
	}
	return dst
}

// lumaOver returns the luminance of a 16-bit premultiplied colour
// composited over white.
func lumaOver(r, g, b, a uint32) uint8 {
	bg := 0xffff - a
	return luma((r+bg)>>8, (g+bg)>>8, (b+bg)>>8)
}
