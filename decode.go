// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/encoding/charmap"

	"github.com/cupsmanager/cupqr/coding"
	"github.com/cupsmanager/cupqr/detect"
)

// DefaultMaxDimension is the largest image side a zero Decoder works
// on without scaling the image down.
const DefaultMaxDimension = 2048

// DefaultMaxPixels is the largest image, in pixels, a zero Decoder
// accepts from Scan.
const DefaultMaxPixels = 1 << 25

// A Decoder finds a QR code in an image and decodes it.  The zero
// Decoder uses the hybrid binarizer and DefaultMaxDimension.
type Decoder struct {
	// Binarizer separates black from white.  If nil, detect.Hybrid.
	Binarizer detect.Binarizer

	// MaxDimension is the longest image side in pixels.  Larger
	// images are scaled down first.  If 0, DefaultMaxDimension; if
	// negative, images are never scaled.
	MaxDimension int

	// MaxPixels limits the width times height of images read by
	// Scan.  Larger images fail with ErrLargeImage before their pixels
	// are decoded.  If 0, DefaultMaxPixels; if negative, no limit.
	MaxPixels int
}

var defaultDecoder Decoder

// Decode finds a QR code in img using the default Decoder and returns
// its payload.
func Decode(img image.Image) ([]byte, error) {
	return defaultDecoder.Decode(img)
}

// Scan decodes an encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP) and
// returns the payload of the QR code in it, using the default Decoder.
func Scan(data []byte) ([]byte, error) {
	return defaultDecoder.Scan(data)
}

// Decode finds a QR code in img and returns its payload.
func (d *Decoder) Decode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrArgs
	}
	g := d.shrink(detect.Luminance(img))
	b := d.Binarizer
	if b == nil {
		b = detect.Hybrid{}
	}
	c, err := detect.Detect(b.Binarize(g))
	if err != nil {
		return nil, err
	}
	return coding.Decode(c)
}

// Scan decodes an encoded image and returns the payload of the QR code
// in it.  Data in an unknown or broken image format yields an error
// matching ErrImage.
func (d *Decoder) Scan(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}
	lim := d.MaxPixels
	if lim == 0 {
		lim = DefaultMaxPixels
	}
	if lim > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(lim) {
		return nil, fmt.Errorf("%w: %dx%d", ErrLargeImage, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}
	return d.Decode(img)
}

// shrink scales g down so that neither side exceeds MaxDimension.
func (d *Decoder) shrink(g *image.Gray) *image.Gray {
	lim := d.MaxDimension
	if lim == 0 {
		lim = DefaultMaxDimension
	}
	r := g.Bounds()
	w, h := r.Dx(), r.Dy()
	if lim < 0 || w <= lim && h <= lim {
		return g
	}
	if w >= h {
		w, h = lim, max(1, h*lim/w)
	} else {
		w, h = max(1, w*lim/h), lim
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), g, r, draw.Src, nil)
	return dst
}

// Text returns payload as a string: unchanged if it is valid UTF-8,
// otherwise read as ISO 8859-1, the default QR byte mode character set.
func Text(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload)
	}
	return string(s)
}
