// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package qr encodes and decodes QR codes.

Encode packs a payload into a single byte mode segment at the smallest
version that holds it at the requested error correction level.  The
resulting Code renders as an image.Image, PNG, PBM, SVG or text.

Decode and Scan find a QR code in a raster image and return its
payload.  Failures are reported as one of the error values below and
can be told apart with errors.Is and errors.As.
*/
package qr // import "github.com/cupsmanager/cupqr"

import (
	"errors"
	"image"
	"image/color"

	"github.com/cupsmanager/cupqr/coding"
	"github.com/cupsmanager/cupqr/detect"
)

// A Level denotes a QR error correction level.
// From least to most tolerant of errors, they are L, M, Q, H.
type Level int

const (
	L Level = iota // 20% redundant
	M              // 38% redundant
	Q              // 55% redundant
	H              // 65% redundant
)

func (l Level) String() string { return coding.Level(l).String() }

// ParseLevel returns the level named by s, one of "l", "m", "q" or "h"
// in either case.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "l", "L":
		return L, nil
	case "m", "M":
		return M, nil
	case "q", "Q":
		return Q, nil
	case "h", "H":
		return H, nil
	}
	return 0, coding.ErrLevel
}

var (
	ErrArgs       = errors.New("qr: invalid arguments")
	ErrLargeImage = errors.New("qr: image too large")
	ErrImage      = errors.New("qr: unrecognised image")

	ErrCapacity    = coding.ErrCapacity
	ErrFormat      = coding.ErrFormat
	ErrBitstream   = coding.ErrBitstream
	ErrNotFound    = detect.ErrNotFound
	ErrPerspective = detect.ErrPerspective
)

type (
	// ECCError reports a Reed-Solomon block that could not be corrected.
	ECCError = coding.ECCError
	// ModeError reports a segment mode other than byte mode.
	ModeError = coding.ModeError
)

// Default rendering parameters of a Code returned by Encode.
const (
	DefaultScale  = 8
	DefaultBorder = 4
)

// maxSide limits the side of a rendered image in pixels.
const maxSide = 1 << 16

// Encode returns a QR code holding payload at the given error
// correction level, using the smallest version that fits.
func Encode(payload []byte, level Level) (*Code, error) {
	l := coding.Level(level)
	v, err := coding.ChooseVersion(len(payload), l)
	if err != nil {
		return nil, err
	}
	cc, err := coding.Encode(v, l, payload)
	if err != nil {
		return nil, err
	}
	return &Code{
		Bitmap:  cc.Bitmap,
		Size:    cc.Size,
		Stride:  cc.Stride,
		Version: cc.Version,
		Level:   Level(cc.Level),
		Mask:    cc.Mask,
		Scale:   DefaultScale,
		Border:  DefaultBorder,
	}, nil
}

// A Code is a square pixel grid.
// It implements image.Image, PNG, PBM and SVG encoding.
type Code struct {
	Bitmap []byte // 1 is black, 0 is white
	Size   int    // number of pixels on a side
	Stride int    // number of bytes per row

	Version coding.Version
	Level   Level
	Mask    coding.Mask

	Scale   int  // number of image pixels per QR pixel
	Border  int  // width of the quiet zone in QR pixels
	Reverse bool // swap black and white
}

// Black returns true if the pixel at (x,y) is black.
func (c *Code) Black(x, y int) bool {
	return 0 <= x && x < c.Size && 0 <= y && y < c.Size &&
		c.Bitmap[y*c.Stride+x/8]&(1<<uint(7-x&7)) != 0
}

// isValid reports whether the grid and rendering parameters are
// consistent.
func (c *Code) isValid() bool {
	return c != nil && c.Size > 0 && c.Stride >= (c.Size+7)/8 &&
		len(c.Bitmap) >= c.Size*c.Stride && c.Scale > 0 && c.Border >= 0
}

// side returns the side of the rendered image in pixels.
func (c *Code) side() (int, error) {
	if !c.isValid() {
		return 0, ErrArgs
	}
	if c.Size+2*c.Border > maxSide/c.Scale {
		return 0, ErrLargeImage
	}
	return (c.Size + 2*c.Border) * c.Scale, nil
}

// Image returns an Image displaying the code, surrounded by a quiet
// zone of c.Border pixels, or nil if c is not valid.
func (c *Code) Image() image.Image {
	if !c.isValid() {
		return nil
	}
	return &codeImage{c}
}

// codeImage implements image.Image
type codeImage struct {
	*Code
}

var (
	whiteColor color.Color = color.Gray{0xFF}
	blackColor color.Color = color.Gray{0x00}
)

func (c *codeImage) Bounds() image.Rectangle {
	d := (c.Size + 2*c.Border) * c.Scale
	return image.Rect(0, 0, d, d)
}

func (c *codeImage) At(x, y int) color.Color {
	if c.black(x, y) {
		return blackColor
	}
	return whiteColor
}

func (c *codeImage) ColorModel() color.Model {
	return color.GrayModel
}

// black reports the colour of image pixel (x, y), Reverse included.
func (c *Code) black(x, y int) bool {
	if x < 0 || y < 0 {
		return c.Reverse
	}
	return c.Black(x/c.Scale-c.Border, y/c.Scale-c.Border) != c.Reverse
}

// Matrix returns the module grid of c as a coding.Code.
func (c *Code) Matrix() *coding.Code {
	return &coding.Code{
		Bitmap:  c.Bitmap,
		Size:    c.Size,
		Stride:  c.Stride,
		Version: c.Version,
		Level:   coding.Level(c.Level),
		Mask:    c.Mask,
	}
}
