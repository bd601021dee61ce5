// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package detect locates a QR code in an image and samples its module
// grid.
//
// The pipeline is: Luminance, a Binarizer, a finder pattern search,
// the choice of three centres forming the corner of a symbol, module
// size and dimension estimates, an alignment pattern search for
// versions 2 and up, a perspective Transform and Sample.
package detect // import "github.com/cupsmanager/cupqr/detect"

import (
	"errors"

	"github.com/cupsmanager/cupqr/coding"
)

var (
	ErrNotFound    = errors.New("qr: no finder patterns found")
	ErrPerspective = errors.New("qr: perspective estimation failed")
)

// Alignment search areas, in modules around the estimate.
var allowances = [...]float64{4, 8, 16}

// Detect finds a QR code in m and returns its module grid.  Only Size,
// Stride and Bitmap of the result are set.
func Detect(m *BitMatrix) (*coding.Code, error) {
	f := &finder{m: m}
	centres := f.find()
	if len(centres) < 3 {
		return nil, ErrNotFound
	}
	c := bestCorner(centres)
	if c == nil {
		return nil, ErrNotFound
	}
	if c.legs < minLegRatio || c.cos > maxCos || c.cos < -maxCos {
		return nil, ErrPerspective
	}
	module := moduleSize(m, c)
	if module < minModuleSize {
		return nil, ErrPerspective
	}
	dim := dimension(c, module)
	if dim < minDimension || dim > maxDimension {
		return nil, ErrPerspective
	}

	var align *pattern
	if dim > minDimension {
		x, y := alignmentEstimate(c, dim)
		for _, a := range allowances {
			if align = findAlignment(m, module, x, y, a); align != nil {
				break
			}
		}
	}
	t := symbolTransform(c, align, dim)
	return Sample(m, &t, dim)
}

// Sample reads a dim x dim module grid from m, mapping the centre of
// each module through t.  Points up to one pixel outside the image are
// moved onto its edge, points further out fail with ErrPerspective.
func Sample(m *BitMatrix, t *Transform, dim int) (*coding.Code, error) {
	c := coding.NewCode(dim)
	w, h := float64(m.Width), float64(m.Height)
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			px, py := t.Apply(float64(x)+0.5, float64(y)+0.5)
			if !(px >= -1 && px < w+1 && py >= -1 && py < h+1) {
				return nil, ErrPerspective
			}
			ix := min(max(int(px), 0), m.Width-1)
			iy := min(max(int(py), 0), m.Height-1)
			if m.Get(ix, iy) {
				c.Set(x, y, true)
			}
		}
	}
	return c, nil
}
