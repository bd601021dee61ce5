// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import (
	"errors"
	"math/bits"

	"github.com/cupsmanager/cupqr/gf256"
)

// maxInfoDistance is the number of bit errors corrected in the format
// and version information.  Both codes have minimum distance 7 or more.
const maxInfoDistance = 3

// ReadFormat reads the error correction level and mask from the two
// copies of the format information in c.  The copy closest to a valid
// format word wins.
func ReadFormat(c *Code) (Level, Mask, error) {
	a, b := formatPixels(c.Size)
	best, bl, bm := maxInfoDistance+1, L, Mask(0)
	for _, pix := range [2][15][2]int{a, b} {
		var fb uint16
		for i, xy := range pix {
			if c.Black(xy[0], xy[1]) {
				fb |= 1 << i
			}
		}
		for l := range ftab {
			for m, w := range ftab[l] {
				if d := bits.OnesCount16(fb ^ w); d < best {
					best, bl, bm = d, Level(l), Mask(m)
				}
			}
		}
	}
	if best > maxInfoDistance {
		return 0, 0, ErrFormat
	}
	return bl, bm, nil
}

// ReadVersion reads the version information of c, for versions 7 and
// up.  The boolean is false if neither copy is readable.
func ReadVersion(c *Code) (Version, bool) {
	a, b := versionPixels(c.Size)
	best, bv := maxInfoDistance+1, Version(0)
	for _, pix := range [2][18][2]int{a, b} {
		var vb int
		for i, xy := range pix {
			if c.Black(xy[0], xy[1]) {
				vb |= 1 << i
			}
		}
		for v := Version(7); v <= MaxVersion; v++ {
			if d := bits.OnesCount32(uint32(vb ^ vtab[v].pattern)); d < best {
				best, bv = d, v
			}
		}
	}
	return bv, best <= maxInfoDistance
}

// Decode returns the payload of the QR code c, a grid sampled from an
// image.  It fails with ErrVersion if the size is not a QR code size,
// ErrFormat if the format or version information is unreadable,
// *ECCError if a block cannot be corrected, ModeError if the data is
// not a single byte mode segment, and ErrBitstream if the data is
// inconsistent.
func Decode(c *Code) ([]byte, error) {
	v, err := VersionForSize(c.Size)
	if err != nil {
		return nil, err
	}
	if v >= 7 {
		if rv, ok := ReadVersion(c); ok && rv != v {
			return nil, ErrFormat
		}
	}
	l, m, err := ReadFormat(c)
	if err != nil {
		return nil, err
	}
	p, err := makePlan(v, l)
	if err != nil {
		return nil, err
	}

	// unmask and read codewords
	bitmap := make([]byte, len(p.Map))
	xor(bitmap, c.Bitmap, p.Pattern[m])
	raw := p.Deserialise(bitmap)

	data, err := correct(raw, v, l)
	if err != nil {
		return nil, err
	}
	return parse(data, v)
}

// correct de-interleaves the codewords read from a code, corrects
// errors in each block and returns the data bytes.
func correct(raw []byte, v Version, l Level) ([]byte, error) {
	nd := v.DataBytes(l)
	nblock, check := v.Blocks(l)
	data := make([]byte, nd)
	ecc := make([]byte, len(raw)-nd)
	deinterleave(data, raw[:nd], nblock)
	deinterleave(ecc, raw[nd:], nblock)

	rs := gf256.NewRSDecoder(Field, check)
	db := nd / nblock
	short := (db+1)*nblock - nd
	msg := make([]byte, 0, db+1+check)
	dat := data
	for i := 0; i < nblock; i++ {
		if i == short {
			db++
		}
		msg = append(append(msg[:0], dat[:db]...), ecc[i*check:(i+1)*check]...)
		if _, err := rs.Correct(msg); err != nil {
			if errors.Is(err, gf256.ErrTooManyErrors) {
				return nil, &ECCError{Block: i,
					Errors: rs.Capacity() + 1, Capacity: rs.Capacity()}
			}
			return nil, err
		}
		copy(dat, msg[:db])
		dat = dat[db:]
	}
	return data, nil
}

// parse extracts the payload from a single byte mode segment followed
// by the terminator and padding.
func parse(data []byte, v Version) ([]byte, error) {
	s := NewBitStream(data)
	if s.Remaining() < 4 {
		return nil, ErrBitstream
	}
	if mode := s.Read(4); mode != byteMode {
		return nil, ModeError(mode)
	}
	if s.Remaining() < v.countBits() {
		return nil, ErrBitstream
	}
	n := int(s.Read(v.countBits()))
	if s.Remaining() < n*8 {
		return nil, ErrBitstream
	}
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(s.Read(8))
	}

	// terminator, then zeros to the byte boundary
	if s.Read(min(4, s.Remaining())) != 0 {
		return nil, ErrBitstream
	}
	if r := s.pos & 7; r != 0 && s.Read(8-r) != 0 {
		return nil, ErrBitstream
	}
	for pad := uint32(0xec); s.Remaining() >= 8; pad ^= 0xec ^ 0x11 {
		if s.Read(8) != pad {
			return nil, ErrBitstream
		}
	}
	return payload, nil
}
