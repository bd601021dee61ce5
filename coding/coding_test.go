// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import (
	"bytes"
	"errors"
	"go/format"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var levels = [...]Level{L, M, Q, H}

// tables.go is checked in as gen.go | gofmt writes it.
func TestTablesFormatted(t *testing.T) {
	src, err := os.ReadFile("tables.go")
	require.NoError(t, err)
	out, err := format.Source(src)
	require.NoError(t, err)
	assert.Equal(t, string(out), string(src))
}

func TestTables(t *testing.T) {
	for v := MinVersion; v <= MaxVersion; v++ {
		siz := v.Size()
		nmod := siz * siz
		p, err := makePlan(v, L)
		require.NoError(t, err)
		reserved := 0
		for y := 0; y < siz; y++ {
			for x := 0; x < siz; x++ {
				if p.Map[y*((siz+7)>>3)+x>>3]&(0x80>>(x&7)) != 0 {
					reserved++
				}
			}
		}
		assert.Equal(t, v.Bytes()*8+vtab[v].remainder, nmod-reserved,
			"version %v data modules", v)
		for _, l := range levels {
			nblock, check := v.Blocks(l)
			assert.Positive(t, nblock)
			assert.Less(t, nblock*check, v.Bytes())
			assert.Positive(t, v.ByteCapacity(l), "version %v-%v", v, l)
		}
		if v >= 7 {
			assert.NotZero(t, vtab[v].pattern)
			assert.Equal(t, int(v), vtab[v].pattern>>12)
		} else {
			assert.Zero(t, vtab[v].pattern)
		}
	}
	assert.Equal(t, 14, Version(1).ByteCapacity(M))
	assert.Equal(t, 17, Version(1).ByteCapacity(L))
	assert.Equal(t, 1273, Version(40).ByteCapacity(H))
	assert.Equal(t, 2953, Version(40).ByteCapacity(L))
	assert.Equal(t, []int{6, 22, 38}, Version(7).Alignment())
	assert.Nil(t, Version(1).Alignment())
}

func TestWalkVisitsEveryDataModule(t *testing.T) {
	for _, v := range []Version{1, 2, 6, 7, 14, 21, 40} {
		p, err := makePlan(v, M)
		require.NoError(t, err)
		seen := make(map[[2]int]bool)
		p.walk(func(off int, bit byte) {
			k := [2]int{off, int(bit)}
			assert.False(t, seen[k], "version %v: module visited twice", v)
			seen[k] = true
			assert.Zero(t, p.Map[off]&bit)
		})
		assert.Len(t, seen, v.Bytes()*8+vtab[v].remainder)
	}
}

func TestVersionForSize(t *testing.T) {
	for v := MinVersion; v <= MaxVersion; v++ {
		got, err := VersionForSize(v.Size())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, siz := range []int{0, 17, 20, 22, 23, 24, 178, 181} {
		_, err := VersionForSize(siz)
		assert.ErrorIs(t, err, ErrVersion, "size %d", siz)
	}
}

func TestChooseVersion(t *testing.T) {
	for _, l := range levels {
		prev := MinVersion
		for n := 0; n <= MaxVersion.ByteCapacity(l); n += 7 {
			v, err := ChooseVersion(n, l)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, prev, "level %v, %d bytes", l, n)
			assert.LessOrEqual(t, n, v.ByteCapacity(l))
			if v > MinVersion {
				assert.Greater(t, n, (v - 1).ByteCapacity(l))
			}
			prev = v
		}
		_, err := ChooseVersion(MaxVersion.ByteCapacity(l)+1, l)
		assert.ErrorIs(t, err, ErrCapacity)
	}
	_, err := ChooseVersion(1, Level(4))
	assert.ErrorIs(t, err, ErrLevel)
}

func TestBitsWrite(t *testing.T) {
	b := NewBits(1, M)
	b.Write(byteMode, 4)
	b.Write(2, 8)
	b.WriteBytes([]byte("hi"))
	assert.Equal(t, 28, b.Bits())
	b.padTo(4, 64)
	assert.Equal(t, []byte{0x40, 0x26, 0x86, 0x90, 0xec, 0x11, 0xec, 0x11},
		b.Bytes())

	s := NewBitStream(b.Bytes())
	assert.Equal(t, uint32(byteMode), s.Read(4))
	assert.Equal(t, uint32(2), s.Read(8))
	assert.Equal(t, uint32('h'), s.Read(8))
	assert.Equal(t, 64-20, s.Remaining())
}

func TestInterleave(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	dst := make([]byte, len(src))
	interleave(dst, src, 3)
	// blocks {1,2,3} {4,5,6,7} {8,9,10,11}
	assert.Equal(t, []byte{1, 4, 8, 2, 5, 9, 3, 6, 10, 7, 11}, dst)
	back := make([]byte, len(src))
	deinterleave(back, dst, 3)
	assert.Equal(t, src, back)
}

func TestEncodeDeterministic(t *testing.T) {
	data := []byte("https://example.com/cups/42")
	a, err := Encode(3, Q, data)
	require.NoError(t, err)
	b, err := Encode(3, Q, data)
	require.NoError(t, err)
	assert.Equal(t, a.Bitmap, b.Bitmap)
	assert.Equal(t, a.Mask, b.Mask)
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(1, M, make([]byte, 15))
	assert.ErrorIs(t, err, ErrCapacity)
	_, err = Encode(0, M, nil)
	assert.ErrorIs(t, err, ErrVersion)
	_, err = Encode(1, Level(-1), nil)
	assert.ErrorIs(t, err, ErrLevel)
}

// withMask returns a copy of c with mask m applied instead of c.Mask.
func withMask(t *testing.T, c *Code, m Mask) *Code {
	p, err := makePlan(c.Version, c.Level)
	require.NoError(t, err)
	cc := *c
	cc.Bitmap = make([]byte, len(c.Bitmap))
	xor(cc.Bitmap, c.Bitmap, p.Pattern[c.Mask])
	xor(cc.Bitmap, cc.Bitmap, p.Pattern[m])
	cc.Mask = m
	return &cc
}

func TestMaskChoice(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for _, v := range []Version{1, 4, 10} {
		for _, l := range levels {
			data := make([]byte, r.Intn(v.ByteCapacity(l)+1))
			r.Read(data)
			c, err := Encode(v, l, data)
			require.NoError(t, err)
			pen := c.Penalty()
			for m := Mask(0); m < 8; m++ {
				p := withMask(t, c, m).Penalty()
				if m < c.Mask {
					assert.Greater(t, p, pen, "%v-%v mask %d", v, l, m)
				} else {
					assert.GreaterOrEqual(t, p, pen, "%v-%v mask %d", v, l, m)
				}
			}
			lv, mask, err := ReadFormat(c)
			require.NoError(t, err)
			assert.Equal(t, l, lv)
			assert.Equal(t, c.Mask, mask)
		}
	}
}

func TestPenalty(t *testing.T) {
	// All white 21x21: 42 runs of 21, 400 boxes, 100% off balance.
	c := NewCode(21)
	assert.Equal(t, 42*(21-2)+400*3+90, c.Penalty())

	// One finder-like row with light modules on both sides.
	c = NewCode(21)
	for i, b := range []bool{true, false, true, true, true, false, true} {
		c.Set(7+i, 10, b)
	}
	withFinder := c.Penalty()
	c.Set(7, 10, false)
	assert.Greater(t, withFinder, c.Penalty())
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for _, v := range []Version{1, 2, 5, 7, 9, 10, 20, 27, 40} {
		for _, l := range levels {
			data := make([]byte, r.Intn(v.ByteCapacity(l)+1))
			r.Read(data)
			c, err := Encode(v, l, data)
			require.NoError(t, err)
			got, err := Decode(c)
			require.NoError(t, err, "version %v-%v", v, l)
			assert.True(t, bytes.Equal(data, got), "version %v-%v", v, l)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	c, err := Encode(1, H, nil)
	require.NoError(t, err)
	got, err := Decode(c)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// codewordModules returns, for each codeword of p, the position of its
// first module.
func codewordModules(p *Plan) [][2]int {
	var mods [][2]int
	n := 0
	p.walk(func(off int, bit byte) {
		if n&7 == 0 && n>>3 < p.Version.Bytes() {
			mods = append(mods, [2]int{off, int(bit)})
		}
		n++
	})
	return mods
}

func TestDecodeCorrectsErrors(t *testing.T) {
	// Version 1-H is a single block with 17 check bytes.
	data := []byte("cup 42")
	c, err := Encode(1, H, data)
	require.NoError(t, err)
	p, err := makePlan(1, H)
	require.NoError(t, err)
	mods := codewordModules(p)
	require.Len(t, mods, 26)

	damage := func(n int) *Code {
		cc := *c
		cc.Bitmap = append([]byte(nil), c.Bitmap...)
		for _, m := range mods[:n] {
			cc.Bitmap[m[0]] ^= byte(m[1])
		}
		return &cc
	}

	got, err := Decode(damage(8))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// One error past capacity is at distance 9 from the original and at
	// least 9 from any other codeword, so it is always detected.
	_, err = Decode(damage(9))
	var ee *ECCError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, 0, ee.Block)
	assert.Equal(t, 8, ee.Capacity)
	assert.Equal(t, 9, ee.Errors)
}

func TestDecodeFormatCopy(t *testing.T) {
	c, err := Encode(2, M, []byte("Hello, world!"))
	require.NoError(t, err)
	a, b := formatPixels(c.Size)
	for _, xy := range a {
		c.Set(xy[0], xy[1], false)
	}
	got, err := Decode(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, world!"), got)

	for _, xy := range b {
		c.Set(xy[0], xy[1], false)
	}
	_, err = Decode(c)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeVersionInfo(t *testing.T) {
	c, err := Encode(8, L, []byte("version eight"))
	require.NoError(t, err)
	v, ok := ReadVersion(c)
	require.True(t, ok)
	assert.Equal(t, Version(8), v)

	// A grid the size of version 7 carrying version 8 information.
	a, b := versionPixels(c.Size)
	c7 := NewCode(Version(7).Size())
	a7, b7 := versionPixels(c7.Size)
	for i := range a {
		c7.Set(a7[i][0], a7[i][1], c.Black(a[i][0], a[i][1]))
		c7.Set(b7[i][0], b7[i][1], c.Black(b[i][0], b[i][1]))
	}
	_, err = Decode(c7)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeBadSize(t *testing.T) {
	_, err := Decode(NewCode(22))
	assert.ErrorIs(t, err, ErrVersion)
}

func TestParse(t *testing.T) {
	v := Version(1)
	ok := []byte{0x40, 0x26, 0x86, 0x90, 0xec, 0x11, 0xec, 0x11}
	got, err := parse(ok, v)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	for name, tc := range map[string]struct {
		data []byte
		want error
	}{
		"numeric mode": {[]byte{0x10, 0x20, 0x00}, ModeError(1)},
		"empty":        {nil, ErrBitstream},
		"short count":  {[]byte{0x40}, ErrBitstream},
		"overrun":      {[]byte{0x40, 0x56, 0x86}, ErrBitstream},
		"terminator":   {[]byte{0x40, 0x26, 0x86, 0x98, 0xec}, ErrBitstream},
		"padding":      {[]byte{0x40, 0x26, 0x86, 0x90, 0x11, 0xec}, ErrBitstream},
	} {
		_, err := parse(tc.data, v)
		assert.ErrorIs(t, err, tc.want, name)
	}
}
