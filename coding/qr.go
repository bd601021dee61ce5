// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coding implements low-level QR coding details: the version
// tables, bit streams, symbol layout, masking, and the conversion
// between byte-mode payloads and module matrices in both directions.
package coding // import "github.com/cupsmanager/cupqr/coding"

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cupsmanager/cupqr/gf256"
)

var (
	ErrLevel     = errors.New("qr: invalid level")
	ErrVersion   = errors.New("qr: invalid version")
	ErrCapacity  = errors.New("qr: data too long to encode as QR")
	ErrFormat    = errors.New("qr: format information unrecoverable")
	ErrBitstream = errors.New("qr: malformed bit stream")
)

// Field is the field for QR error correction.
var Field = gf256.NewField(0x11d, 2)

// A Version represents a QR version.
// The version specifies the size of the QR code:
// a QR code with version v has 4v+17 pixels on a side.
// Versions run from 1 to 40: the larger the version, the more
// information the code can store.
type Version int

// Code versions.
const (
	MinVersion Version = 1  // Minimum QR version
	MaxVersion Version = 40 // Maximum QR version
)

func (v Version) String() string { return strconv.Itoa(int(v)) }

func (v Version) valid() bool { return MinVersion <= v && v <= MaxVersion }

// Size returns the number of pixels on a side of a QR code with
// version v.
func (v Version) Size() int { return int(v)*4 + 17 }

// VersionForSize returns the version of a QR code with siz pixels on
// a side.
func VersionForSize(siz int) (Version, error) {
	v := Version((siz - 17) / 4)
	if siz < 21 || (siz-17)%4 != 0 || !v.valid() {
		return 0, ErrVersion
	}
	return v, nil
}

// Alignment returns the alignment pattern centre coordinates of v,
// including 6 for the timing strips, or nil for version 1.
func (v Version) Alignment() []int {
	info := &vtab[v]
	if info.apos == 100 {
		return nil
	}
	pos := []int{6}
	for p := info.apos + 2; p < v.Size(); p += info.astride {
		pos = append(pos, p)
	}
	return pos
}

// Bytes returns the total number of codewords in a QR code with
// version v.
func (v Version) Bytes() int { return vtab[v].bytes }

// DataBytes returns the number of data bytes that can be
// stored in a QR code with the given version and level.
func (v Version) DataBytes(l Level) int {
	vt := &vtab[v]
	lev := vt.level[l]
	return vt.bytes - lev.nblock*lev.check
}

// DataBits returns the number of data bits that can be
// stored in a QR code with the given version and level.
func (v Version) DataBits(l Level) int { return v.DataBytes(l) * 8 }

// Blocks returns the number of Reed-Solomon blocks and check bytes
// per block for the given version and level.
func (v Version) Blocks(l Level) (nblock, check int) {
	lev := vtab[v].level[l]
	return lev.nblock, lev.check
}

// countBits returns the length of the byte mode character count field.
func (v Version) countBits() int {
	if v <= 9 {
		return 8
	}
	return 16
}

// ByteCapacity returns the maximum number of payload bytes a QR code
// with the given version and level can store in byte mode.
func (v Version) ByteCapacity(l Level) int {
	n := (v.DataBits(l) - 4 - v.countBits()) / 8
	if v.countBits() == 8 {
		n = min(n, 0xff)
	}
	return n
}

// ChooseVersion returns the smallest version able to store n payload
// bytes at level l, or ErrCapacity.
func ChooseVersion(n int, l Level) (Version, error) {
	if !l.valid() {
		return 0, ErrLevel
	}
	for v := MinVersion; v <= MaxVersion; v++ {
		if n <= v.ByteCapacity(l) {
			return v, nil
		}
	}
	return 0, ErrCapacity
}

// A Level represents a QR error correction level.
// From least to most tolerant of errors, they are L, M, Q, H.
type Level int

const (
	L Level = iota
	M
	Q
	H
)

func (l Level) String() string {
	if l.valid() {
		return "LMQH"[l : l+1]
	}
	return strconv.Itoa(int(l))
}

func (l Level) valid() bool { return L <= l && l <= H }

// A Mask is one of the eight QR data mask patterns.
type Mask int

// A Code is a square pixel grid.
type Code struct {
	Bitmap []byte // 1 is black, 0 is white
	Size   int    // number of pixels on a side
	Stride int    // number of bytes per row

	// Set by Encode.  Decode reads them from the grid instead.
	Version Version
	Level   Level
	Mask    Mask
}

// NewCode returns a white Code with siz pixels on a side.
func NewCode(siz int) *Code {
	stride := (siz + 7) >> 3
	return &Code{Bitmap: make([]byte, siz*stride), Size: siz, Stride: stride}
}

// Black reports whether the pixel at (x, y) is black.  Pixels outside
// the grid are white.
func (c *Code) Black(x, y int) bool {
	return 0 <= x && x < c.Size && 0 <= y && y < c.Size &&
		c.Bitmap[y*c.Stride+x/8]&(1<<uint(7&^x)) != 0
}

// Set sets the pixel at (x, y).
func (c *Code) Set(x, y int, black bool) {
	off, bit := y*c.Stride+x>>3, byte(0x80)>>(x&7)
	if black {
		c.Bitmap[off] |= bit
	} else {
		c.Bitmap[off] &^= bit
	}
}

// ModeError represents a segment mode other than byte mode.
type ModeError uint8

func (e ModeError) Error() string {
	return fmt.Sprintf("qr: unsupported mode %04b", uint8(e))
}

// ECCError represents a Reed-Solomon block with more errors than its
// check bytes can correct.
type ECCError struct {
	Block    int // index of the block in the symbol
	Errors   int // lower bound on the number of byte errors
	Capacity int // number of byte errors the block can correct
}

func (e *ECCError) Error() string {
	return fmt.Sprintf("qr: block %d: at least %d errors, can correct %d",
		e.Block, e.Errors, e.Capacity)
}

// byteMode is the byte mode indicator.
const byteMode = 0b0100

type Bits struct {
	b    []byte
	nbit int
}

// NewBits returns Bits with enough capacity for a QR code of the
// given version and level.
func NewBits(v Version, l Level) *Bits {
	vt := &vtab[v]
	n := vt.bytes
	if 1 < vt.level[l].nblock {
		n <<= 1
	}
	return &Bits{b: make([]byte, 0, n)}
}

func (b *Bits) Reset() {
	b.b = b.b[:0]
	b.nbit = 0
}

func (b *Bits) Bits() int {
	return b.nbit
}

func (b *Bits) Bytes() []byte {
	if b.nbit%8 != 0 {
		panic("qr: fractional byte")
	}
	return b.b
}

func (b *Bits) growTo(n int) {
	for cap(b.b) < n {
		b.b = append(b.b[:cap(b.b)], 0)[:len(b.b)]
	}
}

// Add adds n bytes to b and returns the added slice.
func (b *Bits) Add(n int) []byte {
	if b.nbit%8 != 0 {
		panic("qr: fractional byte")
	}
	b.growTo(len(b.b) + n)
	start := len(b.b)
	b.b = b.b[:start+n]
	b.nbit = 8 * len(b.b)
	return b.b[start:]
}

// Write adds the nbit low bits of v to b, most significant first.
func (b *Bits) Write(v uint32, nbit int) {
	v <<= 32 - nbit
	if rem := -b.nbit & 7; rem != 0 {
		b.b[len(b.b)-1] |= byte(v >> (32 - rem))
		if rem >= nbit {
			b.nbit += nbit
			return
		}
		b.nbit += rem
		nbit -= rem
		v <<= rem
	}
	for n := nbit; n > 0; n -= 8 {
		b.b = append(b.b, byte(v>>24))
		v <<= 8
	}
	b.nbit += nbit
}

// WriteBytes adds the bytes of s to b.
func (b *Bits) WriteBytes(s []byte) {
	if b.nbit&7 == 0 {
		b.b = append(b.b, s...)
		b.nbit += len(s) * 8
		return
	}
	for _, c := range s {
		b.Write(uint32(c), 8)
	}
}

// padTo adds up to t terminator bits to b, pads it to a byte boundary
// and fills it up to n bits with alternating 0xec and 0x11 bytes.
// n must be a multiple of 8.
func (b *Bits) padTo(t, n int) {
	b.nbit = min(b.nbit+t, n)
	for len(b.b)*8 < b.nbit {
		b.b = append(b.b, 0)
	}
	for pad := byte(0xec); len(b.b) < n>>3; pad ^= 0xec ^ 0x11 {
		b.b = append(b.b, pad)
	}
	b.nbit = len(b.b) * 8
}

// AddCheckBytes adds terminator, padding and checksum to b for the
// given QR version and level.
func (b *Bits) AddCheckBytes(v Version, l Level) {
	nb := v.DataBits(l)
	if b.nbit > nb {
		panic("qr: too much data")
	}
	vt := &vtab[v]
	b.growTo(vt.bytes)
	b.padTo(4, nb)
	nd := nb >> 3

	dat := b.Bytes()
	lev := vt.level[l]
	db := nd / lev.nblock
	short := (db+1)*lev.nblock - nd
	rs := gf256.NewRSEncoder(Field, lev.check)
	for i := 0; i < lev.nblock; i++ {
		if i == short {
			db++
		}
		rs.ECC(dat[:db], b.Add(lev.check))
		dat = dat[db:]
	}

	if len(b.Bytes()) != vt.bytes {
		panic("qr: internal error")
	}
}

// interleave interleaves nblock blocks from src to dst, which must be
// of equal length.  Longer blocks come last.
func interleave(dst, src []byte, nblock int) {
	db := len(src) / nblock
	extra := dst[db*nblock:]
	dst = dst[:db*nblock]
	short := nblock - len(extra)
	for i := 0; i < nblock; i++ {
		for j, v := range src[:db] {
			dst[j*nblock+i] = v
		}
		src = src[db:]
		if i >= short {
			extra[i-short] = src[0]
			src = src[1:]
		}
	}
}

// deinterleave reverses interleave.
func deinterleave(dst, src []byte, nblock int) {
	db := len(src) / nblock
	extra := src[db*nblock:]
	short := nblock - len(extra)
	for i := 0; i < nblock; i++ {
		for j := range dst[:db] {
			dst[j] = src[j*nblock+i]
		}
		dst = dst[db:]
		if i >= short {
			dst[0] = extra[i-short]
			dst = dst[1:]
		}
	}
}

// Permute returns a BitStream reading data and checksum bits in b
// with blocks interleaved for the given QR code version and level.
// The BitStream may use the same underlying buffer.
func (b *Bits) Permute(v Version, l Level) BitStream {
	vt := &vtab[v]
	src := b.Bytes()
	if len(src) != vt.bytes {
		panic("qr: wrong data length")
	}
	dst := src
	if nblock := vt.level[l].nblock; nblock != 1 {
		if cap(src) < len(src)*2 {
			dst = make([]byte, vt.bytes)
		} else {
			dst = src[len(src) : len(src)*2]
		}
		nd := v.DataBytes(l)
		interleave(dst[:nd], src[:nd], nblock)
		interleave(dst[nd:], src[nd:], nblock)
	}
	return NewBitStream(dst)
}

// BitStream reads bits from the underlying buffer.
type BitStream struct {
	b   []byte
	pos int
}

// NewBitStream returns a BitStream reading from b.
func NewBitStream(b []byte) BitStream { return BitStream{b: b} }

// Bytes returns the data underlying s.
func (s *BitStream) Bytes() []byte { return s.b }

// Remaining returns the number of unread bits.
func (s *BitStream) Remaining() int { return len(s.b)*8 - s.pos }

// Next returns the next bit from s as 0 or 1.
// Past end of buffer Next returns 0.
func (s *BitStream) Next() byte {
	var b byte
	if i := s.pos >> 3; i < len(s.b) {
		b = s.b[i] >> (7 &^ s.pos) & 1
		s.pos++
	}
	return b
}

// Read returns the next nbit bits from s, most significant first.
func (s *BitStream) Read(nbit int) uint32 {
	var v uint32
	for i := 0; i < nbit; i++ {
		v = v<<1 | uint32(s.Next())
	}
	return v
}

// Encoder encodes a QR code.
type Encoder struct {
	p *Plan
	b *Bits
}

// NewEncoder returns an Encoder for the given version and level.
func NewEncoder(version Version, level Level) (*Encoder, error) {
	p, err := makePlan(version, level)
	if err != nil {
		return nil, err
	}
	return &Encoder{p: p, b: NewBits(version, level)}, nil
}

// Write adds a byte mode segment holding data to e.
func (e *Encoder) Write(data []byte) error {
	v := e.p.Version
	if len(data) > v.ByteCapacity(e.p.Level) ||
		e.b.Bits()+4+v.countBits()+len(data)*8 > e.p.DataBits {
		return ErrCapacity
	}
	e.b.Write(byteMode, 4)
	e.b.Write(uint32(len(data)), v.countBits())
	e.b.WriteBytes(data)
	return nil
}

func (e *Encoder) Reset() { e.b.Reset() }

// xor xors a and b into dst.  a and b may not be shorter than dst.
// dst and a or b should not overlap unless they are the same slice.
func xor(dst, a, b []byte) {
	a = a[:len(dst)]
	b = b[:len(dst)]
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

// Code returns a QR code containing data written to e.
func (e *Encoder) Code() (*Code, error) {
	if e.b.Bits() > e.p.DataBits {
		return nil, ErrCapacity
	}
	e.b.AddCheckBytes(e.p.Version, e.p.Level)
	bits := e.b.Permute(e.p.Version, e.p.Level)
	// Now we have the checksum bytes and the data bytes.
	// Construct the bitmap consisting of data and checksum bits.
	siz, stride := e.p.Size, (e.p.Size+7)>>3
	data := make([]byte, siz*stride)
	e.p.Serialise(bits, data)

	// Apply masks to the bitmap to construct the actual codes.
	// Choose the code with the smallest penalty, the lowest mask
	// on ties.
	c := &Code{Size: siz, Stride: stride, Bitmap: make([]byte, len(data)),
		Version: e.p.Version, Level: e.p.Level}
	best := make([]byte, len(data)) // best bitmap so far
	pen := 1 << 30                  // largest penalty is < 1<<20
	for m, v := range e.p.Pattern {
		// set bitmap to data bits xor plan bits
		xor(c.Bitmap, data, v)
		if p := c.Penalty(); p < pen {
			best, pen, c.Bitmap = c.Bitmap, p, best
			c.Mask = Mask(m)
		}
	}
	c.Bitmap = best
	return c, nil
}

// Encode encodes data as a single byte mode segment in a QR code with
// the given version and level.
func Encode(version Version, level Level, data []byte) (*Code, error) {
	e, err := NewEncoder(version, level)
	if err != nil {
		return nil, err
	}
	if err := e.Write(data); err != nil {
		return nil, err
	}
	return e.Code()
}

// A version describes metadata associated with a version.
type version struct {
	apos      int // upper left corner of the first alignment box
	astride   int // distance between alignment boxes
	bytes     int // total number of codewords
	remainder int // data pixels left over after the last codeword
	pattern   int // version information, 0 below version 7
	level     [4]level
}

type level struct {
	nblock int
	check  int
}
