// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gf256

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var qrField = NewField(0x11d, 2)

func TestFieldTables(t *testing.T) {
	f := qrField
	for i := 1; i < 256; i++ {
		x := byte(i)
		assert.Equal(t, x, f.Exp(f.Log(x)), "exp(log(%d))", i)
		assert.Equal(t, byte(1), f.Mul(x, f.Inv(x)), "%d * inv", i)
		assert.Equal(t, x, f.Div(f.Mul(x, 7), 7), "(%d*7)/7", i)
	}
	assert.Equal(t, -1, f.Log(0))
	assert.Equal(t, byte(0), f.Inv(0))
	assert.Equal(t, byte(0), f.Mul(0, 5))
	assert.Equal(t, byte(0x1d), f.Exp(8))
}

func TestFieldMulMatchesShiftAdd(t *testing.T) {
	f := qrField
	for x := 0; x < 256; x += 3 {
		for y := 0; y < 256; y += 5 {
			assert.Equal(t, byte(mul(x, y, 0x11d)), f.Mul(byte(x), byte(y)))
		}
	}
}

func TestNewFieldPanics(t *testing.T) {
	assert.Panics(t, func() { NewField(0x11b+0x100, 2) }) // out of range
	assert.Panics(t, func() { NewField(0x100, 2) })       // reducible
	assert.Panics(t, func() { NewField(0x11b, 1) })       // generator 1
}

// "HELLO WORLD" as a version 1-M QR code.
var (
	helloData = []byte{32, 91, 11, 120, 209, 114, 220, 77, 67, 64,
		236, 17, 236, 17, 236, 17}
	helloCheck = []byte{196, 35, 39, 119, 235, 215, 231, 226, 93, 23}
)

func TestRSEncoder(t *testing.T) {
	check := make([]byte, len(helloCheck))
	NewRSEncoder(qrField, len(check)).ECC(helloData, check)
	assert.Equal(t, helloCheck, check)
}

func TestRSEncoderShortCheck(t *testing.T) {
	rs := NewRSEncoder(qrField, 10)
	assert.Panics(t, func() { rs.ECC(helloData, make([]byte, 9)) })
}

func codeword(data []byte, c int) []byte {
	msg := make([]byte, len(data)+c)
	copy(msg, data)
	NewRSEncoder(qrField, c).ECC(data, msg[len(data):])
	return msg
}

func TestRSDecoderClean(t *testing.T) {
	msg := codeword(helloData, 10)
	n, err := NewRSDecoder(qrField, 10).Correct(msg)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRSDecoderCorrects(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, c := range []int{7, 10, 18, 30} {
		rs := NewRSDecoder(qrField, c)
		for trial := 0; trial < 50; trial++ {
			data := make([]byte, 20+r.Intn(100))
			r.Read(data)
			want := codeword(data, c)
			nerr := 1 + r.Intn(rs.Capacity())
			msg := append([]byte(nil), want...)
			for _, i := range r.Perm(len(msg))[:nerr] {
				msg[i] ^= byte(1 + r.Intn(255))
			}
			n, err := rs.Correct(msg)
			require.NoError(t, err, "c=%d errors=%d", c, nerr)
			assert.Equal(t, nerr, n)
			assert.Equal(t, want, msg)
		}
	}
}

func TestRSDecoderTooManyErrors(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	rs := NewRSDecoder(qrField, 10)
	failed := 0
	for trial := 0; trial < 100; trial++ {
		want := codeword(helloData, 10)
		msg := append([]byte(nil), want...)
		for _, i := range r.Perm(len(msg))[:rs.Capacity()+1] {
			msg[i] ^= byte(1 + r.Intn(255))
		}
		bad := append([]byte(nil), msg...)
		if _, err := rs.Correct(msg); err != nil {
			assert.ErrorIs(t, err, ErrTooManyErrors)
			assert.Equal(t, bad, msg, "message changed on failure")
			failed++
		} else {
			assert.NotEqual(t, want, msg)
		}
	}
	assert.NotZero(t, failed)
}
