// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gf256

import "errors"

// ErrTooManyErrors is returned by RSDecoder.Correct when the message
// contains more errors than the code can correct.
var ErrTooManyErrors = errors.New("gf256: too many errors")

// An RSDecoder corrects errors in Reed-Solomon codewords produced by
// an RSEncoder with the same field and number of check bytes.
// It holds no per-call state and may be used by multiple goroutines.
type RSDecoder struct {
	f *Field
	c int
}

// NewRSDecoder returns a new Reed-Solomon decoder over the given field
// and number of error correction bytes.
func NewRSDecoder(f *Field, c int) *RSDecoder {
	return &RSDecoder{f: f, c: c}
}

// Capacity returns the number of byte errors the decoder can correct.
func (rs *RSDecoder) Capacity() int { return rs.c / 2 }

// syndromes evaluates msg, most significant coefficient first, at
// α^0 .. α^(c-1), reporting whether all of them are zero.
func (rs *RSDecoder) syndromes(msg []byte) ([]byte, bool) {
	f := rs.f
	s := make([]byte, rs.c)
	zero := true
	for i := range s {
		var v byte
		if i == 0 {
			for _, b := range msg {
				v ^= b
			}
		} else {
			for _, b := range msg {
				v = f.Mul(v, f.exp[i]) ^ b
			}
		}
		s[i] = v
		if v != 0 {
			zero = false
		}
	}
	return s, zero
}

// Correct corrects up to Capacity byte errors in msg, data followed by
// check bytes, in place.  It returns the number of corrected bytes.
// If msg cannot be corrected, it is left unchanged and Correct returns
// ErrTooManyErrors.
func (rs *RSDecoder) Correct(msg []byte) (int, error) {
	if len(msg) <= rs.c || len(msg) > 255 {
		panic("gf256: invalid message length")
	}
	s, ok := rs.syndromes(msg)
	if ok {
		return 0, nil
	}
	f := rs.f

	// Berlekamp-Massey: find the error locator Λ(x), least
	// significant coefficient first, with Λ(0) = 1.
	lambda := make([]byte, 1, rs.c+1)
	lambda[0] = 1
	prev := []byte{1} // Λ before the last length change
	nerr, shift := 0, 1
	last := byte(1) // discrepancy at the last length change
	for n := 0; n < rs.c; n++ {
		d := s[n]
		for i := 1; i <= nerr && i < len(lambda); i++ {
			d ^= f.Mul(lambda[i], s[n-i])
		}
		if d == 0 {
			shift++
			continue
		}
		coef := f.Div(d, last)
		t := append([]byte(nil), lambda...)
		for len(lambda) < len(prev)+shift {
			lambda = append(lambda, 0)
		}
		for i, v := range prev {
			lambda[i+shift] ^= f.Mul(coef, v)
		}
		if 2*nerr <= n {
			nerr = n + 1 - nerr
			prev, last, shift = t, d, 1
		} else {
			shift++
		}
	}
	for len(lambda) > 1 && lambda[len(lambda)-1] == 0 {
		lambda = lambda[:len(lambda)-1]
	}
	if nerr > rs.c/2 || len(lambda)-1 != nerr {
		return 0, ErrTooManyErrors
	}

	// Chien search: position i from the start of msg has locator
	// X = α^(len(msg)-1-i) and Λ(X⁻¹) = 0.
	type root struct {
		pos int
		x   byte // X
		xi  byte // X⁻¹
	}
	roots := make([]root, 0, nerr)
	for i := range msg {
		e := len(msg) - 1 - i
		xi := f.exp[(255-e)%255]
		if evalLow(f, lambda, xi) == 0 {
			roots = append(roots, root{i, f.exp[e], xi})
		}
	}
	if len(roots) != nerr {
		return 0, ErrTooManyErrors
	}

	// Error evaluator Ω(x) = S(x)Λ(x) mod x^c.
	omega := make([]byte, rs.c)
	for i, l := range lambda {
		if l == 0 {
			continue
		}
		for j := 0; i+j < rs.c; j++ {
			omega[i+j] ^= f.Mul(l, s[j])
		}
	}

	// Forney: e_k = Ω(X_k⁻¹) / ∏_{j≠k}(1 + X_j X_k⁻¹).
	fixed := make([]byte, len(msg))
	copy(fixed, msg)
	for k, r := range roots {
		den := byte(1)
		for j, o := range roots {
			if j != k {
				den = f.Mul(den, 1^f.Mul(o.x, r.xi))
			}
		}
		if den == 0 {
			return 0, ErrTooManyErrors
		}
		fixed[r.pos] ^= f.Div(evalLow(f, omega, r.xi), den)
	}
	if _, ok := rs.syndromes(fixed); !ok {
		return 0, ErrTooManyErrors
	}
	copy(msg, fixed)
	return nerr, nil
}

// evalLow evaluates p, least significant coefficient first, at x.
func evalLow(f *Field, p []byte, x byte) byte {
	var v byte
	for i := len(p) - 1; i >= 0; i-- {
		v = f.Mul(v, x) ^ p[i]
	}
	return v
}
