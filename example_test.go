// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr_test

import (
	"errors"
	"fmt"

	qr "github.com/cupsmanager/cupqr"
)

func Example() {
	c, err := qr.Encode([]byte("Hello, world!"), qr.M)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("version", c.Version, "size", c.Size)
	payload, err := qr.Scan(c.PNG())
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(qr.Text(payload))
	// Output:
	// version 1 size 21
	// Hello, world!
}

func ExampleCode_String() {
	c, err := qr.Encode([]byte("cup"), qr.L)
	if err != nil {
		fmt.Println(err)
		return
	}
	c.Border = 0
	s := []rune(c.String())
	fmt.Println(string(s[:7]))
	// Output:
	// █▀▀▀▀▀█
}

func ExampleEncode_capacity() {
	_, err := qr.Encode(make([]byte, 1274), qr.H)
	fmt.Println(errors.Is(err, qr.ErrCapacity))
	// Output:
	// true
}
