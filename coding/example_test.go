// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding_test

import (
	"fmt"
	"log"

	"github.com/cupsmanager/cupqr/coding"
)

func Example() {
	data := []byte("Hello, world!")
	v, err := coding.ChooseVersion(len(data), coding.M)
	if err != nil {
		log.Fatalln(err)
	}
	c, err := coding.Encode(v, coding.M, data)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println("version", c.Version, "level", c.Level, "size", c.Size)

	payload, err := coding.Decode(c)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("%s\n", payload)
	// Output:
	// version 1 level M size 21
	// Hello, world!
}

func ExampleVersion_ByteCapacity() {
	for _, l := range []coding.Level{coding.L, coding.M, coding.Q, coding.H} {
		fmt.Println(l, coding.MinVersion.ByteCapacity(l),
			coding.MaxVersion.ByteCapacity(l))
	}
	// Output:
	// L 17 2953
	// M 14 2331
	// Q 11 1663
	// H 7 1273
}
