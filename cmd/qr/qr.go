// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Qr encodes text as a QR code or decodes QR codes in image files.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/pborman/getopt/v2"
	"golang.org/x/text/encoding/charmap"

	qr "github.com/cupsmanager/cupqr"
	"github.com/cupsmanager/cupqr/detect"
)

var g = struct {
	scale   int      // scale
	border  int      // quiet zone
	minSize int      // minimum image side
	rev     bool     // reverse colours
	fn      string   // filename
	lev     qr.Level // QR correction level
	format  int      // output file format
	latin1  bool     // Latin-1 byte mode
	decode  bool     // decode images
	global  bool     // global binarizer only
}{}

func printUsage(w io.Writer) {
	cl := getopt.CommandLine
	prog := cl.Program()
	ul := make([]string, 1, 4)
	ul[0] = cl.UsageLine() + " [string ...]"
	ml := max(70-len("Usage: ")-1-len(prog), 0)
	for i := 0; len(ul[i]) > ml; i++ {
		s := ul[i]
		n := ml - 1
		for n > 0 && (s[n] != ' ' || s[n+1] != '[') {
			n--
		}
		ul = append(ul, s[n+1:])
		ul[i] = s[:max(n, 0)]
		ml = 60
	}
	fmt.Fprint(w, "QR code generator and scanner\nUsage: ", prog, " ",
		strings.Join(ul, "\n          "), `
If no string is given, data is read from standard input and the final
newline is stripped.  The whole text is encoded as one byte mode
segment, UTF-8 unless -1 is given.  With -d, each argument names an
image file to decode; without arguments, the image is read from
standard input.

`)
	cl.PrintOptions(w)
}

type opt func()

func (opt) String() string                    { return "" }
func (o opt) Set(string, getopt.Option) error { o(); return nil }

func usage() {
	printUsage(os.Stderr)
	os.Exit(2)
}

func help() {
	printUsage(os.Stdout)
	os.Exit(0)
}

func version() {
	fmt.Println(`qr version 0.9.0
Copyright (c) 2011 The Go Authors
Copyright (c) 2025 Vadim Vygonets
Copyright (c) 2024 The cupqr Authors`)
	os.Exit(0)
}

var formats = []string{
	"png", "pngi", "pbm", "pbmi", "svg", "svgi",
	"utf8", "utf8i", "ascii", "asciii",
}

var encoders = [...]func(*qr.Code, io.Writer) error{
	(*qr.Code).EncodePNG,
	(*qr.Code).EncodePBM,
	(*qr.Code).EncodeSVG,
	func(c *qr.Code, w io.Writer) error {
		_, err := fmt.Fprint(w, c)
		return err
	},
	func(c *qr.Code, w io.Writer) error {
		_, err := io.WriteString(w, c.ASCII())
		return err
	},
}

func parseFlags() {
	getopt.SetUsage(usage)
	getopt.Flag(opt(help), 'h', "show this help").SetFlag()
	getopt.Flag(opt(version), 'V', "print version and copyright").SetFlag()
	getopt.Flag(&g.latin1, '1', "convert input to Latin-1")
	getopt.Flag(&g.decode, 'd', "decode QR codes in image files "+
		"(PNG, JPEG, GIF, BMP, TIFF, WebP)")
	getopt.Flag(&g.global, 'G', "with -d, use the global "+
		"binarizer only; by default it is tried after the hybrid one")
	getopt.Flag(&g.border, 'm', `quiet zone pixels [4]`, "margin")
	fno := getopt.Flag(&g.fn, 'o', `output file, or "-" for `+
		`standard output`, "file")
	lev := getopt.Enum('l',
		[]string{"l", "m", "q", "h", "L", "M", "Q", "H"}, "m",
		"error correction level, lowest to highest", "l|m|q|h")
	scale := getopt.Unsigned('s', 4,
		&(getopt.UnsignedLimit{Base: 0, Bits: 16, Min: 1, Max: 1 << 12}),
		`image pixels per QR module ("pixel"); `+
			`ignored for types utf8[i] and ascii[i]`, "scale")
	minSize := getopt.Unsigned('S', 0,
		&(getopt.UnsignedLimit{Base: 0, Bits: 32, Min: 0, Max: 1 << 16}),
		`minimum image side in pixels; raises the scale if needed`,
		"min-size")
	ff := getopt.Enum('t', formats, "", `output format, one of: `+
		strings.Join(formats, ", ")+
		`; types with "i" appended have colours inverted; `+
		`if no -o is given and standard output is a TTY, `+
		`default is utf8, otherwise png`, "type")

	getopt.Parse()
	g.scale = int(*scale)
	g.minSize = int(*minSize)
	g.lev, _ = qr.ParseLevel(*lev)
	if !getopt.IsSet('m') {
		g.border = qr.DefaultBorder
	}
	if g.border < 0 {
		fmt.Fprintln(os.Stderr, "margin must not be negative")
		usage()
	}
	if *ff == "" {
		if !fno.Seen() && isatty.IsTerminal(uintptr(syscall.Stdout)) {
			*ff = "utf8"
		} else {
			*ff = "png"
		}
	}
	for i, v := range formats {
		if *ff == v {
			g.format = i >> 1
			g.rev = i&1 != 0
			break
		}
	}
	if g.fn == "-" {
		g.fn = ""
	}
}

func main() {
	log.SetFlags(0)
	parseFlags()
	if g.decode {
		decode(getopt.Args())
		return
	}

	var s string
	if args := getopt.Args(); len(args) != 0 {
		s = strings.Join(args, " ")
	} else {
		var b strings.Builder
		if _, err := io.Copy(&b, os.Stdin); err != nil {
			log.Fatalln(err)
		}
		s, _ = strings.CutSuffix(
			strings.ReplaceAll(b.String(), "\r\n", "\n"), "\n")
	}
	if g.latin1 {
		var err error
		if s, err = charmap.ISO8859_1.NewEncoder().String(s); err != nil {
			log.Fatalln("text not representable in Latin-1:", err)
		}
	}
	c, err := qr.Encode([]byte(s), g.lev)
	if err != nil {
		log.Fatalln(err)
	}
	write(c)
}

func write(c *qr.Code) {
	var w = os.Stdout
	if g.fn != "" {
		var err error
		if w, err = os.OpenFile(g.fn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
			0666); err != nil {
			log.Fatalln(err)
		}
	}
	c.Scale = g.scale
	c.Reverse = g.rev
	c.Border = g.border
	if pix := c.Size + 2*c.Border; g.minSize > pix*c.Scale {
		c.Scale = (g.minSize + pix - 1) / pix
	}
	err := encoders[g.format](c, w)
	if g.fn != "" && err == nil {
		err = w.Close()
	}
	if err != nil {
		log.Fatalln(err)
	}
}

// decode prints the text of the QR code in each file, or in standard
// input if there are none.
func decode(files []string) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	failed := false
	for _, fn := range files {
		var data []byte
		var err error
		if fn == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(fn)
		}
		if err == nil {
			data, err = scan(data)
		}
		if err != nil {
			log.Println(fn+":", err)
			failed = true
			continue
		}
		if len(files) > 1 {
			fmt.Print(fn, ": ")
		}
		fmt.Println(qr.Text(data))
	}
	if failed {
		os.Exit(1)
	}
}

// scan decodes data with the hybrid binarizer and, failing that, with
// the global one.
func scan(data []byte) ([]byte, error) {
	global := &qr.Decoder{Binarizer: detect.Global{}}
	if g.global {
		return global.Scan(data)
	}
	payload, err := qr.Scan(data)
	if err == nil || errors.Is(err, qr.ErrImage) ||
		errors.Is(err, qr.ErrLargeImage) {
		return payload, err
	}
	if p, gerr := global.Scan(data); gerr == nil {
		return p, nil
	}
	return nil, err
}
