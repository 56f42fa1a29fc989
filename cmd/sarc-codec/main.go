/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command sarc-codec is a stdin-to-stdout compression filter: it speaks the
// plain byte-stream contract childproc.Runner expects from any --compressor/
// --decompressor command, so `sarc --compressor "sarc-codec -c -a zstd"`
// needs no external zstd/xz/lz4/bzip2 binary on PATH.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(argv []string, in io.Reader, out io.Writer) int {
	fs := pflag.NewFlagSet("sarc-codec", pflag.ContinueOnError)
	compress := fs.BoolP("compress", "c", false, "compress stdin to stdout")
	decompress := fs.BoolP("decompress", "d", false, "decompress stdin to stdout")
	algo := fs.StringP("algorithm", "a", "gzip", "gzip|zstd|xz|lz4|bzip2")
	level := fs.IntP("level", "l", 0, "compressor level, 0 selects the algorithm's default")

	if err := fs.Parse(argv); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 7
	}

	if *compress == *decompress {
		fmt.Fprintln(os.Stderr, "sarc-codec: exactly one of -c/-d is required")
		return 1
	}

	codec, err := lookupCodec(*algo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	if *compress {
		err = codec.compress(in, out, *level)
	} else {
		err = codec.decompress(in, out)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sarc-codec:", err.Error())
		return 1
	}
	return 0
}
