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

package main

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// codec wraps one algorithm's streaming compress/decompress pair. Every
// implementation reads src to exhaustion and writes the whole result to dst,
// matching the plain stdin/stdout filter contract childproc.Runner drives.
type codec interface {
	compress(src io.Reader, dst io.Writer, level int) error
	decompress(src io.Reader, dst io.Writer) error
}

func lookupCodec(name string) (codec, error) {
	switch name {
	case "gzip":
		return gzipCodec{}, nil
	case "zstd":
		return zstdCodec{}, nil
	case "xz":
		return xzCodec{}, nil
	case "lz4":
		return lz4Codec{}, nil
	case "bzip2":
		return bzip2Codec{}, nil
	}
	return nil, fmt.Errorf("sarc-codec: unknown algorithm %q", name)
}

type gzipCodec struct{}

func (gzipCodec) compress(src io.Reader, dst io.Writer, level int) error {
	lvl := gzip.DefaultCompression
	if level != 0 {
		lvl = level
	}
	w, err := gzip.NewWriterLevel(dst, lvl)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (gzipCodec) decompress(src io.Reader, dst io.Writer) error {
	r, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

type zstdCodec struct{}

func (zstdCodec) compress(src io.Reader, dst io.Writer, level int) error {
	opts := []zstd.EOption{}
	if level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevel(level)))
	}
	w, err := zstd.NewWriter(dst, opts...)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (zstdCodec) decompress(src io.Reader, dst io.Writer) error {
	r, err := zstd.NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

type xzCodec struct{}

func (xzCodec) compress(src io.Reader, dst io.Writer, level int) error {
	w, err := xz.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (xzCodec) decompress(src io.Reader, dst io.Writer) error {
	r, err := xz.NewReader(src)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

type lz4Codec struct{}

func (lz4Codec) compress(src io.Reader, dst io.Writer, level int) error {
	// lz4's CompressionLevel constants are not sequential ints, so -l is
	// honored for gzip/zstd/bzip2 only; lz4 (like xz) always runs at its
	// default level.
	w := lz4.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (lz4Codec) decompress(src io.Reader, dst io.Writer) error {
	r := lz4.NewReader(src)
	_, err := io.Copy(dst, r)
	return err
}

type bzip2Codec struct{}

func (bzip2Codec) compress(src io.Reader, dst io.Writer, level int) error {
	cfg := &bzip2.WriterConfig{}
	if level != 0 {
		cfg.Level = level
	}
	w, err := bzip2.NewWriter(dst, cfg)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (bzip2Codec) decompress(src io.Reader, dst io.Writer) error {
	r, err := bzip2.NewReader(src, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}
