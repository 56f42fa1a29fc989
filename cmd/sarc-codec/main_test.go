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
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("codec round trips", func() {
	for _, algo := range []string{"gzip", "zstd", "xz", "lz4", "bzip2"} {
		algo := algo
		It("compresses and decompresses through "+algo, func() {
			c, err := lookupCodec(algo)
			Expect(err).ToNot(HaveOccurred())

			payload := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 64)

			var compressed bytes.Buffer
			Expect(c.compress(strings.NewReader(payload), &compressed, 0)).To(Succeed())

			var roundTripped bytes.Buffer
			Expect(c.decompress(&compressed, &roundTripped)).To(Succeed())

			Expect(roundTripped.String()).To(Equal(payload))
		})
	}

	It("rejects an unknown algorithm", func() {
		_, err := lookupCodec("rot13")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("run", func() {
	It("round-trips stdin to stdout via -c then -d", func() {
		payload := "hello, sarc-codec"

		var compressed bytes.Buffer
		code := run([]string{"-c", "-a", "gzip"}, strings.NewReader(payload), &compressed)
		Expect(code).To(Equal(0))

		var out bytes.Buffer
		code = run([]string{"-d", "-a", "gzip"}, &compressed, &out)
		Expect(code).To(Equal(0))
		Expect(out.String()).To(Equal(payload))
	})

	It("rejects -c and -d given together", func() {
		code := run([]string{"-c", "-d"}, strings.NewReader(""), &bytes.Buffer{})
		Expect(code).To(Equal(1))
	})

	It("rejects neither -c nor -d given", func() {
		code := run([]string{}, strings.NewReader(""), &bytes.Buffer{})
		Expect(code).To(Equal(1))
	})
})
