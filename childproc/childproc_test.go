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

package childproc_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	arcerr "github.com/sabouaram/sarc/archerr"
	"github.com/sabouaram/sarc/childproc"
	liberr "github.com/sabouaram/sarc/errors"
)

var _ = Describe("Runner", func() {
	It("round-trips data through an identity child process", func() {
		r, err := childproc.Start(childproc.ModeCompress, "cat")
		Expect(err).ToNot(HaveOccurred())

		src := strings.NewReader("hello, archive")
		var dst bytes.Buffer

		Expect(r.Transfer(src, &dst)).ToNot(HaveOccurred())
		Expect(dst.String()).To(Equal("hello, archive"))
	})

	It("reports a non-zero exit as the mode's error kind", func() {
		r, err := childproc.Start(childproc.ModeDecompress, "false")
		Expect(err).ToNot(HaveOccurred())

		src := strings.NewReader("")
		var dst bytes.Buffer

		err = r.Transfer(src, &dst)
		Expect(err).To(HaveOccurred())
		Expect(liberr.IsCode(err, arcerr.ErrDecompressionError)).To(BeTrue())
	})

	It("fails to start on a nonexistent command", func() {
		_, err := childproc.Start(childproc.ModeCompress, "sarc-nonexistent-binary-xyz")
		Expect(err).To(HaveOccurred())
	})
})
