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

package progress_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/sarc/progress"
)

var _ = Describe("StderrLine", func() {
	It("pads both numbers to the digit width of total", func() {
		Expect(progress.StderrLine(3, 128)).To(Equal("[  3/128]"))
	})
})

var _ = Describe("Reporter", func() {
	It("invokes the increment callback with the running total", func() {
		r := progress.New(10)
		var lastCur, lastTotal int64
		r.RegisterFctIncrement(func(cur, total int64) {
			lastCur, lastTotal = cur, total
		})
		r.Inc()
		r.IncN(2)
		Expect(lastCur).To(Equal(int64(3)))
		Expect(lastTotal).To(Equal(int64(10)))
	})

	It("writes a final line to stderr on Done", func() {
		r := progress.New(2)
		var buf bytes.Buffer
		progress.WriteStderrReporter(r, &buf)
		r.Inc()
		r.Inc()
		r.Done()
		Expect(buf.String()).To(ContainSubstring("[2/2]"))
	})
})
