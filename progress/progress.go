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

// Package progress reports per-entry counters to a callback, and the CLI's
// default callback renders the exact `[  current/  total]` stderr form
// required by §4.6. The callback-registration shape is adapted from the
// teacher's file/progress increment/reset/EOF idiom.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
)

// FctIncrement is called with the new running count every time Inc/IncN advances it.
type FctIncrement func(current, total int64)

// FctEOF is called once when Done is invoked.
type FctEOF func(total int64)

// Reporter tracks a running current/total pair and notifies registered
// callbacks as the count advances. The zero value is usable with Total unset
// (total stays 0 until SetTotal is called).
type Reporter struct {
	current int64
	total   int64

	fctIncrement FctIncrement
	fctEOF       FctEOF
}

// New returns a Reporter for the given total entry/byte count.
func New(total int64) *Reporter {
	return &Reporter{total: total}
}

// RegisterFctIncrement installs the callback invoked on every Inc/IncN.
func (r *Reporter) RegisterFctIncrement(fct FctIncrement) {
	r.fctIncrement = fct
}

// RegisterFctEOF installs the callback invoked by Done.
func (r *Reporter) RegisterFctEOF(fct FctEOF) {
	r.fctEOF = fct
}

// SetTotal updates the total, e.g. once the enumerator has finished counting entries.
func (r *Reporter) SetTotal(total int64) {
	atomic.StoreInt64(&r.total, total)
}

// Inc advances current by 1.
func (r *Reporter) Inc() {
	r.IncN(1)
}

// IncN advances current by n and invokes the increment callback.
func (r *Reporter) IncN(n int64) {
	cur := atomic.AddInt64(&r.current, n)
	if r.fctIncrement != nil {
		r.fctIncrement(cur, atomic.LoadInt64(&r.total))
	}
}

// Done marks the reporter finished and invokes the EOF callback.
func (r *Reporter) Done() {
	if r.fctEOF != nil {
		r.fctEOF(atomic.LoadInt64(&r.total))
	}
}

// Current returns the running count.
func (r *Reporter) Current() int64 {
	return atomic.LoadInt64(&r.current)
}

// Total returns the configured total.
func (r *Reporter) Total() int64 {
	return atomic.LoadInt64(&r.total)
}

// StderrLine renders the exact `[  current/  total]` text form specified by
// §4.6: both numbers are right-aligned to the decimal digit width of total.
func StderrLine(current, total int64) string {
	width := len(strconv.FormatInt(total, 10))
	return fmt.Sprintf("[%*d/%*d]", width, current, width, total)
}

// WriteStderrReporter wires a Reporter's increment callback to write
// StderrLine to w on every advance, terminated by a carriage return so
// successive lines overwrite each other on a terminal.
func WriteStderrReporter(r *Reporter, w io.Writer) {
	r.RegisterFctIncrement(func(current, total int64) {
		fmt.Fprintf(w, "%s\r", StderrLine(current, total))
	})
	r.RegisterFctEOF(func(total int64) {
		fmt.Fprintf(w, "%s\n", StderrLine(total, total))
	})
}
