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

// Package permcodec translates POSIX permission bits between the archive
// wire's 4-byte flag block (§6.1: byte 0 bits 1-7, byte 1 bits 0-1, ordered
// u_r u_w u_x g_r g_w g_x o_r o_w o_x) and os.FileMode / "rwxr-xr-x" text.
package permcodec

import (
	"os"

	"github.com/sabouaram/sarc/codec"
)

// bitOrder lists, in wire order, the (byteIdx, bitIdx) location of each of
// the nine permission bits and the os.FileMode bit it corresponds to.
var bitOrder = []struct {
	byteIdx, bitIdx int
	mode            os.FileMode
}{
	{0, 1, 0400}, // u_r
	{0, 2, 0200}, // u_w
	{0, 3, 0100}, // u_x
	{0, 4, 0040}, // g_r
	{0, 5, 0020}, // g_w
	{0, 6, 0010}, // g_x
	{0, 7, 0004}, // o_r
	{1, 0, 0002}, // o_w
	{1, 1, 0001}, // o_x
}

// IsSymlinkBit, PreferAbsBit and RawFileBit index the non-permission bits
// defined by §6.1's Flags4 layout.
const (
	IsSymlinkBit    = 0 // byte 0 bit 0: "is compressed" (header) / "is symlink" (entry)
	PreferAbsBit    = 2 // byte 1 bit 2: "prefer absolute" (symlinks)
	RawFileBit      = 3 // byte 1 bit 3 (v5): per-file "is-not-compressed"
)

// Encode packs the nine low bits of mode into fb's permission bit positions,
// leaving every other bit of fb untouched.
func Encode(fb *codec.FlagBlock, mode os.FileMode) {
	for _, b := range bitOrder {
		fb.SetBit(b.byteIdx, b.bitIdx, mode&b.mode != 0)
	}
}

// Decode extracts the permission bits out of fb into an os.FileMode (type
// bits, e.g. ModeDir, are not part of the wire format and are never set).
func Decode(fb codec.FlagBlock) os.FileMode {
	var mode os.FileMode
	for _, b := range bitOrder {
		if fb.Bit(b.byteIdx, b.bitIdx) {
			mode |= b.mode
		}
	}
	return mode
}

// String renders mode's low nine bits as "rwxr-xr-x" style text, the form
// `examine` prints for every entry.
func String(mode os.FileMode) string {
	const chars = "rwxrwxrwx"
	out := [9]byte{}
	for i := range out {
		bit := os.FileMode(1) << uint(8-i)
		if mode&bit != 0 {
			out[i] = chars[i]
		} else {
			out[i] = '-'
		}
	}
	return string(out[:])
}
