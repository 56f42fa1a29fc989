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

// Package codec implements the big-endian primitive encoding shared by every
// archive format version: fixed-width integers, NUL-terminated length
// prefixed strings, and the 4-byte little-endian flag block.
package codec

import (
	"encoding/binary"
	"io"

	liberr "github.com/sabouaram/sarc/errors"
	arcerr "github.com/sabouaram/sarc/archerr"
)

// MaxStringLen is the largest byte length a u16-length-prefixed string may declare.
const MaxStringLen = 65535

// FlagBlockSize is the width in bytes of a Flags4 record.
const FlagBlockSize = 4

// ReadU16 reads a big-endian uint16, mapping any short read to InvalidFile.
func ReadU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, arcerr.ErrInvalidFile.Error(err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadU32 reads a big-endian uint32, mapping any short read to InvalidFile.
func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, arcerr.ErrInvalidFile.Error(err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadU64 reads a big-endian uint64, mapping any short read to InvalidFile.
func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, arcerr.ErrInvalidFile.Error(err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteU16 writes a big-endian uint16, mapping any short write to FailedToWrite.
func WriteU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return writeFull(w, buf[:])
}

// WriteU32 writes a big-endian uint32, mapping any short write to FailedToWrite.
func WriteU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return writeFull(w, buf[:])
}

// WriteU64 writes a big-endian uint64, mapping any short write to FailedToWrite.
func WriteU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return writeFull(w, buf[:])
}

func writeFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	} else if n != len(buf) {
		return arcerr.ErrFailedToWrite.Error(io.ErrShortWrite)
	}
	return nil
}

// ReadString reads a u16-length-prefixed, NUL-terminated string: u16 len,
// then len+1 bytes where the final byte is the NUL terminator. The NUL is
// stripped and the decoded string is capped at len bytes. A zero length
// carries no body bytes, matching WriteString's encoding of "".
func ReadString(r io.Reader) (string, error) {
	l, err := ReadU16(r)
	if err != nil {
		return "", err
	}
	if l == 0 {
		return "", nil
	}

	buf := make([]byte, int(l)+1)
	if _, err = io.ReadFull(r, buf); err != nil {
		return "", arcerr.ErrInvalidFile.Error(err)
	}

	return string(buf[:l]), nil
}

// ReadStringOrZero reads a length-prefixed string that may be declared empty
// (u16 length 0), in which case the caller's field is considered absent. A
// declared-empty string still carries no body bytes on the wire.
func ReadStringOrZero(r io.Reader) (s string, present bool, err error) {
	l, err := ReadU16(r)
	if err != nil {
		return "", false, err
	}
	if l == 0 {
		return "", false, nil
	}

	buf := make([]byte, int(l)+1)
	if _, err = io.ReadFull(r, buf); err != nil {
		return "", false, arcerr.ErrInvalidFile.Error(err)
	}

	return string(buf[:l]), true, nil
}

// WriteString emits a u16-length-prefixed NUL-terminated byte string. It is
// the inverse of ReadString/ReadStringOrZero: an empty s writes length 0 and
// no body bytes at all, matching the "zero means absent" wire convention.
func WriteString(w io.Writer, s string) error {
	if len(s) > MaxStringLen {
		return liberr.New(arcerr.ErrInvalidFile.Uint16(), "string exceeds maximum encodable length")
	}
	if s == "" {
		return WriteU16(w, 0)
	}
	if err := WriteU16(w, uint16(len(s))); err != nil {
		return err
	}
	return writeFull(w, append([]byte(s), 0))
}

// FlagBlock is the 4-byte little-endian bitset used for the header
// compression flag, per-entry kind/permission bits, and per-file raw bit.
type FlagBlock [FlagBlockSize]byte

// ReadFlagBlock reads the fixed 4-byte flag block.
func ReadFlagBlock(r io.Reader) (FlagBlock, error) {
	var fb FlagBlock
	if _, err := io.ReadFull(r, fb[:]); err != nil {
		return fb, arcerr.ErrInvalidFile.Error(err)
	}
	return fb, nil
}

// WriteFlagBlock writes the fixed 4-byte flag block.
func WriteFlagBlock(w io.Writer, fb FlagBlock) error {
	return writeFull(w, fb[:])
}

// Bit reports whether bit n (0-based, within byte byteIdx) is set.
func (f FlagBlock) Bit(byteIdx, n int) bool {
	return f[byteIdx]&(1<<uint(n)) != 0
}

// SetBit sets or clears bit n of byte byteIdx.
func (f *FlagBlock) SetBit(byteIdx, n int, v bool) {
	if v {
		f[byteIdx] |= 1 << uint(n)
	} else {
		f[byteIdx] &^= 1 << uint(n)
	}
}
