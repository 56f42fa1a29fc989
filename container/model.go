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

// Package container implements the archive format's data model and its
// writer/reader state machines across format versions v0 through v5.
package container

import (
	"io"
	"os"
)

// Magic is the 18-byte literal that opens every archive, regardless of version.
const Magic = "SIMPLE_ARCHIVE_VER"

// Kind discriminates the three entry types the format can carry.
type Kind int

const (
	KindFile Kind = iota
	KindSymlink
	KindDir
)

// Entry is one archived item, per §3. Body is the content source on write
// (nil for symlinks and directories) and is never populated on read; reader
// callers consume content through the Reader's materialization callbacks
// instead.
type Entry struct {
	Path string
	Kind Kind
	Mode os.FileMode

	UID   uint32
	UName string
	GID   uint32
	GName string

	// Size is the regular file's uncompressed content length. Populated by
	// the caller before Write for files; populated by the reader for
	// examine/extract consumers.
	Size uint64

	AbsTarget string
	RelTarget string
	PreferAbs bool

	// NoCompress marks the entry for the do-not-compress path (§4.5): a
	// single-entry, uncompressed chunk even when a compressor is configured.
	NoCompress bool

	// Body is the content source for a file entry during Write. The writer
	// never seeks it; it is read to completion exactly once.
	Body io.Reader
}

// IsAbsTargetPresent and IsRelTargetPresent report field presence, since the
// zero value "" is indistinguishable from "explicitly empty" otherwise.
func (e Entry) IsAbsTargetPresent() bool { return e.AbsTarget != "" }
func (e Entry) IsRelTargetPresent() bool { return e.RelTarget != "" }

// Chunk is a v1+ grouping of consecutive file entries whose bodies are
// compressed (or stored raw) as one stream, per §3.
type Chunk struct {
	Entries          []Entry
	UncompressedSize uint64
}
