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

package container

import (
	"io"
	"os"

	"github.com/sabouaram/sarc/codec"
	"github.com/sabouaram/sarc/permcodec"
)

// features describes which optional record fields a format version carries,
// letting the writer/reader share one record codec across v0-v5 instead of
// six near-duplicate implementations (per the "tagged-version dispatcher"
// design note).
type features struct {
	version uint16

	hasLinkSection   bool // v1+
	hasDirSection    bool // v2+
	hasUnameGname    bool // v3+
	hasPrefix        bool // v4+
	hasDualChunkSize bool // v5: uncompressed+compressed vs just compressed
	hasPerFileRaw    bool // v5: per-file "is-not-compressed" bit
}

func featuresFor(version uint16) features {
	return features{
		version:          version,
		hasLinkSection:   version >= 1,
		hasDirSection:    version >= 2,
		hasUnameGname:    version >= 3,
		hasPrefix:        version >= 4,
		hasDualChunkSize: version >= 5,
		hasPerFileRaw:    version >= 5,
	}
}

// fileHdr is the shared v1+ per-file record: name, Flags4, uid/gid
// (+uname/gname from v3), file_size.
type fileHdr struct {
	Name  string
	Flags codec.FlagBlock
	UID   uint32
	GID   uint32
	UName string
	GName string
	Size  uint64
}

func writeFileHdr(w io.Writer, f features, h fileHdr) error {
	if err := codec.WriteString(w, h.Name); err != nil {
		return err
	}
	if err := codec.WriteFlagBlock(w, h.Flags); err != nil {
		return err
	}
	if err := codec.WriteU32(w, h.UID); err != nil {
		return err
	}
	if err := codec.WriteU32(w, h.GID); err != nil {
		return err
	}
	if f.hasUnameGname {
		if err := codec.WriteString(w, h.UName); err != nil {
			return err
		}
		if err := codec.WriteString(w, h.GName); err != nil {
			return err
		}
	}
	return codec.WriteU64(w, h.Size)
}

func readFileHdr(r io.Reader, f features) (fileHdr, error) {
	var h fileHdr
	var err error

	if h.Name, err = codec.ReadString(r); err != nil {
		return h, err
	}
	if h.Flags, err = codec.ReadFlagBlock(r); err != nil {
		return h, err
	}
	if h.UID, err = codec.ReadU32(r); err != nil {
		return h, err
	}
	if h.GID, err = codec.ReadU32(r); err != nil {
		return h, err
	}
	if f.hasUnameGname {
		if h.UName, err = codec.ReadString(r); err != nil {
			return h, err
		}
		if h.GName, err = codec.ReadString(r); err != nil {
			return h, err
		}
	}
	if h.Size, err = codec.ReadU64(r); err != nil {
		return h, err
	}
	return h, nil
}

// linkRecord is the shared v1+ symlink record. Its flags field is a 2-byte
// bitset (not the 4-byte Flags4 used by file/dir records): only the prefer-
// absolute bit is meaningful for a symlink, so the low two bytes of the
// conceptual Flags4 layout are reused, written as a bare u16 on the wire.
type linkRecord struct {
	Flags     codec.FlagBlock
	Name      string
	AbsTarget string
	RelTarget string
	UName     string
	GName     string
}

func writeLinkRecord(w io.Writer, f features, l linkRecord) error {
	if err := writeLinkFlags(w, l.Flags); err != nil {
		return err
	}
	if err := codec.WriteString(w, l.Name); err != nil {
		return err
	}
	if err := codec.WriteString(w, l.AbsTarget); err != nil {
		return err
	}
	if err := codec.WriteString(w, l.RelTarget); err != nil {
		return err
	}
	if f.hasUnameGname {
		if err := codec.WriteString(w, l.UName); err != nil {
			return err
		}
		if err := codec.WriteString(w, l.GName); err != nil {
			return err
		}
	}
	return nil
}

func readLinkRecord(r io.Reader, f features) (linkRecord, error) {
	var l linkRecord
	var err error
	var present bool

	if l.Flags, err = readLinkFlags(r); err != nil {
		return l, err
	}
	if l.Name, err = codec.ReadString(r); err != nil {
		return l, err
	}
	if l.AbsTarget, present, err = codec.ReadStringOrZero(r); err != nil {
		return l, err
	} else if !present {
		l.AbsTarget = ""
	}
	if l.RelTarget, present, err = codec.ReadStringOrZero(r); err != nil {
		return l, err
	} else if !present {
		l.RelTarget = ""
	}
	if f.hasUnameGname {
		if l.UName, err = codec.ReadString(r); err != nil {
			return l, err
		}
		if l.GName, err = codec.ReadString(r); err != nil {
			return l, err
		}
	}
	return l, nil
}

// dirRecord is the v2+ empty-directory record.
type dirRecord struct {
	Flags codec.FlagBlock
	Name  string
	UName string
	GName string
}

func writeDirRecord(w io.Writer, f features, d dirRecord) error {
	if err := writeLinkFlags(w, d.Flags); err != nil {
		return err
	}
	if err := codec.WriteString(w, d.Name); err != nil {
		return err
	}
	if err := codec.WriteFlagBlock(w, d.Flags); err != nil {
		return err
	}
	if f.hasUnameGname {
		if err := codec.WriteString(w, d.UName); err != nil {
			return err
		}
		if err := codec.WriteString(w, d.GName); err != nil {
			return err
		}
	}
	return nil
}

func readDirRecord(r io.Reader, f features) (dirRecord, error) {
	var d dirRecord
	var err error

	if _, err = readLinkFlags(r); err != nil {
		return d, err
	}
	if d.Name, err = codec.ReadString(r); err != nil {
		return d, err
	}
	if d.Flags, err = codec.ReadFlagBlock(r); err != nil {
		return d, err
	}
	if f.hasUnameGname {
		if d.UName, err = codec.ReadString(r); err != nil {
			return d, err
		}
		if d.GName, err = codec.ReadString(r); err != nil {
			return d, err
		}
	}
	return d, nil
}

// writeLinkFlags/readLinkFlags serialize only the first two bytes of a
// FlagBlock, matching the grammar's "u16:link_flags"/"u16:dir_flags" fields.
func writeLinkFlags(w io.Writer, fb codec.FlagBlock) error {
	_, err := w.Write(fb[:2])
	return err
}

func readLinkFlags(r io.Reader) (codec.FlagBlock, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return codec.FlagBlock{}, err
	}
	return codec.FlagBlock{buf[0], buf[1], 0, 0}, nil
}

// permFlags builds the Flags4 value for a file/dir record: permission bits
// plus, for v5, the per-file raw (not-compressed) bit.
func permFlags(mode os.FileMode, isRaw bool, f features) codec.FlagBlock {
	var fb codec.FlagBlock
	permcodec.Encode(&fb, mode)
	if f.hasPerFileRaw {
		fb.SetBit(1, permcodec.RawFileBit, isRaw)
	}
	return fb
}
