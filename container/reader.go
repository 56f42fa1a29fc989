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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	arcerr "github.com/sabouaram/sarc/archerr"
	"github.com/sabouaram/sarc/childproc"
	"github.com/sabouaram/sarc/codec"
	liberr "github.com/sabouaram/sarc/errors"
	"github.com/sabouaram/sarc/identity"
	"github.com/sabouaram/sarc/pathutil"
	"github.com/sabouaram/sarc/permcodec"
	"github.com/sabouaram/sarc/progress"
	"github.com/sabouaram/sarc/selector"
)

// ReadOptions configures one examine or extract invocation (Read state, §3).
type ReadOptions struct {
	Examine bool // true: list to stderr and consume without writing

	DestDir          string // extraction root, defaults to "."
	OverwriteExtract bool
	AllowDoubleDot   bool

	PreservePerm  bool // apply the archived mode
	PreserveOwner bool // apply the archived uid/gid (post-remap)

	Selector *selector.Selector
	Remap    *identity.Remapper

	HostUserNameToID  identity.HostNameToID
	HostGroupNameToID identity.HostNameToID

	TempDir string

	Progress *progress.Reporter

	// Warn receives non-fatal diagnostics: dropped-by-selector entries,
	// best-effort chmod/chown/symlink-ownership failures, decompressor
	// surplus bytes.
	Warn func(msg string, fields map[string]interface{})

	// Out receives one line per entry in examine mode.
	Out io.Writer
}

func (o ReadOptions) warn(msg string, fields map[string]interface{}) {
	if o.Warn != nil {
		o.Warn(msg, fields)
	}
}

// Reader consumes one archive from in per ReadOptions.
type Reader struct {
	in  io.Reader
	opt ReadOptions
	f   features

	headerCompressor   string
	headerDecompressor string
	prefix             string
}

// NewReader returns a Reader bound to the archive stream and options.
func NewReader(in io.Reader, opt ReadOptions) *Reader {
	return &Reader{in: in, opt: opt}
}

// Run parses the magic and version, dispatches to the version-specific body
// reader, and materializes (or lists) every selected entry.
func (r *Reader) Run() error {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r.in, magic); err != nil {
		return arcerr.ErrInvalidFile.Error(err)
	}
	if string(magic) != Magic {
		return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "bad magic"))
	}

	version, err := codec.ReadU16(r.in)
	if err != nil {
		return err
	}
	if version > 5 {
		return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "unrecognized version"))
	}
	r.f = featuresFor(version)

	if r.f.hasPrefix {
		prefix, err := codec.ReadString(r.in)
		if err != nil {
			return err
		}
		r.prefix = prefix
	}

	fb, err := codec.ReadFlagBlock(r.in)
	if err != nil {
		return err
	}
	compressed := fb.Bit(0, 0)
	if compressed {
		if r.headerCompressor, err = codec.ReadString(r.in); err != nil {
			return err
		}
		if r.headerDecompressor, err = codec.ReadString(r.in); err != nil {
			return err
		}
	}

	if r.f.version == 0 {
		return r.readV0()
	}
	return r.readV1Plus(compressed)
}

// displayName strips the v4+ archive prefix before validation/materialization,
// per §6.1: "the prefix is prepended to every stored path on write and must
// be stripped on read before path validation".
func (r *Reader) displayName(name string) string {
	if r.prefix == "" {
		return name
	}
	return pathutil.StripPrefix(r.prefix, name)
}

// readV0 parses the flat per-entry body of §6.1 Body[0].
func (r *Reader) readV0() error {
	count, err := codec.ReadU32(r.in)
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		if err := r.readV0Entry(); err != nil {
			return err
		}
		if r.opt.Progress != nil {
			r.opt.Progress.Inc()
		}
	}
	if r.opt.Progress != nil {
		r.opt.Progress.Done()
	}
	return nil
}

func (r *Reader) readV0Entry() error {
	name, err := codec.ReadString(r.in)
	if err != nil {
		return err
	}
	fb, err := codec.ReadFlagBlock(r.in)
	if err != nil {
		return err
	}
	isSymlink := fb.Bit(0, 0)
	mode := permcodec.Decode(fb)

	if isSymlink {
		abs, _, err := codec.ReadStringOrZero(r.in)
		if err != nil {
			return err
		}
		rel, _, err := codec.ReadStringOrZero(r.in)
		if err != nil {
			return err
		}
		if abs == "" && rel == "" {
			return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "symlink entry has neither absolute nor relative target"))
		}
		e := Entry{Path: name, Kind: KindSymlink, Mode: mode, AbsTarget: abs, RelTarget: rel}
		return r.materialize(e, nil)
	}

	size, err := codec.ReadU64(r.in)
	if err != nil {
		return err
	}

	var body io.Reader = io.LimitReader(r.in, int64(size))
	displaySize := size
	if r.headerCompressor != "" {
		var out bytes.Buffer
		rr, err := childproc.Start(childproc.ModeDecompress, r.headerDecompressor)
		if err != nil {
			return err
		}
		if err = rr.Transfer(body, &out); err != nil {
			return err
		}
		displaySize = uint64(out.Len())
		body = &out
	}

	e := Entry{Path: name, Kind: KindFile, Mode: mode, Size: displaySize}
	return r.materialize(e, body)
}

// readV1Plus parses the link/dir/chunk sectioned body shared by v1-v5.
func (r *Reader) readV1Plus(compressed bool) error {
	linkCount, err := codec.ReadU32(r.in)
	if err != nil {
		return err
	}
	for i := uint32(0); i < linkCount; i++ {
		l, err := readLinkRecord(r.in, r.f)
		if err != nil {
			return err
		}
		if l.AbsTarget == "" && l.RelTarget == "" {
			return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "symlink entry has neither absolute nor relative target"))
		}
		e := Entry{
			Path:      l.Name,
			Kind:      KindSymlink,
			AbsTarget: l.AbsTarget,
			RelTarget: l.RelTarget,
			PreferAbs: l.Flags.Bit(1, permcodec.PreferAbsBit),
			UName:     l.UName,
			GName:     l.GName,
		}
		if err := r.materialize(e, nil); err != nil {
			return err
		}
		if r.opt.Progress != nil {
			r.opt.Progress.Inc()
		}
	}

	if r.f.hasDirSection {
		dirCount, err := codec.ReadU32(r.in)
		if err != nil {
			return err
		}
		for i := uint32(0); i < dirCount; i++ {
			d, err := readDirRecord(r.in, r.f)
			if err != nil {
				return err
			}
			e := Entry{
				Path:  d.Name,
				Kind:  KindDir,
				Mode:  permcodec.Decode(d.Flags),
				UName: d.UName,
				GName: d.GName,
			}
			if err := r.materialize(e, nil); err != nil {
				return err
			}
			if r.opt.Progress != nil {
				r.opt.Progress.Inc()
			}
		}
	}

	chunkCount, err := codec.ReadU32(r.in)
	if err != nil {
		return err
	}
	for i := uint32(0); i < chunkCount; i++ {
		if err := r.readChunk(compressed); err != nil {
			return err
		}
	}

	if r.opt.Progress != nil {
		r.opt.Progress.Done()
	}
	return nil
}

func (r *Reader) readChunk(headerCompressed bool) error {
	n, err := codec.ReadU16(r.in)
	if err != nil {
		return err
	}

	hdrs := make([]fileHdr, n)
	for i := range hdrs {
		if hdrs[i], err = readFileHdr(r.in, r.f); err != nil {
			return err
		}
	}

	rawChunk := !headerCompressed
	if r.f.hasPerFileRaw && n > 0 {
		rawChunk = hdrs[0].Flags.Bit(1, permcodec.RawFileBit)
	}

	var uncompressedSize uint64
	if r.f.hasDualChunkSize {
		if uncompressedSize, err = codec.ReadU64(r.in); err != nil {
			return err
		}
	}
	compressedSize, err := codec.ReadU64(r.in)
	if err != nil {
		return err
	}

	payload := io.LimitReader(r.in, int64(compressedSize))

	var wantTotal uint64
	for _, h := range hdrs {
		wantTotal += h.Size
	}
	if r.f.hasDualChunkSize && uncompressedSize != wantTotal {
		r.opt.warn("chunk's declared uncompressed size does not match the sum of its entries", map[string]interface{}{"declared": uncompressedSize, "sum": wantTotal})
	}

	var body io.Reader
	var decompressed *bytes.Buffer
	if rawChunk {
		body = payload
	} else {
		decompressed = &bytes.Buffer{}
		rr, err := childproc.Start(childproc.ModeDecompress, r.headerDecompressor)
		if err != nil {
			return err
		}
		if err = rr.Transfer(payload, decompressed); err != nil {
			return err
		}
		if uint64(decompressed.Len()) < wantTotal {
			return arcerr.ErrInternalError.Error(liberr.New(arcerr.ErrInternalError.Uint16(), "decompressor produced fewer bytes than its entries declare"))
		}
		body = decompressed
	}

	for _, h := range hdrs {
		entryBody := io.LimitReader(body, int64(h.Size))
		e := Entry{
			Path:  h.Name,
			Kind:  KindFile,
			Mode:  permcodec.Decode(h.Flags),
			UID:   h.UID,
			GID:   h.GID,
			UName: h.UName,
			GName: h.GName,
			Size:  h.Size,
		}
		if err := r.materialize(e, entryBody); err != nil {
			return err
		}
		if r.opt.Progress != nil {
			r.opt.Progress.Inc()
		}
	}

	// Decompressor-drain invariant (§4.2): a deficit is fatal (checked above,
	// before any entry is materialized); a surplus left after every entry
	// has consumed its declared share is a warning only.
	if decompressed != nil && decompressed.Len() > 0 {
		r.opt.warn("decompressor produced surplus bytes beyond every entry in the chunk", map[string]interface{}{"surplus": decompressed.Len()})
	}
	return nil
}

// materialize applies selection, then either lists (examine) or writes the
// entry to disk (extract), per §4.7. body is nil for symlinks and dirs.
func (r *Reader) materialize(e Entry, body io.Reader) error {
	name := r.displayName(e.Path)

	if r.opt.Selector != nil && !r.opt.Selector.Accept(name) {
		if body != nil {
			io.Copy(io.Discard, body)
		}
		return nil
	}

	if err := pathutil.Validate(name, r.opt.AllowDoubleDot); err != nil {
		r.opt.warn("skipping entry with unsafe path", map[string]interface{}{"path": name})
		if body != nil {
			io.Copy(io.Discard, body)
		}
		return nil
	}

	if !r.opt.Examine && !pathutil.WithinCwd(".", name) {
		r.opt.warn("skipping entry that resolves outside the extraction directory", map[string]interface{}{"path": name})
		if body != nil {
			io.Copy(io.Discard, body)
		}
		return nil
	}

	if r.opt.Examine {
		return r.printExamine(name, e, body)
	}
	return r.extract(name, e, body)
}

func (r *Reader) printExamine(name string, e Entry, body io.Reader) error {
	out := r.opt.Out
	if out == nil {
		out = os.Stderr
	}

	kind := "f"
	switch e.Kind {
	case KindSymlink:
		kind = "l"
	case KindDir:
		kind = "d"
	}

	fmt.Fprintf(out, "%s %s %8d %s\n", kind, permcodec.String(e.Mode), e.Size, name)

	if body != nil {
		io.Copy(io.Discard, body)
	}
	return nil
}

func (r *Reader) destPath(name string) string {
	dest := r.opt.DestDir
	if dest == "" {
		dest = "."
	}
	return filepath.Join(dest, filepath.FromSlash(name))
}

func (r *Reader) extract(name string, e Entry, body io.Reader) error {
	target := r.destPath(name)

	switch e.Kind {
	case KindDir:
		return r.extractDir(target, e)
	case KindSymlink:
		return r.extractSymlink(target, e)
	default:
		return r.extractFile(target, e, body)
	}
}

func (r *Reader) extractDir(target string, e Entry) error {
	if err := os.MkdirAll(target, 0755); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}
	r.applyOwnership(target, e, false)
	r.applyPermission(target, e)
	return nil
}

func (r *Reader) extractFile(target string, e Entry, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !r.opt.OverwriteExtract {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(target, flags, 0600)
	if err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}
	defer f.Close()

	if body != nil {
		if _, err := io.Copy(f, body); err != nil {
			return arcerr.ErrFailedToWrite.Error(err)
		}
	}

	r.applyOwnership(target, e, false)
	r.applyPermission(target, e)
	return nil
}

func (r *Reader) extractSymlink(target string, e Entry) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}

	dest := e.AbsTarget
	if !e.PreferAbs || dest == "" {
		if e.RelTarget != "" {
			dest = e.RelTarget
		}
	}
	if dest == "" {
		dest = e.AbsTarget
	}

	if r.opt.OverwriteExtract {
		_ = os.Remove(target)
	}

	if err := os.Symlink(dest, target); err != nil {
		return arcerr.ErrFailedToExtractSymlink.Error(err)
	}

	r.applyOwnership(target, e, true)
	return nil
}

func (r *Reader) applyPermission(target string, e Entry) {
	if !r.opt.PreservePerm {
		return
	}
	if err := os.Chmod(target, e.Mode); err != nil {
		r.opt.warn("chmod failed", map[string]interface{}{"path": target, "error": err.Error()})
	}
}

func (r *Reader) applyOwnership(target string, e Entry, isSymlink bool) {
	if !r.opt.PreserveOwner || r.opt.Remap == nil {
		return
	}

	uid := r.opt.Remap.ResolveUID(e.UID, e.UName, r.opt.HostUserNameToID)
	gid := r.opt.Remap.ResolveGID(e.GID, e.GName, r.opt.HostGroupNameToID)

	var err error
	if isSymlink {
		err = os.Lchown(target, int(uid), int(gid))
	} else {
		err = os.Chown(target, int(uid), int(gid))
	}
	if err != nil {
		r.opt.warn("chown failed", map[string]interface{}{"path": target, "error": err.Error()})
	}
}
