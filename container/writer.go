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
	"io"
	"os"
	"path"
	"sort"

	arcerr "github.com/sabouaram/sarc/archerr"
	"github.com/sabouaram/sarc/childproc"
	"github.com/sabouaram/sarc/codec"
	liberr "github.com/sabouaram/sarc/errors"
	"github.com/sabouaram/sarc/pathutil"
	"github.com/sabouaram/sarc/permcodec"
	"github.com/sabouaram/sarc/progress"
	"github.com/sabouaram/sarc/selector"
)

// WriteOptions configures one create invocation (Write state, §3).
type WriteOptions struct {
	Version      uint16
	Compressor   string
	Decompressor string

	ChunkMinSize uint64 // default 256 MiB, 0 means "use the default"

	PreSortFiles   bool // the CLI sets it unless --no-pre-sort-files is given
	SortFilesByName bool // by name ascending instead of size descending

	PreserveEmptyDirs bool

	Prefix string

	Selector       *selector.Selector
	AllowDoubleDot bool
	NoSafeLinks    bool

	TempDir      string
	ForceTmpfile bool

	Progress *progress.Reporter

	// Warn receives non-fatal per-entry diagnostics (dropped unsafe links,
	// skipped read-source failures).
	Warn func(msg string, fields map[string]interface{})
}

const defaultChunkMinSize = 256 * 1024 * 1024

func (o WriteOptions) chunkMinSize() uint64 {
	if o.ChunkMinSize == 0 {
		return defaultChunkMinSize
	}
	return o.ChunkMinSize
}

func (o WriteOptions) warn(msg string, fields map[string]interface{}) {
	if o.Warn != nil {
		o.Warn(msg, fields)
	}
}

// Writer emits one archive to out per WriteOptions.
type Writer struct {
	out io.Writer
	opt WriteOptions
	f   features
}

// NewWriter returns a Writer bound to the configured sink and options.
func NewWriter(out io.Writer, opt WriteOptions) *Writer {
	return &Writer{out: out, opt: opt, f: featuresFor(opt.Version)}
}

// Write runs the whole create pipeline over entries: selection, safe-link
// filtering, ordering, then version-dispatched body emission.
func (w *Writer) Write(entries []Entry) error {
	if w.opt.Version > 5 {
		return liberr.New(arcerr.ErrInvalidWriteVersion.Uint16(), "write version must be 0..5")
	}

	entries = w.applySelector(entries)
	entries = w.applySafeLinks(entries)
	entries = w.applyOrder(entries)

	if w.opt.Progress != nil {
		w.opt.Progress.SetTotal(int64(len(entries)))
	}

	if err := w.writeMagicAndVersion(); err != nil {
		return err
	}

	if w.f.version == 0 {
		return w.writeV0(entries)
	}
	return w.writeV1Plus(entries)
}

func (w *Writer) writeMagicAndVersion() error {
	if _, err := io.WriteString(w.out, Magic); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}
	return codec.WriteU16(w.out, w.f.version)
}

// applySelector applies §4.5 before emitting, on the path alone.
func (w *Writer) applySelector(entries []Entry) []Entry {
	if w.opt.Selector == nil {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if w.opt.Selector.Accept(e.Path) {
			out = append(out, e)
		}
	}
	return out
}

// applySafeLinks drops symlinks whose resolved target is not itself an
// archived entry, unless disabled via NoSafeLinks (§4.3). A surviving
// symlink whose target is not archived gets its prefer-abs bit set (§9:
// "written only when the target is not itself an archived entry").
func (w *Writer) applySafeLinks(entries []Entry) []Entry {
	archived := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		archived[e.Path] = struct{}{}
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind != KindSymlink {
			out = append(out, e)
			continue
		}

		target := resolveSymlinkTarget(e)
		_, inArchive := archived[pathutil.Normalize(target)]
		if !inArchive {
			if w.opt.NoSafeLinks {
				e.PreferAbs = true
				out = append(out, e)
			} else {
				w.opt.warn("dropping unsafe symlink", map[string]interface{}{"path": e.Path, "target": target})
			}
			continue
		}
		out = append(out, e)
	}
	return out
}

func resolveSymlinkTarget(e Entry) string {
	if e.RelTarget != "" {
		return pathutil.Normalize(path.Join(path.Dir(e.Path), e.RelTarget))
	}
	return pathutil.Normalize(e.AbsTarget)
}

// applyOrder sorts file entries per --sort-files-by-name / --no-pre-sort-files;
// symlinks and directories keep the enumerator's order and are not reordered
// relative to each other (§5: "the selector may drop but never reorder except
// the writer may sort by size descending or by name ascending").
func (w *Writer) applyOrder(entries []Entry) []Entry {
	if !w.opt.PreSortFiles {
		return entries
	}

	out := make([]Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != KindFile || b.Kind != KindFile {
			return false
		}
		if w.opt.SortFilesByName {
			return a.Path < b.Path
		}
		return a.Size > b.Size
	})
	return out
}

// writeV0 emits the flat per-entry body described by §6.1 Body[0].
func (w *Writer) writeV0(entries []Entry) error {
	var fb codec.FlagBlock
	fb.SetBit(0, 0, w.opt.Compressor != "")
	if err := codec.WriteFlagBlock(w.out, fb); err != nil {
		return err
	}
	if w.opt.Compressor != "" {
		if err := codec.WriteString(w.out, w.opt.Compressor); err != nil {
			return err
		}
		if err := codec.WriteString(w.out, w.opt.Decompressor); err != nil {
			return err
		}
	}

	writable := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == KindDir {
			w.opt.warn("v0 does not support empty directories, skipping", map[string]interface{}{"path": e.Path})
			continue
		}
		writable = append(writable, e)
	}

	if err := codec.WriteU32(w.out, uint32(len(writable))); err != nil {
		return err
	}

	for _, e := range writable {
		if err := w.writeV0Entry(e); err != nil {
			return err
		}
		if w.opt.Progress != nil {
			w.opt.Progress.Inc()
		}
	}
	if w.opt.Progress != nil {
		w.opt.Progress.Done()
	}
	return nil
}

func (w *Writer) writeV0Entry(e Entry) error {
	var header bytes.Buffer

	if err := codec.WriteString(&header, e.Path); err != nil {
		return err
	}

	isSymlink := e.Kind == KindSymlink
	var fb codec.FlagBlock
	fb.SetBit(0, 0, isSymlink)
	permcodec.Encode(&fb, e.Mode)
	if err := codec.WriteFlagBlock(&header, fb); err != nil {
		return err
	}

	if isSymlink {
		if err := codec.WriteString(&header, e.AbsTarget); err != nil {
			return err
		}
		if err := codec.WriteString(&header, e.RelTarget); err != nil {
			return err
		}
		_, err := w.out.Write(header.Bytes())
		if err != nil {
			return arcerr.ErrFailedToWrite.Error(err)
		}
		return nil
	}

	// File body: buffer the header fully, then flush, then stream body
	// (the per-entry atomicity unit described in §5).
	if w.opt.Compressor != "" && !e.NoCompress {
		tmp, size, err := w.compressToTemp(e.Body)
		if err != nil {
			return err
		}
		defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()

		if err = codec.WriteU64(&header, uint64(size)); err != nil {
			return err
		}
		if _, err = w.out.Write(header.Bytes()); err != nil {
			return arcerr.ErrFailedToWrite.Error(err)
		}
		if _, err = tmp.Seek(0, io.SeekStart); err != nil {
			return arcerr.ErrInternalError.Error(err)
		}
		if _, err = io.Copy(w.out, tmp); err != nil {
			return arcerr.ErrFailedToWrite.Error(err)
		}
		return nil
	}

	if err := codec.WriteU64(&header, e.Size); err != nil {
		return err
	}
	if _, err := w.out.Write(header.Bytes()); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}
	if _, err := io.Copy(w.out, e.Body); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}
	return nil
}

// compressToTemp compresses src to a temp file through the configured
// compressor and returns the open file (rewound by the caller) and its length.
func (w *Writer) compressToTemp(src io.Reader) (*os.File, int64, error) {
	tmp, err := os.CreateTemp(w.opt.TempDir, "sarc-v0-*")
	if err != nil {
		return nil, 0, arcerr.ErrInternalError.Error(err)
	}
	if err = tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, 0, arcerr.ErrInternalError.Error(err)
	}

	r, err := childproc.Start(childproc.ModeCompress, w.opt.Compressor)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, 0, err
	}
	if err = r.Transfer(src, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, 0, err
	}

	info, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, 0, arcerr.ErrInternalError.Error(err)
	}
	return tmp, info.Size(), nil
}

// writeV1Plus emits the link/dir/chunk sectioned body shared by v1-v5.
func (w *Writer) writeV1Plus(entries []Entry) error {
	if w.f.hasPrefix {
		if err := codec.WriteString(w.out, w.opt.Prefix); err != nil {
			return err
		}
	}

	var fb codec.FlagBlock
	fb.SetBit(0, 0, w.opt.Compressor != "")
	if err := codec.WriteFlagBlock(w.out, fb); err != nil {
		return err
	}
	if w.opt.Compressor != "" {
		if err := codec.WriteString(w.out, w.opt.Compressor); err != nil {
			return err
		}
		if err := codec.WriteString(w.out, w.opt.Decompressor); err != nil {
			return err
		}
	}

	var links []Entry
	var dirs []Entry
	var files []Entry

	for _, e := range entries {
		switch e.Kind {
		case KindSymlink:
			links = append(links, e)
		case KindDir:
			if w.f.hasDirSection && w.opt.PreserveEmptyDirs {
				dirs = append(dirs, e)
			}
		default:
			files = append(files, e)
		}
	}

	if err := w.writeLinkSection(links); err != nil {
		return err
	}
	if w.f.hasDirSection {
		if err := w.writeDirSection(dirs); err != nil {
			return err
		}
	}
	if err := w.writeChunkSection(files); err != nil {
		return err
	}

	if w.opt.Progress != nil {
		w.opt.Progress.Done()
	}
	return nil
}

func (w *Writer) writeLinkSection(links []Entry) error {
	if err := codec.WriteU32(w.out, uint32(len(links))); err != nil {
		return err
	}
	for _, e := range links {
		var fb codec.FlagBlock
		fb.SetBit(1, permcodec.PreferAbsBit, e.PreferAbs)

		rec := linkRecord{
			Flags:     fb,
			Name:      pathutil.ApplyPrefix(w.opt.Prefix, e.Path),
			AbsTarget: e.AbsTarget,
			RelTarget: e.RelTarget,
			UName:     e.UName,
			GName:     e.GName,
		}
		if err := writeLinkRecord(w.out, w.f, rec); err != nil {
			return err
		}
		if w.opt.Progress != nil {
			w.opt.Progress.Inc()
		}
	}
	return nil
}

func (w *Writer) writeDirSection(dirs []Entry) error {
	if err := codec.WriteU32(w.out, uint32(len(dirs))); err != nil {
		return err
	}
	for _, e := range dirs {
		rec := dirRecord{
			Flags: permFlags(e.Mode, false, w.f),
			Name:  pathutil.ApplyPrefix(w.opt.Prefix, e.Path),
			UName: e.UName,
			GName: e.GName,
		}
		if err := writeDirRecord(w.out, w.f, rec); err != nil {
			return err
		}
		if w.opt.Progress != nil {
			w.opt.Progress.Inc()
		}
	}
	return nil
}

// writeChunkSection implements the §4.6 chunking algorithm: accumulate files
// until the minimum size is reached, a do-not-compress boundary is hit, or
// the list is exhausted.
func (w *Writer) writeChunkSection(files []Entry) error {
	var chunks [][]Entry
	var cur []Entry
	var curSize uint64

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, cur)
			cur = nil
			curSize = 0
		}
	}

	for _, e := range files {
		if e.NoCompress {
			flush()
			chunks = append(chunks, []Entry{e})
			continue
		}
		cur = append(cur, e)
		curSize += e.Size
		if curSize >= w.opt.chunkMinSize() {
			flush()
		}
	}
	flush()

	if err := codec.WriteU32(w.out, uint32(len(chunks))); err != nil {
		return err
	}
	for _, c := range chunks {
		if err := w.writeChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeChunk(entries []Entry) error {
	var hdr bytes.Buffer
	if err := codec.WriteU16(&hdr, uint16(len(entries))); err != nil {
		return err
	}

	rawChunk := w.opt.Compressor == "" || (len(entries) == 1 && entries[0].NoCompress)

	for _, e := range entries {
		fh := fileHdr{
			Name:  pathutil.ApplyPrefix(w.opt.Prefix, e.Path),
			Flags: permFlags(e.Mode, rawChunk, w.f),
			UID:   e.UID,
			GID:   e.GID,
			UName: e.UName,
			GName: e.GName,
			Size:  e.Size,
		}
		if err := writeFileHdr(&hdr, w.f, fh); err != nil {
			return err
		}
	}

	bodies := make([]io.Reader, 0, len(entries))
	var uncompressedSize uint64
	for _, e := range entries {
		bodies = append(bodies, e.Body)
		uncompressedSize += e.Size
	}
	combined := io.MultiReader(bodies...)

	var payload bytes.Buffer
	if rawChunk {
		if _, err := io.Copy(&payload, combined); err != nil {
			return arcerr.ErrFailedToWrite.Error(err)
		}
	} else {
		r, err := childproc.Start(childproc.ModeCompress, w.opt.Compressor)
		if err != nil {
			return err
		}
		if err = r.Transfer(combined, &payload); err != nil {
			return err
		}
	}

	if w.f.hasDualChunkSize {
		if err := codec.WriteU64(&hdr, uncompressedSize); err != nil {
			return err
		}
	}
	if err := codec.WriteU64(&hdr, uint64(payload.Len())); err != nil {
		return err
	}

	if _, err := w.out.Write(hdr.Bytes()); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}
	if _, err := w.out.Write(payload.Bytes()); err != nil {
		return arcerr.ErrFailedToWrite.Error(err)
	}

	if w.opt.Progress != nil {
		w.opt.Progress.IncN(int64(len(entries)))
	}
	return nil
}
