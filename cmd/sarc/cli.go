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
	"io"
	"os"
	"path/filepath"

	"github.com/sabouaram/sarc/container"
	"github.com/sabouaram/sarc/enumerate"
	"github.com/sabouaram/sarc/identity/hostlookup"
	"github.com/sabouaram/sarc/logx"
	"github.com/sabouaram/sarc/progress"
)

func warnFn(log *logx.Logger) func(string, map[string]interface{}) {
	return func(msg string, fields map[string]interface{}) {
		log.Warn(msg, logx.Fields(fields))
	}
}

// openArchiveForWrite opens cfg.file for create, honoring --overwrite-create
// and the "-" stdio alias; the caller must Close() the returned file unless
// it is stdout.
func openArchiveForWrite(cfg *config) (io.WriteCloser, error) {
	if cfg.file == "-" {
		return nopCloser{os.Stdout}, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !cfg.overwriteCreate {
		flags |= os.O_EXCL
	}
	return os.OpenFile(cfg.file, flags, 0644)
}

func openArchiveForRead(cfg *config) (io.ReadCloser, error) {
	if cfg.file == "-" {
		return nopCloser{os.Stdin}, nil
	}
	return os.Open(cfg.file)
}

type nopCloser struct {
	io.ReadWriter
}

func (nopCloser) Close() error { return nil }

func doCreate(cfg *config, log *logx.Logger) int {
	if cfg.cwd != "" {
		if err := os.Chdir(cfg.cwd); err != nil {
			log.Error("cannot change directory", logx.Fields{"error": err.Error()})
			return 1
		}
	}

	out, err := openArchiveForWrite(cfg)
	if err != nil {
		log.Error("cannot open archive for write", logx.Fields{"error": err.Error()})
		return 2
	}

	roots := cfg.roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	var forceFile, forceDir, forceEmptyDir *os.FileMode
	if cfg.forceFilePerm != "" {
		m, perr := parseOctalMode(cfg.forceFilePerm)
		if perr != nil {
			log.Error(perr.Error(), nil)
			return 1
		}
		fm := os.FileMode(m)
		forceFile = &fm
	}
	if cfg.forceDirPerm != "" {
		m, perr := parseOctalMode(cfg.forceDirPerm)
		if perr != nil {
			log.Error(perr.Error(), nil)
			return 1
		}
		fm := os.FileMode(m)
		forceDir = &fm
	}
	if cfg.forceEmptyDirPerm != "" {
		m, perr := parseOctalMode(cfg.forceEmptyDirPerm)
		if perr != nil {
			log.Error(perr.Error(), nil)
			return 1
		}
		fm := os.FileMode(m)
		forceEmptyDir = &fm
	}

	entries, err := enumerate.Walk(enumerate.Options{
		Roots:             roots,
		ForceFilePerm:      forceFile,
		ForceDirPerm:       forceDir,
		ForceEmptyDirPerm:  forceEmptyDir,
		Warn:               warnFn(log),
	})
	if err != nil {
		log.Error("enumeration failed", logx.Fields{"error": err.Error()})
		closeIfFile(out, cfg.file)
		return 2
	}

	if cfg.noAbsSymlink {
		for i := range entries {
			if entries[i].Kind == container.KindSymlink {
				entries[i].AbsTarget = ""
			}
		}
	}

	if cfg.preserveSymlinks {
		for i := range entries {
			e := &entries[i]
			if e.Kind == container.KindSymlink && e.AbsTarget == "" && e.RelTarget != "" {
				dir := filepath.Dir(e.Path)
				abs, aerr := filepath.Abs(filepath.Join(dir, e.RelTarget))
				if aerr == nil {
					e.AbsTarget = filepath.ToSlash(abs)
				}
			}
		}
	}

	sel := cfg.buildSelector()
	for i := range entries {
		entries[i].NoCompress = sel.IsNoCompress(entries[i].Path)
	}

	chunkMin, err := parseSize(cfg.chunkMinSizeRaw)
	if err != nil {
		log.Error(err.Error(), nil)
		closeIfFile(out, cfg.file)
		return 1
	}

	prog := progress.New(int64(len(entries)))
	progress.WriteStderrReporter(prog, log.Writer())

	w := container.NewWriter(out, container.WriteOptions{
		Version:           cfg.writeVersion,
		Compressor:        cfg.compressor,
		Decompressor:      cfg.decompressor,
		ChunkMinSize:      chunkMin,
		PreSortFiles:      !cfg.noPreSortFiles,
		SortFilesByName:   cfg.sortFilesByName,
		PreserveEmptyDirs: !cfg.noPreserveEmptyDirs,
		Prefix:            cfg.prefix,
		Selector:          sel,
		AllowDoubleDot:    cfg.allowDoubleDot,
		NoSafeLinks:       cfg.noSafeLinks,
		TempDir:           cfg.tempFilesDir,
		ForceTmpfile:      cfg.forceTmpfile,
		Progress:          prog,
		Warn:              warnFn(log),
	})

	writeErr := w.Write(entries)
	closeErr := closeIfFile(out, cfg.file)

	if writeErr != nil {
		if cfg.file != "-" {
			os.Remove(cfg.file)
		}
		log.Error("create failed", logx.Fields{"error": writeErr.Error()})
		return exitCodeFor(writeErr)
	}
	if closeErr != nil {
		log.Error("create failed on close", logx.Fields{"error": closeErr.Error()})
		return 3
	}
	return 0
}

func closeIfFile(w io.WriteCloser, path string) error {
	if path == "-" {
		return nil
	}
	return w.Close()
}

func doExtract(cfg *config, log *logx.Logger) int {
	return runRead(cfg, log, false)
}

func doExamine(cfg *config, log *logx.Logger) int {
	return runRead(cfg, log, true)
}

func runRead(cfg *config, log *logx.Logger, examine bool) int {
	in, err := openArchiveForRead(cfg)
	if err != nil {
		log.Error("cannot open archive for read", logx.Fields{"error": err.Error()})
		return 4
	}
	defer in.Close()

	if !examine && cfg.cwd != "" {
		if err := os.Chdir(cfg.cwd); err != nil {
			log.Error("cannot change directory", logx.Fields{"error": err.Error()})
			return 1
		}
	}

	remap, err := cfg.buildRemapper(hostlookup.UserNameToID, hostlookup.GroupNameToID)
	if err != nil {
		log.Error(err.Error(), nil)
		return 1
	}

	r := container.NewReader(in, container.ReadOptions{
		Examine:           examine,
		OverwriteExtract:  cfg.overwriteExtract,
		AllowDoubleDot:    cfg.allowDoubleDot,
		PreservePerm:      true,
		PreserveOwner:     true,
		Selector:          cfg.buildSelector(),
		Remap:             remap,
		HostUserNameToID:  hostlookup.UserNameToID,
		HostGroupNameToID: hostlookup.GroupNameToID,
		TempDir:           cfg.tempFilesDir,
		Progress:          progress.New(0),
		Warn:              warnFn(log),
		Out:               os.Stderr,
	})

	if err := r.Run(); err != nil {
		log.Error("read failed", logx.Fields{"error": err.Error()})
		return exitCodeFor(err)
	}
	return 0
}
