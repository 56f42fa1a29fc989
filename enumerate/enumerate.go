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

// Package enumerate walks a filesystem root and produces the ordered
// container.Entry stream the writer consumes, resolving each file's
// owning user/group name and each symlink's target: an absolute link gets
// both its absolute target and the relative target computed from it, a
// relative link keeps only its relative text.
package enumerate

import (
	"io/fs"
	"os"
	"path/filepath"

	arcerr "github.com/sabouaram/sarc/archerr"
	"github.com/sabouaram/sarc/container"
	"github.com/sabouaram/sarc/identity/hostlookup"
	"github.com/sabouaram/sarc/pathutil"
)

// Options configures one filesystem walk.
type Options struct {
	// Roots are the filesystem paths to walk, in the order given on the
	// command line. Each may be a file, a directory, or a symlink.
	Roots []string

	// Cwd is the directory every walk is relative to; stored entry paths are
	// relative to it. Defaults to ".".
	Cwd string

	ForceFilePerm     *os.FileMode
	ForceDirPerm      *os.FileMode
	ForceEmptyDirPerm *os.FileMode

	Warn func(msg string, fields map[string]interface{})
}

func (o Options) warn(msg string, fields map[string]interface{}) {
	if o.Warn != nil {
		o.Warn(msg, fields)
	}
}

// Walk returns one container.Entry per filesystem object reachable from
// Roots, in depth-first directory order; opened regular-file bodies remain
// open until the caller's writer reads them.
func Walk(opt Options) ([]container.Entry, error) {
	cwd := opt.Cwd
	if cwd == "" {
		cwd = "."
	}

	var entries []container.Entry

	for _, root := range opt.Roots {
		err := filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				opt.warn("skipping path after stat failure", map[string]interface{}{"path": path, "error": err.Error()})
				return nil
			}

			rel, relErr := filepath.Rel(cwd, path)
			if relErr != nil {
				rel = path
			}
			rel = pathutil.Normalize(filepath.ToSlash(rel))
			if rel == "" {
				return nil
			}

			if info.IsDir() && !dirIsEmpty(path) {
				// Non-empty directories are never archived as entries; their
				// presence is implied by the files and symlinks beneath them.
				return nil
			}

			e, walkErr := opt.describe(path, rel, info)
			if walkErr != nil {
				opt.warn("skipping path after read failure", map[string]interface{}{"path": path, "error": walkErr.Error()})
				return nil
			}
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			return nil, arcerr.ErrInvalidFile.Error(err)
		}
	}

	return entries, nil
}

func dirIsEmpty(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	return err != nil
}

func (o Options) describe(path, rel string, info fs.FileInfo) (container.Entry, error) {
	e := container.Entry{Path: rel, Mode: info.Mode().Perm()}

	uid, gid, err := ownerOf(info)
	if err == nil {
		e.UID, e.GID = uid, gid
		if name, ok := hostlookup.UserIDToName(uid); ok {
			e.UName = name
		}
		if name, ok := hostlookup.GroupIDToName(gid); ok {
			e.GName = name
		}
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		e.Kind = container.KindSymlink
		target, lerr := os.Readlink(path)
		if lerr != nil {
			return e, lerr
		}
		if filepath.IsAbs(target) {
			e.AbsTarget = target
			absSelf, aerr := filepath.Abs(path)
			if aerr == nil {
				e.RelTarget = pathutil.RelativeTarget(filepath.ToSlash(absSelf), filepath.ToSlash(target))
			}
		} else {
			e.RelTarget = filepath.ToSlash(target)
		}

	case info.IsDir():
		// Only empty directories ever reach here (see dirIsEmpty in Walk).
		e.Kind = container.KindDir
		switch {
		case o.ForceEmptyDirPerm != nil:
			e.Mode = *o.ForceEmptyDirPerm
		case o.ForceDirPerm != nil:
			e.Mode = *o.ForceDirPerm
		}

	default:
		e.Kind = container.KindFile
		e.Size = uint64(info.Size())
		if o.ForceFilePerm != nil {
			e.Mode = *o.ForceFilePerm
		}
		f, ferr := os.Open(path)
		if ferr != nil {
			return e, ferr
		}
		e.Body = f
	}

	return e, nil
}
