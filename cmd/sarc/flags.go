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
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	arcerr "github.com/sabouaram/sarc/archerr"
	liberr "github.com/sabouaram/sarc/errors"
	"github.com/sabouaram/sarc/identity"
	"github.com/sabouaram/sarc/selector"
)

// config holds every §6.2 flag, parsed but not yet validated against the
// mutually-exclusive-mode and required-filename rules.
type config struct {
	help    bool
	verbose bool

	create  bool
	extract bool
	examine bool

	file string
	cwd  string

	compressor   string
	decompressor string

	overwriteCreate  bool
	overwriteExtract bool

	noAbsSymlink     bool
	preserveSymlinks bool
	noSafeLinks      bool

	writeVersion      uint16
	chunkMinSizeRaw   string
	noPreSortFiles    bool
	sortFilesByName   bool
	noPreserveEmptyDirs bool

	forceUID        int64
	forceGID        int64
	forceUser       string
	forceGroup      string
	extractPreferUID bool
	extractPreferGID bool
	mapUser          []string
	mapGroup         []string

	forceFilePerm      string
	forceDirPerm       string
	forceEmptyDirPerm  string

	prefix              string
	whitelistContains   []string
	whitelistContainsAll []string
	whitelistBegins     []string
	whitelistEnds       []string
	blacklistContains   []string
	blacklistContainsAll []string
	blacklistBegins     []string
	blacklistEnds       []string
	wbCaseInsensitive   bool
	addFileExt          []string
	useFileExtsPreset   bool
	allowDoubleDot      bool

	tempFilesDir string
	forceTmpfile bool

	roots []string
}

func parseFlags(argv []string) (*config, *pflag.FlagSet, error) {
	cfg := &config{}
	fs := pflag.NewFlagSet("sarc", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: sarc (-c|-x|-t) -f archive [-C dir] [options] [paths...]")
		fs.PrintDefaults()
	}

	fs.BoolVarP(&cfg.help, "help", "h", false, "show this help")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging")

	fs.BoolVarP(&cfg.create, "create", "c", false, "create an archive")
	fs.BoolVarP(&cfg.extract, "extract", "x", false, "extract an archive")
	fs.BoolVarP(&cfg.examine, "examine", "t", false, "list an archive's entries")

	fs.StringVarP(&cfg.file, "file", "f", "", "archive path, or - for stdio")
	fs.StringVarP(&cfg.cwd, "directory", "C", "", "change to dir before any operation")

	fs.StringVar(&cfg.compressor, "compressor", "", "external compressor command")
	fs.StringVar(&cfg.decompressor, "decompressor", "", "external decompressor command")

	fs.BoolVar(&cfg.overwriteCreate, "overwrite-create", false, "overwrite an existing archive file")
	fs.BoolVar(&cfg.overwriteExtract, "overwrite-extract", false, "overwrite existing files on extract")

	fs.BoolVar(&cfg.noAbsSymlink, "no-abs-symlink", false, "never store an absolute symlink target")
	fs.BoolVar(&cfg.preserveSymlinks, "preserve-symlinks", false, "store symlinks in both abs and rel form")
	fs.BoolVar(&cfg.noSafeLinks, "no-safe-links", false, "disable dropping of symlinks pointing outside the archived set")

	fs.Uint16Var(&cfg.writeVersion, "write-version", 5, "archive body version, 0..5")
	fs.StringVar(&cfg.chunkMinSizeRaw, "chunk-min-size", "", "minimum chunk size, e.g. 256MiB")
	fs.BoolVar(&cfg.noPreSortFiles, "no-pre-sort-files", false, "disable entry pre-sorting before chunking")
	fs.BoolVar(&cfg.sortFilesByName, "sort-files-by-name", false, "sort by name ascending instead of size descending")
	fs.BoolVar(&cfg.noPreserveEmptyDirs, "no-preserve-empty-dirs", false, "do not store empty directories")

	fs.Int64Var(&cfg.forceUID, "force-uid", -1, "force every extracted entry to this uid")
	fs.Int64Var(&cfg.forceGID, "force-gid", -1, "force every extracted entry to this gid")
	fs.StringVar(&cfg.forceUser, "force-user", "", "force every extracted entry to this user")
	fs.StringVar(&cfg.forceGroup, "force-group", "", "force every extracted entry to this group")
	fs.BoolVar(&cfg.extractPreferUID, "extract-prefer-uid", false, "prefer the archived uid over the archived user name")
	fs.BoolVar(&cfg.extractPreferGID, "extract-prefer-gid", false, "prefer the archived gid over the archived group name")
	fs.StringArrayVar(&cfg.mapUser, "map-user", nil, "remap a user, as A:B (id or name on either side)")
	fs.StringArrayVar(&cfg.mapGroup, "map-group", nil, "remap a group, as A:B (id or name on either side)")

	fs.StringVar(&cfg.forceFilePerm, "force-file-permissions", "", "on create, store every regular file with this octal mode")
	fs.StringVar(&cfg.forceDirPerm, "force-dir-permissions", "", "on create, store every empty directory with this octal mode unless --force-empty-dir-permissions is set")
	fs.StringVar(&cfg.forceEmptyDirPerm, "force-empty-dir-permissions", "", "on create, store every empty directory with this octal mode")

	fs.StringVar(&cfg.prefix, "prefix", "", "v4+ path prefix")
	fs.StringArrayVar(&cfg.whitelistContains, "whitelist-contains-any", nil, "accept only paths containing any of these terms")
	fs.StringArrayVar(&cfg.whitelistContainsAll, "whitelist-contains-all", nil, "accept only paths containing every one of these terms")
	fs.StringArrayVar(&cfg.whitelistBegins, "whitelist-begins-with", nil, "accept only paths beginning with one of these terms")
	fs.StringArrayVar(&cfg.whitelistEnds, "whitelist-ends-with", nil, "accept only paths ending with one of these terms")
	fs.StringArrayVar(&cfg.blacklistContains, "blacklist-contains-any", nil, "drop paths containing any of these terms")
	fs.StringArrayVar(&cfg.blacklistContainsAll, "blacklist-contains-all", nil, "drop paths containing every one of these terms")
	fs.StringArrayVar(&cfg.blacklistBegins, "blacklist-begins-with", nil, "drop paths beginning with one of these terms")
	fs.StringArrayVar(&cfg.blacklistEnds, "blacklist-ends-with", nil, "drop paths ending with one of these terms")
	fs.BoolVar(&cfg.wbCaseInsensitive, "wb-case-insensitive", false, "match whitelist/blacklist terms case-insensitively")
	fs.StringArrayVar(&cfg.addFileExt, "add-file-ext", nil, "add an extension to the do-not-compress set, e.g. .png")
	fs.BoolVar(&cfg.useFileExtsPreset, "use-file-exts-preset", false, "seed the do-not-compress set with the built-in preset")
	fs.BoolVar(&cfg.allowDoubleDot, "allow-double-dot", false, "allow .. path components")

	fs.StringVar(&cfg.tempFilesDir, "temp-files-dir", "", "directory for temp files used during compression")
	fs.BoolVar(&cfg.forceTmpfile, "force-tmpfile", false, "accepted but has no effect: the writer's temp-file use does not change with it")

	if err := fs.Parse(argv); err != nil {
		return nil, fs, err
	}
	cfg.roots = fs.Args()
	return cfg, fs, nil
}

// validate applies the §6.2 usage rules that are not expressible as pflag
// constraints: mutually-exclusive mode selection and the required filename.
func (c *config) validate() error {
	modes := 0
	for _, b := range []bool{c.create, c.extract, c.examine} {
		if b {
			modes++
		}
	}
	if modes == 0 {
		return liberr.New(arcerr.ErrInvalidParsedState.Uint16(), "exactly one of -c, -x, -t is required")
	}
	if modes > 1 {
		return liberr.New(arcerr.ErrInvalidParsedState.Uint16(), "-c, -x, -t are mutually exclusive")
	}
	if c.file == "" {
		return liberr.New(arcerr.ErrInvalidParsedState.Uint16(), "-f is required")
	}
	if c.writeVersion > 5 {
		return liberr.New(arcerr.ErrInvalidWriteVersion.Uint16(), "write version must be 0..5")
	}
	if (c.compressor == "") != (c.decompressor == "") {
		return liberr.New(arcerr.ErrInvalidParsedState.Uint16(), "--compressor and --decompressor must be given together")
	}
	if c.file != "-" {
		abs, err := filepath.Abs(c.file)
		if err == nil {
			c.file = abs
		}
	}
	return nil
}

func parseOctalMode(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, liberr.New(arcerr.ErrInvalidParsedState.Uint16(), fmt.Sprintf("invalid octal permission %q", s))
	}
	return uint32(v), nil
}

// parseSize parses a byte count with an optional KB/KiB/MB/MiB/GB/GiB suffix.
// No pack library covers this unit grammar, so it is hand-rolled (see DESIGN.md).
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	units := []struct {
		suffix string
		mult   uint64
	}{
		{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30},
		{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			n, err := strconv.ParseUint(strings.TrimSuffix(s, u.suffix), 10, 64)
			if err != nil {
				return 0, liberr.New(arcerr.ErrInvalidParsedState.Uint16(), fmt.Sprintf("invalid --chunk-min-size %q", s))
			}
			return n * u.mult, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, liberr.New(arcerr.ErrInvalidParsedState.Uint16(), fmt.Sprintf("invalid --chunk-min-size %q", s))
	}
	return n, nil
}

// buildSelector translates the whitelist/blacklist/preset flags into a
// selector.Selector.
func (c *config) buildSelector() *selector.Selector {
	sel := selector.New()
	sel.CaseInsensitive = c.wbCaseInsensitive

	add := func(list *[]selector.Rule, fam selector.Family, terms []string) {
		if len(terms) > 0 {
			*list = append(*list, selector.Rule{Family: fam, Terms: terms})
		}
	}
	add(&sel.Whitelist, selector.ContainsAny, c.whitelistContains)
	add(&sel.Whitelist, selector.ContainsAll, c.whitelistContainsAll)
	add(&sel.Whitelist, selector.BeginsWith, c.whitelistBegins)
	add(&sel.Whitelist, selector.EndsWith, c.whitelistEnds)
	add(&sel.Blacklist, selector.ContainsAny, c.blacklistContains)
	add(&sel.Blacklist, selector.ContainsAll, c.blacklistContainsAll)
	add(&sel.Blacklist, selector.BeginsWith, c.blacklistBegins)
	add(&sel.Blacklist, selector.EndsWith, c.blacklistEnds)

	if c.useFileExtsPreset {
		sel.UsePreset()
	}
	for _, ext := range c.addFileExt {
		sel.AddNoCompressExt(ext)
	}
	return sel
}

// buildRemapper translates the identity flags into an identity.Remapper. The
// host lookup callbacks are passed in so tests can stub them.
func (c *config) buildRemapper(userNameToID, groupNameToID identity.HostNameToID) (*identity.Remapper, error) {
	r := identity.NewRemapper()
	r.PreferUID = c.extractPreferUID
	r.PreferGID = c.extractPreferGID

	if c.forceUID >= 0 {
		u := uint32(c.forceUID)
		r.ForceUID = &u
	}
	if c.forceGID >= 0 {
		g := uint32(c.forceGID)
		r.ForceGID = &g
	}
	if c.forceUser != "" {
		if id, ok := userNameToID(c.forceUser); ok {
			r.ForceUID = &id
		}
	}
	if c.forceGroup != "" {
		if id, ok := groupNameToID(c.forceGroup); ok {
			r.ForceGID = &id
		}
	}

	for _, m := range c.mapUser {
		if err := applyMapEntry(r.User, m, userNameToID); err != nil {
			return nil, err
		}
	}
	for _, m := range c.mapGroup {
		if err := applyMapEntry(r.Group, m, groupNameToID); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func applyMapEntry(m *identity.Map, spec string, nameToID identity.HostNameToID) error {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return liberr.New(arcerr.ErrFailedToCreateMap.Uint16(), fmt.Sprintf("invalid map entry %q, want A:B", spec))
	}
	src, dst := parts[0], parts[1]

	srcID, srcIsID := parseUint32(src)
	dstID, dstIsID := parseUint32(dst)

	switch {
	case srcIsID && dstIsID:
		return m.MapIDToID(srcID, dstID)
	case srcIsID && !dstIsID:
		return m.MapIDToName(srcID, dst)
	case !srcIsID && dstIsID:
		return m.MapNameToID(src, dstID)
	default:
		return m.MapNameToName(src, dst)
	}
}

func parseUint32(s string) (uint32, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
