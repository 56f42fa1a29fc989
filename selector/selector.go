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

// Package selector implements the entry whitelist/blacklist filter and the
// do-not-compress extension set applied identically on write and read.
package selector

import "strings"

// Family is one of the four predicate families a whitelist/blacklist
// declaration can use.
type Family int

const (
	// ContainsAny is satisfied if the path contains any of the family's terms.
	ContainsAny Family = iota
	// ContainsAll is satisfied only if the path contains every one of the family's terms.
	ContainsAll
	// BeginsWith is satisfied if the path begins with any of the family's terms.
	BeginsWith
	// EndsWith is satisfied if the path ends with any of the family's terms.
	EndsWith
)

// Rule is one whitelist or blacklist declaration: a predicate family plus
// its term list.
type Rule struct {
	Family Family
	Terms  []string
}

func (r Rule) matches(path string) bool {
	switch r.Family {
	case ContainsAny:
		for _, t := range r.Terms {
			if strings.Contains(path, t) {
				return true
			}
		}
		return len(r.Terms) == 0
	case ContainsAll:
		for _, t := range r.Terms {
			if !strings.Contains(path, t) {
				return false
			}
		}
		return true
	case BeginsWith:
		for _, t := range r.Terms {
			if strings.HasPrefix(path, t) {
				return true
			}
		}
		return len(r.Terms) == 0
	case EndsWith:
		for _, t := range r.Terms {
			if strings.HasSuffix(path, t) {
				return true
			}
		}
		return len(r.Terms) == 0
	}
	return false
}

// Selector holds the whitelist/blacklist rules (one per Family, each
// optional), the case-insensitive flag, and the do-not-compress extension
// set. The zero value accepts everything and compresses everything.
type Selector struct {
	Whitelist []Rule
	Blacklist []Rule

	CaseInsensitive bool

	// noCompressExt holds lowercase ".ext" suffixes stored raw even when a
	// compressor is configured.
	noCompressExt map[string]struct{}
}

// New returns an empty Selector.
func New() *Selector {
	return &Selector{noCompressExt: make(map[string]struct{})}
}

// AddNoCompressExt registers an extension (e.g. ".png") in the do-not-compress set.
func (s *Selector) AddNoCompressExt(ext string) {
	if s.noCompressExt == nil {
		s.noCompressExt = make(map[string]struct{})
	}
	s.noCompressExt[strings.ToLower(ext)] = struct{}{}
}

// UsePreset seeds the do-not-compress set with the known pre-compressed
// formats: the archiver's own external-compressor aliases plus common
// pre-compressed media containers.
func (s *Selector) UsePreset() {
	for _, ext := range PresetNoCompressExt {
		s.AddNoCompressExt(ext)
	}
}

// PresetNoCompressExt is the --use-file-exts-preset extension list, grounded
// on the known compressed-archive extensions (gzip/bzip2/lz4/xz/zstd/zip/7z)
// plus common pre-compressed media containers.
var PresetNoCompressExt = []string{
	".gz", ".bz2", ".lz4", ".xz", ".zst", ".zip", ".7z",
	".png", ".jpg", ".jpeg", ".gif", ".mp3", ".mp4", ".webp",
}

// IsNoCompress reports whether path's extension is in the do-not-compress set.
func (s *Selector) IsNoCompress(path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return false
	}
	ext := strings.ToLower(path[i:])
	_, ok := s.noCompressExt[ext]
	return ok
}

// Accept applies the §4.5 ordered filter: every whitelist family present
// must be satisfied (families AND together), then any matching blacklist
// rule drops the entry.
func (s *Selector) Accept(path string) bool {
	p := path
	if s.CaseInsensitive {
		p = strings.ToLower(p)
	}

	byFamily := map[Family][]Rule{}
	for _, r := range s.Whitelist {
		rr := r
		if s.CaseInsensitive {
			rr.Terms = lower(rr.Terms)
		}
		byFamily[rr.Family] = append(byFamily[rr.Family], rr)
	}
	for fam, rules := range byFamily {
		ok := false
		for _, r := range rules {
			if r.matches(p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		_ = fam
	}

	for _, r := range s.Blacklist {
		rr := r
		if s.CaseInsensitive {
			rr.Terms = lower(rr.Terms)
		}
		if rr.matches(p) {
			return false
		}
	}

	return true
}

func lower(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
