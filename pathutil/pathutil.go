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

// Package pathutil normalizes and validates archive entry paths, and
// computes the relative symlink targets the writer emits.
package pathutil

import (
	"path/filepath"
	"strings"

	arcerr "github.com/sabouaram/sarc/archerr"
	liberr "github.com/sabouaram/sarc/errors"
)

// Normalize strips a leading run of "./", ".", "/" components (collapsing
// them to an empty prefix), collapses every internal "/./" to "/", and
// removes trailing "/"s. It does not resolve ".." components. It is
// idempotent: Normalize(Normalize(p)) == Normalize(p).
func Normalize(p string) string {
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case p == ".":
			p = ""
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			goto collapsed
		}
	}
collapsed:
	for strings.Contains(p, "/./") {
		p = strings.Replace(p, "/./", "/", 1)
	}
	p = strings.TrimRight(p, "/")
	return p
}

// Validate checks a normalized path against the rules every stored or
// extracted path must satisfy. allowDoubleDot permits ".." path components
// (the caller's --allow-double-dot flag).
func Validate(p string, allowDoubleDot bool) error {
	if p == "" {
		return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "empty path"))
	}
	if strings.HasPrefix(p, "/") {
		return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "path must not be absolute"))
	}
	if !allowDoubleDot {
		for _, comp := range strings.Split(p, "/") {
			if comp == ".." {
				return arcerr.ErrInvalidFile.Error(liberr.New(arcerr.ErrInvalidFile.Uint16(), "path must not contain a .. component"))
			}
		}
	}
	return nil
}

// WithinCwd reports whether the extraction target for entry path p, resolved
// against anchor, stays inside anchor. Used by extract-mode validation (§4.3,
// "the final materialization target must resolve to within the cwd anchor").
func WithinCwd(anchor, p string) bool {
	target := filepath.Join(anchor, p)
	rel, err := filepath.Rel(anchor, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// RelativeTarget computes the relative symlink text from absolute link
// source L to absolute target T: find their longest common directory prefix
// ending at a '/', emit "../" for each remaining directory component of L,
// then append the unique tail of T.
func RelativeTarget(linkSource, target string) string {
	ld := filepath.Dir(linkSource)

	ldParts := splitNonEmpty(ld)
	tParts := splitNonEmpty(target)

	common := 0
	for common < len(ldParts) && common < len(tParts) && ldParts[common] == tParts[common] {
		common++
	}

	up := len(ldParts) - common
	tail := tParts[common:]

	var sb strings.Builder
	for i := 0; i < up; i++ {
		sb.WriteString("../")
	}
	sb.WriteString(strings.Join(tail, "/"))
	return sb.String()
}

func splitNonEmpty(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StripPrefix removes a v4+ archive prefix from a stored path before path
// validation, per §4.6 ("the prefix ... must be stripped on read before path
// validation"). It returns p unchanged if prefix is empty or not a match.
func StripPrefix(prefix, p string) string {
	if prefix == "" {
		return p
	}
	trimmed := strings.TrimPrefix(prefix, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return p
	}
	if p == trimmed {
		return ""
	}
	if strings.HasPrefix(p, trimmed+"/") {
		return p[len(trimmed)+1:]
	}
	return p
}

// ApplyPrefix prepends the v4+ prefix to a path before it is stored on write.
func ApplyPrefix(prefix, p string) string {
	if prefix == "" {
		return p
	}
	trimmed := strings.TrimPrefix(prefix, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return p
	}
	if p == "" {
		return trimmed
	}
	return trimmed + "/" + p
}
