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

// Package archerr enumerates the archiver's error kinds as registered
// liberr.CodeError values, and maps each to the process exit code defined by
// the CLI surface.
package archerr

import (
	"fmt"

	liberr "github.com/sabouaram/sarc/errors"
)

const minPkgSarc = 5000

const (
	ErrInvalidFile liberr.CodeError = iota + minPkgSarc
	ErrFailedToWrite
	ErrNoCompressor
	ErrNoDecompressor
	ErrInvalidParsedState
	ErrInvalidWriteVersion
	ErrInternalError
	ErrFailedToCreateMap
	ErrFailedToExtractSymlink
	ErrFailedToChangeCwd
	ErrCompressionError
	ErrDecompressionError
	ErrPermissionSetFail
	ErrUidGidSetFail
	ErrSigInt
	ErrTooManyDirs
)

func init() {
	if liberr.ExistInMapMessage(ErrInvalidFile) {
		panic(fmt.Errorf("error code collision sarc/archerr"))
	}
	liberr.RegisterIdFctMessage(ErrInvalidFile, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrInvalidFile:
		return "archive is malformed, truncated, or has an unrecognized magic/version"
	case ErrFailedToWrite:
		return "cannot write to the archive sink"
	case ErrNoCompressor:
		return "no compressor command configured"
	case ErrNoDecompressor:
		return "no decompressor command configured"
	case ErrInvalidParsedState:
		return "parsed state is inconsistent with the declared format version"
	case ErrInvalidWriteVersion:
		return "requested write version is not supported"
	case ErrInternalError:
		return "internal invariant violated"
	case ErrFailedToCreateMap:
		return "identity map construction failed"
	case ErrFailedToExtractSymlink:
		return "symlink could not be materialized"
	case ErrFailedToChangeCwd:
		return "could not change working directory"
	case ErrCompressionError:
		return "compressor child process failed"
	case ErrDecompressionError:
		return "decompressor child process failed"
	case ErrPermissionSetFail:
		return "chmod on extracted entry failed"
	case ErrUidGidSetFail:
		return "chown on extracted entry failed"
	case ErrSigInt:
		return "interrupted by SIGINT"
	case ErrTooManyDirs:
		return "exhausted temp-file collision avoidance"
	}

	return liberr.NullMessage
}

// Kind identifies which row of the error taxonomy table an error belongs to,
// independent of the registered message text.
type Kind = liberr.CodeError

// ExitCode maps a Kind to the CLI exit code defined by the §6.2 surface.
// Kinds not listed there (warnings, best-effort failures) map to 1.
func ExitCode(k Kind) int {
	switch k {
	case ErrFailedToWrite:
		return 3
	case ErrInvalidFile:
		return 5
	case ErrNoCompressor, ErrNoDecompressor, ErrInvalidParsedState, ErrInvalidWriteVersion:
		return 1
	case ErrSigInt:
		return 1
	case ErrTooManyDirs:
		return 1
	default:
		return 1
	}
}
