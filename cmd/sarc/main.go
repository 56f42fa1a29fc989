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

// Command sarc is the archiver's command-line front end: it wires flag
// parsing to the container writer/reader, the filesystem enumerator, the
// entry selector, and the identity remapper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	arcerr "github.com/sabouaram/sarc/archerr"
	liberr "github.com/sabouaram/sarc/errors"
	"github.com/sabouaram/sarc/logx"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cfg, fs, err := parseFlags(argv)
	if err != nil {
		if perr, ok := err.(*pflag.FlagParseError); ok {
			fmt.Fprintln(os.Stderr, perr.Error())
			return 7
		}
		fmt.Fprintln(os.Stderr, err.Error())
		return 7
	}
	if cfg.help {
		fs.Usage()
		return 0
	}

	log := logx.NewStderr(logLevel(cfg.verbose))

	if err := cfg.validate(); err != nil {
		log.Error(err.Error(), nil)
		return exitCodeFor(err)
	}

	switch {
	case cfg.create:
		return doCreate(cfg, log)
	case cfg.extract:
		return doExtract(cfg, log)
	case cfg.examine:
		return doExamine(cfg, log)
	}
	return 1
}

func logLevel(verbose bool) logx.Level {
	if verbose {
		return logx.DebugLevel
	}
	return logx.InfoLevel
}

func exitCodeFor(err error) int {
	if ce, ok := err.(liberr.Error); ok {
		return arcerr.ExitCode(ce.GetCode())
	}
	return 1
}
