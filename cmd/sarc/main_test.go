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
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CLI flag parsing", func() {
	It("rejects zero selected modes", func() {
		cfg, _, err := parseFlags([]string{"-f", "x"})
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.validate()).ToNot(Succeed())
	})

	It("rejects more than one selected mode", func() {
		cfg, _, err := parseFlags([]string{"-c", "-x", "-f", "x"})
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.validate()).ToNot(Succeed())
	})

	It("requires -f", func() {
		cfg, _, err := parseFlags([]string{"-c"})
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.validate()).ToNot(Succeed())
	})

	It("requires --compressor and --decompressor together", func() {
		cfg, _, err := parseFlags([]string{"-c", "-f", "x", "--compressor", "gzip"})
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.validate()).ToNot(Succeed())
	})

	It("accepts a well-formed create invocation", func() {
		cfg, _, err := parseFlags([]string{"-c", "-f", "out.sarc", "--write-version", "3", "src"})
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.validate()).To(Succeed())
		Expect(cfg.roots).To(Equal([]string{"src"}))
		Expect(cfg.writeVersion).To(Equal(uint16(3)))
	})
})

var _ = Describe("parseSize", func() {
	It("parses a bare byte count", func() {
		n, err := parseSize("1024")
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(uint64(1024)))
	})

	It("parses binary and decimal suffixes", func() {
		n, err := parseSize("1KiB")
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(uint64(1024)))

		n, err = parseSize("1MB")
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(uint64(1000 * 1000)))
	})

	It("rejects a malformed size", func() {
		_, err := parseSize("banana")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("create/extract/examine end to end", func() {
	It("round-trips a small tree through create then extract", func() {
		srcDir, err := os.MkdirTemp("", "sarc-cli-src-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(srcDir)
		Expect(os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0644)).To(Succeed())

		workDir, err := os.MkdirTemp("", "sarc-cli-work-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(workDir)

		archivePath := filepath.Join(workDir, "out.sarc")
		code := run([]string{"-c", "-f", archivePath, "-C", srcDir, "--write-version", "1", "a.txt"})
		Expect(code).To(Equal(0))

		destDir := filepath.Join(workDir, "dest")
		Expect(os.MkdirAll(destDir, 0755)).To(Succeed())
		code = run([]string{"-x", "-f", archivePath, "-C", destDir})
		Expect(code).To(Equal(0))

		got, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(got)).To(Equal("hello"))
	})

	It("refuses to overwrite an existing archive without --overwrite-create", func() {
		workDir, err := os.MkdirTemp("", "sarc-cli-work-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(workDir)

		archivePath := filepath.Join(workDir, "out.sarc")
		Expect(os.WriteFile(archivePath, []byte("existing"), 0644)).To(Succeed())

		code := run([]string{"-c", "-f", archivePath, "-C", workDir})
		Expect(code).To(Equal(2))
	})

	It("reports a usage error with exit code 1 for a bad write version", func() {
		code := run([]string{"-c", "-f", "-", "--write-version", "9"})
		Expect(code).To(Equal(1))
	})
})
