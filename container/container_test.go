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

package container_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/sarc/container"
)

func sampleEntries() []container.Entry {
	return []container.Entry{
		{
			Path: "a.txt", Kind: container.KindFile, Mode: 0644,
			Size: 13, Body: strings.NewReader("hello, archive"[:13]),
		},
		{
			Path: "b.txt", Kind: container.KindFile, Mode: 0600,
			Size: 5, Body: strings.NewReader("world"),
		},
		{
			Path: "link", Kind: container.KindSymlink, Mode: 0777,
			RelTarget: "a.txt",
		},
		{
			Path: "emptydir", Kind: container.KindDir, Mode: 0755,
		},
	}
}

var _ = Describe("Writer/Reader round trip", func() {
	for v := uint16(0); v <= 5; v++ {
		version := v

		It(fmt.Sprintf("round-trips entries through version %d", version), func() {
			var buf bytes.Buffer
			w := container.NewWriter(&buf, container.WriteOptions{
				Version:           version,
				PreserveEmptyDirs: true,
			})
			Expect(w.Write(sampleEntries())).ToNot(HaveOccurred())

			dir, err := os.MkdirTemp("", "sarc-container-*")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			reader := container.NewReader(&buf, container.ReadOptions{
				DestDir:        dir,
				AllowDoubleDot: false,
			})
			Expect(reader.Run()).ToNot(HaveOccurred())

			content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("hello, archiv"))

			content, err = os.ReadFile(filepath.Join(dir, "b.txt"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("world"))

			if version >= 1 {
				target, err := os.Readlink(filepath.Join(dir, "link"))
				Expect(err).ToNot(HaveOccurred())
				Expect(target).To(Equal("a.txt"))
			}

			if version >= 2 {
				info, err := os.Stat(filepath.Join(dir, "emptydir"))
				Expect(err).ToNot(HaveOccurred())
				Expect(info.IsDir()).To(BeTrue())
			}
		})
	}

	It("compresses and decompresses chunk bodies through an external identity command", func() {
		var buf bytes.Buffer
		w := container.NewWriter(&buf, container.WriteOptions{
			Version:      3,
			Compressor:   "cat",
			Decompressor: "cat",
		})
		Expect(w.Write(sampleEntries())).ToNot(HaveOccurred())

		dir, err := os.MkdirTemp("", "sarc-container-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)

		reader := container.NewReader(&buf, container.ReadOptions{DestDir: dir})
		Expect(reader.Run()).ToNot(HaveOccurred())

		content, err := os.ReadFile(filepath.Join(dir, "b.txt"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(Equal("world"))
	})

	It("drops an unsafe symlink whose target is not archived", func() {
		entries := []container.Entry{
			{Path: "dangling", Kind: container.KindSymlink, Mode: 0777, RelTarget: "not-in-archive.txt"},
		}

		var dropped []string
		var buf bytes.Buffer
		w := container.NewWriter(&buf, container.WriteOptions{
			Version: 1,
			Warn: func(msg string, fields map[string]interface{}) {
				dropped = append(dropped, msg)
			},
		})
		Expect(w.Write(entries)).ToNot(HaveOccurred())
		Expect(dropped).To(ContainElement("dropping unsafe symlink"))

		dir, err := os.MkdirTemp("", "sarc-container-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)

		reader := container.NewReader(&buf, container.ReadOptions{DestDir: dir})
		Expect(reader.Run()).ToNot(HaveOccurred())

		_, err = os.Lstat(filepath.Join(dir, "dangling"))
		Expect(err).To(HaveOccurred())
	})

	It("refuses a write version beyond the supported range", func() {
		var buf bytes.Buffer
		w := container.NewWriter(&buf, container.WriteOptions{Version: 6})
		Expect(w.Write(nil)).To(HaveOccurred())
	})

	It("rejects an archive with a bad magic", func() {
		reader := container.NewReader(strings.NewReader("not-an-archive"), container.ReadOptions{})
		Expect(reader.Run()).To(HaveOccurred())
	})
})
