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

package enumerate_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/sarc/container"
	"github.com/sabouaram/sarc/enumerate"
)

var _ = Describe("Walk", func() {
	It("enumerates files, a subdirectory, and a relative symlink", func() {
		dir, err := os.MkdirTemp("", "sarc-enumerate-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)

		Expect(os.MkdirAll(filepath.Join(dir, "sub"), 0755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("hi"), 0644)).To(Succeed())
		Expect(os.Symlink("a.txt", filepath.Join(dir, "sub", "link"))).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(dir, "sub", "empty"), 0755)).To(Succeed())

		entries, err := enumerate.Walk(enumerate.Options{Roots: []string{dir}, Cwd: dir})
		Expect(err).ToNot(HaveOccurred())

		var sawFile, sawLink, sawEmptyDir, sawNonEmptyDir bool
		for _, e := range entries {
			switch e.Kind {
			case container.KindFile:
				if e.Path == "sub/a.txt" {
					sawFile = true
					Expect(e.Size).To(Equal(uint64(2)))
				}
			case container.KindSymlink:
				if e.Path == "sub/link" {
					sawLink = true
					Expect(e.RelTarget).To(Equal("a.txt"))
				}
			case container.KindDir:
				if e.Path == "sub/empty" {
					sawEmptyDir = true
				}
				if e.Path == "sub" {
					sawNonEmptyDir = true
				}
			}
		}

		Expect(sawFile).To(BeTrue())
		Expect(sawLink).To(BeTrue())
		Expect(sawEmptyDir).To(BeTrue())
		Expect(sawNonEmptyDir).To(BeFalse())
	})
})
