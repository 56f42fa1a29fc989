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

package identity_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/sarc/identity"
)

var noHost = func(string) (uint32, bool) { return 0, false }

var _ = Describe("Map", func() {
	It("rejects a duplicate key", func() {
		m := identity.NewMap()
		Expect(m.MapIDToID(1000, 2000)).ToNot(HaveOccurred())
		Expect(m.MapIDToID(1000, 3000)).To(HaveOccurred())
	})

	It("resolves id->id before id->name", func() {
		m := identity.NewMap()
		Expect(m.MapIDToID(1000, 2000)).ToNot(HaveOccurred())
		Expect(m.MapIDToName(1000, "deploy")).ToNot(HaveOccurred())

		dst, ok := m.ResolveFromID(1000, noHost)
		Expect(ok).To(BeTrue())
		Expect(dst).To(Equal(uint32(2000)))
	})

	It("falls back to identity when nothing matches", func() {
		m := identity.NewMap()
		dst, ok := m.ResolveFromID(42, noHost)
		Expect(ok).To(BeFalse())
		Expect(dst).To(Equal(uint32(42)))
	})

	It("applying a map then its inverse restores the original id", func() {
		m := identity.NewMap()
		Expect(m.MapIDToID(1000, 2000)).ToNot(HaveOccurred())

		dst, ok := m.ResolveFromID(1000, noHost)
		Expect(ok).To(BeTrue())

		inv := m.Inverse()
		back, ok := inv.ResolveFromID(dst, noHost)
		Expect(ok).To(BeTrue())
		Expect(back).To(Equal(uint32(1000)))
	})
})

var _ = Describe("Remapper", func() {
	It("--force-uid overrides everything", func() {
		r := identity.NewRemapper()
		forced := uint32(9999)
		r.ForceUID = &forced

		Expect(r.ResolveUID(1, "root", noHost)).To(Equal(uint32(9999)))
	})

	It("uses a map-user entry when present", func() {
		r := identity.NewRemapper()
		Expect(r.User.MapNameToID("alice", 501)).ToNot(HaveOccurred())

		Expect(r.ResolveUID(100, "alice", noHost)).To(Equal(uint32(501)))
	})
})
