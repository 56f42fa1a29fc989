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

// Package identity implements the uid/gid and username/groupname remapping
// applied on extract: four overlaid maps per dimension (id->id, id->name,
// name->id, name->name) with a common lookup order, plus the process-wide
// force/prefer overrides the CLI exposes. Create does not remap: it stores
// the uid/gid and names as enumerated.
package identity

import (
	"fmt"

	arcerr "github.com/sabouaram/sarc/archerr"
	liberr "github.com/sabouaram/sarc/errors"
)

// HostNameToID resolves a username/groupname to a numeric id via the host
// system, typically identity/hostlookup.UserNameToID or GroupNameToID.
type HostNameToID func(name string) (id uint32, ok bool)

// Map holds the four overlaid id<->name maps for one dimension (user or
// group). Lookups work on the zero value, but the Map* registration methods
// write into its maps, so a Map that is filled in comes from NewMap.
type Map struct {
	idToID     map[uint32]uint32
	idToName   map[uint32]string
	nameToID   map[string]uint32
	nameToName map[string]string
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{
		idToID:     make(map[uint32]uint32),
		idToName:   make(map[uint32]string),
		nameToID:   make(map[string]uint32),
		nameToName: make(map[string]string),
	}
}

// MapIDToID registers a src->dst numeric id remap. A duplicate src key is a
// fatal configuration error (§4.4: "Conflicts during map construction ...
// fatal configuration error").
func (m *Map) MapIDToID(src, dst uint32) error {
	if _, ok := m.idToID[src]; ok {
		return conflict(src)
	}
	m.idToID[src] = dst
	return nil
}

// MapIDToName registers a src-id->dst-name remap.
func (m *Map) MapIDToName(src uint32, dst string) error {
	if _, ok := m.idToName[src]; ok {
		return conflict(src)
	}
	m.idToName[src] = dst
	return nil
}

// MapNameToID registers a src-name->dst-id remap.
func (m *Map) MapNameToID(src string, dst uint32) error {
	if _, ok := m.nameToID[src]; ok {
		return conflict(src)
	}
	m.nameToID[src] = dst
	return nil
}

// MapNameToName registers a src-name->dst-name remap.
func (m *Map) MapNameToName(src, dst string) error {
	if _, ok := m.nameToName[src]; ok {
		return conflict(src)
	}
	m.nameToName[src] = dst
	return nil
}

func conflict(key interface{}) error {
	return arcerr.ErrFailedToCreateMap.Error(liberr.New(arcerr.ErrFailedToCreateMap.Uint16(), fmt.Sprintf("duplicate identity map key %v", key)))
}

// ResolveFromID resolves a final numeric id given a source numeric id, per
// the §4.4 lookup order: id->id, else id->name then a host name->id lookup,
// else identity (the source id itself, found=false).
func (m *Map) ResolveFromID(srcID uint32, hostNameToID HostNameToID) (dstID uint32, found bool) {
	if dst, ok := m.idToID[srcID]; ok {
		return dst, true
	}
	if name, ok := m.idToName[srcID]; ok {
		if dst, ok := hostNameToID(name); ok {
			return dst, true
		}
	}
	return srcID, false
}

// ResolveFromName resolves a final numeric id given a source name, per the
// §4.4 lookup order: name->id, else name->name then a host name->id lookup,
// else a direct host name->id lookup on the source name.
func (m *Map) ResolveFromName(srcName string, hostNameToID HostNameToID) (dstID uint32, found bool) {
	if dst, ok := m.nameToID[srcName]; ok {
		return dst, true
	}
	if name, ok := m.nameToName[srcName]; ok {
		if dst, ok := hostNameToID(name); ok {
			return dst, true
		}
	}
	if dst, ok := hostNameToID(srcName); ok {
		return dst, true
	}
	return 0, false
}

// Inverse builds the map with every (src,dst) pair reversed, used by
// property tests that verify applying a map then its inverse restores the
// original id/name.
func (m *Map) Inverse() *Map {
	inv := NewMap()
	for k, v := range m.idToID {
		inv.idToID[v] = k
	}
	for k, v := range m.idToName {
		inv.nameToID[v] = k
	}
	for k, v := range m.nameToID {
		inv.idToName[v] = k
	}
	for k, v := range m.nameToName {
		inv.nameToName[v] = k
	}
	return inv
}

// Remapper combines the user and group Maps with the CLI's force/prefer
// overrides (--force-uid, --extract-prefer-uid, ...).
type Remapper struct {
	User  *Map
	Group *Map

	PreferUID bool
	PreferGID bool

	ForceUID *uint32
	ForceGID *uint32
	ForceUser  *string
	ForceGroup *string
}

// NewRemapper returns a Remapper with empty user/group maps.
func NewRemapper() *Remapper {
	return &Remapper{User: NewMap(), Group: NewMap()}
}

// ResolveUID computes the final uid to apply at extraction time for an
// entry carrying srcUID/srcUser, honoring --force-uid and the prefer-id/
// prefer-name flag governing which archive dimension is authoritative.
func (r *Remapper) ResolveUID(srcUID uint32, srcUser string, hostNameToID HostNameToID) uint32 {
	if r.ForceUID != nil {
		return *r.ForceUID
	}
	if r.PreferUID || srcUser == "" {
		if dst, ok := r.User.ResolveFromID(srcUID, hostNameToID); ok {
			return dst
		}
	}
	if srcUser != "" {
		if dst, ok := r.User.ResolveFromName(srcUser, hostNameToID); ok {
			return dst
		}
	}
	if dst, ok := r.User.ResolveFromID(srcUID, hostNameToID); ok {
		return dst
	}
	return srcUID
}

// ResolveGID computes the final gid to apply at extraction time, mirroring
// ResolveUID for the group dimension.
func (r *Remapper) ResolveGID(srcGID uint32, srcGroup string, hostNameToID HostNameToID) uint32 {
	if r.ForceGID != nil {
		return *r.ForceGID
	}
	if r.PreferGID || srcGroup == "" {
		if dst, ok := r.Group.ResolveFromID(srcGID, hostNameToID); ok {
			return dst
		}
	}
	if srcGroup != "" {
		if dst, ok := r.Group.ResolveFromName(srcGroup, hostNameToID); ok {
			return dst
		}
	}
	if dst, ok := r.Group.ResolveFromID(srcGID, hostNameToID); ok {
		return dst
	}
	return srcGID
}
