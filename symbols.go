// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// SymbolLayerID identifies one symbol layer within a layer's renderer,
// e.g. "roads/casing".
type SymbolLayerID string

// SymbolLayerSet is a set of symbol layer ids. The zero value is an empty
// set that can be read but not written.
type SymbolLayerSet map[SymbolLayerID]struct{}

// NewSymbolLayerSet returns a set holding ids.
func NewSymbolLayerSet(ids ...SymbolLayerID) SymbolLayerSet {
	s := make(SymbolLayerSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s SymbolLayerSet) Has(id SymbolLayerID) bool {
	_, ok := s[id]
	return ok
}

// Equal reports whether both sets hold the same ids.
func (s SymbolLayerSet) Equal(o SymbolLayerSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in ascending order.
func (s SymbolLayerSet) Sorted() []SymbolLayerID {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns an independent copy of the set.
func (s SymbolLayerSet) Clone() SymbolLayerSet {
	return maps.Clone(s)
}

// SymbolLayerReference names a symbol layer of a specific layer.
type SymbolLayerReference struct {
	LayerID     string
	SymbolLayer SymbolLayerID
}

func (r SymbolLayerReference) String() string {
	return r.LayerID + ":" + string(r.SymbolLayer)
}

// MaskIDProvider allocates label mask ids.
//
// Each distinct combination of label layer, label rule and set of masked
// symbol layer references gets its own id; ids are dense and start at 0, so
// they can index a slice of mask images.
//
// MaskIDProvider is safe for concurrent use.
type MaskIDProvider struct {
	mu     sync.Mutex
	ids    map[string]int
	labels map[string]int
	size   int
}

// NewMaskIDProvider returns an empty provider.
func NewMaskIDProvider() *MaskIDProvider {
	return &MaskIDProvider{
		ids:    make(map[string]int),
		labels: make(map[string]int),
	}
}

// InsertLabelLayer returns the mask id for the given label layer, rule and
// masked symbol layers, allocating a new one on first use.
func (p *MaskIDProvider) InsertLabelLayer(layerID, ruleID string, refs []SymbolLayerReference) int {
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.String()
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	key := labelKey(layerID, ruleID) + "\x00" + strings.Join(keys, "\x01")

	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.ids[key]
	if !ok {
		id = p.size
		p.size++
		p.ids[key] = id
	}
	p.labels[labelKey(layerID, ruleID)] = id
	return id
}

// MaskID returns the id last allocated for a label layer and rule, or -1.
func (p *MaskIDProvider) MaskID(layerID, ruleID string) int {
	if layerID == "" {
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.labels[labelKey(layerID, ruleID)]
	if !ok {
		return -1
	}
	return id
}

// Size returns the number of allocated ids.
func (p *MaskIDProvider) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func labelKey(layerID, ruleID string) string {
	return layerID + "\x00" + ruleID
}
