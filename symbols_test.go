// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolLayerSet(t *testing.T) {
	s := NewSymbolLayerSet("b", "a", "b")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []SymbolLayerID{"a", "b"}, s.Sorted())

	c := s.Clone()
	assert.True(t, c.Equal(s))
	c["c"] = struct{}{}
	assert.False(t, c.Equal(s))
	assert.False(t, s.Has("c"))

	var empty SymbolLayerSet
	assert.False(t, empty.Has("a"))
	assert.True(t, empty.Equal(NewSymbolLayerSet()))
}

func TestMaskIDProvider(t *testing.T) {
	p := NewMaskIDProvider()
	assert.Equal(t, -1, p.MaskID("towns", "r1"))
	assert.Equal(t, -1, p.MaskID("", ""))

	refs := []SymbolLayerReference{{"roads", "center"}, {"rivers", "fill"}}
	id := p.InsertLabelLayer("towns", "r1", refs)
	assert.Equal(t, 0, id)

	reordered := []SymbolLayerReference{{"rivers", "fill"}, {"roads", "center"}, {"roads", "center"}}
	assert.Equal(t, id, p.InsertLabelLayer("towns", "r1", reordered), "reference order and duplicates do not matter")
	assert.Equal(t, 1, p.InsertLabelLayer("towns", "r2", refs))
	assert.Equal(t, 2, p.InsertLabelLayer("towns", "r1", refs[:1]))

	assert.Equal(t, 3, p.Size())
	assert.Equal(t, 2, p.MaskID("towns", "r1"), "last allocation for the rule wins")
	assert.Equal(t, 1, p.MaskID("towns", "r2"))
	assert.Equal(t, "roads:center", refs[0].String())
}

func TestMaskIDProviderConcurrent(t *testing.T) {
	p := NewMaskIDProvider()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.InsertLabelLayer("l", string(rune('a'+i%4)), nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, p.Size())
}
