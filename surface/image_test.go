// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImage(t *testing.T) {
	img, err := NewImage(4, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	for _, v := range img.Pix {
		assert.Zero(t, v)
	}
}

func TestNewImageErrors(t *testing.T) {
	tests := []struct {
		name      string
		w, h, max int
		want      error
	}{
		{"zero width", 0, 10, 0, ErrInvalidDimensions},
		{"negative height", 10, -1, 0, ErrInvalidDimensions},
		{"over limit", 101, 100, 10_000, ErrImageTooLarge},
		{"huge default", 1 << 20, 1 << 20, 0, ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewImage(tt.w, tt.h, tt.max)
			assert.Nil(t, img)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	img, err := NewImage(100, 100, 10_000)
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestCloneImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	src.SetRGBA(3, 3, color.RGBA{1, 2, 3, 255})
	sub := src.SubImage(image.Rect(2, 2, 6, 6)).(*image.RGBA)

	c := CloneImage(sub)
	assert.Equal(t, image.Rect(0, 0, 4, 4), c.Bounds())
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, c.RGBAAt(1, 1))

	c.SetRGBA(1, 1, color.RGBA{})
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, src.RGBAAt(3, 3), "clone must not alias")

	assert.Nil(t, CloneImage(nil))
}

func TestPoolReuse(t *testing.T) {
	p := NewPool(2)
	img, err := p.Get(10, 10, 0)
	require.NoError(t, err)
	img.Pix[0] = 99
	p.Put(img)
	assert.Equal(t, 1, p.Len())

	again, err := p.Get(10, 10, 0)
	require.NoError(t, err)
	assert.Same(t, img, again)
	assert.Zero(t, again.Pix[0], "reused buffers are cleared")
	assert.Equal(t, 0, p.Len())
}

func TestPoolBucketLimit(t *testing.T) {
	p := NewPool(1)
	p.Put(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	p.Put(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))
	assert.Equal(t, 2, p.Len())

	// Sub-images share pixels with their parent and are never pooled.
	parent := image.NewRGBA(image.Rect(0, 0, 8, 8))
	p.Put(parent.SubImage(image.Rect(0, 0, 3, 3)).(*image.RGBA))
	assert.Equal(t, 2, p.Len())
}

func TestPoolRespectsLimit(t *testing.T) {
	p := NewPool(0)
	p.Put(image.NewRGBA(image.Rect(0, 0, 100, 100)))
	_, err := p.Get(100, 100, 50)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Equal(t, 1, p.Len(), "failed Get must not drop pooled buffers")
}

func TestNilPool(t *testing.T) {
	var p *Pool
	img, err := p.Get(3, 3, 0)
	require.NoError(t, err)
	p.Put(img)
	assert.Equal(t, 0, p.Len())
}

func TestPoolConcurrent(t *testing.T) {
	p := NewPool(4)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				img, err := p.Get(16, 16, 0)
				if err != nil {
					t.Error(err)
					return
				}
				p.Put(img)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, p.Len(), 4)
}
