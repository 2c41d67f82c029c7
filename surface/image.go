// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// Allocation errors.
var (
	// ErrImageTooLarge is returned when an image would exceed the pixel limit.
	ErrImageTooLarge = errors.New("surface: image too large")

	// ErrInvalidDimensions is returned for non-positive image sizes.
	ErrInvalidDimensions = errors.New("surface: invalid image dimensions")
)

// DefaultMaxPixels is the pixel limit applied when none is configured
// (about 268 million pixels, 1 GiB of RGBA data).
const DefaultMaxPixels = 1 << 28

// NewImage allocates a transparent premultiplied RGBA image.
// A maxPixels of 0 or less selects DefaultMaxPixels.
func NewImage(width, height, maxPixels int) (*image.RGBA, error) {
	if _, err := CheckDimensions(width, height, maxPixels); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// CloneImage returns a deep copy of img with its origin at (0, 0).
func CloneImage(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	rowLen := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+rowLen], img.Pix[src:src+rowLen])
	}
	return out
}

// Pool is a thread-safe pool for reusing image buffers.
//
// Pool groups buffers by their dimensions, so jobs of one render cycle that
// share the output size reuse each other's buffers across cycles.
//
// A nil *Pool is valid and allocates fresh buffers on every Get.
type Pool struct {
	mu      sync.Mutex
	buckets map[image.Point][]*image.RGBA
	maxSize int // max buffers per bucket
}

// NewPool creates a pool that retains at most maxPerBucket buffers of each
// size. A maxPerBucket of 0 means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[image.Point][]*image.RGBA),
		maxSize: maxPerBucket,
	}
}

// Get returns a transparent image of the given size, reusing a pooled buffer
// when one is available.
func (p *Pool) Get(width, height, maxPixels int) (*image.RGBA, error) {
	if p == nil {
		return NewImage(width, height, maxPixels)
	}
	if _, err := CheckDimensions(width, height, maxPixels); err != nil {
		return nil, err
	}
	key := image.Point{X: width, Y: height}

	p.mu.Lock()
	bucket := p.buckets[key]
	if len(bucket) > 0 {
		img := bucket[len(bucket)-1]
		p.buckets[key] = bucket[:len(bucket)-1]
		p.mu.Unlock()

		clear(img.Pix)
		return img, nil
	}
	p.mu.Unlock()

	return NewImage(width, height, maxPixels)
}

// Put returns an image to the pool. The caller must not use img afterwards.
func (p *Pool) Put(img *image.RGBA) {
	if p == nil || img == nil {
		return
	}
	b := img.Bounds()
	if b.Min != (image.Point{}) || img.Stride != b.Dx()*4 {
		return
	}
	key := b.Size()

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[key] = append(bucket, img)
}

// Len returns the number of pooled buffers.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.buckets {
		n += len(b)
	}
	return n
}

// CheckDimensions validates dimensions against a pixel limit without
// allocating. It returns the number of pixels.
func CheckDimensions(width, height, maxPixels int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if width > maxPixels/height {
		return 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, width, height, maxPixels)
	}
	return width * height, nil
}
