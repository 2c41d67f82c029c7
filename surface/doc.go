// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides CPU paint surfaces over *image.RGBA buffers.
//
// A render job owns one image and binds exactly one [Painter] to it for the
// duration of a render cycle. Painters carry the composition state used when
// other images are drawn onto them (blend mode and opacity), and can fill
// vector paths rasterized with golang.org/x/image/vector.
//
// # Usage
//
//	img, err := surface.NewImage(800, 600, 0)
//	if err != nil {
//	    return err
//	}
//	p := surface.NewPainter(img)
//	defer p.Close()
//
//	p.Clear(color.White)
//
//	path := surface.NewPath()
//	path.MoveTo(100, 100)
//	path.LineTo(200, 100)
//	path.LineTo(150, 200)
//	path.Close()
//	p.Fill(path, color.RGBA{255, 0, 0, 255})
//
//	p.SetBlendMode(surface.BlendMultiply)
//	p.SetOpacity(0.5)
//	p.DrawImage(layerImage, image.Point{})
//
// # Pixel format
//
// All buffers are premultiplied RGBA with 8 bits per channel. Blend modes
// follow the Porter-Duff operators and the separable modes of the W3C
// Compositing and Blending specification.
//
// # References
//
//   - Porter-Duff: "Compositing Digital Images" (1984)
//   - W3C Compositing: https://www.w3.org/TR/compositing-1/
package surface
