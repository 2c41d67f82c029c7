// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package memlayer provides in-memory map layers and a simple labeling
// engine for mapcompose.
//
// VectorLayer holds point and polygon features styled by an ordered list of
// symbol layers; symbol layers flagged as masks paint into the layer's mask
// image during the first pass. RasterLayer resamples an image onto its
// georeferenced footprint. LabelEngine places labels with a fixed bitmap
// face and paints label masks.
//
// The types are used by the maprender command and by tests, and serve as
// reference implementations of the mapcompose layer interfaces.
package memlayer
