// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// Sentinel errors.
var (
	// ErrRenderingStopped is returned by Render and RenderTo when the cycle
	// was cancelled before it finished.
	ErrRenderingStopped = errors.New("mapcompose: rendering stopped")

	// ErrJobStarted is returned when a Job is rendered more than once.
	ErrJobStarted = errors.New("mapcompose: job already started")

	// ErrInvalidSettings is returned for map settings that cannot be rendered.
	ErrInvalidSettings = errors.New("mapcompose: invalid map settings")

	// ErrImageTooLarge is returned when an image would exceed the configured
	// pixel limit.
	ErrImageTooLarge = surface.ErrImageTooLarge

	// ErrTransformFailed is returned by coordinate transforms that cannot
	// project a point.
	ErrTransformFailed = crs.ErrTransformFailed
)

// ErrorKind classifies a per-layer render error.
type ErrorKind int

const (
	// ErrorLayerSkipped means the layer was not rendered, e.g. because its
	// extent could not be reprojected.
	ErrorLayerSkipped ErrorKind = iota
	// ErrorAllocation means an image buffer could not be allocated.
	ErrorAllocation
	// ErrorTransform means a coordinate transform could not be created.
	ErrorTransform
	// ErrorCancelled means the layer was not rendered because the cycle
	// was cancelled.
	ErrorCancelled
	// ErrorRenderer is an error reported by a layer renderer.
	ErrorRenderer
)

// String returns a short lowercase name, used as a metrics label.
func (k ErrorKind) String() string {
	switch k {
	case ErrorLayerSkipped:
		return "layer_skipped"
	case ErrorAllocation:
		return "allocation"
	case ErrorTransform:
		return "transform"
	case ErrorCancelled:
		return "cancelled"
	case ErrorRenderer:
		return "renderer"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a non-fatal problem with one layer during a render cycle.
type Error struct {
	LayerID string
	Message string
	Kind    ErrorKind
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("layer %s: %s", e.LayerID, e.Message)
}

// Errors is the list of errors collected during a render cycle.
type Errors []Error

// Err returns nil for an empty list, otherwise an error describing all
// entries.
func (es Errors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// Error implements the error interface.
func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ForLayer returns the errors recorded for one layer.
func (es Errors) ForLayer(layerID string) Errors {
	var out Errors
	for _, e := range es {
		if e.LayerID == layerID {
			out = append(out, e)
		}
	}
	return out
}
