// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package crs describes coordinate reference systems and transforms points
// and bounding boxes between them.
//
// Only the systems a map compositor needs to reason about are built in:
// geographic longitude/latitude (optionally with a shifted central meridian)
// and spherical Web Mercator. Other projections can be plugged in by
// implementing [Transform].
package crs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCRS is returned by Parse for authority identifiers that are not
// built in.
var ErrUnknownCRS = errors.New("crs: unknown authority id")

// CRS identifies a coordinate reference system.
type CRS struct {
	// AuthID is the authority identifier, e.g. "EPSG:4326".
	AuthID string

	// Geographic reports whether coordinates are longitude/latitude degrees.
	Geographic bool

	// CentralMeridian is the longitude (degrees) mapped to x = 0.
	// Only meaningful for geographic systems.
	CentralMeridian float64
}

// Built-in reference systems.
var (
	// EPSG4326 is WGS 84 longitude/latitude.
	EPSG4326 = CRS{AuthID: "EPSG:4326", Geographic: true}

	// EPSG3857 is spherical Web Mercator in metres.
	EPSG3857 = CRS{AuthID: "EPSG:3857"}

	// Pacific4326 is WGS 84 longitude/latitude centred on the antimeridian,
	// so x = 0 is longitude 180.
	Pacific4326 = CRS{AuthID: "CRS:PACIFIC4326", Geographic: true, CentralMeridian: 180}
)

var builtin = map[string]CRS{
	"EPSG:4326":       EPSG4326,
	"EPSG:3857":       EPSG3857,
	"EPSG:900913":     EPSG3857,
	"CRS:PACIFIC4326": Pacific4326,
}

// Parse returns the built-in CRS for an authority id. Matching is case
// insensitive.
func Parse(authID string) (CRS, error) {
	c, ok := builtin[strings.ToUpper(strings.TrimSpace(authID))]
	if !ok {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnknownCRS, authID)
	}
	return c, nil
}

// IsValid reports whether the CRS has been set.
func (c CRS) IsValid() bool {
	return c.AuthID != ""
}

// IsGeographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) IsGeographic() bool {
	return c.Geographic
}

// String returns the authority id.
func (c CRS) String() string {
	if c.AuthID == "" {
		return "<invalid>"
	}
	return c.AuthID
}
