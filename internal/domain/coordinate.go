// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
)

// KmPerDegree converts planar degree distances to kilometres. It is a flat
// approximation used for every proximity distance, not a geodesic.
const KmPerDegree = 111.0

// DegreesToKm converts a degree-space distance to kilometres.
func DegreesToKm(deg float64) float64 {
	return deg * KmPerDegree
}

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// NewCoordinate creates a coordinate from latitude and longitude.
func NewCoordinate(lat, lng float64) Coordinate {
	return Coordinate{Lat: lat, Lng: lng}
}

// Validate checks that the coordinate lies on the globe.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{
			Field:      "lat",
			Value:      c.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return &ValidationError{
			Field:      "lng",
			Value:      c.Lng,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	return nil
}

// DistanceTo returns the planar distance in degrees.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	return math.Hypot(c.Lng-o.Lng, c.Lat-o.Lat)
}

// String returns a string representation of the coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("POINT(%f %f)", c.Lng, c.Lat)
}

// Extent is an axis-aligned bounding box in degrees.
type Extent struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Contains checks if a coordinate is within the extent, edges included.
func (e Extent) Contains(c Coordinate) bool {
	return c.Lng >= e.MinLng && c.Lng <= e.MaxLng && c.Lat >= e.MinLat && c.Lat <= e.MaxLat
}

// IsValid checks if the extent has valid dimensions.
func (e Extent) IsValid() bool {
	return e.MinLng <= e.MaxLng && e.MinLat <= e.MaxLat
}

// IsZero reports whether no corner has been set.
func (e Extent) IsZero() bool {
	return e == Extent{}
}

// Center returns the center coordinate of the extent.
func (e Extent) Center() Coordinate {
	return Coordinate{
		Lat: (e.MinLat + e.MaxLat) / 2,
		Lng: (e.MinLng + e.MaxLng) / 2,
	}
}

// Ring returns the extent as a closed counter-clockwise ring.
func (e Extent) Ring() []Coordinate {
	return []Coordinate{
		{Lat: e.MinLat, Lng: e.MinLng},
		{Lat: e.MinLat, Lng: e.MaxLng},
		{Lat: e.MaxLat, Lng: e.MaxLng},
		{Lat: e.MaxLat, Lng: e.MinLng},
		{Lat: e.MinLat, Lng: e.MinLng},
	}
}

// ExtentAround returns a square extent of the given half-width centred on c.
func ExtentAround(c Coordinate, halfWidth float64) Extent {
	return Extent{
		MinLat: c.Lat - halfWidth,
		MinLng: c.Lng - halfWidth,
		MaxLat: c.Lat + halfWidth,
		MaxLng: c.Lng + halfWidth,
	}
}

// BoundingArea scopes an analysis. Either Ring or Box may be set; the ring
// takes precedence.
type BoundingArea struct {
	Ring []Coordinate `json:"ring,omitempty" validate:"omitempty,min=3,dive"`
	Box  *Extent      `json:"box,omitempty"`
}

// IsEmpty reports whether the area carries no geometry.
func (b BoundingArea) IsEmpty() bool {
	return len(b.Ring) == 0 && (b.Box == nil || b.Box.IsZero())
}

// Extent resolves the area to its bounding box, returning fallback when the
// area is empty.
func (b BoundingArea) Extent(fallback Extent) Extent {
	if len(b.Ring) > 0 {
		e := Extent{
			MinLat: math.Inf(1), MinLng: math.Inf(1),
			MaxLat: math.Inf(-1), MaxLng: math.Inf(-1),
		}
		for _, c := range b.Ring {
			e.MinLat = math.Min(e.MinLat, c.Lat)
			e.MinLng = math.Min(e.MinLng, c.Lng)
			e.MaxLat = math.Max(e.MaxLat, c.Lat)
			e.MaxLng = math.Max(e.MaxLng, c.Lng)
		}
		return e
	}
	if b.Box != nil && !b.Box.IsZero() {
		return *b.Box
	}
	return fallback
}

// Validate checks every vertex and the box orientation.
func (b BoundingArea) Validate() error {
	for _, c := range b.Ring {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if b.Box != nil && !b.Box.IsValid() {
		return &ValidationError{
			Field:      "bounds.box",
			Value:      *b.Box,
			Constraint: "min <= max",
			Message:    "bounding box minimum must not exceed maximum",
		}
	}
	return nil
}
