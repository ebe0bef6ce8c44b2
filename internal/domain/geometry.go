package domain

import (
	"math"
)

// GeometryType names the shape of a Geometry.
type GeometryType string

// Supported geometry types.
const (
	GeometryPoint   GeometryType = "Point"
	GeometryPolygon GeometryType = "Polygon"
)

// Geometry answers planar distance and containment queries in degree space.
type Geometry interface {
	Type() GeometryType
	// Distance returns the degree distance from c to the geometry, 0 when
	// the geometry contains c.
	Distance(c Coordinate) float64
	Contains(c Coordinate) bool
	Bounds() Extent
}

// Point is a zero-area geometry.
type Point struct {
	At Coordinate
}

// Type implements Geometry.
func (p Point) Type() GeometryType { return GeometryPoint }

// Distance implements Geometry.
func (p Point) Distance(c Coordinate) float64 { return p.At.DistanceTo(c) }

// Contains implements Geometry.
func (p Point) Contains(c Coordinate) bool { return p.At == c }

// Bounds implements Geometry.
func (p Point) Bounds() Extent {
	return Extent{MinLat: p.At.Lat, MinLng: p.At.Lng, MaxLat: p.At.Lat, MaxLng: p.At.Lng}
}

// Polygon is a simple polygon described by a single outer ring. The ring is
// treated as closed whether or not the last vertex repeats the first.
type Polygon struct {
	ring   []Coordinate
	bounds Extent
}

// NewPolygon builds a polygon from a ring of at least three distinct vertices.
func NewPolygon(ring []Coordinate) (*Polygon, error) {
	pts := make([]Coordinate, 0, len(ring))
	for _, c := range ring {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		pts = append(pts, c)
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, &ValidationError{
			Field:      "ring",
			Value:      len(pts),
			Constraint: ">= 3 vertices",
			Message:    "polygon ring needs at least three vertices",
		}
	}
	return &Polygon{ring: pts, bounds: BoundingArea{Ring: pts}.Extent(Extent{})}, nil
}

// NewBox builds an axis-aligned rectangle polygon.
func NewBox(minLng, minLat, maxLng, maxLat float64) *Polygon {
	e := Extent{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
	ring := e.Ring()
	return &Polygon{ring: ring[:4], bounds: e}
}

// Type implements Geometry.
func (p *Polygon) Type() GeometryType { return GeometryPolygon }

// Bounds implements Geometry.
func (p *Polygon) Bounds() Extent { return p.bounds }

// Ring returns a copy of the polygon's vertices.
func (p *Polygon) Ring() []Coordinate {
	out := make([]Coordinate, len(p.ring))
	copy(out, p.ring)
	return out
}

// Contains implements Geometry. Boundary points count as contained.
func (p *Polygon) Contains(c Coordinate) bool {
	if !p.bounds.Contains(c) {
		return false
	}
	inside := false
	n := len(p.ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.ring[i], p.ring[j]
		if segmentDistance(c, a, b) == 0 {
			return true
		}
		if (a.Lat > c.Lat) != (b.Lat > c.Lat) {
			x := (b.Lng-a.Lng)*(c.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if c.Lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Distance implements Geometry.
func (p *Polygon) Distance(c Coordinate) float64 {
	if p.Contains(c) {
		return 0
	}
	best := math.Inf(1)
	n := len(p.ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if d := segmentDistance(c, p.ring[j], p.ring[i]); d < best {
			best = d
		}
	}
	return best
}

// segmentDistance returns the distance from c to the segment ab.
func segmentDistance(c, a, b Coordinate) float64 {
	dx, dy := b.Lng-a.Lng, b.Lat-a.Lat
	if dx == 0 && dy == 0 {
		return c.DistanceTo(a)
	}
	t := ((c.Lng-a.Lng)*dx + (c.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	proj := Coordinate{Lng: a.Lng + t*dx, Lat: a.Lat + t*dy}
	return c.DistanceTo(proj)
}
