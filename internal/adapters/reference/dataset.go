package reference

import (
	"encoding/json"
	"fmt"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

type dataset struct {
	Version        string          `json:"version"`
	ProtectedAreas []protectedArea `json:"protected_areas"`
	Countries      []country       `json:"countries"`
	RiskZones      []riskZone      `json:"risk_zones"`
}

type protectedArea struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	AreaKm2  float64  `json:"area_km2"`
	Geometry geometry `json:"geometry"`
}

type country struct {
	Name     string          `json:"name"`
	Boundary geometry        `json:"boundary"`
	Factors  json.RawMessage `json:"factors"`
}

type riskZone struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Geometry geometry `json:"geometry"`
}

// geometry positions use GeoJSON order: [lng, lat].
type geometry struct {
	Type        string          `json:"type"`
	BBox        []float64       `json:"bbox"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func (ds dataset) toDomain() (domain.ReferenceSet, error) {
	set := domain.ReferenceSet{
		Version:        ds.Version,
		ProtectedAreas: make([]domain.ProtectedArea, 0, len(ds.ProtectedAreas)),
		Countries:      make([]domain.CountryProfile, 0, len(ds.Countries)),
		RiskZones:      make([]domain.RiskZone, 0, len(ds.RiskZones)),
	}

	for _, pa := range ds.ProtectedAreas {
		g, err := pa.Geometry.toDomain()
		if err != nil {
			return domain.ReferenceSet{}, fmt.Errorf("protected area %q: %w", pa.Name, err)
		}
		set.ProtectedAreas = append(set.ProtectedAreas, domain.ProtectedArea{
			Name:     pa.Name,
			Category: pa.Category,
			AreaKm2:  pa.AreaKm2,
			Geometry: g,
		})
	}

	for _, c := range ds.Countries {
		g, err := c.Boundary.toDomain()
		if err != nil {
			return domain.ReferenceSet{}, fmt.Errorf("country %q: %w", c.Name, err)
		}
		// Factors absent from the document stay neutral.
		factors := domain.NeutralRiskFactors()
		if len(c.Factors) > 0 {
			if err := json.Unmarshal(c.Factors, &factors); err != nil {
				return domain.ReferenceSet{}, fmt.Errorf("country %q factors: %w", c.Name, err)
			}
		}
		set.Countries = append(set.Countries, domain.CountryProfile{
			Name:     c.Name,
			Boundary: g,
			Factors:  factors.Clamped(),
		})
	}

	for _, z := range ds.RiskZones {
		g, err := z.Geometry.toDomain()
		if err != nil {
			return domain.ReferenceSet{}, fmt.Errorf("risk zone %q: %w", z.Name, err)
		}
		set.RiskZones = append(set.RiskZones, domain.RiskZone{
			Name:     z.Name,
			Category: domain.ZoneCategory(z.Category),
			Geometry: g,
		})
	}

	return set, nil
}

func (g geometry) toDomain() (domain.Geometry, error) {
	switch g.Type {
	case "box":
		if len(g.BBox) != 4 {
			return nil, fmt.Errorf("box needs 4 values, got %d", len(g.BBox))
		}
		minLng, minLat, maxLng, maxLat := g.BBox[0], g.BBox[1], g.BBox[2], g.BBox[3]
		if minLng > maxLng || minLat > maxLat {
			return nil, fmt.Errorf("box %v has inverted corners", g.BBox)
		}
		for _, c := range []domain.Coordinate{{Lat: minLat, Lng: minLng}, {Lat: maxLat, Lng: maxLng}} {
			if err := c.Validate(); err != nil {
				return nil, err
			}
		}
		return domain.NewBox(minLng, minLat, maxLng, maxLat), nil

	case "polygon":
		var positions [][2]float64
		if err := json.Unmarshal(g.Coordinates, &positions); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		ring := make([]domain.Coordinate, len(positions))
		for i, p := range positions {
			ring[i] = domain.Coordinate{Lng: p[0], Lat: p[1]}
		}
		return domain.NewPolygon(ring)

	case "point":
		var p [2]float64
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, fmt.Errorf("point coordinates: %w", err)
		}
		c := domain.Coordinate{Lng: p[0], Lat: p[1]}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return domain.Point{At: c}, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}
