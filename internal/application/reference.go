// Package application contains the application services.
package application

import (
	"math"
	"strings"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// ReferenceStore answers spatial queries against one immutable reference
// snapshot. It is safe for concurrent use.
type ReferenceStore struct {
	set domain.ReferenceSet
}

// NewReferenceStore wraps a reference set. The caller must not modify set
// afterwards.
func NewReferenceStore(set domain.ReferenceSet) *ReferenceStore {
	return &ReferenceStore{set: set}
}

// Version returns the dataset version.
func (s *ReferenceStore) Version() string {
	return s.set.Version
}

// Counts returns the number of protected areas, countries and risk zones.
func (s *ReferenceStore) Counts() (areas, countries, zones int) {
	return len(s.set.ProtectedAreas), len(s.set.Countries), len(s.set.RiskZones)
}

// ProtectedAreaDistances returns every protected area with its distance from
// c in kilometres, in dataset order.
func (s *ReferenceStore) ProtectedAreaDistances(c domain.Coordinate) []domain.AreaDistance {
	out := make([]domain.AreaDistance, 0, len(s.set.ProtectedAreas))
	for _, a := range s.set.ProtectedAreas {
		out = append(out, domain.AreaDistance{
			Area:       a,
			DistanceKm: domain.DegreesToKm(a.Geometry.Distance(c)),
		})
	}
	return out
}

// NearestProtectedArea returns the closest protected area. found is false
// when the dataset has none. Ties keep the earlier area.
func (s *ReferenceStore) NearestProtectedArea(c domain.Coordinate) (area domain.ProtectedArea, km float64, found bool) {
	km = math.Inf(1)
	for _, d := range s.ProtectedAreaDistances(c) {
		if d.DistanceKm < km {
			area, km, found = d.Area, d.DistanceKm, true
		}
	}
	return area, km, found
}

// ContainingCountry returns the first country whose boundary contains c, or
// the Unknown profile.
func (s *ReferenceStore) ContainingCountry(c domain.Coordinate) domain.CountryProfile {
	for _, p := range s.set.Countries {
		if p.Boundary != nil && p.Boundary.Contains(c) {
			return p
		}
	}
	return domain.UnknownCountry()
}

// CountryByName looks a country up case-insensitively.
func (s *ReferenceStore) CountryByName(name string) (domain.CountryProfile, bool) {
	for _, p := range s.set.Countries {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return domain.UnknownCountry(), false
}

// ZonesNear relates c to every risk zone, in dataset order.
func (s *ReferenceStore) ZonesNear(c domain.Coordinate) []domain.ZoneProximity {
	out := make([]domain.ZoneProximity, 0, len(s.set.RiskZones))
	for _, z := range s.set.RiskZones {
		inside := z.Geometry.Contains(c)
		km := 0.0
		if !inside {
			km = domain.DegreesToKm(z.Geometry.Distance(c))
		}
		out = append(out, domain.ZoneProximity{Zone: z, DistanceKm: km, Inside: inside})
	}
	return out
}

// CountryDistances returns the distance in kilometres from c to every
// country boundary, keyed by country name.
func (s *ReferenceStore) CountryDistances(c domain.Coordinate) map[string]float64 {
	out := make(map[string]float64, len(s.set.Countries))
	for _, p := range s.set.Countries {
		if p.Boundary == nil {
			continue
		}
		out[p.Name] = domain.DegreesToKm(p.Boundary.Distance(c))
	}
	return out
}

// ProtectedAreas returns the protected areas in dataset order.
func (s *ReferenceStore) ProtectedAreas() []domain.ProtectedArea {
	return append([]domain.ProtectedArea(nil), s.set.ProtectedAreas...)
}

// RiskZones returns the risk zones in dataset order.
func (s *ReferenceStore) RiskZones() []domain.RiskZone {
	return append([]domain.RiskZone(nil), s.set.RiskZones...)
}
