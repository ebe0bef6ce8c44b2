package application

import (
	"math"
	"testing"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

func TestReferenceStoreNearestProtectedArea(t *testing.T) {
	store := NewReferenceStore(testReferenceSet())

	area, km, found := store.NearestProtectedArea(domain.NewCoordinate(-7.5, -55))
	if !found {
		t.Fatal("NearestProtectedArea() found = false")
	}
	if area.Name != "Amazon National Park" || km != 0 {
		t.Errorf("NearestProtectedArea() = %s, %f; want Amazon National Park, 0", area.Name, km)
	}

	// One degree east of the Amazon box.
	_, km, _ = store.NearestProtectedArea(domain.NewCoordinate(-7.5, -49))
	if math.Abs(km-111) > 1e-9 {
		t.Errorf("distance = %f, want 111", km)
	}
}

func TestReferenceStoreWithoutProtectedAreas(t *testing.T) {
	store := NewReferenceStore(domain.ReferenceSet{})

	_, km, found := store.NearestProtectedArea(domain.NewCoordinate(0, 0))
	if found {
		t.Error("found = true on empty dataset")
	}
	if !math.IsInf(km, 1) {
		t.Errorf("km = %f, want +Inf", km)
	}
}

func TestReferenceStoreContainingCountry(t *testing.T) {
	store := NewReferenceStore(testReferenceSet())

	tests := []struct {
		name  string
		point domain.Coordinate
		want  string
	}{
		{"brazil", domain.NewCoordinate(-7.5, -55), "Brazil"},
		// Peru overlaps Brazil's box; dataset order wins.
		{"overlap keeps first", domain.NewCoordinate(-10, -72), "Brazil"},
		{"congo", domain.NewCoordinate(0, 20), "Congo"},
		{"ocean", domain.NewCoordinate(45, -30), domain.UnknownCountryName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.ContainingCountry(tt.point); got.Name != tt.want {
				t.Errorf("ContainingCountry(%v) = %s, want %s", tt.point, got.Name, tt.want)
			}
		})
	}
}

func TestReferenceStoreCountryByName(t *testing.T) {
	store := NewReferenceStore(testReferenceSet())

	p, ok := store.CountryByName("brazil")
	if !ok || p.Name != "Brazil" {
		t.Errorf("CountryByName(brazil) = %s, %v", p.Name, ok)
	}

	p, ok = store.CountryByName("Atlantis")
	if ok || !p.IsUnknown() {
		t.Errorf("CountryByName(Atlantis) = %s, %v; want Unknown", p.Name, ok)
	}
}

func TestReferenceStoreZonesNear(t *testing.T) {
	store := NewReferenceStore(testReferenceSet())

	zones := store.ZonesNear(domain.NewCoordinate(-7.5, -55))
	if len(zones) != 4 {
		t.Fatalf("ZonesNear() returned %d zones, want 4", len(zones))
	}
	if !zones[0].Inside || zones[0].DistanceKm != 0 {
		t.Errorf("hotspot_1 = %+v, want inside at 0 km", zones[0])
	}
	// mining_risk_zone_1 ends at lng -60, five degrees west.
	if zones[2].Inside || math.Abs(zones[2].DistanceKm-555) > 1e-9 {
		t.Errorf("mining_risk_zone_1 = %+v, want 555 km outside", zones[2])
	}
}

func TestReferenceStoreCountryDistances(t *testing.T) {
	store := NewReferenceStore(testReferenceSet())

	d := store.CountryDistances(domain.NewCoordinate(0, 20))
	if d["Congo"] != 0 {
		t.Errorf("Congo distance = %f, want 0", d["Congo"])
	}
	if d["Brazil"] <= 0 {
		t.Errorf("Brazil distance = %f, want > 0", d["Brazil"])
	}
	if len(d) != 3 {
		t.Errorf("got %d countries, want 3", len(d))
	}
}
