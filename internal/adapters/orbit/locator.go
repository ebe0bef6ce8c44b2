// Package orbit derives acquisition geometry from two-line element sets.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/spf13/cast"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// Metadata keys read by Locate.
const (
	KeyTLELine1   = "tle_line1"
	KeyTLELine2   = "tle_line2"
	KeyAcquiredAt = "acquired_at"
)

const (
	earthRadiusKm = 6371.0
	tleLineLength = 69
)

var errMalformedTLE = errors.New("malformed TLE")

// SGP4Locator implements output.AcquisitionLocator with SGP4 propagation.
type SGP4Locator struct{}

// NewSGP4Locator creates a locator.
func NewSGP4Locator() *SGP4Locator {
	return &SGP4Locator{}
}

// Locate returns nil when metadata has no TLE. Any other failure is reported
// in the Error field so the pipeline can continue.
func (l *SGP4Locator) Locate(metadata map[string]any, center domain.Coordinate) *domain.AcquisitionGeometry {
	line1 := strings.TrimRight(cast.ToString(metadata[KeyTLELine1]), "\r\n ")
	line2 := strings.TrimRight(cast.ToString(metadata[KeyTLELine2]), "\r\n ")
	if line1 == "" && line2 == "" {
		return nil
	}

	geom := &domain.AcquisitionGeometry{}

	at, err := acquisitionTime(metadata[KeyAcquiredAt])
	if err != nil {
		geom.Error = err.Error()
		return geom
	}
	geom.AcquiredAt = &at

	if err := validateTLE(line1, line2); err != nil {
		geom.Error = err.Error()
		return geom
	}

	sub, altitude, err := propagate(line1, line2, at)
	if err != nil {
		geom.Error = err.Error()
		return geom
	}

	geom.SubSatellitePoint = &sub
	geom.AltitudeKm = altitude
	geom.GroundOffsetKm = haversineKm(sub, center)
	return geom
}

func acquisitionTime(v any) (time.Time, error) {
	if v == nil {
		return time.Time{}, fmt.Errorf("%s is required with TLE metadata", KeyAcquiredAt)
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", KeyAcquiredAt, err)
	}
	return t.UTC(), nil
}

func propagate(line1, line2 string, at time.Time) (domain.Coordinate, float64, error) {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)

	year, month, day := at.Date()
	hour, minute, sec := at.Clock()

	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return domain.Coordinate{}, 0, errors.New("propagation failed")
	}

	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, minute, sec))
	altitude, _, rad := satellite.ECIToLLA(pos, gmst)
	deg := satellite.LatLongDeg(rad)

	if math.IsNaN(altitude) || altitude <= 0 {
		return domain.Coordinate{}, 0, errors.New("propagated position is below the surface")
	}

	return domain.NewCoordinate(deg.Latitude, wrapLongitude(deg.Longitude)), altitude, nil
}

// validateTLE checks the fixed-column layout before handing the lines to
// the propagator, which does not report parse failures.
func validateTLE(line1, line2 string) error {
	if len(line1) < tleLineLength || len(line2) < tleLineLength {
		return fmt.Errorf("%w: lines must be %d columns", errMalformedTLE, tleLineLength)
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("%w: bad line numbers", errMalformedTLE)
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("%w: satellite numbers differ", errMalformedTLE)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"satellite number", strings.TrimSpace(line1[2:7])},
		{"epoch year", line1[18:20]},
		{"epoch day", line1[20:32]},
		{"mean motion derivative", strings.ReplaceAll(line1[33:43], " ", "")},
		{"drag term", strings.ReplaceAll(line1[53:54]+"."+line1[54:59]+"e"+line1[59:61], " ", "")},
		{"inclination", strings.TrimSpace(line2[8:16])},
		{"right ascension", strings.TrimSpace(line2[17:25])},
		{"eccentricity", "." + line2[26:33]},
		{"argument of perigee", strings.TrimSpace(line2[34:42])},
		{"mean anomaly", strings.TrimSpace(line2[43:51])},
		{"mean motion", strings.TrimSpace(line2[52:63])},
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("%w: %s %q", errMalformedTLE, f.name, f.value)
		}
	}
	return nil
}

func wrapLongitude(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

func haversineKm(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
