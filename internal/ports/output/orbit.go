package output

import "github.com/dogwifhat6/supplychain-lens/internal/domain"

// AcquisitionLocator derives the imaging geometry of a scene from request
// metadata. It returns nil when the metadata carries no orbital elements.
type AcquisitionLocator interface {
	Locate(metadata map[string]any, center domain.Coordinate) *domain.AcquisitionGeometry
}
