package output

import (
	"context"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// ImageSource fetches raw imagery bytes.
type ImageSource interface {
	// Fetch downloads the image at url and reports the inferred provider.
	Fetch(ctx context.Context, url string) ([]byte, domain.SatelliteSource, error)
}

// Preprocessor turns raw imagery into model input.
type Preprocessor interface {
	// Preprocess resizes img to width x height.
	Preprocess(ctx context.Context, img []byte, width, height int) (domain.PreprocessedImage, error)
}
