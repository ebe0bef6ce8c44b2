// Package preprocess resizes raw imagery to model input size with libvips.
package preprocess

import (
	"context"
	"fmt"

	"github.com/h2non/bimg"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// VipsPreprocessor implements output.Preprocessor with bimg.
type VipsPreprocessor struct{}

// NewVipsPreprocessor creates a preprocessor.
func NewVipsPreprocessor() *VipsPreprocessor {
	return &VipsPreprocessor{}
}

// Preprocess resizes img to exactly width x height and re-encodes it as PNG.
// Aspect ratio is not preserved.
func (p *VipsPreprocessor) Preprocess(ctx context.Context, img []byte, width, height int) (domain.PreprocessedImage, error) {
	if width <= 0 || height <= 0 {
		return domain.PreprocessedImage{}, &domain.ValidationError{
			Field:      "input_size",
			Value:      fmt.Sprintf("%dx%d", width, height),
			Constraint: "> 0",
			Message:    "preprocess dimensions must be positive",
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.PreprocessedImage{}, err
	}

	if bimg.DetermineImageType(img) == bimg.UNKNOWN {
		return domain.PreprocessedImage{}, &domain.ValidationError{
			Field:      "image",
			Constraint: "decodable image",
			Message:    "unrecognised image format",
		}
	}

	out, err := bimg.NewImage(img).Process(bimg.Options{
		Width:         width,
		Height:        height,
		Force:         true,
		Type:          bimg.PNG,
		StripMetadata: true,
	})
	if err != nil {
		return domain.PreprocessedImage{}, fmt.Errorf("resizing image: %w", err)
	}

	return domain.PreprocessedImage{
		Data:   out,
		Width:  width,
		Height: height,
		Format: "png",
	}, nil
}
