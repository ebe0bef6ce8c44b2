package output

import "github.com/dogwifhat6/supplychain-lens/internal/domain"

// ReferenceDecoder parses reference dataset documents.
type ReferenceDecoder interface {
	// Decode validates and converts a dataset document. The name's
	// extension selects the format.
	Decode(name string, data []byte) (domain.ReferenceSet, error)

	// Default returns the built-in dataset.
	Default() (domain.ReferenceSet, error)
}
