// Package reference decodes reference datasets (protected areas, country
// profiles and risk zones) from YAML or JSON documents.
package reference

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

//go:embed default.yaml
var defaultDataset []byte

//go:embed schema.json
var datasetSchema []byte

// DefaultName is the source name of the embedded dataset.
const DefaultName = "default.yaml"

// Codec implements output.ReferenceDecoder.
type Codec struct {
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
}

// NewCodec creates a dataset codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Default decodes the embedded placeholder dataset.
func (c *Codec) Default() (domain.ReferenceSet, error) {
	return c.Decode(DefaultName, defaultDataset)
}

// Decode validates data against the dataset schema and converts it. The
// extension of name selects YAML or JSON.
func (c *Codec) Decode(name string, data []byte) (domain.ReferenceSet, error) {
	doc, err := toJSON(name, data)
	if err != nil {
		return domain.ReferenceSet{}, &domain.ReferenceError{Source: name, Reason: err.Error()}
	}

	if err := c.validate(name, doc); err != nil {
		return domain.ReferenceSet{}, err
	}

	var ds dataset
	if err := json.Unmarshal(doc, &ds); err != nil {
		return domain.ReferenceSet{}, &domain.ReferenceError{Source: name, Reason: err.Error()}
	}

	set, err := ds.toDomain()
	if err != nil {
		return domain.ReferenceSet{}, &domain.ReferenceError{Source: name, Reason: err.Error()}
	}
	if set.Version == "" {
		sum := sha256.Sum256(data)
		set.Version = "sha256:" + hex.EncodeToString(sum[:6])
	}
	return set, nil
}

func (c *Codec) validate(name string, doc []byte) error {
	c.schemaOnce.Do(func() {
		c.schema, c.schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(datasetSchema))
	})
	if c.schemaErr != nil {
		return fmt.Errorf("loading dataset schema: %w", c.schemaErr)
	}

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &domain.ReferenceError{Source: name, Reason: err.Error()}
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &domain.ReferenceError{Source: name, Reason: strings.Join(msgs, "; ")}
}

// toJSON normalizes a YAML or JSON document into JSON bytes.
func toJSON(name string, data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		if !json.Valid(data) {
			return nil, fmt.Errorf("malformed JSON")
		}
		return data, nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return json.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(name))
	}
}
