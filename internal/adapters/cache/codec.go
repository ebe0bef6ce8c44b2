// Package cache provides TTL cache adapters and the cache value codec.
package cache

import (
	"github.com/fxamacker/cbor/v2"
)

// CBORCodec implements output.ValueCodec with CBOR. Struct fields follow
// their json tags and timestamps keep nanosecond precision.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec creates a codec.
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

// Marshal implements output.ValueCodec.
func (c *CBORCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

// Unmarshal implements output.ValueCodec.
func (c *CBORCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}
