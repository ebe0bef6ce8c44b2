// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the secondary port for object storage operations.
// It serves both imagery and reference datasets.
type ObjectStorage interface {
	// GetReader returns a reader for the given object.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat returns object metadata. A missing object yields an error
	// matching domain.ErrNotFound.
	Stat(ctx context.Context, key string) (StorageObject, error)
}

// StorageObject describes a stored object. Backends fill what they know;
// ETag may be empty.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// SameContent reports whether two stats describe the same object version.
// ETags decide when both sides have one, otherwise size and modification
// time.
func (o StorageObject) SameContent(other StorageObject) bool {
	if o.Key != other.Key {
		return false
	}
	if o.ETag != "" && other.ETag != "" {
		return o.ETag == other.ETag
	}
	return !o.LastModified.IsZero() && o.Size == other.Size && o.LastModified.Equal(other.LastModified)
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)

// ReferenceExtensions are the file extensions of reference datasets.
var ReferenceExtensions = []string{".yaml", ".yml", ".json"}
