package output

import (
	"testing"
	"time"
)

func TestStorageObjectSameContent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b StorageObject
		want bool
	}{
		{"same etag", StorageObject{Key: "r.yaml", ETag: "a", Size: 1}, StorageObject{Key: "r.yaml", ETag: "a", Size: 2}, true},
		{"different etag", StorageObject{Key: "r.yaml", ETag: "a", LastModified: t0}, StorageObject{Key: "r.yaml", ETag: "b", LastModified: t0}, false},
		{"size and mtime", StorageObject{Key: "r.yaml", Size: 3, LastModified: t0}, StorageObject{Key: "r.yaml", Size: 3, LastModified: t0}, true},
		{"mtime moved", StorageObject{Key: "r.yaml", Size: 3, LastModified: t0}, StorageObject{Key: "r.yaml", Size: 3, LastModified: t0.Add(time.Second)}, false},
		{"no metadata", StorageObject{Key: "r.yaml"}, StorageObject{Key: "r.yaml"}, false},
		{"different key", StorageObject{Key: "a.yaml", ETag: "a"}, StorageObject{Key: "b.yaml", ETag: "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SameContent(tt.b); got != tt.want {
				t.Errorf("SameContent() = %v, want %v", got, tt.want)
			}
		})
	}
}
