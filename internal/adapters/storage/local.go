package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// LocalStorage implements ObjectStorage on a filesystem rooted at basePath.
type LocalStorage struct {
	fs       afero.Fs
	basePath string
}

// NewLocalStorage creates a new local storage adapter. A nil fs uses the OS
// filesystem.
func NewLocalStorage(fs afero.Fs, basePath string) *LocalStorage {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalStorage{fs: fs, basePath: basePath}
}

// GetReader opens the file behind key.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.FullPath(key))
	if err != nil {
		return nil, storageErr("get", key, err, os.IsNotExist(err))
	}
	return f, nil
}

// Stat reports size and modification time. Directories count as missing.
func (s *LocalStorage) Stat(_ context.Context, key string) (output.StorageObject, error) {
	info, err := s.fs.Stat(s.FullPath(key))
	if err != nil {
		return output.StorageObject{}, storageErr("stat", key, err, os.IsNotExist(err))
	}
	if info.IsDir() {
		return output.StorageObject{}, storageErr("stat", key, os.ErrNotExist, true)
	}
	return output.StorageObject{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

// FullPath returns the filesystem path of key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
