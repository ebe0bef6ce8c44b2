// Package storage provides object storage adapters.
package storage

import (
	"errors"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// storageErr wraps err as a StorageError. Missing objects unwrap to
// domain.ErrNotFound, everything else to domain.ErrStorageUnavailable.
func storageErr(op, key string, err error, missing bool) error {
	if err == nil {
		return nil
	}
	var sErr *domain.StorageError
	if errors.As(err, &sErr) {
		return err
	}
	if missing {
		return &domain.StorageError{Operation: op, Key: key, Err: errors.Join(domain.ErrNotFound, err)}
	}
	return &domain.StorageError{Operation: op, Key: key, Err: errors.Join(domain.ErrStorageUnavailable, err)}
}
