package storage

import (
	"context"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// AzureStorage reads blobs from one Azure Blob Storage container.
type AzureStorage struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure Blob Storage configuration. A connection string
// takes precedence over account name and key.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

// NewAzureStorage creates a new Azure Blob Storage adapter.
func NewAzureStorage(cfg AzureConfig) (*AzureStorage, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, storageErr("connect", cfg.Container, err, false)
	}

	return &AzureStorage{
		client:    client,
		container: cfg.Container,
		prefix:    strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func newAzureClient(cfg AzureConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	return azblob.NewClientWithSharedKeyCredential("https://"+cfg.AccountName+".blob.core.windows.net/", cred, nil)
}

// GetReader streams the blob body.
func (s *AzureStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(key), nil)
	if err != nil {
		return nil, storageErr("get", key, err, isBlobNotFound(err))
	}
	return resp.Body, nil
}

// Stat reads the blob properties.
func (s *AzureStorage) Stat(ctx context.Context, key string) (output.StorageObject, error) {
	props, err := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(s.blobName(key)).
		GetProperties(ctx, nil)
	if err != nil {
		return output.StorageObject{}, storageErr("stat", key, err, isBlobNotFound(err))
	}

	obj := output.StorageObject{Key: key}
	if props.ContentLength != nil {
		obj.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		obj.LastModified = props.LastModified.UTC()
	}
	if props.ETag != nil {
		obj.ETag = strings.Trim(string(*props.ETag), `"`)
	}
	return obj, nil
}

func (s *AzureStorage) blobName(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func isBlobNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound)
}
