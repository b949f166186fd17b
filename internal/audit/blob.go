package audit

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// blobUploader is the part of *azblob.Client the archiver uses.
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobArchiver uploads records to an Azure Blob Storage container.
type BlobArchiver struct {
	client    blobUploader
	container string
}

// NewBlobArchiver connects to serviceURL with cred. A nil cred uses the
// default Azure credential chain.
func NewBlobArchiver(serviceURL, container string, cred azcore.TokenCredential) (*BlobArchiver, error) {
	if cred == nil {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("creating azure credential: %w", err)
		}
		cred = c
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client for %s: %w", serviceURL, err)
	}
	return &BlobArchiver{client: client, container: container}, nil
}

// Archive implements Archiver
func (a *BlobArchiver) Archive(ctx context.Context, rec Record) (string, error) {
	data, err := Encode(rec)
	if err != nil {
		return "", err
	}
	name := rec.Name()
	contentType := "application/json"
	contentEncoding := "zstd"
	_, err = a.client.UploadBuffer(ctx, a.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:     &contentType,
			BlobContentEncoding: &contentEncoding,
		},
		Metadata: map[string]*string{
			"session_id": &rec.SessionID,
			"role":       &rec.Role,
		},
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to container %s: %w", name, a.container, err)
	}
	return a.container + "/" + name, nil
}
