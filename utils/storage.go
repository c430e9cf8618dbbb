package utils

import (
	"context"
	"fmt"
)

// Blob storage dispatch. GCS is the only provider today; handlers and
// the worker go through these so provider names stay out of their code.

func UploadBlob(ctx context.Context, objectName string, data []byte, contentType string) error {
	switch provider := GetStorageProvider(); provider {
	case StorageProviderGCS:
		return UploadBytesToGCS(ctx, objectName, data, contentType)
	default:
		return fmt.Errorf("unknown storage provider %q", provider)
	}
}

func DownloadBlob(ctx context.Context, objectName string) ([]byte, error) {
	switch provider := GetStorageProvider(); provider {
	case StorageProviderGCS:
		return DownloadBytesFromGCS(ctx, objectName)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}

func DeleteBlob(ctx context.Context, objectName string) error {
	switch provider := GetStorageProvider(); provider {
	case StorageProviderGCS:
		return DeleteObjectFromGCS(ctx, objectName)
	default:
		return fmt.Errorf("unknown storage provider %q", provider)
	}
}
