package utils

import (
	"context"
	"testing"
)

func TestGetStorageProvider_DefaultsToGCS(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "")
	if got := GetStorageProvider(); got != StorageProviderGCS {
		t.Fatalf("expected default %q, got %q", StorageProviderGCS, got)
	}

	t.Setenv("STORAGE_PROVIDER", " GCS ")
	if got := GetStorageProvider(); got != StorageProviderGCS {
		t.Fatalf("provider must be trimmed and lowercased, got %q", got)
	}
}

func TestBlobDispatch_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "s3")

	if err := UploadBlob(context.Background(), "k", nil, "text/csv"); err == nil {
		t.Fatal("upload must reject an unknown provider")
	}
	if _, err := DownloadBlob(context.Background(), "k"); err == nil {
		t.Fatal("download must reject an unknown provider")
	}
	if err := DeleteBlob(context.Background(), "k"); err == nil {
		t.Fatal("delete must reject an unknown provider")
	}
}
