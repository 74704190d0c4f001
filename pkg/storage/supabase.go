package storage

import (
	"bytes"
	"context"
	"fmt"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseUploader uploads artifacts to a Supabase Storage bucket.
type SupabaseUploader struct {
	sdk    *supabase.Client
	bucket string
}

// NewSupabaseUploader creates an uploader targeting the given bucket.
func NewSupabaseUploader(sdk *supabase.Client, bucket string) *SupabaseUploader {
	return &SupabaseUploader{sdk: sdk, bucket: bucket}
}

// Upload stores data at path with the given content type, overwriting any
// previous object for the same episode.
func (u *SupabaseUploader) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if u.sdk == nil {
		return fmt.Errorf("supabase SDK is not initialized")
	}

	upsert := true
	_, err := u.sdk.Storage.UploadFile(u.bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("supabase upload %s/%s: %w", u.bucket, path, err)
	}
	return nil
}
