/*
Package storage hands out presigned URLs for message attachments.

Files never pass through the server: clients upload to and download from the bucket
with short-lived URLs. Object keys are prefixed with the inbox ID, so access to a file
is decided by membership in that inbox.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the S3 connection settings.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService presigns attachment transfers.
type StorageService interface {
	// PresignUpload returns a URL for uploading exactly fileSize bytes of mimeType to key.
	PresignUpload(ctx context.Context, key string, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload returns a URL for downloading key.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewStorageService returns the S3-backed StorageService.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	return newS3Client(ctx, cfg)
}
