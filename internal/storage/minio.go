package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/GoblinVrc/service-request-backend/internal/config"
)

// MinioBlob stores attachments in an S3-compatible MinIO bucket
type MinioBlob struct {
	Client *minio.Client
	Bucket string
}

// NewMinioBlob connects to the configured MinIO endpoint
func NewMinioBlob(opts config.BlobOptions) (*MinioBlob, error) {
	client, err := minio.New(opts.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.MinioAccessKey, opts.MinioSecretKey, ""),
		Secure: opts.MinioUseSSL,
		Region: opts.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioBlob{Client: client, Bucket: opts.Bucket}, nil
}

func (b *MinioBlob) Enabled() bool { return b != nil && b.Client != nil && b.Bucket != "" }

func (b *MinioBlob) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if !b.Enabled() {
		return ErrDisabled
	}
	_, err := b.Client.PutObject(ctx, b.Bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", path, err)
	}
	return nil
}

func (b *MinioBlob) SignReadURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if !b.Enabled() {
		return "", ErrDisabled
	}
	u, err := b.Client.PresignedGetObject(ctx, b.Bucket, path, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", path, err)
	}
	return u.String(), nil
}

func (b *MinioBlob) Exists(ctx context.Context, path string) (bool, error) {
	if !b.Enabled() {
		return false, ErrDisabled
	}
	_, err := b.Client.StatObject(ctx, b.Bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("minio stat %s: %w", path, err)
}
