package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/GoblinVrc/service-request-backend/internal/config"
)

// ErrDisabled is returned by every operation of an unconfigured blob store.
var ErrDisabled = errors.New("blob storage not configured")

// Blob is the binary object store holding attachments
type Blob interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	SignReadURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Enabled() bool
}

// Disabled is the Blob used when no bucket is configured
type Disabled struct{}

func (Disabled) Put(context.Context, string, io.Reader, int64, string) error { return ErrDisabled }

func (Disabled) SignReadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Exists(context.Context, string) (bool, error) { return false, ErrDisabled }

func (Disabled) Enabled() bool { return false }

// New builds the Blob selected by opts. An empty bucket yields Disabled.
func New(ctx context.Context, cfg *config.Config) (Blob, error) {
	if cfg.Blob.Bucket == "" {
		return Disabled{}, nil
	}
	switch cfg.Blob.Backend {
	case config.BlobBackendMinio:
		return NewMinioBlob(cfg.Blob)
	default:
		awsCfg, err := cfg.AWS(ctx)
		if err != nil {
			return nil, err
		}
		return NewS3Blob(awsCfg, cfg.Blob.Bucket), nil
	}
}
