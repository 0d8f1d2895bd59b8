package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Blob stores attachments in an S3 bucket
type S3Blob struct {
	Client  s3API
	Presign func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	Bucket  string
}

// NewS3Blob creates an S3-backed Blob from a loaded AWS config
func NewS3Blob(cfg aws.Config, bucket string) *S3Blob {
	client := s3.NewFromConfig(cfg)
	presigner := s3.NewPresignClient(client)
	return &S3Blob{
		Client: client,
		Bucket: bucket,
		Presign: func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
	}
}

func (b *S3Blob) Enabled() bool { return b != nil && b.Client != nil && b.Bucket != "" }

func (b *S3Blob) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if !b.Enabled() {
		return ErrDisabled
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(b.Bucket),
		Key:           aws.String(path),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := b.Client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put %s: %w", path, err)
	}
	return nil
}

func (b *S3Blob) SignReadURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if !b.Enabled() || b.Presign == nil {
		return "", ErrDisabled
	}
	url, err := b.Presign(ctx, b.Bucket, path, ttl)
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", path, err)
	}
	return url, nil
}

func (b *S3Blob) Exists(ctx context.Context, path string) (bool, error) {
	if !b.Enabled() {
		return false, ErrDisabled
	}
	_, err := b.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s: %w", path, err)
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
