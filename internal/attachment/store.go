// Package attachment stores complaint images in S3-compatible object storage.
package attachment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/citizenvoice/platform/internal/shared/config"
	"github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/types"
)

// Store is the object storage used for attachments
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.ReadSeeker) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the key under which an attachment is stored
func ObjectKey(complaintID, attachmentID types.ID, ext string) string {
	return fmt.Sprintf("complaints/%s/%s%s", complaintID, attachmentID, ext)
}

// S3Store implements Store on an S3 bucket
type S3Store struct {
	bucket     string
	svc        s3iface.S3API
	presignTTL time.Duration
}

// NewS3Store creates an S3 client from the storage configuration. A custom
// endpoint switches to path-style addressing for MinIO and similar servers.
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	return NewS3StoreWithClient(s3.New(sess), cfg.Bucket, cfg.PresignTTL), nil
}

// NewS3StoreWithClient wraps an existing S3 client
func NewS3StoreWithClient(svc s3iface.S3API, bucket string, presignTTL time.Duration) *S3Store {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &S3Store{bucket: bucket, svc: svc, presignTTL: presignTTL}
}

// Put uploads body under key
func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.ReadSeeker) error {
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrap(err, "failed to upload attachment")
	}
	return nil
}

// PresignGet returns a time-limited download URL for key
func (s *S3Store) PresignGet(_ context.Context, key string) (string, error) {
	req, _ := s.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", errors.Wrap(err, "failed to presign attachment URL")
	}
	return url, nil
}

// Delete removes key from the bucket
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete attachment")
	}
	return nil
}

// Disabled is used when no bucket is configured; every call fails with 503
type Disabled struct{}

func (Disabled) Put(context.Context, string, string, io.ReadSeeker) error {
	return errors.Unavailable("attachment storage is not configured")
}

func (Disabled) PresignGet(context.Context, string) (string, error) {
	return "", errors.Unavailable("attachment storage is not configured")
}

func (Disabled) Delete(context.Context, string) error {
	return errors.Unavailable("attachment storage is not configured")
}

// New returns the S3 store when storage is enabled, Disabled otherwise
func New(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	return NewS3Store(cfg)
}
