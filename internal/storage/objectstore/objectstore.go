// Package objectstore provides the S3-compatible object store used to persist
// submission photo evidence.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the configuration for connecting to the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicBaseURL is the externally reachable base address objects are
	// served from. When empty, addresses are derived from the endpoint.
	PublicBaseURL string
}

type s3Client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// minioClient adapts *minio.Client to the narrow s3Client interface.
type minioClient struct {
	*minio.Client
}

func (c minioClient) PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return c.Client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

// Store manages photo objects in one bucket of an S3-compatible store.
type Store struct {
	client s3Client

	bucket     string
	publicBase *url.URL
}

type options struct {
	newClient func(cfg Config) (s3Client, error)
}

// Options represents an optional function to override Store default values.
type Options func(*options)

// New creates an object store manager for the configured bucket, creating the
// bucket if it does not exist yet.
func New(ctx context.Context, cfg Config, args ...Options) (*Store, error) {
	opts := options{
		newClient: func(cfg Config) (s3Client, error) {
			c, err := minio.New(cfg.Endpoint, &minio.Options{
				Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
				Secure: cfg.UseSSL,
			})
			if err != nil {
				return nil, err
			}
			return minioClient{c}, nil
		},
	}
	for _, opt := range args {
		opt(&opts)
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket must be set")
	}

	publicBase, err := cfg.publicBase()
	if err != nil {
		return nil, fmt.Errorf("invalid public base URL: %w", err)
	}

	client, err := opts.newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create object store client: %w", err)
	}

	s := &Store{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: publicBase,
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ensureCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("unable to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ensureCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("unable to create bucket %q: %w", cfg.Bucket, err)
		}
		slog.Info("Created object store bucket", "bucket", cfg.Bucket)
	}

	return s, nil
}

// Put stores data under name with the given content type, overwriting any
// existing object of the same name, and returns its public retrieval URL.
// The overwrite makes retried uploads idempotent.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %q: %w", name, err)
	}

	return s.publicBase.JoinPath(s.bucket, name).String(), nil
}

// publicBase resolves the base URL objects are addressed under.
func (c Config) publicBase() (*url.URL, error) {
	if c.PublicBaseURL != "" {
		return url.Parse(c.PublicBaseURL)
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: c.Endpoint}, nil
}
