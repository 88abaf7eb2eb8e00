package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	Prefix   string
	Region   string // skips the bucket location lookup when set
	UseSSL   bool
}

// MinioStorage implements Storage on any S3 compatible server reachable
// through minio-go (MinIO, Cloudflare R2, Backblaze B2).
type MinioStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioStorage(ctx context.Context, cfg *MinioConfig) (*MinioStorage, error) {
	if cfg == nil {
		return nil, errors.New("must provide minio config")
	}
	if cfg.Endpoint == "" || cfg.Access == "" || cfg.Secret == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint, access key, secret key and bucket are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	found, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !found {
		return nil, fmt.Errorf("bucket %q doesn't exist", cfg.Bucket)
	}
	return &MinioStorage{
		client: mc,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func (s *MinioStorage) key(path string) string {
	return s.prefix + strings.TrimPrefix(path, "/")
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

func (s *MinioStorage) Read(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", s.bucket, s.key(path), err)
	}
	defer obj.Close()
	// GetObject is lazy; a missing key is only reported on first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", s.bucket, s.key(path), err)
	}
	return data, nil
}

func (s *MinioStorage) Write(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(path), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", s.bucket, s.key(path), err)
	}
	return nil
}

func (s *MinioStorage) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(path), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", s.bucket, s.key(path), err)
	}
	return nil
}

func (s *MinioStorage) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}
	var paths []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: fullPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", s.bucket, fullPrefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		paths = append(paths, strings.TrimPrefix(obj.Key, s.prefix))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MinioStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(path), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s/%s: %w", s.bucket, s.key(path), err)
	}
	return true, nil
}

func (s *MinioStorage) MkdirAll(context.Context, string) error {
	return nil
}
