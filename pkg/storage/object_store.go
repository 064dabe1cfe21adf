// Package storage archives raw payloads to object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultArchivePrefix = "quarantine"

// Archive keeps a copy of data that is about to be discarded.
type Archive interface {
	// Archive stores data under a name-derived object key and returns that key.
	Archive(ctx context.Context, name string, data []byte) (string, error)
}

// MinioConfig describes the MinIO/S3 bucket used for archiving.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// MinioArchive implements Archive on MinIO/S3 compatible storage.
type MinioArchive struct {
	client *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewMinioArchive connects to MinIO and ensures the bucket exists.
func NewMinioArchive(cfg MinioConfig) (*MinioArchive, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	return &MinioArchive{client: client, bucket: cfg.Bucket, prefix: prefix, now: time.Now}, nil
}

// Archive uploads data as a JSON object.
func (m *MinioArchive) Archive(ctx context.Context, name string, data []byte) (string, error) {
	key := ObjectKey(m.prefix, name, m.now())
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// ObjectKey builds "<prefix>/<escaped name>-<unix millis>.json".
func ObjectKey(prefix, name string, at time.Time) string {
	name = url.PathEscape(strings.TrimSpace(name))
	if name == "" {
		name = "document"
	}
	return path.Join(prefix, fmt.Sprintf("%s-%d.json", name, at.UTC().UnixMilli()))
}
