package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// Minio хранит вложения в S3-совместимом бакете; location — ключ объекта.
type Minio struct {
	client *minio.Client
	bucket string
}

var _ domain.BlobStore = (*Minio)(nil)

// MinioConfig описывает подключение к объектному хранилищу.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// NewMinio подключается к хранилищу и создаёт бакет при необходимости.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	start := time.Now()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	metrics.ObserveNetworkRequest("minio", "bucket_exists", cfg.Bucket, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: check bucket: %v", domain.ErrTransport, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

func (s *Minio) Stat(ctx context.Context, name string) (string, bool, error) {
	start := time.Now()
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	metrics.ObserveNetworkRequest("minio", "stat", s.bucket, start, err)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: stat %s: %v", domain.ErrTransport, name, err)
	}
	return name, true, nil
}

func (s *Minio) Put(ctx context.Context, name string, data []byte) (string, error) {
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	})
	metrics.ObserveNetworkRequest("minio", "put", s.bucket, start, err)
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", domain.ErrTransport, name, err)
	}
	return name, nil
}

func (s *Minio) Read(ctx context.Context, location string) ([]byte, error) {
	start := time.Now()
	obj, err := s.client.GetObject(ctx, s.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		metrics.ObserveNetworkRequest("minio", "get", s.bucket, start, err)
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrTransport, location, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	metrics.ObserveNetworkRequest("minio", "get", s.bucket, start, err)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}
