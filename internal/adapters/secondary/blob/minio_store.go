package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lorrc/service-desk-engine/internal/config"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// objectStore is the subset of the MinIO client the store uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinioStore keeps attachment bytes in an S3-compatible bucket.
type MinioStore struct {
	client objectStore
	bucket string
	logger *slog.Logger
}

var _ ports.BlobStore = (*MinioStore)(nil)

// NewMinioStore connects to the endpoint and creates the bucket if missing.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.BlobStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	return newMinioStore(ctx, client, cfg.MinioBucket, logger)
}

func newMinioStore(ctx context.Context, client objectStore, bucket string, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logger.Info("created attachment bucket", "bucket", bucket)
	}
	return &MinioStore{
		client: client,
		bucket: bucket,
		logger: logger.With("component", "minio_store"),
	}, nil
}

// Store uploads data under tickets/<ticketID>/<name> and returns the object key.
func (s *MinioStore) Store(ctx context.Context, data []byte, name string, ticketID int64) (string, error) {
	key := objectKey(ticketID, name)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "attachment stored", "key", key, "size", len(data))
	return key, nil
}

func (s *MinioStore) Read(ctx context.Context, handle string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", handle, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", handle, err)
	}
	return data, nil
}

func objectKey(ticketID int64, name string) string {
	return path.Join("tickets", fmt.Sprintf("%d", ticketID), path.Base(name))
}
