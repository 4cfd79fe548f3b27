package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Two attempts with a short pause, the store's transient-failure budget.
const (
	maxAttempts  = 2
	attemptPause = 100 * time.Millisecond
)

// Storage is the object-store adapter. In-flight and internal artifacts live
// in the internal bucket, final outputs in the downloads bucket, and client
// uploads arrive through presigned URLs into the uploads bucket.
type Storage struct {
	client          *miniogo.Client
	internalBucket  string
	downloadsBucket string
	uploadsBucket   string
	httpClient      *http.Client
}

var _ port.ObjectStore = (*Storage)(nil)

type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	InternalBucket  string
	DownloadsBucket string
	UploadsBucket   string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:          client,
		internalBucket:  cfg.InternalBucket,
		downloadsBucket: cfg.DownloadsBucket,
		uploadsBucket:   cfg.UploadsBucket,
		httpClient:      &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.internalBucket, s.downloadsBucket, s.uploadsBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// bucketFor routes output artifacts to downloads, everything else internal.
func (s *Storage) bucketFor(t entity.ArtifactType) string {
	if t.Downloadable() {
		return s.downloadsBucket
	}
	return s.internalBucket
}

func contentType(t entity.ArtifactType) string {
	if t.Ext() == ".jpg" {
		return "image/jpeg"
	}
	return "video/mp4"
}

func (s *Storage) Upload(ctx context.Context, ref entity.ArtifactRef, srcPath string) error {
	key, err := ref.Key()
	if err != nil {
		return err
	}
	bucket := s.bucketFor(ref.Type)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := s.client.FPutObject(ctx, bucket, key, srcPath, miniogo.PutObjectOptions{
			ContentType: contentType(ref.Type),
		})
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(attemptPause)
	}
	return fmt.Errorf("upload %s: %w", key, lastErr)
}

func (s *Storage) Download(ctx context.Context, ref entity.ArtifactRef, destPath string) error {
	key, err := ref.Key()
	if err != nil {
		return err
	}
	bucket := s.bucketFor(ref.Type)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.client.FGetObject(ctx, bucket, key, destPath, miniogo.GetObjectOptions{})
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(attemptPause)
	}
	if resp := miniogo.ToErrorResponse(lastErr); resp.Code == "NoSuchKey" {
		return fmt.Errorf("download %s: %w", key, entity.ErrNotFound)
	}
	return fmt.Errorf("download %s: %w", key, lastErr)
}

func (s *Storage) Delete(ctx context.Context, ref entity.ArtifactRef) error {
	key, err := ref.Key()
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketFor(ref.Type), key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Storage) DeleteJobFiles(ctx context.Context, jobID uuid.UUID) (int, error) {
	deleted := 0
	for obj := range s.client.ListObjects(ctx, s.internalBucket, miniogo.ListObjectsOptions{
		Prefix: jobID.String(),
	}) {
		if obj.Err != nil {
			return deleted, fmt.Errorf("list job files: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.internalBucket, obj.Key, miniogo.RemoveObjectOptions{}); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", obj.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *Storage) FetchExternal(ctx context.Context, rawURL string, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: bad source url: %v", entity.ErrInvalidInput, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("save source: %w", err)
	}
	return nil
}

func (s *Storage) PresignedGetURL(ctx context.Context, ref entity.ArtifactRef, expiry time.Duration) (string, error) {
	key, err := ref.Key()
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketFor(ref.Type), key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *Storage) PresignedPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.uploadsBucket, objectName, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", objectName, err)
	}
	return u.String(), nil
}

func (s *Storage) PresignedUploadGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.uploadsBucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign upload get %s: %w", objectName, err)
	}
	return u.String(), nil
}
