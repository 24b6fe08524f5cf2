// Package storage keeps uploaded event images in MinIO.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iliyamo/conference-cms/internal/config"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

var (
	ErrNotFound         = errors.New("image not found")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore wraps the MinIO SDK client and bucket name.
type ImageStore struct {
	client *minio.Client
	bucket string
}

// NewImageStore constructs a MinIO client from config.
func NewImageStore(cfg config.MinioConfig) (*ImageStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &ImageStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the configured bucket if it does not exist.
func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// Save uploads an image under a fresh key and returns the key.
func (s *ImageStore) Save(ctx context.Context, contentType string, r io.Reader, size int64) (string, error) {
	key, err := NewImageKey(contentType, size)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for the image stored under key and its content type.
func (s *ImageStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", mapMinioErr(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, "", mapMinioErr(err)
	}
	return obj, info.ContentType, nil
}

// Delete removes an image.  Missing keys are not an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// NewImageKey validates an upload and builds its object key,
// e.g. "images/0b6f...-....png".
func NewImageKey(contentType string, size int64) (string, error) {
	ext, ok := imageExt[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedImage
	}
	if size <= 0 || size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	return path.Join("images", uuid.NewString()+ext), nil
}

// ValidKey reports whether key has the shape produced by NewImageKey.
func ValidKey(key string) bool {
	dir, file := path.Split(key)
	if dir != "images/" {
		return false
	}
	ext := path.Ext(file)
	if _, err := uuid.Parse(strings.TrimSuffix(file, ext)); err != nil {
		return false
	}
	for _, e := range imageExt {
		if e == ext {
			return true
		}
	}
	return false
}

func mapMinioErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
