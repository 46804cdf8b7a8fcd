package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"bookshop/internal/util"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxCoverBytes caps a single cover upload.
const MaxCoverBytes = 5 << 20

var ErrUnsupportedType = errors.New("unsupported cover image type")

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Cover is a stored cover image and the public URL it is served from.
type Cover struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// CoverStore keeps book cover images in object storage.
type CoverStore interface {
	PutCover(ctx context.Context, bookID string, r io.Reader, size int64, contentType string) (Cover, error)
	DeleteCover(ctx context.Context, key string) error
}

// MinioCoverStore implements CoverStore for MinIO/S3 compatible storage.
type MinioCoverStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// BaseURL is the public prefix covers are served from. When empty the
	// MinIO endpoint and bucket are used.
	BaseURL string
}

// NewMinioCoverStore connects to MinIO and ensures the bucket exists.
func NewMinioCoverStore(ctx context.Context, cfg MinioConfig) (*MinioCoverStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
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
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return &MinioCoverStore{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

func (m *MinioCoverStore) PutCover(ctx context.Context, bookID string, r io.Reader, size int64, contentType string) (Cover, error) {
	key, err := CoverKey(bookID, contentType)
	if err != nil {
		return Cover{}, err
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	}); err != nil {
		return Cover{}, fmt.Errorf("put cover: %w", err)
	}
	return Cover{Key: key, URL: PublicURL(m.baseURL, key)}, nil
}

func (m *MinioCoverStore) DeleteCover(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete cover: %w", err)
	}
	return nil
}

// CoverKey builds a unique object key for a book cover of the given type.
func CoverKey(bookID, contentType string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := coverExtensions[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return "", errors.New("book id required")
	}
	return path.Join("covers", url.PathEscape(bookID), util.NewID()+ext), nil
}

// PublicURL joins the serving prefix and an object key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
