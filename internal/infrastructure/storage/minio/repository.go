package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// maxDownloadSize bounds how much of an object Download will buffer.
const maxDownloadSize = 256 << 20

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeObjectNotFound, "object not found")
	ErrInvalidKey     = errors.New(errors.ErrCodeBadRequest, "object key is required")
	ErrObjectTooLarge = errors.New(errors.ErrCodeStorageError, "object exceeds download limit")
)

// StructureObjectKey is the storage key of an uploaded structure file:
// structures/<sha256>.<ext>. Identical uploads share one object.
func StructureObjectKey(contentHash, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return "structures/" + contentHash
	}
	return "structures/" + contentHash + "." + ext
}

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

// ObjectRepository reads and writes objects in the structures bucket.
type ObjectRepository interface {
	Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type minioRepository struct {
	client *Client
	logger logging.Logger
	now    func() time.Time
}

// NewRepository returns an ObjectRepository over client's bucket.
func NewRepository(client *Client, log logging.Logger) ObjectRepository {
	return &minioRepository{client: client, logger: log, now: time.Now}
}

func (r *minioRepository) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	api, err := r.client.getAPI()
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data[:min(512, len(data))])
	}

	info, err := api.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "upload %s failed", key)
	}

	r.logger.Debug("Object uploaded",
		logging.String("key", key),
		logging.Int64("size", info.Size),
	)
	return &UploadResult{
		Bucket:     r.client.Bucket(),
		ObjectKey:  key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: r.now().UTC(),
	}, nil
}

func (r *minioRepository) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	api, err := r.client.getAPI()
	if err != nil {
		return nil, err
	}

	obj, err := api.GetObject(ctx, r.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "download %s failed", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxDownloadSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "read %s failed", key)
	}
	if len(data) > maxDownloadSize {
		return nil, ErrObjectTooLarge.WithDetail(key)
	}
	return data, nil
}

func (r *minioRepository) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	api, err := r.client.getAPI()
	if err != nil {
		return false, err
	}
	if _, err := api.StatObject(ctx, r.client.Bucket(), key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrCodeStorageError, "stat %s failed", key)
	}
	return true, nil
}

// Delete removes the object. Deleting a missing key succeeds.
func (r *minioRepository) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	api, err := r.client.getAPI()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeStorageError, "delete %s failed", key)
	}
	return nil
}

// PresignedGetURL returns a time-limited download URL. A non-positive expiry
// uses the client default.
func (r *minioRepository) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	api, err := r.client.getAPI()
	if err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = r.client.PresignExpiry()
	}
	u, err := api.PresignedGetObject(ctx, r.client.Bucket(), key, expiry, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "presign %s failed", key)
	}
	return u.String(), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
