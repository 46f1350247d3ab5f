// Package storage keeps uploaded canvas quotations, petty cash receipts and generated
// voucher PDFs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"procurement/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for a key that holds no object
var ErrNotFound = errors.New("storage: object not found")

// FileStore is the object store seen by services. Put returns the key the object was
// actually stored under, which may differ from the requested key.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// GenerateKey builds "<scope>/<yyyy>/<mm>/<uuid><ext>" for an uploaded file name
func GenerateKey(scope, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%04d/%02d/%s%s", scope, now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// New picks the store named by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (FileStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "s3":
		store, err := NewS3Store(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
