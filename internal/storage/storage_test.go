package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"procurement/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Put(ctx, "canvas/2026/03/quote.pdf", strings.NewReader("quote A"), 7, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "canvas/2026/03/quote.pdf", key)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "quote A", string(body))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalStore_NeverOverwrites(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.Put(ctx, "receipts/r.jpg", strings.NewReader("one"), 3, "")
	require.NoError(t, err)
	second, err := store.Put(ctx, "receipts/r.jpg", strings.NewReader("two"), 3, "")
	require.NoError(t, err)
	third, err := store.Put(ctx, "receipts/r.jpg", strings.NewReader("three"), 5, "")
	require.NoError(t, err)

	assert.Equal(t, "receipts/r.jpg", first)
	assert.Equal(t, "receipts/r_1.jpg", second)
	assert.Equal(t, "receipts/r_2.jpg", third)

	rc, err := store.Get(ctx, first)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "one", string(body))
}

func TestLocalStore_KeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	p, err := store.path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))

	_, err = store.path("/")
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("canvas", "Quote B.PDF", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "canvas/2026/03/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, GenerateKey("canvas", "Quote B.PDF", time.Now()))
}

func TestNewS3Store_Validation(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.StorageConfig{AccessKey: "k", SecretKey: "s"}, nil)
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3Store(context.Background(), config.StorageConfig{Bucket: "b"}, nil)
	assert.ErrorContains(t, err, "secret key are required")

	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "localhost:9000", UsePathStyle: true,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "b", store.bucket)
}

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(&types.NoSuchKey{}))
	assert.True(t, isMissing(&types.NotFound{}))
	assert.True(t, isMissing(errors.New("api error NotFound: Not Found")))
	assert.False(t, isMissing(errors.New("access denied")))
}

func TestNew_PicksDriver(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Driver: "local", LocalDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), config.StorageConfig{Driver: "ftp"}, zap.NewNop())
	assert.Error(t, err)
}
