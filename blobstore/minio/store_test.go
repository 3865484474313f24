package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roadkit/blobstore"
)

func TestStore_KeyMapping(t *testing.T) {
	s := NewStore(nil, "roads", "berlin/")
	assert.Equal(t, "berlin/location_index", s.key("location_index"))
	assert.Equal(t, "location_index", s.name("berlin/location_index"))
	assert.Equal(t, "a/b", s.name("berlin/a/b"))

	bare := NewStore(nil, "roads", "")
	assert.Equal(t, "location_index", bare.key("location_index"))
	assert.Equal(t, "location_index", bare.name("location_index"))
}

// TestStore_Integration needs a MinIO server; it is skipped otherwise.
// Set ROADKIT_MINIO_ENDPOINT to override localhost:9000.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("ROADKIT_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	const bucket = "roadkit-test"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("minio client: %v", err)
	}
	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not available: %v", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it/")

	data := []byte("hello minio roads")
	require.NoError(t, store.Put(ctx, "location_index", data))

	got, err := blobstore.ReadAll(ctx, store, "location_index")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	blob, err := store.Open(ctx, "location_index")
	require.NoError(t, err)
	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	w, err := store.Create(ctx, "streamed")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "location_index")
	assert.Contains(t, names, "streamed")

	require.NoError(t, store.Delete(ctx, "location_index"))
	require.NoError(t, store.Delete(ctx, "streamed"))
	_, err = store.Open(ctx, "location_index")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
