package zarr_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/BrianMichell/tensorstore/zarr"
)

func TestChunkKey(t *testing.T) {
	tests := []struct {
		indices   []int
		separator string
		expected  string
	}{
		{[]int{1, 4}, ".", "1.4"},
		{[]int{0, 0, 0}, ".", "0.0.0"},
		{[]int{10}, ".", "10"},
		{[]int{1, 2}, "/", "1/2"},
		{[]int{}, ".", "0"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, zarr.ChunkKey(tt.indices, tt.separator))
	}
}

func TestChunkStore_PutGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	store := zarr.NewChunkStore(bucket, ".", 2)

	key := []int{1, 2}
	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, zarr.ErrNotFound)

	require.NoError(t, store.Put(ctx, key, []byte("chunk data")))

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("chunk data"), data)

	// Overwrite replaces the previous value.
	require.NoError(t, store.Put(ctx, key, []byte("v2")))
	data, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, zarr.ErrNotFound)

	// Deleting an absent chunk is a no-op.
	require.NoError(t, store.Delete(ctx, key))
}

func TestChunkStore_List(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	store := zarr.NewChunkStore(bucket, ".", 2)

	require.NoError(t, store.Put(ctx, []int{0, 0}, []byte("a")))
	require.NoError(t, store.Put(ctx, []int{0, 1}, []byte("b")))
	require.NoError(t, store.Put(ctx, []int{3, 2}, []byte("c")))
	// Metadata and foreign keys must not surface as chunks.
	require.NoError(t, bucket.WriteAll(ctx, zarr.MetadataKey, []byte("{}"), nil))
	require.NoError(t, bucket.WriteAll(ctx, "notes.txt", []byte("x"), nil))

	collect := func() [][]int {
		var keys [][]int
		it := store.List(ctx)
		for {
			key, err := it.Next(ctx)
			if err == io.EOF {
				return keys
			}
			require.NoError(t, err)
			keys = append(keys, key)
		}
	}

	keys := collect()
	require.ElementsMatch(t, [][]int{{0, 0}, {0, 1}, {3, 2}}, keys)

	// The sequence is restartable: a fresh iterator walks it again.
	require.ElementsMatch(t, keys, collect())
}
