package zarr

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ChunkKey generates the storage key for a chunk given its grid indices and
// a separator. For Zarr V2 the separator is typically ".".
// Example: indices=[1, 4], separator="." -> "1.4".
func ChunkKey(indices []int, separator string) string {
	if len(indices) == 0 {
		return "0"
	}
	if len(indices) == 1 {
		return strconv.Itoa(indices[0])
	}
	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// parseChunkKey inverts ChunkKey for keys of the given rank. Returns false
// for keys that are not chunk names (metadata documents, foreign objects).
func parseChunkKey(key, separator string, rank int) ([]int, bool) {
	parts := strings.Split(key, separator)
	if len(parts) != rank {
		return nil, false
	}
	indices := make([]int, rank)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		indices[i] = n
	}
	return indices, true
}

// ChunkStore maps chunk grid coordinates to objects in a blob bucket, one
// object per chunk. Writes are atomic from a reader's perspective: the
// fileblob driver stages to a temp file and renames, and memblob swaps the
// value under a lock.
type ChunkStore struct {
	bucket    *blob.Bucket
	separator string
	rank      int
}

// NewChunkStore returns a store for chunks of the given rank rooted at the
// bucket. separator joins grid coordinates into object keys.
func NewChunkStore(bucket *blob.Bucket, separator string, rank int) *ChunkStore {
	return &ChunkStore{bucket: bucket, separator: separator, rank: rank}
}

// Put writes the chunk bytes for key, replacing any previous value.
func (cs *ChunkStore) Put(ctx context.Context, key []int, data []byte) error {
	name := ChunkKey(key, cs.separator)
	if err := cs.bucket.WriteAll(ctx, name, data, nil); err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", name, err)
	}
	return nil
}

// Get reads the chunk bytes for key. Returns ErrNotFound (wrapped) when the
// chunk was never written.
func (cs *ChunkStore) Get(ctx context.Context, key []int) ([]byte, error) {
	name := ChunkKey(key, cs.separator)
	data, err := cs.bucket.ReadAll(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("chunk %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read chunk %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether a chunk has been written for key.
func (cs *ChunkStore) Exists(ctx context.Context, key []int) (bool, error) {
	ok, err := cs.bucket.Exists(ctx, ChunkKey(key, cs.separator))
	if err != nil {
		return false, fmt.Errorf("failed to stat chunk: %w", err)
	}
	return ok, nil
}

// Delete removes the chunk for key. Deleting an absent chunk is not an error.
func (cs *ChunkStore) Delete(ctx context.Context, key []int) error {
	name := ChunkKey(key, cs.separator)
	if err := cs.bucket.Delete(ctx, name); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete chunk %s: %w", name, err)
	}
	return nil
}

// List returns a lazy iterator over the keys of all populated chunks.
// Non-chunk objects (the metadata document) are skipped. Call List again to
// restart iteration.
func (cs *ChunkStore) List(ctx context.Context) *KeyIterator {
	return &KeyIterator{
		it:        cs.bucket.List(&blob.ListOptions{}),
		separator: cs.separator,
		rank:      cs.rank,
	}
}

// KeyIterator walks chunk keys in a store. Next returns io.EOF when the
// sequence is exhausted.
type KeyIterator struct {
	it        *blob.ListIterator
	separator string
	rank      int
}

// Next returns the grid coordinates of the next populated chunk.
func (ki *KeyIterator) Next(ctx context.Context) ([]int, error) {
	for {
		obj, err := ki.it.Next(ctx)
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks: %w", err)
		}
		if key, ok := parseChunkKey(obj.Key, ki.separator, ki.rank); ok {
			return key, nil
		}
	}
}
