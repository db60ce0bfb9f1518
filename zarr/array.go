package zarr

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
)

// Region is a half-open N-dimensional slice: element coordinates in
// [Start[i], Stop[i]) per dimension. Regions outside the array shape are
// rejected, never clipped; use (*Array).FullRegion for a whole-array region.
type Region struct {
	Start []int
	Stop  []int
}

// Shape returns the region's extent per dimension.
func (r Region) Shape() []int {
	shape := make([]int, len(r.Start))
	for i := range r.Start {
		shape[i] = r.Stop[i] - r.Start[i]
	}
	return shape
}

func (r Region) validate(shape []int) error {
	if len(r.Start) != len(shape) || len(r.Stop) != len(shape) {
		return fmt.Errorf("%w: region rank does not match array rank %d", ErrOutOfBounds, len(shape))
	}
	for i := range shape {
		if r.Start[i] < 0 || r.Stop[i] <= r.Start[i] || r.Stop[i] > shape[i] {
			return fmt.Errorf("%w: [%d, %d) outside [0, %d) at dimension %d", ErrOutOfBounds, r.Start[i], r.Stop[i], shape[i], i)
		}
	}
	return nil
}

// Array is an open handle to a stored N-dimensional array of records.
// A handle is either open or closed; every operation on a closed handle
// fails. Independent handles may read concurrently; concurrent writers to
// the same chunk serialize on the store's atomic put (last writer wins).
type Array struct {
	bucket *blob.Bucket
	store  *ChunkStore
	codec  *Codec
	meta   *Metadata
	dt     *Descriptor
	fill   []byte
	closed bool
}

// Create initializes a new array at the bucket URL and returns an open
// handle. Fails with ErrAlreadyExists when a metadata document is already
// present.
func Create(ctx context.Context, url string, meta *Metadata) (*Array, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}

	ok, err := bucket.Exists(ctx, MetadataKey)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", MetadataKey, err)
	}
	if ok {
		bucket.Close()
		return nil, fmt.Errorf("%s: %w", url, ErrAlreadyExists)
	}

	if err := SaveMetadata(ctx, bucket, meta); err != nil {
		bucket.Close()
		return nil, err
	}
	return newHandle(bucket, meta)
}

// Open returns a handle to an existing array. Fails with ErrNotFound when no
// array exists at the URL, or ErrSchema when the metadata is unreadable.
func Open(ctx context.Context, url string) (*Array, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}

	meta, err := LoadMetadata(ctx, bucket)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return newHandle(bucket, meta)
}

func newHandle(bucket *blob.Bucket, meta *Metadata) (*Array, error) {
	dt, err := meta.Descriptor()
	if err != nil {
		bucket.Close()
		return nil, err
	}
	fill, err := meta.FillRecord(dt)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return &Array{
		bucket: bucket,
		store:  NewChunkStore(bucket, meta.separator(), len(meta.Shape)),
		codec:  NewCodec(dt, meta.Compressor),
		meta:   meta,
		dt:     dt,
		fill:   fill,
	}, nil
}

// Metadata returns the array's metadata document.
func (a *Array) Metadata() *Metadata { return a.meta }

// Descriptor returns the array's record layout.
func (a *Array) Descriptor() *Descriptor { return a.dt }

// Shape returns the current logical shape.
func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

// FullRegion returns the region covering the whole array. This is the one
// place where bounds come from the array rather than the caller.
func (a *Array) FullRegion() Region {
	return Region{Start: make([]int, len(a.meta.Shape)), Stop: a.Shape()}
}

// Close releases the handle. Further operations fail.
func (a *Array) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.bucket.Close()
}

func (a *Array) ensureOpen() error {
	if a.closed {
		return errors.New("array handle is closed")
	}
	return nil
}

// gridRange returns the inclusive chunk index range intersecting the region.
func (a *Array) gridRange(r Region) (lo, hi []int) {
	lo = make([]int, len(a.meta.Shape))
	hi = make([]int, len(a.meta.Shape))
	for i := range a.meta.Shape {
		lo[i] = r.Start[i] / a.meta.Chunks[i]
		hi[i] = (r.Stop[i] - 1) / a.meta.Chunks[i]
	}
	return lo, hi
}

// chunkExtent returns the chunk's element range clipped to the array shape.
func (a *Array) chunkExtent(key []int) (start, stop []int) {
	start = make([]int, len(key))
	stop = make([]int, len(key))
	for i, k := range key {
		start[i] = k * a.meta.Chunks[i]
		stop[i] = start[i] + a.meta.Chunks[i]
		if stop[i] > a.meta.Shape[i] {
			stop[i] = a.meta.Shape[i]
		}
	}
	return start, stop
}

// forEachChunk visits every chunk index in the inclusive range [lo, hi],
// last dimension fastest, stopping at the first error.
func forEachChunk(lo, hi []int, fn func(key []int) error) error {
	key := append([]int(nil), lo...)
	for {
		if err := fn(key); err != nil {
			return err
		}
		i := len(key) - 1
		for ; i >= 0; i-- {
			key[i]++
			if key[i] <= hi[i] {
				break
			}
			key[i] = lo[i]
		}
		if i < 0 {
			return nil
		}
	}
}

// Read returns the records in the region. Cells belonging to chunks that
// were never written come back as the fill value; the result has no gaps.
func (a *Array) Read(ctx context.Context, r Region) (*Slab, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	if err := r.validate(a.meta.Shape); err != nil {
		return nil, err
	}

	out, err := NewSlab(a.dt, r.Shape())
	if err != nil {
		return nil, err
	}
	if err := out.Fill(a.fill); err != nil {
		return nil, err
	}

	lo, hi := a.gridRange(r)
	err = forEachChunk(lo, hi, func(key []int) error {
		data, err := a.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		chunk, err := a.codec.Decode(data, a.meta.Chunks)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", ChunkKey(key, a.meta.separator()), err)
		}

		chunkStart, chunkStop := a.chunkExtent(key)
		isectStart, isectShape := intersect(chunkStart, chunkStop, r.Start, r.Stop)
		srcOff := make([]int, len(key))
		dstOff := make([]int, len(key))
		for i := range key {
			srcOff[i] = isectStart[i] - chunkStart[i]
			dstOff[i] = isectStart[i] - r.Start[i]
		}
		copyRegion(out, dstOff, chunk, srcOff, isectShape)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write stores the records of values into the region. values must have the
// region's exact shape and share the array's record layout. Chunks are
// written sequentially; on failure the write aborts with some prefix of
// chunks already updated (no rollback).
func (a *Array) Write(ctx context.Context, r Region, values *Slab) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if err := r.validate(a.meta.Shape); err != nil {
		return err
	}
	if values.Descriptor().ItemSize() != a.dt.ItemSize() {
		return fmt.Errorf("%w: value record layout does not match array dtype", ErrSchema)
	}
	if !equalInts(values.Shape(), r.Shape()) {
		return fmt.Errorf("%w: value shape %v does not match region shape %v", ErrOutOfBounds, values.Shape(), r.Shape())
	}

	lo, hi := a.gridRange(r)
	return forEachChunk(lo, hi, func(key []int) error {
		chunkStart, chunkStop := a.chunkExtent(key)
		isectStart, isectShape := intersect(chunkStart, chunkStop, r.Start, r.Stop)

		fullCover := true
		for i := range key {
			if isectStart[i] != chunkStart[i] || isectShape[i] != chunkStop[i]-chunkStart[i] {
				fullCover = false
				break
			}
		}

		var chunk *Slab
		if fullCover {
			// Region covers the chunk's whole valid extent; no read needed.
			// Edge chunks still allocate the full chunk shape, so cells past
			// the array bounds hold the fill value.
			fresh, err := NewSlab(a.dt, a.meta.Chunks)
			if err != nil {
				return err
			}
			if err := fresh.Fill(a.fill); err != nil {
				return err
			}
			chunk = fresh
		} else {
			data, err := a.store.Get(ctx, key)
			switch {
			case errors.Is(err, ErrNotFound):
				fresh, err := NewSlab(a.dt, a.meta.Chunks)
				if err != nil {
					return err
				}
				if err := fresh.Fill(a.fill); err != nil {
					return err
				}
				chunk = fresh
			case err != nil:
				return err
			default:
				chunk, err = a.codec.Decode(data, a.meta.Chunks)
				if err != nil {
					return fmt.Errorf("chunk %s: %w", ChunkKey(key, a.meta.separator()), err)
				}
			}
		}

		dstOff := make([]int, len(key))
		srcOff := make([]int, len(key))
		for i := range key {
			dstOff[i] = isectStart[i] - chunkStart[i]
			srcOff[i] = isectStart[i] - r.Start[i]
		}
		copyRegion(chunk, dstOff, values, srcOff, isectShape)

		encoded, err := a.codec.Encode(chunk)
		if err != nil {
			return err
		}
		return a.store.Put(ctx, key, encoded)
	})
}

// Resize grows the array's logical shape. Shrinking any dimension fails with
// ErrShrinkNotSupported and leaves the array unchanged. Chunk shape is
// immutable, so existing chunks stay valid.
func (a *Array) Resize(ctx context.Context, newShape []int) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if len(newShape) != len(a.meta.Shape) {
		return fmt.Errorf("%w: new shape rank %d does not match rank %d", ErrSchema, len(newShape), len(a.meta.Shape))
	}
	for i := range newShape {
		if newShape[i] < a.meta.Shape[i] {
			return fmt.Errorf("%w: dimension %d shrinks from %d to %d", ErrShrinkNotSupported, i, a.meta.Shape[i], newShape[i])
		}
	}

	updated := *a.meta
	updated.Shape = append([]int(nil), newShape...)
	if err := SaveMetadata(ctx, a.bucket, &updated); err != nil {
		return err
	}
	a.meta = &updated
	return nil
}

// Delete removes all chunks and then the metadata document, and closes the
// handle. Metadata goes last so a concurrent Open never sees an array whose
// document is gone while chunks linger under a live handle.
func (a *Array) Delete(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	it := a.store.List(ctx)
	for {
		key, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := a.store.Delete(ctx, key); err != nil {
			return err
		}
	}

	if err := a.bucket.Delete(ctx, MetadataKey); err != nil {
		return fmt.Errorf("failed to delete %s: %w", MetadataKey, err)
	}
	return a.Close()
}

// ListChunks returns a lazy iterator over the keys of populated chunks.
func (a *Array) ListChunks(ctx context.Context) (*KeyIterator, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	return a.store.List(ctx), nil
}

// intersect clips [aStart, aStop) against [bStart, bStop) per dimension and
// returns the intersection's start and shape. Callers only pass ranges that
// are known to overlap.
func intersect(aStart, aStop, bStart, bStop []int) (start, shape []int) {
	start = make([]int, len(aStart))
	shape = make([]int, len(aStart))
	for i := range aStart {
		lo := aStart[i]
		if bStart[i] > lo {
			lo = bStart[i]
		}
		hi := aStop[i]
		if bStop[i] < hi {
			hi = bStop[i]
		}
		start[i] = lo
		shape[i] = hi - lo
	}
	return start, shape
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
