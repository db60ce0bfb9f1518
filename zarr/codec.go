package zarr

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressorConfig identifies the compression codec applied to chunk bytes.
// A nil config means chunks are stored raw.
type CompressorConfig struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Codec serializes chunk slabs to storage bytes and back. The record wire
// layout is produced by the descriptor accessors, so encoding is a straight
// copy of the slab buffer plus the optional compression stage.
type Codec struct {
	dt         *Descriptor
	compressor *CompressorConfig
}

// NewCodec returns a codec for the given record layout. compressor may be
// nil for raw storage.
func NewCodec(dt *Descriptor, compressor *CompressorConfig) *Codec {
	return &Codec{dt: dt, compressor: compressor}
}

// Encode serializes the slab into chunk bytes, compressing if configured.
func (c *Codec) Encode(s *Slab) ([]byte, error) {
	raw := append([]byte(nil), s.Bytes()...)
	return c.compress(raw)
}

// Decode decompresses and validates chunk bytes, returning a slab of the
// given shape. Fails with ErrCorruptChunk when the byte length does not
// match shape and item size.
func (c *Codec) Decode(data []byte, shape []int) (*Slab, error) {
	raw, err := c.decompress(data)
	if err != nil {
		return nil, err
	}

	s, err := NewSlab(c.dt, shape)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(s.data) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for shape %v", ErrCorruptChunk, len(raw), len(s.data), shape)
	}
	copy(s.data, raw)
	return s, nil
}

func (c *Codec) compress(data []byte) ([]byte, error) {
	if c.compressor == nil {
		return data, nil
	}
	switch c.compressor.ID {
	case "zstd":
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		out := encoder.EncodeAll(data, nil)
		encoder.Close()
		return out, nil
	case "zlib", "gzip":
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("failed to compress chunk: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("failed to compress chunk: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compressor: %s", c.compressor.ID)
	}
}

func (c *Codec) decompress(data []byte) ([]byte, error) {
	if c.compressor == nil {
		return data, nil
	}
	switch c.compressor.ID {
	case "zstd":
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer decoder.Close()
		out, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptChunk, err)
		}
		return out, nil
	case "zlib", "gzip":
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCorruptChunk, err)
		}
		out, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCorruptChunk, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compressor: %s", c.compressor.ID)
	}
}
