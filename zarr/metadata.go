package zarr

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// MetadataKey is the object key of the array metadata document.
const MetadataKey = ".zarray"

// FormatVersion is the storage format version written and accepted.
const FormatVersion = 2

// Metadata is the persistent description of an array: the .zarray document.
// DType is the ordered field list of the record layout; FillValue holds the
// wire bytes of one record and marshals as base64, null meaning a zero
// record.
type Metadata struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	DType              []Field           `json:"dtype"`
	Compressor         *CompressorConfig `json:"compressor"`
	FillValue          []byte            `json:"fill_value"`
	Order              string            `json:"order"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

func (m *Metadata) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// Descriptor validates the metadata's field list and returns the record
// layout.
func (m *Metadata) Descriptor() (*Descriptor, error) {
	return NewDescriptor(m.DType)
}

// FillRecord returns the fill value as one record's bytes. A nil FillValue
// means a zero record.
func (m *Metadata) FillRecord(dt *Descriptor) ([]byte, error) {
	if m.FillValue == nil {
		return make([]byte, dt.ItemSize()), nil
	}
	if len(m.FillValue) != dt.ItemSize() {
		return nil, fmt.Errorf("%w: fill value is %d bytes, item size is %d", ErrSchema, len(m.FillValue), dt.ItemSize())
	}
	return append([]byte(nil), m.FillValue...), nil
}

// Validate checks the structural invariants of the metadata document.
func (m *Metadata) Validate() error {
	if m.ZarrFormat != FormatVersion {
		return fmt.Errorf("%w: unsupported zarr_format %d, expected %d", ErrSchema, m.ZarrFormat, FormatVersion)
	}
	if len(m.Shape) == 0 {
		return fmt.Errorf("%w: shape must have rank >= 1", ErrSchema)
	}
	if len(m.Chunks) != len(m.Shape) {
		return fmt.Errorf("%w: chunk rank %d does not match shape rank %d", ErrSchema, len(m.Chunks), len(m.Shape))
	}
	for i := range m.Shape {
		if m.Shape[i] <= 0 {
			return fmt.Errorf("%w: shape dimension %d is %d", ErrSchema, i, m.Shape[i])
		}
		if m.Chunks[i] <= 0 || m.Chunks[i] > m.Shape[i] {
			return fmt.Errorf("%w: chunk dimension %d is %d, must be in [1, %d]", ErrSchema, i, m.Chunks[i], m.Shape[i])
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("%w: unsupported order %q, only C layout is supported", ErrSchema, m.Order)
	}
	switch m.separator() {
	case ".", "/":
	default:
		return fmt.Errorf("%w: unsupported dimension_separator %q", ErrSchema, m.DimensionSeparator)
	}

	dt, err := m.Descriptor()
	if err != nil {
		return err
	}
	if _, err := m.FillRecord(dt); err != nil {
		return err
	}
	return nil
}

// MarshalMetadata serializes the document. Serialization is deterministic,
// so saving a loaded document reproduces it byte for byte.
func MarshalMetadata(m *Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

// UnmarshalMetadata parses and validates a .zarray document.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to decode metadata: %v", ErrSchema, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMetadata writes the metadata document to the bucket.
func SaveMetadata(ctx context.Context, bucket *blob.Bucket, m *Metadata) error {
	data, err := MarshalMetadata(m)
	if err != nil {
		return err
	}
	if err := bucket.WriteAll(ctx, MetadataKey, data, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", MetadataKey, err)
	}
	return nil
}

// LoadMetadata reads and validates the metadata document from the bucket.
// Returns ErrNotFound (wrapped) when no array exists at the bucket root.
func LoadMetadata(ctx context.Context, bucket *blob.Bucket) (*Metadata, error) {
	data, err := bucket.ReadAll(ctx, MetadataKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", MetadataKey, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", MetadataKey, err)
	}
	return UnmarshalMetadata(data)
}
