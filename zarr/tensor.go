package zarr

import (
	"context"
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// FieldTensor reads the region and materializes a single field of every
// record as a tensor of the field's scalar type, with the region's shape.
func (a *Array) FieldTensor(ctx context.Context, r Region, name string) (*tensors.Tensor, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	f, ok := a.dt.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: no field %q", ErrSchema, name)
	}

	slab, err := a.Read(ctx, r)
	if err != nil {
		return nil, err
	}
	return fieldTensor(slab, f)
}

// FieldTensor extracts one field of every record into a tensor with the
// slab's shape.
func (s *Slab) FieldTensor(name string) (*tensors.Tensor, error) {
	f, ok := s.dt.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: no field %q", ErrSchema, name)
	}
	return fieldTensor(s, f)
}

func fieldTensor(s *Slab, f Field) (*tensors.Tensor, error) {
	n := s.Len()
	itemSize := s.dt.ItemSize()
	shape := s.Shape()

	record := func(i int) []byte { return s.data[i*itemSize : (i+1)*itemSize] }

	switch f.Kind {
	case Int8:
		return extract(record, n, shape, f, func(bits uint64) int8 { return int8(bits) })
	case Int16:
		return extract(record, n, shape, f, func(bits uint64) int16 { return int16(bits) })
	case Int32:
		return extract(record, n, shape, f, func(bits uint64) int32 { return int32(bits) })
	case Int64:
		return extract(record, n, shape, f, func(bits uint64) int64 { return int64(bits) })
	case Uint8:
		return extract(record, n, shape, f, func(bits uint64) uint8 { return uint8(bits) })
	case Uint16:
		return extract(record, n, shape, f, func(bits uint64) uint16 { return uint16(bits) })
	case Uint32:
		return extract(record, n, shape, f, func(bits uint64) uint32 { return uint32(bits) })
	case Uint64:
		return extract(record, n, shape, f, func(bits uint64) uint64 { return bits })
	case Float32:
		return extract(record, n, shape, f, func(bits uint64) float32 { return math.Float32frombits(uint32(bits)) })
	case Float64:
		return extract(record, n, shape, f, func(bits uint64) float64 { return math.Float64frombits(bits) })
	default:
		return nil, fmt.Errorf("%w: field %q has unsupported kind %s", ErrSchema, f.Name, f.Kind)
	}
}

func extract[T interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}](record func(int) []byte, n int, shape []int, f Field, conv func(uint64) T) (*tensors.Tensor, error) {
	out := make([]T, n)
	for i := 0; i < n; i++ {
		bits, err := getBits(f, record(i))
		if err != nil {
			return nil, err
		}
		out[i] = conv(bits)
	}
	return tensors.FromFlatDataAndDimensions(out, shape...), nil
}
