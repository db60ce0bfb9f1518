package zarr

import "fmt"

// Slab is an in-memory N-dimensional buffer of records. Records are laid out
// row-major (C order) and each field already carries its declared byte order,
// so a slab's bytes are exactly the uncompressed chunk wire format.
type Slab struct {
	dt    *Descriptor
	shape []int
	data  []byte
}

// NewSlab allocates a zero-filled slab of the given shape.
func NewSlab(dt *Descriptor, shape []int) (*Slab, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: slab shape must have rank >= 1", ErrSchema)
	}
	n := 1
	for i, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("%w: slab dimension %d is %d", ErrSchema, i, dim)
		}
		n *= dim
	}
	return &Slab{
		dt:    dt,
		shape: append([]int(nil), shape...),
		data:  make([]byte, n*dt.ItemSize()),
	}, nil
}

// Descriptor returns the slab's record layout.
func (s *Slab) Descriptor() *Descriptor { return s.dt }

// Shape returns the slab's dimensions.
func (s *Slab) Shape() []int { return append([]int(nil), s.shape...) }

// Bytes returns the slab's backing buffer. The slice aliases slab memory.
func (s *Slab) Bytes() []byte { return s.data }

// Len returns the number of records in the slab.
func (s *Slab) Len() int { return len(s.data) / s.dt.ItemSize() }

// strides computes C-order strides, in elements, for a shape.
func strides(shape []int) []int {
	st := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = stride
		stride *= shape[i]
	}
	return st
}

func (s *Slab) flatIndex(coords []int) (int, error) {
	if len(coords) != len(s.shape) {
		return 0, fmt.Errorf("%w: got %d coordinates for rank %d slab", ErrOutOfBounds, len(coords), len(s.shape))
	}
	idx := 0
	stride := 1
	for i := len(s.shape) - 1; i >= 0; i-- {
		if coords[i] < 0 || coords[i] >= s.shape[i] {
			return 0, fmt.Errorf("%w: coordinate %d out of range at dimension %d", ErrOutOfBounds, coords[i], i)
		}
		idx += coords[i] * stride
		stride *= s.shape[i]
	}
	return idx, nil
}

// Record returns the bytes of the record at coords. The slice aliases slab
// memory, so writes through descriptor accessors mutate the slab in place.
func (s *Slab) Record(coords ...int) ([]byte, error) {
	idx, err := s.flatIndex(coords)
	if err != nil {
		return nil, err
	}
	size := s.dt.ItemSize()
	return s.data[idx*size : (idx+1)*size], nil
}

// Fill sets every record in the slab to rec.
func (s *Slab) Fill(rec []byte) error {
	size := s.dt.ItemSize()
	if len(rec) != size {
		return fmt.Errorf("%w: fill record is %d bytes, item size is %d", ErrSchema, len(rec), size)
	}
	for off := 0; off < len(s.data); off += size {
		copy(s.data[off:off+size], rec)
	}
	return nil
}

// SetInt sets the named signed integer field of the record at coords.
func (s *Slab) SetInt(name string, v int64, coords ...int) error {
	rec, err := s.Record(coords...)
	if err != nil {
		return err
	}
	return s.dt.PutInt(rec, name, v)
}

// Int reads the named signed integer field of the record at coords.
func (s *Slab) Int(name string, coords ...int) (int64, error) {
	rec, err := s.Record(coords...)
	if err != nil {
		return 0, err
	}
	return s.dt.Int(rec, name)
}

// SetUint sets the named unsigned integer field of the record at coords.
func (s *Slab) SetUint(name string, v uint64, coords ...int) error {
	rec, err := s.Record(coords...)
	if err != nil {
		return err
	}
	return s.dt.PutUint(rec, name, v)
}

// Uint reads the named unsigned integer field of the record at coords.
func (s *Slab) Uint(name string, coords ...int) (uint64, error) {
	rec, err := s.Record(coords...)
	if err != nil {
		return 0, err
	}
	return s.dt.Uint(rec, name)
}

// SetFloat sets the named floating point field of the record at coords.
func (s *Slab) SetFloat(name string, v float64, coords ...int) error {
	rec, err := s.Record(coords...)
	if err != nil {
		return err
	}
	return s.dt.PutFloat(rec, name, v)
}

// Float reads the named floating point field of the record at coords.
func (s *Slab) Float(name string, coords ...int) (float64, error) {
	rec, err := s.Record(coords...)
	if err != nil {
		return 0, err
	}
	return s.dt.Float(rec, name)
}

// copyRegion copies a rectangular region of shape copyShape from src
// (starting at srcOff) into dst (starting at dstOff). Both slabs must share
// the same descriptor; offsets and shape must already be in range.
func copyRegion(dst *Slab, dstOff []int, src *Slab, srcOff []int, copyShape []int) {
	itemSize := dst.dt.ItemSize()
	dstStrides := strides(dst.shape)
	srcStrides := strides(src.shape)

	dstStart := 0
	srcStart := 0
	for i := range copyShape {
		dstStart += dstOff[i] * dstStrides[i]
		srcStart += srcOff[i] * srcStrides[i]
	}

	last := len(copyShape) - 1
	var walk func(dim, srcIdx, dstIdx int)
	walk = func(dim, srcIdx, dstIdx int) {
		if dim == last {
			// Innermost dimension is contiguous in both slabs.
			n := copyShape[dim] * itemSize
			copy(dst.data[dstIdx*itemSize:dstIdx*itemSize+n], src.data[srcIdx*itemSize:srcIdx*itemSize+n])
			return
		}
		for i := 0; i < copyShape[dim]; i++ {
			walk(dim+1, srcIdx+i*srcStrides[dim], dstIdx+i*dstStrides[dim])
		}
	}
	walk(0, srcStart, dstStart)
}
