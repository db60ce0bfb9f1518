package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// ScalarKind is the set of supported scalar field types.
type ScalarKind uint8

const (
	Int8 ScalarKind = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

var kindInfo = map[ScalarKind]struct {
	name string
	code string
	size int
}{
	Int8:    {"int8", "i1", 1},
	Int16:   {"int16", "i2", 2},
	Int32:   {"int32", "i4", 4},
	Int64:   {"int64", "i8", 8},
	Uint8:   {"uint8", "u1", 1},
	Uint16:  {"uint16", "u2", 2},
	Uint32:  {"uint32", "u4", 4},
	Uint64:  {"uint64", "u8", 8},
	Float32: {"float32", "f4", 4},
	Float64: {"float64", "f8", 8},
}

// Size returns the number of bytes a scalar of this kind occupies.
func (k ScalarKind) Size() int { return kindInfo[k].size }

func (k ScalarKind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("ScalarKind(%d)", uint8(k))
}

// Code returns the numpy-style type code, e.g. "i4" for int32, "f8" for
// float64. The byte order character is carried separately by the field.
func (k ScalarKind) Code() string { return kindInfo[k].code }

// ParseScalarKind parses a numpy-style type code like "i4" or "f8".
func ParseScalarKind(s string) (ScalarKind, error) {
	for k, info := range kindInfo {
		if info.code == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported scalar kind %q", ErrSchema, s)
}

// ByteOrder is the storage byte order of a single field, serialized with the
// numpy typestr characters: "<" little-endian, ">" big-endian, "=" native.
type ByteOrder string

const (
	LittleEndian ByteOrder = "<"
	BigEndian    ByteOrder = ">"
	NativeOrder  ByteOrder = "="
)

// Endian resolves the declared order to a concrete binary.ByteOrder.
func (o ByteOrder) Endian() (binary.ByteOrder, error) {
	switch o {
	case LittleEndian:
		return binary.LittleEndian, nil
	case BigEndian:
		return binary.BigEndian, nil
	case NativeOrder:
		return binary.NativeEndian, nil
	default:
		return nil, fmt.Errorf("%w: unsupported byte order %q", ErrSchema, string(o))
	}
}

// Field describes one member of a record: a named scalar at a fixed byte
// offset with its own byte order.
type Field struct {
	Name   string
	Kind   ScalarKind
	Order  ByteOrder
	Offset int
}

// Size returns the byte size of the field's scalar.
func (f Field) Size() int { return f.Kind.Size() }

type fieldJSON struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	ByteOrder string `json:"byte_order"`
	Offset    int    `json:"offset"`
}

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{
		Name:      f.Name,
		Kind:      f.Kind.Code(),
		ByteOrder: string(f.Order),
		Offset:    f.Offset,
	})
}

func (f *Field) UnmarshalJSON(d []byte) error {
	var fj fieldJSON
	if err := json.Unmarshal(d, &fj); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	kind, err := ParseScalarKind(fj.Kind)
	if err != nil {
		return err
	}
	order := ByteOrder(fj.ByteOrder)
	if _, err := order.Endian(); err != nil {
		return err
	}
	*f = Field{Name: fj.Name, Kind: kind, Order: order, Offset: fj.Offset}
	return nil
}

// Descriptor is a validated record layout. Construct with NewDescriptor;
// a descriptor is immutable once built.
type Descriptor struct {
	fields   []Field
	index    map[string]int
	itemSize int
}

// NewDescriptor validates the field list and returns a descriptor.
// Fields must have unique names, known byte orders, non-negative offsets and
// must not overlap. Gaps between fields are allowed and act as padding.
func NewDescriptor(fields []Field) (*Descriptor, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: descriptor has no fields", ErrSchema)
	}

	d := &Descriptor{
		fields: append([]Field(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range d.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has empty name", ErrSchema, i)
		}
		if _, dup := d.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field name %q", ErrSchema, f.Name)
		}
		if _, ok := kindInfo[f.Kind]; !ok {
			return nil, fmt.Errorf("%w: field %q has unknown kind", ErrSchema, f.Name)
		}
		if _, err := f.Order.Endian(); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if f.Offset < 0 {
			return nil, fmt.Errorf("%w: field %q has negative offset %d", ErrSchema, f.Name, f.Offset)
		}
		d.index[f.Name] = i
		if end := f.Offset + f.Size(); end > d.itemSize {
			d.itemSize = end
		}
	}

	// Overlap check on a copy sorted by offset.
	sorted := append([]Field(nil), d.fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.Offset+prev.Size() > sorted[i].Offset {
			return nil, fmt.Errorf("%w: fields %q and %q overlap", ErrSchema, prev.Name, sorted[i].Name)
		}
	}

	return d, nil
}

// Fields returns the fields in declaration order.
func (d *Descriptor) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

// ItemSize returns the byte size of one record.
func (d *Descriptor) ItemSize() int { return d.itemSize }

// FieldByName looks up a field by name.
func (d *Descriptor) FieldByName(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

func (d *Descriptor) field(name string) (Field, error) {
	f, ok := d.FieldByName(name)
	if !ok {
		return Field{}, fmt.Errorf("%w: no field %q", ErrSchema, name)
	}
	return f, nil
}

// putBits writes the raw scalar bits into rec at the field's offset using the
// field's declared byte order.
func putBits(f Field, rec []byte, bits uint64) error {
	order, err := f.Order.Endian()
	if err != nil {
		return err
	}
	b := rec[f.Offset:]
	switch f.Size() {
	case 1:
		b[0] = byte(bits)
	case 2:
		order.PutUint16(b, uint16(bits))
	case 4:
		order.PutUint32(b, uint32(bits))
	case 8:
		order.PutUint64(b, bits)
	}
	return nil
}

func getBits(f Field, rec []byte) (uint64, error) {
	order, err := f.Order.Endian()
	if err != nil {
		return 0, err
	}
	b := rec[f.Offset:]
	switch f.Size() {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(order.Uint16(b)), nil
	case 4:
		return uint64(order.Uint32(b)), nil
	default:
		return order.Uint64(b), nil
	}
}

// PutInt encodes v into the named signed integer field of rec.
func (d *Descriptor) PutInt(rec []byte, name string, v int64) error {
	f, err := d.field(name)
	if err != nil {
		return err
	}
	switch f.Kind {
	case Int8, Int16, Int32, Int64:
		return putBits(f, rec, uint64(v))
	default:
		return fmt.Errorf("%w: field %q is %s, not a signed integer", ErrSchema, name, f.Kind)
	}
}

// Int decodes the named signed integer field of rec.
func (d *Descriptor) Int(rec []byte, name string) (int64, error) {
	f, err := d.field(name)
	if err != nil {
		return 0, err
	}
	bits, err := getBits(f, rec)
	if err != nil {
		return 0, err
	}
	switch f.Kind {
	case Int8:
		return int64(int8(bits)), nil
	case Int16:
		return int64(int16(bits)), nil
	case Int32:
		return int64(int32(bits)), nil
	case Int64:
		return int64(bits), nil
	default:
		return 0, fmt.Errorf("%w: field %q is %s, not a signed integer", ErrSchema, name, f.Kind)
	}
}

// PutUint encodes v into the named unsigned integer field of rec.
func (d *Descriptor) PutUint(rec []byte, name string, v uint64) error {
	f, err := d.field(name)
	if err != nil {
		return err
	}
	switch f.Kind {
	case Uint8, Uint16, Uint32, Uint64:
		return putBits(f, rec, v)
	default:
		return fmt.Errorf("%w: field %q is %s, not an unsigned integer", ErrSchema, name, f.Kind)
	}
}

// Uint decodes the named unsigned integer field of rec.
func (d *Descriptor) Uint(rec []byte, name string) (uint64, error) {
	f, err := d.field(name)
	if err != nil {
		return 0, err
	}
	bits, err := getBits(f, rec)
	if err != nil {
		return 0, err
	}
	switch f.Kind {
	case Uint8, Uint16, Uint32, Uint64:
		return bits, nil
	default:
		return 0, fmt.Errorf("%w: field %q is %s, not an unsigned integer", ErrSchema, name, f.Kind)
	}
}

// PutFloat encodes v into the named floating point field of rec.
func (d *Descriptor) PutFloat(rec []byte, name string, v float64) error {
	f, err := d.field(name)
	if err != nil {
		return err
	}
	switch f.Kind {
	case Float32:
		return putBits(f, rec, uint64(math.Float32bits(float32(v))))
	case Float64:
		return putBits(f, rec, math.Float64bits(v))
	default:
		return fmt.Errorf("%w: field %q is %s, not a float", ErrSchema, name, f.Kind)
	}
}

// Float decodes the named floating point field of rec.
func (d *Descriptor) Float(rec []byte, name string) (float64, error) {
	f, err := d.field(name)
	if err != nil {
		return 0, err
	}
	bits, err := getBits(f, rec)
	if err != nil {
		return 0, err
	}
	switch f.Kind {
	case Float32:
		return float64(math.Float32frombits(uint32(bits))), nil
	case Float64:
		return math.Float64frombits(bits), nil
	default:
		return 0, fmt.Errorf("%w: field %q is %s, not a float", ErrSchema, name, f.Kind)
	}
}
