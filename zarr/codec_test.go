package zarr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianMichell/tensorstore/zarr"
)

func testDescriptor(t *testing.T) *zarr.Descriptor {
	t.Helper()
	dt, err := zarr.NewDescriptor([]zarr.Field{
		{Name: "field_1", Kind: zarr.Int32, Order: zarr.LittleEndian, Offset: 0},
		{Name: "field_2", Kind: zarr.Int32, Order: zarr.BigEndian, Offset: 4},
		{Name: "field_n", Kind: zarr.Float32, Order: zarr.LittleEndian, Offset: 8},
	})
	require.NoError(t, err)
	return dt
}

func fillSlab(t *testing.T, s *zarr.Slab) {
	t.Helper()
	shape := s.Shape()
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			require.NoError(t, s.SetInt("field_1", int64(i), i, j))
			require.NoError(t, s.SetInt("field_2", int64(j), i, j))
			require.NoError(t, s.SetFloat("field_n", float64(i)/10, i, j))
		}
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	compressors := []*zarr.CompressorConfig{
		nil,
		{ID: "zstd"},
		{ID: "zlib"},
	}

	for _, comp := range compressors {
		name := "raw"
		if comp != nil {
			name = comp.ID
		}
		t.Run(name, func(t *testing.T) {
			dt := testDescriptor(t)
			codec := zarr.NewCodec(dt, comp)

			slab, err := zarr.NewSlab(dt, []int{4, 4})
			require.NoError(t, err)
			fillSlab(t, slab)

			encoded, err := codec.Encode(slab)
			require.NoError(t, err)

			decoded, err := codec.Decode(encoded, []int{4, 4})
			require.NoError(t, err)
			require.Equal(t, slab.Bytes(), decoded.Bytes())

			v, err := decoded.Int("field_2", 2, 3)
			require.NoError(t, err)
			require.Equal(t, int64(3), v)
		})
	}
}

func TestCodec_CorruptChunk(t *testing.T) {
	dt := testDescriptor(t)
	codec := zarr.NewCodec(dt, nil)

	slab, err := zarr.NewSlab(dt, []int{4, 4})
	require.NoError(t, err)
	encoded, err := codec.Encode(slab)
	require.NoError(t, err)

	// Truncated payload.
	_, err = codec.Decode(encoded[:len(encoded)-1], []int{4, 4})
	require.ErrorIs(t, err, zarr.ErrCorruptChunk)

	// Valid payload, wrong shape.
	_, err = codec.Decode(encoded, []int{4, 5})
	require.ErrorIs(t, err, zarr.ErrCorruptChunk)

	// Garbage for a compressed codec.
	zcodec := zarr.NewCodec(dt, &zarr.CompressorConfig{ID: "zstd"})
	_, err = zcodec.Decode([]byte("not zstd"), []int{4, 4})
	require.ErrorIs(t, err, zarr.ErrCorruptChunk)
}

func TestCodec_UnsupportedCompressor(t *testing.T) {
	dt := testDescriptor(t)
	codec := zarr.NewCodec(dt, &zarr.CompressorConfig{ID: "blosc"})

	slab, err := zarr.NewSlab(dt, []int{2, 2})
	require.NoError(t, err)
	_, err = codec.Encode(slab)
	require.Error(t, err)
	_, err = codec.Decode([]byte{0}, []int{2, 2})
	require.Error(t, err)
}
