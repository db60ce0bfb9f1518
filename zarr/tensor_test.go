package zarr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/fileblob"

	"github.com/BrianMichell/tensorstore/zarr"
)

func TestSlab_FieldTensor(t *testing.T) {
	dt := testDescriptor(t)
	slab, err := zarr.NewSlab(dt, []int{2, 3})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			require.NoError(t, slab.SetInt("field_2", int64(3*i+j), i, j))
			require.NoError(t, slab.SetFloat("field_n", float64(j)/2, i, j))
		}
	}

	f2, err := slab.FieldTensor("field_2")
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, f2.Shape().Dimensions)
	require.Equal(t, [][]int32{{0, 1, 2}, {3, 4, 5}}, f2.Value().([][]int32))

	fn, err := slab.FieldTensor("field_n")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0, 0.5, 1}, {0, 0.5, 1}}, fn.Value().([][]float32))

	_, err = slab.FieldTensor("missing")
	require.ErrorIs(t, err, zarr.ErrSchema)
}

func TestArray_FieldTensor(t *testing.T) {
	ctx := context.Background()
	meta := testMetadata()
	meta.Shape = []int{4, 4}
	meta.Chunks = []int{2, 2}
	arr, _ := newTestArray(t, meta)

	values, err := zarr.NewSlab(arr.Descriptor(), []int{4, 4})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			require.NoError(t, values.SetInt("field_1", int64(i), i, j))
		}
	}
	require.NoError(t, arr.Write(ctx, arr.FullRegion(), values))

	// Rows 1-2, all columns: crosses a chunk boundary in both dimensions.
	tensor, err := arr.FieldTensor(ctx, zarr.Region{Start: []int{1, 0}, Stop: []int{3, 4}}, "field_1")
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, tensor.Shape().Dimensions)
	require.Equal(t, [][]int32{{1, 1, 1, 1}, {2, 2, 2, 2}}, tensor.Value().([][]int32))
}
