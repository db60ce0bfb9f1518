package zarr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianMichell/tensorstore/zarr"
)

func TestNewSlab(t *testing.T) {
	dt := testDescriptor(t)

	slab, err := zarr.NewSlab(dt, []int{3, 4})
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, slab.Shape())
	require.Equal(t, 12, slab.Len())
	require.Len(t, slab.Bytes(), 12*dt.ItemSize())

	_, err = zarr.NewSlab(dt, nil)
	require.ErrorIs(t, err, zarr.ErrSchema)
	_, err = zarr.NewSlab(dt, []int{3, 0})
	require.ErrorIs(t, err, zarr.ErrSchema)
}

func TestSlab_Fill(t *testing.T) {
	dt := testDescriptor(t)
	slab, err := zarr.NewSlab(dt, []int{2, 2})
	require.NoError(t, err)

	rec := make([]byte, dt.ItemSize())
	require.NoError(t, dt.PutInt(rec, "field_1", 42))
	require.NoError(t, slab.Fill(rec))

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			v, err := slab.Int("field_1", i, j)
			require.NoError(t, err)
			require.Equal(t, int64(42), v)
		}
	}

	require.ErrorIs(t, slab.Fill([]byte{1}), zarr.ErrSchema)
}

func TestSlab_RecordAliasing(t *testing.T) {
	dt := testDescriptor(t)
	slab, err := zarr.NewSlab(dt, []int{2, 2})
	require.NoError(t, err)

	rec, err := slab.Record(1, 1)
	require.NoError(t, err)
	require.NoError(t, dt.PutFloat(rec, "field_n", 3.25))

	got, err := slab.Float("field_n", 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3.25, got)
}

func TestSlab_Bounds(t *testing.T) {
	dt := testDescriptor(t)
	slab, err := zarr.NewSlab(dt, []int{2, 2})
	require.NoError(t, err)

	_, err = slab.Record(2, 0)
	require.ErrorIs(t, err, zarr.ErrOutOfBounds)
	_, err = slab.Record(0)
	require.ErrorIs(t, err, zarr.ErrOutOfBounds)
	require.ErrorIs(t, slab.SetInt("field_1", 1, 0, -1), zarr.ErrOutOfBounds)
	_, err = slab.Int("field_1", 0, 5)
	require.ErrorIs(t, err, zarr.ErrOutOfBounds)
}
