package adt_test

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/DianaJonathan/timecapsule/actors/util/adt"
	"github.com/DianaJonathan/timecapsule/support/mock"
)

func TestArrayNotFound(t *testing.T) {
	rt := mock.NewBuilder(context.Background(), address.Undef).Build(t)
	store := adt.AsStore(rt)
	arr, err := adt.MakeEmptyArray(store, 3)
	require.NoError(t, err)

	found, err := arr.Get(7, nil)
	require.NoError(t, err)
	require.False(t, found)
}

func TestArrayAppendContinuous(t *testing.T) {
	rt := mock.NewBuilder(context.Background(), address.Undef).Build(t)
	store := adt.AsStore(rt)
	arr, err := adt.MakeEmptyArray(store, 3)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		v := cbg.CborInt(i * 10)
		require.NoError(t, arr.AppendContinuous(&v))
	}
	assert.Equal(t, uint64(20), arr.Length())

	root, err := arr.Root()
	require.NoError(t, err)
	arr, err = adt.AsArray(store, root, 3)
	require.NoError(t, err)

	var out cbg.CborInt
	found, err := arr.Get(13, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cbg.CborInt(130), out)

	var idx []int64
	require.NoError(t, arr.ForEach(&out, func(i int64) error {
		assert.Equal(t, cbg.CborInt(i*10), out)
		idx = append(idx, i)
		return nil
	}))
	assert.Len(t, idx, 20)
}
