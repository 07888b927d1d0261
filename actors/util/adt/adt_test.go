package adt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/DianaJonathan/timecapsule/actors/util/adt"
	"github.com/DianaJonathan/timecapsule/support/ipld"
	tutil "github.com/DianaJonathan/timecapsule/support/testing"
)

func TestAddrKey(t *testing.T) {
	idAddr1 := tutil.NewIDAddr(t, 101)
	idAddr2 := tutil.NewIDAddr(t, 102)
	actorAddr1 := tutil.NewActorAddr(t, "actor1")
	actorAddr2 := tutil.NewActorAddr(t, "222")

	t.Run("address to key string conversion", func(t *testing.T) {
		assert.Equal(t, "\x00\x65", adt.AddrKey(idAddr1).Key())
		assert.Equal(t, "\x00\x66", adt.AddrKey(idAddr2).Key())
		assert.Equal(t, "\x02\x58\xbe\x4f\xd7\x75\xa0\xc8\xcd\x9a\xed\x86\x4e\x73\xab\xb1\x86\x46\x5f\xef\xe1", adt.AddrKey(actorAddr1).Key())
		assert.Equal(t, "\x02\xaa\xd0\xb2\x98\xa9\xde\xab\xbb\xb6\u007f\x80\x5f\x66\xaa\x68\x8c\xdd\x89\xad\xf5", adt.AddrKey(actorAddr2).Key())
	})
}

func TestMap(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	a := tutil.NewIDAddr(t, 100)
	b := tutil.NewIDAddr(t, 101)

	m, err := adt.MakeEmptyMap(store, 5)
	require.NoError(t, err)
	v := cbg.CborInt(7)
	require.NoError(t, m.Put(adt.AddrKey(a), &v))

	root, err := m.Root()
	require.NoError(t, err)

	reloaded, err := adt.AsMap(store, root, 5)
	require.NoError(t, err)

	var out cbg.CborInt
	found, err := reloaded.Get(adt.AddrKey(a), &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cbg.CborInt(7), out)

	found, err = reloaded.Has(adt.AddrKey(b))
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := reloaded.CollectKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{adt.AddrKey(a).Key()}, keys)
}

func TestSet(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	newCid := tutil.NewCidForTestGetter()
	c1, c2 := newCid(), newCid()

	s, err := adt.MakeEmptySet(store, 5)
	require.NoError(t, err)
	require.NoError(t, s.Put(adt.CidKey(c1)))
	require.NoError(t, s.Put(adt.CidKey(c1)))

	root, err := s.Root()
	require.NoError(t, err)
	s, err = adt.AsSet(store, root, 5)
	require.NoError(t, err)

	has, err := s.Has(adt.CidKey(c1))
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.Has(adt.CidKey(c2))
	require.NoError(t, err)
	assert.False(t, has)

	keys, err := s.CollectKeys()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestMultimapPreservesInsertionOrder(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	a := tutil.NewIDAddr(t, 100)
	b := tutil.NewIDAddr(t, 101)

	mm, err := adt.MakeEmptyMultimap(store, 5, 3)
	require.NoError(t, err)
	for _, v := range []uint64{4, 1, 4, 9} {
		val := cbg.CborInt(v)
		require.NoError(t, mm.Add(adt.AddrKey(a), &val))
	}
	root, err := mm.Root()
	require.NoError(t, err)

	mm, err = adt.AsMultimap(store, root, 5, 3)
	require.NoError(t, err)

	var got []int64
	var out cbg.CborInt
	require.NoError(t, mm.ForEach(adt.AddrKey(a), &out, func(i int64) error {
		got = append(got, int64(out))
		return nil
	}))
	assert.Equal(t, []int64{4, 1, 4, 9}, got)

	called := false
	require.NoError(t, mm.ForEach(adt.AddrKey(b), &out, func(i int64) error {
		called = true
		return nil
	}))
	assert.False(t, called)

	count := 0
	require.NoError(t, mm.ForAll(func(k string, arr *adt.Array) error {
		count++
		assert.Equal(t, adt.AddrKey(a).Key(), k)
		assert.Equal(t, uint64(4), arr.Length())
		return nil
	}))
	assert.Equal(t, 1, count)
}
