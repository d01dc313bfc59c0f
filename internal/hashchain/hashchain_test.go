package hashchain

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetOverwrite(t *testing.T) {
	h := New[string]()
	h.Insert(1, "a")
	h.Insert(9, "b") // same bucket as 1 at capacity 8
	h.Insert(1, "c")

	v, ok := h.Get(1)
	require.True(t, ok)
	assert.Equal(t, "c", v)

	v, ok = h.Get(9)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = h.Get(17)
	assert.False(t, ok)
	assert.Equal(t, 2, h.Len())
}

func TestRemoveMissingKey(t *testing.T) {
	h := New[int]()
	h.Insert(3, 30)

	assert.ErrorIs(t, h.Remove(4), ErrKeyNotFound)
	assert.NoError(t, h.Remove(3))
	assert.ErrorIs(t, h.Remove(3), ErrKeyNotFound)
	assert.Equal(t, 0, h.Len())
}

func TestResize(t *testing.T) {
	h := New[int]()
	assert.Equal(t, 8, h.Capacity())

	for i := 0; i < 7; i++ {
		h.Insert(i, i)
	}
	// 7/8 > 0.75
	assert.Equal(t, 16, h.Capacity())

	for i := 0; i < 40; i++ {
		h.Insert(i, i)
	}
	assert.Equal(t, 64, h.Capacity())

	for i := 0; i < 40; i++ {
		require.NoError(t, h.Remove(i))
	}
	assert.Equal(t, 8, h.Capacity())
	assert.Empty(t, h.Keys())
}

func TestNegativeKeys(t *testing.T) {
	h := New[int]()
	h.Insert(-3, 1)
	v, ok := h.Get(-3)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRoundTripAgainstMap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := New[int]()
	ref := map[int]int{}

	for i := 0; i < 5000; i++ {
		k := rng.Intn(200)
		if rng.Intn(3) == 0 {
			err := h.Remove(k)
			if _, ok := ref[k]; ok {
				assert.NoError(t, err)
				delete(ref, k)
			} else {
				assert.ErrorIs(t, err, ErrKeyNotFound)
			}
			continue
		}
		h.Insert(k, i)
		ref[k] = i
	}

	assert.Equal(t, len(ref), h.Len())
	keys := h.Keys()
	assert.Len(t, keys, len(ref))
	for k, want := range ref {
		got, ok := h.Get(k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, want, got)
	}
	slices.Sort(keys)
	assert.Len(t, slices.Compact(keys), len(ref))
}

func TestDuplicateIsIndependent(t *testing.T) {
	type box struct{ n int }

	h := New[*box]()
	for i := 0; i < 10; i++ {
		h.Insert(i, &box{n: i})
	}

	dup := h.Duplicate(func(b *box) *box {
		c := *b
		return &c
	})

	v, _ := dup.Get(3)
	v.n = 99
	dup.Insert(100, &box{n: 100})
	require.NoError(t, dup.Remove(0))

	orig, _ := h.Get(3)
	assert.Equal(t, 3, orig.n)
	_, ok := h.Get(100)
	assert.False(t, ok)
	_, ok = h.Get(0)
	assert.True(t, ok)
	assert.Equal(t, 10, h.Len())
	assert.Equal(t, 10, dup.Len())
}
