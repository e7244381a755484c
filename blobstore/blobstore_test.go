package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBucket(t *testing.T, b Bucket) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, b.Put(ctx, "a/first", []byte("one")))
	require.NoError(t, b.Put(ctx, "a/second", []byte("two")))
	require.NoError(t, b.Put(ctx, "b/other", []byte("three")))

	data, err := b.Get(ctx, "a/first")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// Overwrite replaces content.
	require.NoError(t, b.Put(ctx, "a/first", []byte("uno")))
	data, err = b.Get(ctx, "a/first")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), data)

	names, err := b.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/first", "a/second"}, names)
}

func TestMemoryBucket(t *testing.T) {
	testBucket(t, NewMemory())
}

func TestLocalBucket(t *testing.T) {
	b, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	testBucket(t, b)
}

func TestMemoryBucketIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	src := []byte("payload")
	require.NoError(t, m.Put(ctx, "x", src))
	src[0] = '!'

	got, err := m.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	// Mutating the returned slice does not affect the stored blob.
	got[0] = '?'
	again, err := m.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again)
}
