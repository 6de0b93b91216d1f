package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuplespace/internal/tuple"
)

func TestRegistryCreateAndRecreate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Create("pwd_space", false))
	err := r.Create("pwd_space", false)
	require.ErrorIs(t, err, ErrSpaceExists)

	bag, ok := r.Get("pwd_space")
	require.True(t, ok)
	bag.Add(tuple.New(tuple.String("7")))

	// Explicit recreate wipes the prior contents.
	require.NoError(t, r.Create("pwd_space", true))
	bag, ok = r.Get("pwd_space")
	require.True(t, ok)
	assert.Equal(t, 0, bag.Len())
}

func TestRegistryDrop(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("task_space", false))

	require.NoError(t, r.Drop("task_space"))
	assert.False(t, r.Has("task_space"))
	assert.ErrorIs(t, r.Drop("task_space"), ErrNoSuchSpace)
}

func TestRegistrySnapshotRestorePreservesOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("task_space", false))

	bag, _ := r.Get("task_space")
	bag.Add(tuple.New(tuple.String("a"), tuple.Atom("t")))
	bag.Add(tuple.New(tuple.String("b"), tuple.Atom("t")))

	data, err := r.Snapshot()
	require.NoError(t, err)

	restored := NewRegistry()
	require.NoError(t, restored.Restore(data))

	got, ok := restored.Get("task_space")
	require.True(t, ok)
	require.Equal(t, 2, got.Len())

	// Take order on the restored replica matches the source replica.
	first, ok := got.Take(tuple.NewPattern(tuple.Any(), tuple.LitAtom("t")))
	require.True(t, ok)
	assert.Equal(t, "a", first[0].Str)
}

func TestRegistryRestoreReplacesExisting(t *testing.T) {
	src := NewRegistry()
	require.NoError(t, src.Create("only_space", false))
	data, err := src.Snapshot()
	require.NoError(t, err)

	dst := NewRegistry()
	require.NoError(t, dst.Create("stale_space", false))
	require.NoError(t, dst.Restore(data))

	assert.False(t, dst.Has("stale_space"))
	assert.True(t, dst.Has("only_space"))
}
