package raft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

func openTestStorage(t *testing.T, dir string) (*Storage, uint64) {
	t.Helper()
	s, applied, err := OpenStorage(dir, true)
	require.NoError(t, err)
	return s, applied
}

func makeEntries(from, to uint64) []raftpb.Entry {
	var entries []raftpb.Entry
	for i := from; i <= to; i++ {
		entries = append(entries, raftpb.Entry{
			Index: i,
			Term:  1,
			Type:  raftpb.EntryNormal,
			Data:  []byte{byte(i)},
		})
	}
	return entries
}

func TestStorageFreshIsEmpty(t *testing.T) {
	s, applied := openTestStorage(t, t.TempDir())
	defer s.Close()

	assert.Zero(t, applied)

	empty, err := s.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestStorageSaveAndReplay(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStorage(t, dir)
	rd := etcdraft.Ready{
		Entries:   makeEntries(1, 5),
		HardState: raftpb.HardState{Term: 1, Vote: 1, Commit: 5},
		MustSync:  true,
	}
	require.NoError(t, s.SaveReady(rd))
	require.NoError(t, s.Close())

	reopened, applied := openTestStorage(t, dir)
	defer reopened.Close()

	assert.Equal(t, uint64(5), applied)
	assert.Equal(t, uint64(5), reopened.HardState().Commit)

	entries, err := reopened.EntriesAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, uint64(1), entries[0].Index)
	assert.Equal(t, uint64(5), entries[4].Index)
}

func TestStorageEntriesAfterHonorsCommit(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStorage(t, dir)
	defer s.Close()

	rd := etcdraft.Ready{
		Entries:   makeEntries(1, 10),
		HardState: raftpb.HardState{Term: 1, Vote: 1, Commit: 7},
		MustSync:  true,
	}
	require.NoError(t, s.SaveReady(rd))

	entries, err := s.EntriesAfter(3)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, uint64(4), entries[0].Index)
	assert.Equal(t, uint64(7), entries[3].Index)
}

func TestStorageSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStorage(t, dir)
	rd := etcdraft.Ready{
		Entries:   makeEntries(1, 8),
		HardState: raftpb.HardState{Term: 1, Vote: 1, Commit: 8},
		MustSync:  true,
	}
	require.NoError(t, s.SaveReady(rd))

	cs := raftpb.ConfState{Voters: []uint64{1}}
	snap, err := s.CreateSnapshot(6, &cs, []byte(`{"spaces":[]}`))
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(snap))
	require.NoError(t, s.Compact(6))
	require.NoError(t, s.Close())

	reopened, applied := openTestStorage(t, dir)
	defer reopened.Close()

	assert.Equal(t, uint64(8), applied)
	assert.Equal(t, uint64(6), reopened.SnapshotIndex())
	assert.Equal(t, []byte(`{"spaces":[]}`), reopened.SnapshotData())
	assert.Equal(t, []uint64{1}, reopened.ConfState().Voters)

	// Entries behind the snapshot are gone; the committed suffix survives.
	entries, err := reopened.EntriesAfter(reopened.SnapshotIndex())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(7), entries[0].Index)
}

func TestStorageConfStatePersists(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStorage(t, dir)
	cs := raftpb.ConfState{Voters: []uint64{1, 2, 3}}
	require.NoError(t, s.SaveConfState(cs))
	require.NoError(t, s.Close())

	reopened, _ := openTestStorage(t, dir)
	defer reopened.Close()

	assert.Equal(t, []uint64{1, 2, 3}, reopened.ConfState().Voters)

	empty, err := reopened.IsEmpty()
	require.NoError(t, err)
	assert.False(t, empty)
}
