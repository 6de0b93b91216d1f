package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/raft/v3/raftpb"
)

func TestPeerMetadataRoundTrip(t *testing.T) {
	data := EncodePeerMetadata("10.0.0.1:7402", "10.0.0.1:7401")
	raftAddr, clientAddr := DecodePeerMetadata(data)
	assert.Equal(t, "10.0.0.1:7402", raftAddr)
	assert.Equal(t, "10.0.0.1:7401", clientAddr)
}

func TestPeerMetadataRaftOnly(t *testing.T) {
	raftAddr, clientAddr := DecodePeerMetadata(EncodePeerMetadata("10.0.0.1:7402", ""))
	assert.Equal(t, "10.0.0.1:7402", raftAddr)
	assert.Empty(t, clientAddr)

	raftAddr, clientAddr = DecodePeerMetadata(nil)
	assert.Empty(t, raftAddr)
	assert.Empty(t, clientAddr)
}

func TestBuildAddNodeChange(t *testing.T) {
	cc := BuildAddNodeChange(3, "n3:7402", "n3:7401")
	assert.Equal(t, raftpb.ConfChangeAddNode, cc.Type)
	assert.Equal(t, uint64(3), cc.NodeID)

	raftAddr, clientAddr := DecodePeerMetadata(cc.Context)
	assert.Equal(t, "n3:7402", raftAddr)
	assert.Equal(t, "n3:7401", clientAddr)
}

func TestBuildLearnerAndPromoteChanges(t *testing.T) {
	cc := BuildAddLearnerChange(4, "n4:7402", "n4:7401")
	assert.Equal(t, raftpb.ConfChangeAddLearnerNode, cc.Type)
	assert.Equal(t, uint64(4), cc.NodeID)

	raftAddr, clientAddr := DecodePeerMetadata(cc.Context)
	assert.Equal(t, "n4:7402", raftAddr)
	assert.Equal(t, "n4:7401", clientAddr)

	// Promotion reuses the voter conf change type against the same ID.
	promote := BuildPromoteChange(4, "n4:7402", "n4:7401")
	assert.Equal(t, raftpb.ConfChangeAddNode, promote.Type)
	assert.Equal(t, uint64(4), promote.NodeID)
}

func TestMembershipPredicates(t *testing.T) {
	cs := raftpb.ConfState{Voters: []uint64{1, 2}, Learners: []uint64{3}}

	assert.True(t, IsVoter(cs, 1))
	assert.False(t, IsVoter(cs, 3))
	assert.True(t, IsLearner(cs, 3))
	assert.True(t, IsInCluster(cs, 2))
	assert.True(t, IsInCluster(cs, 3))
	assert.False(t, IsInCluster(cs, 4))
}
