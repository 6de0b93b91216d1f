// Package ops holds pure helpers for raft conf changes and the peer
// metadata carried inside them.
package ops

import (
	"strings"

	"go.etcd.io/raft/v3/raftpb"
)

const metadataSeparator = "|"

// EncodePeerMetadata packs a peer's raft and client addresses into the
// conf change context so every replica can dial a newly admitted node.
func EncodePeerMetadata(raftAddr, clientAddr string) []byte {
	if clientAddr == "" {
		return []byte(raftAddr)
	}
	return []byte(raftAddr + metadataSeparator + clientAddr)
}

func DecodePeerMetadata(data []byte) (raftAddr, clientAddr string) {
	s := string(data)
	if s == "" {
		return "", ""
	}

	parts := strings.Split(s, metadataSeparator)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func BuildAddNodeChange(nodeID uint64, raftAddr, clientAddr string) raftpb.ConfChange {
	return raftpb.ConfChange{
		Type:    raftpb.ConfChangeAddNode,
		NodeID:  nodeID,
		Context: EncodePeerMetadata(raftAddr, clientAddr),
	}
}

// BuildAddLearnerChange admits a node without voting rights. A joiner is
// admitted as a learner first so an aborted join never costs quorum.
func BuildAddLearnerChange(nodeID uint64, raftAddr, clientAddr string) raftpb.ConfChange {
	return raftpb.ConfChange{
		Type:    raftpb.ConfChangeAddLearnerNode,
		NodeID:  nodeID,
		Context: EncodePeerMetadata(raftAddr, clientAddr),
	}
}

// BuildPromoteChange upgrades an existing learner to a voter.
func BuildPromoteChange(nodeID uint64, raftAddr, clientAddr string) raftpb.ConfChange {
	return raftpb.ConfChange{
		Type:    raftpb.ConfChangeAddNode,
		NodeID:  nodeID,
		Context: EncodePeerMetadata(raftAddr, clientAddr),
	}
}

func BuildRemoveNodeChange(nodeID uint64) raftpb.ConfChange {
	return raftpb.ConfChange{
		Type:   raftpb.ConfChangeRemoveNode,
		NodeID: nodeID,
	}
}

func IsVoter(confState raftpb.ConfState, nodeID uint64) bool {
	for _, v := range confState.Voters {
		if v == nodeID {
			return true
		}
	}
	return false
}

func IsLearner(confState raftpb.ConfState, nodeID uint64) bool {
	for _, l := range confState.Learners {
		if l == nodeID {
			return true
		}
	}
	return false
}

func IsInCluster(confState raftpb.ConfState, nodeID uint64) bool {
	return IsVoter(confState, nodeID) || IsLearner(confState, nodeID)
}
