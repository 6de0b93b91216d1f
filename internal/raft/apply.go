package raft

import (
	"log/slog"

	"go.etcd.io/raft/v3/raftpb"

	"tuplespace/internal/raft/ops"
)

func (s *Service) applyCommitted(entries []raftpb.Entry) {
	for _, entry := range entries {
		switch entry.Type {
		case raftpb.EntryConfChange:
			s.applyConfChange(entry)

		case raftpb.EntryNormal:
			s.applyNormalEntry(entry)

		default:
			slog.Warn("ignoring unsupported raft entry type",
				"node_id", s.Node.Id,
				"index", entry.Index,
				"term", entry.Term,
				"type", entry.Type.String(),
			)
		}

		s.SetLastApplied(entry.Index)
	}
}

func (s *Service) applyNormalEntry(entry raftpb.Entry) {
	if len(entry.Data) == 0 {
		// Empty entries mark leader changes.
		return
	}

	if _, err := s.stateMachine.Apply(entry.Data); err != nil {
		slog.Error("state machine apply failed",
			"node_id", s.Node.Id,
			"index", entry.Index,
			"error", err,
		)
	}
}

func (s *Service) applyConfChange(entry raftpb.Entry) {
	var cc raftpb.ConfChange
	if err := cc.Unmarshal(entry.Data); err != nil {
		slog.Error("failed to unmarshal conf change",
			"node_id", s.Node.Id,
			"index", entry.Index,
			"error", err,
		)
		return
	}

	slog.Info("applying conf change",
		"node_id", s.Node.Id,
		"index", entry.Index,
		"type", cc.Type.String(),
		"target_node", cc.NodeID,
	)

	confState := s.Node.ApplyConfChange(cc)
	if confState != nil {
		s.Node.SetConfState(*confState)
		if err := s.Node.storage.SaveConfState(*confState); err != nil {
			slog.Error("failed to persist confState", "node_id", s.Node.Id, "error", err)
		}
	}

	s.updatePeersFromConfChange(cc)
}

func (s *Service) updatePeersFromConfChange(cc raftpb.ConfChange) {
	switch cc.Type {
	case raftpb.ConfChangeAddNode, raftpb.ConfChangeAddLearnerNode:
		if cc.NodeID == s.Node.Id || len(cc.Context) == 0 {
			return
		}
		raftAddr, clientAddr := ops.DecodePeerMetadata(cc.Context)
		addrs := PeerAddrs{Raft: raftAddr, Client: clientAddr}
		s.Node.setPeer(cc.NodeID, addrs)
		if err := s.Node.initPeerClient(cc.NodeID, addrs); err != nil {
			slog.Error("failed to dial admitted peer",
				"peer_id", cc.NodeID,
				"error", err,
			)
		}

	case raftpb.ConfChangeRemoveNode:
		if cc.NodeID == s.Node.Id {
			slog.Info("this node has been removed from the cluster", "node_id", s.Node.Id)
			s.markRemoved()
			return
		}
		s.Node.removePeer(cc.NodeID)
		slog.Info("removed peer", "peer_id", cc.NodeID)
	}
}
