package raft

import (
	"fmt"
	"log/slog"

	etcdraft "go.etcd.io/raft/v3"

	"tuplespace/internal/configuration"
	"tuplespace/internal/raft/ops"
)

type nodeConfig struct {
	storage      *Storage
	raftNode     etcdraft.Node
	appliedIndex uint64
}

func newNodeConfig(cc *configuration.ClusterProperties, localRaftAddr, localClientAddr string) (*nodeConfig, error) {
	store, appliedIndex, err := OpenStorage(cc.DataDir, cc.Wal.NoSync)
	if err != nil {
		return nil, fmt.Errorf("open raft storage: %w", err)
	}
	slog.Debug("opened raft storage", "dir", cc.DataDir)

	electionTick := 10
	if cc.ElectionTick != 0 {
		electionTick = cc.ElectionTick
	}
	heartbeatTick := 1
	if cc.HeartbeatTick != 0 {
		heartbeatTick = cc.HeartbeatTick
	}
	maxSizePerMsg := uint64(1024 * 1024)
	if cc.MaxSizePerMsg != 0 {
		maxSizePerMsg = cc.MaxSizePerMsg
	}
	maxInflight := 256
	if cc.MaxInflight != 0 {
		maxInflight = cc.MaxInflight
	}

	c := &etcdraft.Config{
		ID:              cc.NodeID,
		ElectionTick:    electionTick,
		HeartbeatTick:   heartbeatTick,
		Storage:         store.RaftStorage(),
		MaxSizePerMsg:   maxSizePerMsg,
		MaxInflightMsgs: maxInflight,
		Logger:          NewSlogRaftLogger(),
		Applied:         appliedIndex,
	}

	raftNode, err := startOrRestartNode(c, store, cc.Bootstrap, localRaftAddr, localClientAddr)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("start raft node: %w", err)
	}

	return &nodeConfig{
		storage:      store,
		raftNode:     raftNode,
		appliedIndex: appliedIndex,
	}, nil
}

// startOrRestartNode picks the raft entry point. A bootstrapping node with
// empty storage founds a single-member cluster; everything else restarts
// from saved state. A joiner also takes the restart path with empty
// storage and waits for the leader's snapshot to configure it.
func startOrRestartNode(c *etcdraft.Config, store *Storage, bootstrap bool, raftAddr, clientAddr string) (etcdraft.Node, error) {
	isEmpty, err := store.IsEmpty()
	if err != nil {
		return nil, fmt.Errorf("check storage state: %w", err)
	}

	if bootstrap && isEmpty {
		slog.Debug("bootstrapping new single-member cluster", "node_id", c.ID)
		self := etcdraft.Peer{
			ID:      c.ID,
			Context: ops.EncodePeerMetadata(raftAddr, clientAddr),
		}
		return etcdraft.StartNode(c, []etcdraft.Peer{self}), nil
	}

	slog.Debug("restarting raft node", "node_id", c.ID, "storage_empty", isEmpty)
	return etcdraft.RestartNode(c), nil
}
