package raft

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"tuplespace/internal/configuration"
)

// PeerAddrs holds the two endpoints a cluster member exposes.
type PeerAddrs struct {
	Raft   string `json:"raft"`
	Client string `json:"client"`
}

const peersFile = "peers.json"

// Node wraps the etcd raft node with peer bookkeeping. Peer addresses are
// learned at bootstrap, from a join response, or from conf change
// metadata, and persisted next to the WAL so a restart after log
// compaction can still dial everyone.
type Node struct {
	Id       uint64
	raftNode etcdraft.Node

	localRaftAddr   string
	localClientAddr string

	storage *Storage

	mu        sync.RWMutex
	peers     map[uint64]PeerAddrs
	clients   map[uint64]*peerClient
	confState raftpb.ConfState
}

func NewNode(cc *configuration.ClusterProperties, localRaftAddr, localClientAddr string, seedPeers map[uint64]PeerAddrs) (*Node, error) {
	cfg, err := newNodeConfig(cc, localRaftAddr, localClientAddr)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Id:              cc.NodeID,
		raftNode:        cfg.raftNode,
		localRaftAddr:   localRaftAddr,
		localClientAddr: localClientAddr,
		storage:         cfg.storage,
		peers:           make(map[uint64]PeerAddrs),
		clients:         make(map[uint64]*peerClient),
		confState:       cfg.storage.ConfState(),
	}

	if err := n.loadPeers(); err != nil {
		slog.Warn("failed to load persisted peers", "error", err)
	}
	for id, addrs := range seedPeers {
		if id == n.Id {
			continue
		}
		n.peers[id] = addrs
	}
	n.savePeers()

	slog.Info("raft node created",
		"id", n.Id,
		"raft_addr", localRaftAddr,
		"applied", cfg.appliedIndex,
	)
	return n, nil
}

func (n *Node) Status() etcdraft.Status {
	return n.raftNode.Status()
}

func (n *Node) Storage() *Storage {
	return n.storage
}

func (n *Node) AppliedIndexAtStart() uint64 {
	return n.storage.SnapshotIndex()
}

func (n *Node) Propose(ctx context.Context, data []byte) error {
	return n.raftNode.Propose(ctx, data)
}

func (n *Node) ProposeConfChange(ctx context.Context, cc raftpb.ConfChange) error {
	return n.raftNode.ProposeConfChange(ctx, cc)
}

func (n *Node) ReadIndex(ctx context.Context, rctx []byte) error {
	return n.raftNode.ReadIndex(ctx, rctx)
}

func (n *Node) ApplyConfChange(cc raftpb.ConfChange) *raftpb.ConfState {
	return n.raftNode.ApplyConfChange(cc)
}

func (n *Node) ConfState() raftpb.ConfState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.confState
}

func (n *Node) SetConfState(cs raftpb.ConfState) {
	n.mu.Lock()
	n.confState = cs
	n.mu.Unlock()
}

func (n *Node) LocalRaftAddr() string   { return n.localRaftAddr }
func (n *Node) LocalClientAddr() string { return n.localClientAddr }

// Peers returns a copy of the known peer address map, self excluded.
func (n *Node) Peers() map[uint64]PeerAddrs {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[uint64]PeerAddrs, len(n.peers))
	for id, addrs := range n.peers {
		out[id] = addrs
	}
	return out
}

func (n *Node) PeerAddrs(id uint64) (PeerAddrs, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	addrs, ok := n.peers[id]
	return addrs, ok
}

// setPeer records a peer's addresses and persists the map. The caller is
// responsible for (re)dialing the client.
func (n *Node) setPeer(id uint64, addrs PeerAddrs) {
	if id == n.Id {
		return
	}
	n.mu.Lock()
	n.peers[id] = addrs
	n.mu.Unlock()
	n.savePeers()
}

func (n *Node) removePeer(id uint64) {
	n.mu.Lock()
	c := n.clients[id]
	delete(n.peers, id)
	delete(n.clients, id)
	n.mu.Unlock()

	if c != nil {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close removed peer client", "peer_id", id, "error", err)
		}
	}
	n.savePeers()
}

// restoreFromConfState dials every voter present in the persisted
// confState, used after a restart before any new conf change arrives.
func (n *Node) restoreFromConfState() {
	cs := n.ConfState()

	ids := make([]uint64, 0, len(cs.Voters)+len(cs.Learners))
	ids = append(ids, cs.Voters...)
	ids = append(ids, cs.Learners...)

	for _, id := range ids {
		if id == n.Id {
			continue
		}

		addrs, ok := n.PeerAddrs(id)
		if !ok {
			slog.Warn("no known address for cluster member", "node_id", n.Id, "member_id", id)
			continue
		}

		n.mu.RLock()
		_, dialed := n.clients[id]
		n.mu.RUnlock()
		if dialed {
			continue
		}

		if err := n.initPeerClient(id, addrs); err != nil {
			slog.Warn("failed to dial cluster member",
				"member_id", id,
				"raft_addr", addrs.Raft,
				"error", err,
			)
		}
	}
}

func (n *Node) loadPeers() error {
	data, err := os.ReadFile(n.peersPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var peers map[uint64]PeerAddrs
	if err := json.Unmarshal(data, &peers); err != nil {
		return fmt.Errorf("unmarshal %s: %w", peersFile, err)
	}

	n.mu.Lock()
	for id, addrs := range peers {
		if id != n.Id {
			n.peers[id] = addrs
		}
	}
	n.mu.Unlock()
	return nil
}

func (n *Node) savePeers() {
	n.mu.RLock()
	data, err := json.Marshal(n.peers)
	n.mu.RUnlock()
	if err != nil {
		slog.Error("failed to marshal peers", "error", err)
		return
	}

	if err := os.WriteFile(n.peersPath(), data, 0o640); err != nil {
		slog.Error("failed to persist peers", "error", err)
	}
}

func (n *Node) peersPath() string {
	return filepath.Join(n.storage.dir, peersFile)
}
