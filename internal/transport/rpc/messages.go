package rpc

import (
	"tuplespace/internal/command"
	"tuplespace/internal/tuple"
)

// RaftMessage carries one binary-marshaled raftpb.Message between peers.
type RaftMessage struct {
	Data []byte `json:"data"`
}

type RaftMessageAck struct{}

type GetReadIndexRequest struct {
	FromNode uint64 `json:"from_node"`
}

type GetReadIndexResponse struct {
	ReadIndex uint64 `json:"read_index"`
}

// NodeInfo describes one cluster member as seen by the responding node.
type NodeInfo struct {
	ID         uint64 `json:"id"`
	RaftAddr   string `json:"raft_addr"`
	ClientAddr string `json:"client_addr"`
	IsLeader   bool   `json:"is_leader,omitempty"`
	IsSelf     bool   `json:"is_self,omitempty"`
}

// JoinRequest asks the receiving cluster to admit a new node. The receiver
// forwards to the leader if it is not the leader itself. Admission is in
// two phases: the first request adds the node as a non-voting learner;
// once the joiner is running and caught up it sends a second request with
// Promote set to gain voting rights.
type JoinRequest struct {
	NodeID     uint64 `json:"node_id"`
	RaftAddr   string `json:"raft_addr"`
	ClientAddr string `json:"client_addr"`
	Promote    bool   `json:"promote,omitempty"`
}

type JoinResponse struct {
	Accepted bool       `json:"accepted"`
	Message  string     `json:"message,omitempty"`
	Members  []NodeInfo `json:"members,omitempty"`
}

// LeaveRequest asks the leader to remove a node from the cluster.
type LeaveRequest struct {
	NodeID uint64 `json:"node_id"`
}

type LeaveResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// OutRequest inserts one tuple into a named space.
type OutRequest struct {
	Space string      `json:"space"`
	Tuple tuple.Tuple `json:"tuple"`
}

// MatchRequest is the shared shape of the blocking in and rd operations.
type MatchRequest struct {
	Space   string        `json:"space"`
	Pattern tuple.Pattern `json:"pattern"`
}

type OpResponse struct {
	OK    bool           `json:"ok"`
	Error *command.Error `json:"error,omitempty"`
}

type TupleReply struct {
	Tuple tuple.Tuple    `json:"tuple,omitempty"`
	Error *command.Error `json:"error,omitempty"`
}

// Admin surface, served by the membership coordinator on every node.

// CreateRequest founds a space, wiping this node's replicated state.
// Force is required when the node already participates in a space.
type CreateRequest struct {
	Space string `json:"space"`
	Force bool   `json:"force,omitempty"`
}

type JoinClusterRequest struct {
	PeerAddr string `json:"peer_addr"`
}

type LeaveClusterRequest struct{}

type AdminResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type ListNodesRequest struct{}

type ListNodesResponse struct {
	Nodes []NodeInfo `json:"nodes"`
}
