package raft

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/raft/v3/raftpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"tuplespace/internal/metrics"
	"tuplespace/internal/transport/rpc"
)

// peerClient bundles the per-peer gRPC clients over one connection.
type peerClient struct {
	conn  *grpc.ClientConn
	raft  rpc.RaftTransportServiceClient
	space rpc.SpaceServiceClient
}

func (c *peerClient) Close() error {
	return c.conn.Close()
}

// DialPeer opens a client connection to another node's raft endpoint.
func DialPeer(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
}

func (n *Node) initPeerClient(id uint64, addrs PeerAddrs) error {
	conn, err := DialPeer(addrs.Raft)
	if err != nil {
		return fmt.Errorf("dial peer %d at %s: %w", id, addrs.Raft, err)
	}

	n.mu.Lock()
	if old, ok := n.clients[id]; ok {
		old.Close()
	}
	n.clients[id] = &peerClient{
		conn:  conn,
		raft:  rpc.NewRaftTransportServiceClient(conn),
		space: rpc.NewSpaceServiceClient(conn),
	}
	n.mu.Unlock()

	return nil
}

func (n *Node) getClient(id uint64) (*peerClient, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.clients[id]
	return c, ok
}

// getOrDialClient returns the client for a peer, dialing lazily when the
// address is known but no connection exists yet.
func (n *Node) getOrDialClient(id uint64) (*peerClient, bool) {
	if c, ok := n.getClient(id); ok {
		return c, true
	}

	addrs, ok := n.PeerAddrs(id)
	if !ok {
		return nil, false
	}
	if err := n.initPeerClient(id, addrs); err != nil {
		slog.Warn("failed to dial peer", "peer_id", id, "error", err)
		return nil, false
	}
	return n.getClient(id)
}

func (n *Node) closeClients() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, c := range n.clients {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close peer client", "peer_id", id, "error", err)
		}
		delete(n.clients, id)
	}
}

// sendMessages delivers outbound raft messages to peers. Delivery is best
// effort, raft retries through its own timers.
func (n *Node) sendMessages(msgs []raftpb.Message) {
	for i := range msgs {
		m := msgs[i]
		if m.To == 0 || m.To == n.Id {
			continue
		}

		client, ok := n.getOrDialClient(m.To)
		if !ok {
			slog.Warn("no client for peer, dropping message",
				"to", m.To,
				"type", m.Type.String(),
			)
			continue
		}

		data, err := m.Marshal()
		if err != nil {
			slog.Error("failed to marshal raft message", "error", err)
			continue
		}

		metrics.RaftMessagesTotal.WithLabelValues("sent", m.Type.String()).Inc()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = client.raft.SendRaftMessage(ctx, &rpc.RaftMessage{Data: data})
		cancel()
		if err != nil {
			slog.Debug("failed to send raft message",
				"to", m.To,
				"type", m.Type.String(),
				"error", err,
			)
		}
	}
}
