package raft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"tuplespace/internal/command"
	"tuplespace/internal/configuration"
	"tuplespace/internal/metrics"
	"tuplespace/internal/raft/ops"
	"tuplespace/internal/transport/rpc"
)

// StateMachine receives committed log entries. Apply runs during normal
// operation, ApplyReplay during recovery where no caller is waiting.
type StateMachine interface {
	Apply(data []byte) ([]byte, error)
	ApplyReplay(data []byte) error
}

// SnapshotSource produces and consumes application snapshots, the
// serialized contents of every space.
type SnapshotSource interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

var (
	ErrNotLeader = errors.New("not leader")
	ErrStopped   = errors.New("raft service stopped")
)

type readWaiter struct {
	index uint64
	ch    chan uint64
}

type raftStepReq struct {
	ctx  context.Context
	msg  raftpb.Message
	resp chan error
}

// Service runs the replication loop around a Node and exposes the
// operations the command service and membership coordinator need. It
// satisfies command.Replicator.
type Service struct {
	Node         *Node
	stateMachine StateMachine
	snapshots    SnapshotSource

	nextReqID uint64

	readWaiters map[string]*readWaiter
	readMu      sync.Mutex

	lastApplied uint64
	appliedMu   sync.RWMutex

	stopCh    chan struct{}
	stopOnce  sync.Once
	stoppedWg sync.WaitGroup

	// removedCh closes when a committed conf change removes this node.
	removedCh   chan struct{}
	removedOnce sync.Once

	tickInterval time.Duration
	snapCount    uint64
	pollEvery    time.Duration
	stepInbox    chan raftStepReq
}

func NewService(node *Node, sm StateMachine, snaps SnapshotSource, cc *configuration.ClusterProperties) *Service {
	stepSize := cc.StepInboxSize
	if stepSize <= 0 {
		stepSize = 1024
	}

	return &Service{
		Node:         node,
		stateMachine: sm,
		snapshots:    snaps,
		readWaiters:  make(map[string]*readWaiter),
		stopCh:       make(chan struct{}),
		removedCh:    make(chan struct{}),
		tickInterval: cc.TickDuration(),
		snapCount:    cc.SnapCount,
		pollEvery:    100 * time.Millisecond,
		stepInbox:    make(chan raftStepReq, stepSize),
	}
}

func (s *Service) Start() error {
	if err := s.RecoverState(); err != nil {
		return fmt.Errorf("recover state: %w", err)
	}
	s.Node.restoreFromConfState()
	s.startLoop()
	return nil
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.stoppedWg.Wait()

	s.Node.raftNode.Stop()
	s.Node.closeClients()

	if err := s.Node.storage.Close(); err != nil {
		slog.Error("failed to close raft storage", "error", err)
	}

	slog.Info("raft service stopped", "node_id", s.Node.Id)
}

// RecoverState rebuilds the application state from the last snapshot plus
// the committed WAL suffix before the loop starts.
func (s *Service) RecoverState() error {
	snapIndex := s.Node.Storage().SnapshotIndex()
	snapData := s.Node.Storage().SnapshotData()

	if len(snapData) > 0 {
		if err := s.snapshots.Restore(snapData); err != nil {
			return fmt.Errorf("restore from snapshot: %w", err)
		}
		slog.Info("restored application state from snapshot", "index", snapIndex)
	}

	entries, err := s.Node.Storage().EntriesAfter(snapIndex)
	if err != nil {
		return fmt.Errorf("entries after snapshot: %w", err)
	}

	if len(entries) == 0 {
		if snapIndex > s.LastApplied() {
			s.SetLastApplied(snapIndex)
		}
		return nil
	}

	for _, entry := range entries {
		if err := s.replayEntry(entry); err != nil {
			slog.Error("failed to replay entry",
				"node_id", s.Node.Id,
				"index", entry.Index,
				"error", err,
			)
		}
	}

	lastIndex := entries[len(entries)-1].Index
	s.SetLastApplied(lastIndex)

	slog.Info("replayed committed entries",
		"count", len(entries),
		"last_index", lastIndex,
	)
	return nil
}

func (s *Service) replayEntry(entry raftpb.Entry) error {
	switch entry.Type {
	case raftpb.EntryConfChange:
		// Membership is recovered from the persisted confState and peer
		// map, not from replaying changes.
		return nil

	case raftpb.EntryNormal:
		if len(entry.Data) == 0 {
			return nil
		}
		return s.stateMachine.ApplyReplay(entry.Data)

	default:
		return nil
	}
}

// CallRaftStep hands an inbound peer message to the loop goroutine.
func (s *Service) CallRaftStep(ctx context.Context, m raftpb.Message) error {
	req := raftStepReq{ctx: ctx, msg: m, resp: make(chan error, 1)}

	select {
	case s.stepInbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return ErrStopped
	}

	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return ErrStopped
	}
}

// HandleRaftMessage decodes and steps a message received from a peer.
func (s *Service) HandleRaftMessage(ctx context.Context, data []byte) error {
	var m raftpb.Message
	if err := m.Unmarshal(data); err != nil {
		return fmt.Errorf("unmarshal raft message: %w", err)
	}

	metrics.RaftMessagesTotal.WithLabelValues("received", m.Type.String()).Inc()
	return s.CallRaftStep(ctx, m)
}

func (s *Service) LastApplied() uint64 {
	s.appliedMu.RLock()
	defer s.appliedMu.RUnlock()
	return s.lastApplied
}

func (s *Service) SetLastApplied(index uint64) {
	var newLA uint64

	s.appliedMu.Lock()
	if index > s.lastApplied {
		s.lastApplied = index
	}
	newLA = s.lastApplied
	s.appliedMu.Unlock()

	s.completeReadWaiters(newLA)
}

func (s *Service) NextRequestID() uint64 {
	return atomic.AddUint64(&s.nextReqID, 1)
}

// TriggerSnapshot captures the application state at the applied index and
// compacts the log behind it.
func (s *Service) TriggerSnapshot() error {
	lastApplied := s.LastApplied()
	if lastApplied == 0 {
		return nil
	}

	data, err := s.snapshots.Snapshot()
	if err != nil {
		return fmt.Errorf("capture snapshot data: %w", err)
	}

	confState := s.Node.ConfState()

	snap, err := s.Node.Storage().CreateSnapshot(lastApplied, &confState, data)
	if err != nil {
		if errors.Is(err, etcdraft.ErrSnapOutOfDate) {
			slog.Debug("snapshot already exists", "index", lastApplied)
			return nil
		}
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := s.Node.Storage().SaveSnapshot(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	compactIndex := uint64(1)
	if lastApplied > s.snapCount {
		compactIndex = lastApplied - s.snapCount
	}

	if err := s.Node.Storage().Compact(compactIndex); err != nil {
		slog.Warn("compact failed", "error", err)
	}

	slog.Info("triggered snapshot",
		"index", snap.Metadata.Index,
		"term", snap.Metadata.Term,
		"compact_index", compactIndex,
		"data_size", len(data),
	)
	return nil
}

// WaitReady blocks until the node knows a leader and has applied
// everything committed at the time the leader became visible. Used by the
// membership coordinator to decide a create or join step succeeded.
func (s *Service) WaitReady(ctx context.Context) error {
	t := time.NewTicker(s.pollEvery)
	defer t.Stop()

	for {
		st := s.Node.Status()
		if st.Lead != 0 && s.LastApplied() >= st.Commit {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return ErrStopped
		case <-t.C:
		}
	}
}

// Removed reports a channel that closes once a committed conf change has
// removed this node from the cluster.
func (s *Service) Removed() <-chan struct{} {
	return s.removedCh
}

func (s *Service) markRemoved() {
	s.removedOnce.Do(func() {
		close(s.removedCh)
	})
}

// Members lists the cluster as this node sees it, self included.
func (s *Service) Members() []rpc.NodeInfo {
	st := s.Node.Status()

	members := []rpc.NodeInfo{{
		ID:         s.Node.Id,
		RaftAddr:   s.Node.LocalRaftAddr(),
		ClientAddr: s.Node.LocalClientAddr(),
		IsLeader:   st.Lead == s.Node.Id,
		IsSelf:     true,
	}}

	cs := s.Node.ConfState()
	ids := make([]uint64, 0, len(cs.Voters)+len(cs.Learners))
	ids = append(ids, cs.Voters...)
	ids = append(ids, cs.Learners...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if id == s.Node.Id {
			continue
		}
		addrs, _ := s.Node.PeerAddrs(id)
		members = append(members, rpc.NodeInfo{
			ID:         id,
			RaftAddr:   addrs.Raft,
			ClientAddr: addrs.Client,
			IsLeader:   st.Lead == id,
		})
	}

	return members
}

// HandleJoinRequest admits a node into the cluster. Followers forward to
// the leader; the leader proposes the conf change and waits for it to
// commit before answering with the member list the joiner needs to dial.
// New nodes enter as learners; a Promote request upgrades a caught-up
// learner to voter, so a join aborted mid-way never costs write quorum.
func (s *Service) HandleJoinRequest(ctx context.Context, req *rpc.JoinRequest) (*rpc.JoinResponse, error) {
	if !s.IsLeader() {
		client, ok := s.Node.getOrDialClient(s.LeaderID())
		if !ok {
			return nil, fmt.Errorf("%w and no known leader to forward join to", ErrNotLeader)
		}
		return client.raft.RequestJoin(ctx, req)
	}

	addrs := PeerAddrs{Raft: req.RaftAddr, Client: req.ClientAddr}
	cs := s.Node.ConfState()

	switch {
	case ops.IsVoter(cs, req.NodeID):
		// Already fully joined: refresh the address and let the snapshot
		// transfer bring the node up to date.
		s.Node.setPeer(req.NodeID, addrs)
		return &rpc.JoinResponse{
			Accepted: true,
			Message:  "already a member",
			Members:  s.Members(),
		}, nil

	case ops.IsLearner(cs, req.NodeID):
		if !req.Promote {
			// Re-join after a failed attempt: the learner entry is still
			// there, only the address may have changed.
			s.Node.setPeer(req.NodeID, addrs)
			return &rpc.JoinResponse{
				Accepted: true,
				Message:  "already admitted as learner",
				Members:  s.Members(),
			}, nil
		}

		cc := ops.BuildPromoteChange(req.NodeID, req.RaftAddr, req.ClientAddr)
		if err := s.Node.ProposeConfChange(ctx, cc); err != nil {
			return nil, fmt.Errorf("propose promotion: %w", err)
		}
		if err := s.waitForConfState(ctx, func(cs raftpb.ConfState) bool {
			return ops.IsVoter(cs, req.NodeID)
		}); err != nil {
			return nil, fmt.Errorf("wait for promotion commit: %w", err)
		}

		metrics.MembershipTransitionsTotal.WithLabelValues("promote", "success").Inc()
		slog.Info("promoted learner to voter", "node_id", req.NodeID)
		return &rpc.JoinResponse{Accepted: true, Members: s.Members()}, nil

	default:
		if req.Promote {
			return &rpc.JoinResponse{Accepted: false, Message: "not a learner"}, nil
		}

		s.Node.setPeer(req.NodeID, addrs)

		cc := ops.BuildAddLearnerChange(req.NodeID, req.RaftAddr, req.ClientAddr)
		if err := s.Node.ProposeConfChange(ctx, cc); err != nil {
			return nil, fmt.Errorf("propose add-learner: %w", err)
		}
		if err := s.waitForConfState(ctx, func(cs raftpb.ConfState) bool {
			return ops.IsInCluster(cs, req.NodeID)
		}); err != nil {
			return nil, fmt.Errorf("wait for join commit: %w", err)
		}

		metrics.MembershipTransitionsTotal.WithLabelValues("admit", "success").Inc()
		slog.Info("admitted node as learner", "node_id", req.NodeID, "raft_addr", req.RaftAddr)
		return &rpc.JoinResponse{Accepted: true, Members: s.Members()}, nil
	}
}

// HandleLeaveRequest removes a node from the cluster on behalf of the node
// itself. Followers forward to the leader.
func (s *Service) HandleLeaveRequest(ctx context.Context, req *rpc.LeaveRequest) (*rpc.LeaveResponse, error) {
	if !s.IsLeader() {
		client, ok := s.Node.getOrDialClient(s.LeaderID())
		if !ok {
			return nil, fmt.Errorf("%w and no known leader to forward leave to", ErrNotLeader)
		}
		return client.raft.RequestLeave(ctx, req)
	}

	if !ops.IsInCluster(s.Node.ConfState(), req.NodeID) {
		return &rpc.LeaveResponse{Accepted: true, Message: "not a member"}, nil
	}

	cc := ops.BuildRemoveNodeChange(req.NodeID)
	if err := s.Node.ProposeConfChange(ctx, cc); err != nil {
		return nil, fmt.Errorf("propose remove-node: %w", err)
	}

	if err := s.waitForConfState(ctx, func(cs raftpb.ConfState) bool {
		return !ops.IsInCluster(cs, req.NodeID)
	}); err != nil {
		return nil, fmt.Errorf("wait for leave commit: %w", err)
	}

	metrics.MembershipTransitionsTotal.WithLabelValues("evict", "success").Inc()
	slog.Info("removed node", "node_id", req.NodeID)

	return &rpc.LeaveResponse{Accepted: true}, nil
}

// LeaveCluster removes this node itself, going through the leader when
// this node is a follower.
func (s *Service) LeaveCluster(ctx context.Context) error {
	req := &rpc.LeaveRequest{NodeID: s.Node.Id}

	if s.IsLeader() {
		// Removing the leader is legal; raft elects a successor from the
		// remaining voters. A single-node cluster just winds down.
		cc := ops.BuildRemoveNodeChange(s.Node.Id)
		if err := s.Node.ProposeConfChange(ctx, cc); err != nil {
			return fmt.Errorf("propose self-removal: %w", err)
		}
	} else {
		resp, err := s.HandleLeaveRequest(ctx, req)
		if err != nil {
			return err
		}
		if !resp.Accepted {
			return fmt.Errorf("leave rejected: %s", resp.Message)
		}
	}

	select {
	case <-s.Removed():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return ErrStopped
	}
}

func (s *Service) waitForConfState(ctx context.Context, reached func(raftpb.ConfState) bool) error {
	t := time.NewTicker(s.pollEvery)
	defer t.Stop()

	for {
		if reached(s.Node.ConfState()) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return ErrStopped
		case <-t.C:
		}
	}
}

// Propose submits one encoded command to the replicated log.
func (s *Service) Propose(ctx context.Context, data []byte) error {
	metrics.RaftProposalsTotal.Inc()
	if err := s.Node.Propose(ctx, data); err != nil {
		metrics.RaftProposalsFailed.Inc()
		return err
	}
	return nil
}

func (s *Service) IsLeader() bool {
	return s.Node.Status().RaftState == etcdraft.StateLeader
}

func (s *Service) LeaderID() uint64 {
	return s.Node.Status().Lead
}

func (s *Service) NodeID() uint64 {
	return s.Node.Id
}

// ForwardToLeader relays a command to the current leader's space service.
func (s *Service) ForwardToLeader(ctx context.Context, req *command.Request) (*command.Response, error) {
	leaderID := s.LeaderID()
	if leaderID == 0 {
		return nil, fmt.Errorf("no known leader")
	}

	client, ok := s.Node.getOrDialClient(leaderID)
	if !ok {
		return nil, fmt.Errorf("no client for leader %d", leaderID)
	}

	resp, err := client.space.ProcessCommand(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("forward to leader %d: %w", leaderID, err)
	}
	return resp, nil
}
