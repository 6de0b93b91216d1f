// Package node assembles one tuplespace process: the space registry, the
// command service, the blocking engine, and the raft runtime that comes
// and goes as the node founds, joins, and leaves spaces.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"tuplespace/internal/command"
	"tuplespace/internal/configuration"
	"tuplespace/internal/engine"
	"tuplespace/internal/membership"
	"tuplespace/internal/raft"
	"tuplespace/internal/space"
	"tuplespace/internal/transport/rpc"
	"tuplespace/internal/tuple"
)

// Runtime implements membership.Runtime on top of the real raft service.
// The registry, command service and engine live for the whole process;
// the raft substrate is rebuilt on every create or join.
type Runtime struct {
	cfg *configuration.Properties

	registry *space.Registry
	commands *command.Service
	engine   *engine.Engine

	state atomic.Int32

	mu      sync.Mutex
	raftSvc *raft.Service
}

func NewRuntime(cfg *configuration.Properties) *Runtime {
	registry := space.NewRegistry()
	commands := command.NewService(registry)
	eng := engine.New(commands, registry, cfg.Space.RetryBackoffDuration())

	return &Runtime{
		cfg:      cfg,
		registry: registry,
		commands: commands,
		engine:   eng,
	}
}

func (r *Runtime) Engine() *engine.Engine     { return r.engine }
func (r *Runtime) Registry() *space.Registry  { return r.registry }
func (r *Runtime) Commands() *command.Service { return r.commands }

func (r *Runtime) State() membership.RunState {
	return membership.RunState(r.state.Load())
}

func (r *Runtime) setState(st membership.RunState) {
	r.state.Store(int32(st))
}

// Started reports whether the node currently participates in a space.
func (r *Runtime) Started() bool {
	return r.State() == membership.StateStarted
}

func (r *Runtime) Start(ctx context.Context, bootstrap bool, seed []rpc.NodeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.raftSvc != nil {
		return fmt.Errorf("runtime already started")
	}
	r.setState(membership.StateStarting)

	seedPeers := make(map[uint64]raft.PeerAddrs, len(seed))
	for _, m := range seed {
		seedPeers[m.ID] = raft.PeerAddrs{Raft: m.RaftAddr, Client: m.ClientAddr}
	}

	cc := r.cfg.Cluster
	cc.Bootstrap = bootstrap

	node, err := raft.NewNode(&cc,
		r.cfg.Transport.RaftAddr(),
		r.cfg.Transport.ClientAddr(),
		seedPeers,
	)
	if err != nil {
		r.setState(membership.StateStopped)
		return fmt.Errorf("create raft node: %w", err)
	}

	svc := raft.NewService(node, r.commands, r.registry, &cc)
	r.commands.SetReplicator(svc)

	if err := svc.Start(); err != nil {
		svc.Stop()
		r.commands.SetReplicator(nil)
		r.setState(membership.StateStopped)
		return fmt.Errorf("start raft service: %w", err)
	}

	r.raftSvc = svc
	r.setState(membership.StateStarted)

	slog.Info("runtime started", "node_id", cc.NodeID, "bootstrap", bootstrap)
	return nil
}

func (r *Runtime) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.raftSvc == nil {
		r.setState(membership.StateStopped)
		return nil
	}
	r.setState(membership.StateStopping)

	r.raftSvc.Stop()
	r.raftSvc = nil
	r.commands.SetReplicator(nil)

	r.setState(membership.StateStopped)
	slog.Info("runtime stopped", "node_id", r.cfg.Cluster.NodeID)
	return nil
}

// HasState reports whether a previous incarnation left replicated state
// on disk, meaning the node was a member of a space when it went down.
func (r *Runtime) HasState() bool {
	info, err := os.Stat(r.cfg.Cluster.DataDir)
	return err == nil && info.IsDir()
}

// Wipe discards all replicated state, on disk and in memory. Only legal
// while stopped.
func (r *Runtime) Wipe() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.raftSvc != nil {
		return fmt.Errorf("cannot wipe while running")
	}

	if err := os.RemoveAll(r.cfg.Cluster.DataDir); err != nil {
		return fmt.Errorf("remove data dir: %w", err)
	}
	r.registry.Reset()

	slog.Info("wiped replicated state", "dir", r.cfg.Cluster.DataDir)
	return nil
}

func (r *Runtime) WaitReady(ctx context.Context) error {
	svc, err := r.service()
	if err != nil {
		return err
	}
	return svc.WaitReady(ctx)
}

func (r *Runtime) CreateSpace(ctx context.Context, name string, recreate bool) error {
	resp, err := r.commands.ProcessCommand(ctx, &command.Request{
		Type:     command.OpCreateSpace,
		Space:    name,
		Recreate: recreate,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.Error
	}
	return nil
}

// RequestJoin asks an existing member (by raft address) to admit this
// node as a learner. Runs before Start, over a short-lived connection.
func (r *Runtime) RequestJoin(ctx context.Context, peerAddr string) ([]rpc.NodeInfo, error) {
	resp, err := r.sendJoinRequest(ctx, peerAddr, false)
	if err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// RequestPromotion asks for voting rights after the local replica has
// caught up; until it succeeds the node participates as a learner only.
func (r *Runtime) RequestPromotion(ctx context.Context, peerAddr string) error {
	_, err := r.sendJoinRequest(ctx, peerAddr, true)
	return err
}

func (r *Runtime) sendJoinRequest(ctx context.Context, peerAddr string, promote bool) (*rpc.JoinResponse, error) {
	conn, err := raft.DialPeer(peerAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peerAddr, err)
	}
	defer conn.Close()

	client := rpc.NewRaftTransportServiceClient(conn)

	joinCtx, cancel := context.WithTimeout(ctx, r.cfg.Space.ReadyTimeoutDuration())
	defer cancel()

	resp, err := client.RequestJoin(joinCtx, &rpc.JoinRequest{
		NodeID:     r.cfg.Cluster.NodeID,
		RaftAddr:   r.cfg.Transport.RaftAddr(),
		ClientAddr: r.cfg.Transport.ClientAddr(),
		Promote:    promote,
	})
	if err != nil {
		return nil, fmt.Errorf("join request to %s: %w", peerAddr, err)
	}
	if !resp.Accepted {
		return nil, fmt.Errorf("join rejected by %s: %s", peerAddr, resp.Message)
	}
	return resp, nil
}

func (r *Runtime) LeaveCluster(ctx context.Context) error {
	svc, err := r.service()
	if err != nil {
		return err
	}

	leaveCtx, cancel := context.WithTimeout(ctx, r.cfg.Space.ReadyTimeoutDuration())
	defer cancel()
	return svc.LeaveCluster(leaveCtx)
}

func (r *Runtime) Members() ([]rpc.NodeInfo, error) {
	svc, err := r.service()
	if err != nil {
		return nil, err
	}
	return svc.Members(), nil
}

// Data-plane entry points used by the transport handlers. All of them
// reject calls while the node is not part of a space.

var ErrNotStarted = fmt.Errorf("node is not part of any space")

func (r *Runtime) ProcessCommand(ctx context.Context, req *command.Request) (*command.Response, error) {
	if !r.Started() {
		return nil, ErrNotStarted
	}
	return r.commands.ProcessCommand(ctx, req)
}

func (r *Runtime) Out(ctx context.Context, spaceName string, t tuple.Tuple) error {
	if !r.Started() {
		return ErrNotStarted
	}
	return r.engine.Out(ctx, spaceName, t)
}

func (r *Runtime) In(ctx context.Context, spaceName string, p tuple.Pattern) (tuple.Tuple, error) {
	if !r.Started() {
		return nil, ErrNotStarted
	}
	return r.engine.In(ctx, spaceName, p)
}

func (r *Runtime) Rd(ctx context.Context, spaceName string, p tuple.Pattern) (tuple.Tuple, error) {
	if !r.Started() {
		return nil, ErrNotStarted
	}
	return r.engine.Rd(ctx, spaceName, p)
}

func (r *Runtime) HandleRaftMessage(ctx context.Context, data []byte) error {
	svc, err := r.service()
	if err != nil {
		return err
	}
	return svc.HandleRaftMessage(ctx, data)
}

func (r *Runtime) GetReadIndex(ctx context.Context) (uint64, error) {
	svc, err := r.service()
	if err != nil {
		return 0, err
	}
	return svc.GetReadIndex(ctx)
}

func (r *Runtime) HandleJoin(ctx context.Context, req *rpc.JoinRequest) (*rpc.JoinResponse, error) {
	svc, err := r.service()
	if err != nil {
		return nil, err
	}
	return svc.HandleJoinRequest(ctx, req)
}

func (r *Runtime) HandleLeave(ctx context.Context, req *rpc.LeaveRequest) (*rpc.LeaveResponse, error) {
	svc, err := r.service()
	if err != nil {
		return nil, err
	}
	return svc.HandleLeaveRequest(ctx, req)
}

func (r *Runtime) service() (*raft.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raftSvc == nil {
		return nil, ErrNotStarted
	}
	return r.raftSvc, nil
}

// Shutdown tears the runtime down at process exit without touching the
// on-disk state, so the node rejoins its space on the next start.
func (r *Runtime) Shutdown(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.Stop(stopCtx)
}
