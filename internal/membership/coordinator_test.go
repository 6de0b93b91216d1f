package membership

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuplespace/internal/transport/rpc"
)

// fakeRuntime records calls and lets tests inject failures per step.
type fakeRuntime struct {
	mu    sync.Mutex
	state RunState
	calls []string

	startErr   error
	stopErr    error
	wipeErr    error
	readyErr   error
	createErr  error
	joinErr    error
	promoteErr error
	leaveErr   error

	joinMembers []rpc.NodeInfo
	seedSeen    []rpc.NodeInfo
	bootstrap   bool
}

func (f *fakeRuntime) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeRuntime) Start(_ context.Context, bootstrap bool, seed []rpc.NodeInfo) error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.state = StateStarted
	f.bootstrap = bootstrap
	f.seedSeen = seed
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) Stop(context.Context) error {
	f.record("stop")
	if f.stopErr != nil {
		return f.stopErr
	}
	f.mu.Lock()
	f.state = StateStopped
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) Wipe() error {
	f.record("wipe")
	return f.wipeErr
}

func (f *fakeRuntime) State() RunState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRuntime) WaitReady(context.Context) error {
	f.record("ready")
	return f.readyErr
}

func (f *fakeRuntime) CreateSpace(_ context.Context, name string, recreate bool) error {
	f.record("create-space:" + name)
	return f.createErr
}

func (f *fakeRuntime) RequestJoin(_ context.Context, peerAddr string) ([]rpc.NodeInfo, error) {
	f.record("request-join:" + peerAddr)
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return f.joinMembers, nil
}

func (f *fakeRuntime) RequestPromotion(_ context.Context, peerAddr string) error {
	f.record("promote:" + peerAddr)
	return f.promoteErr
}

func (f *fakeRuntime) LeaveCluster(context.Context) error {
	f.record("leave")
	return f.leaveErr
}

func (f *fakeRuntime) Members() ([]rpc.NodeInfo, error) {
	return f.joinMembers, nil
}

func newTestCoordinator(rt *fakeRuntime) *Coordinator {
	return NewCoordinator(rt, 5*time.Millisecond, 100*time.Millisecond)
}

func TestCreateRunsFullSequence(t *testing.T) {
	rt := &fakeRuntime{}
	c := newTestCoordinator(rt)

	require.NoError(t, c.Create(context.Background(), "pwd_space", false))
	assert.Equal(t, []string{"wipe", "start", "ready", "create-space:pwd_space"}, rt.calls)
	assert.True(t, rt.bootstrap)
	assert.Equal(t, StateStarted, c.State())
}

func TestCreateRefusesOnStartedNodeWithoutForce(t *testing.T) {
	rt := &fakeRuntime{state: StateStarted}
	c := newTestCoordinator(rt)

	// Founding wipes everything; a member hosting a space must not be
	// destroyed by a plain create.
	err := c.Create(context.Background(), "task_space", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "force")
	assert.Empty(t, rt.calls)
	assert.Equal(t, StateStarted, c.State())
}

func TestCreateForceStopsRunningNodeFirst(t *testing.T) {
	rt := &fakeRuntime{state: StateStarted}
	c := newTestCoordinator(rt)

	require.NoError(t, c.Create(context.Background(), "s", true))
	assert.Equal(t, "stop", rt.calls[0])
}

func TestCreateFailureRollsBackToCleanBaseline(t *testing.T) {
	rt := &fakeRuntime{readyErr: errors.New("no leader emerged")}
	c := newTestCoordinator(rt)

	err := c.Create(context.Background(), "s", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait-ready")

	// Rollback stopped the half-started node and wiped again.
	assert.Equal(t, []string{"wipe", "start", "ready", "stop", "wipe"}, rt.calls)
	assert.Equal(t, StateStopped, c.State())
}

func TestJoinSeedsFromJoinResponse(t *testing.T) {
	members := []rpc.NodeInfo{
		{ID: 1, RaftAddr: "n1:7402", ClientAddr: "n1:7401", IsLeader: true},
		{ID: 2, RaftAddr: "n2:7402", ClientAddr: "n2:7401"},
	}
	rt := &fakeRuntime{joinMembers: members}
	c := newTestCoordinator(rt)

	require.NoError(t, c.Join(context.Background(), "n1:7402"))
	assert.Equal(t, []string{"wipe", "request-join:n1:7402", "start", "ready", "promote:n1:7402"}, rt.calls)
	assert.False(t, rt.bootstrap)
	assert.Equal(t, members, rt.seedSeen)
}

func TestJoinPromotionFailureRollsBack(t *testing.T) {
	rt := &fakeRuntime{promoteErr: errors.New("leader unreachable")}
	c := newTestCoordinator(rt)

	err := c.Join(context.Background(), "n1:7402")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request-promotion")

	// The node was still a learner, so aborting cannot have cost the
	// cluster quorum; locally it returns to the clean baseline.
	assert.Equal(t, []string{"wipe", "request-join:n1:7402", "start", "ready", "promote:n1:7402", "stop", "wipe"}, rt.calls)
	assert.Equal(t, StateStopped, c.State())
}

func TestJoinRequestFailureWipesWithoutStart(t *testing.T) {
	rt := &fakeRuntime{joinErr: errors.New("peer unreachable")}
	c := newTestCoordinator(rt)

	err := c.Join(context.Background(), "n9:7402")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request-join")

	// The runtime never started, rollback only needs the wipe.
	assert.NotContains(t, rt.calls, "start")
	assert.Equal(t, StateStopped, c.State())
}

func TestLeaveSequence(t *testing.T) {
	rt := &fakeRuntime{state: StateStarted}
	c := newTestCoordinator(rt)

	require.NoError(t, c.Leave(context.Background()))
	assert.Equal(t, []string{"leave", "stop", "wipe"}, rt.calls)
	assert.Equal(t, StateStopped, c.State())
}

func TestLeaveWhileStoppedFails(t *testing.T) {
	rt := &fakeRuntime{state: StateStopped}
	c := newTestCoordinator(rt)

	err := c.Leave(context.Background())
	require.Error(t, err)
	assert.Empty(t, rt.calls)
}

func TestLeaveProposalFailureStillReachesBaseline(t *testing.T) {
	rt := &fakeRuntime{state: StateStarted, leaveErr: errors.New("no quorum")}
	c := newTestCoordinator(rt)

	err := c.Leave(context.Background())
	require.Error(t, err)

	// Rollback is idempotent about the end state: stopped and wiped.
	assert.Equal(t, []string{"leave", "stop", "wipe"}, rt.calls)
	assert.Equal(t, StateStopped, c.State())
}

func TestNodesRequiresStarted(t *testing.T) {
	rt := &fakeRuntime{}
	c := newTestCoordinator(rt)

	_, err := c.Nodes()
	require.Error(t, err)

	rt.state = StateStarted
	rt.joinMembers = []rpc.NodeInfo{{ID: 1}}
	nodes, err := c.Nodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "stopping", StateStopping.String())
}
