package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuplespace/internal/space"
	"tuplespace/internal/tuple"
)

// localReplicator applies proposals straight back into the service,
// standing in for a single-node cluster.
type localReplicator struct {
	svc        *Service
	proposeErr error
}

func (r *localReplicator) Propose(_ context.Context, data []byte) error {
	if r.proposeErr != nil {
		return r.proposeErr
	}
	_, err := r.svc.Apply(data)
	return err
}

func (r *localReplicator) GetReadIndex(context.Context) (uint64, error)  { return 0, nil }
func (r *localReplicator) WaitUntilApplied(context.Context, uint64) error { return nil }
func (r *localReplicator) IsLeader() bool                                 { return true }
func (r *localReplicator) LeaderID() uint64                               { return 1 }
func (r *localReplicator) NodeID() uint64                                 { return 1 }
func (r *localReplicator) ForwardToLeader(context.Context, *Request) (*Response, error) {
	panic("leader should not forward")
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(space.NewRegistry())
	svc.SetReplicator(&localReplicator{svc: svc})
	return svc
}

func mustProcess(t *testing.T, svc *Service, req *Request) *Response {
	t.Helper()
	resp, err := svc.ProcessCommand(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestServiceCreateOutTake(t *testing.T) {
	svc := newTestService(t)

	resp := mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "pwd_space"})
	require.True(t, resp.Success)

	tup := tuple.New(tuple.String("7"), tuple.String("hash-of-7"))
	resp = mustProcess(t, svc, &Request{Type: OpOut, Space: "pwd_space", Tuple: tup})
	require.True(t, resp.Success)

	pattern := tuple.NewPattern(tuple.Any(), tuple.LitString("hash-of-7"))
	resp = mustProcess(t, svc, &Request{Type: OpTake, Space: "pwd_space", Pattern: pattern})
	require.True(t, resp.Success)
	assert.True(t, resp.Tuple.Equal(tup))

	// Bag is now empty for that pattern: the take's exclusivity leaves
	// nothing for a second attempt.
	resp = mustProcess(t, svc, &Request{Type: OpTake, Space: "pwd_space", Pattern: pattern})
	assert.True(t, resp.NoMatch())
}

func TestServiceCreateExisting(t *testing.T) {
	svc := newTestService(t)

	mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "s"})
	resp := mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "s"})

	require.False(t, resp.Success)
	assert.Equal(t, CodeSpaceExists, resp.Error.Code)

	// Explicit recreate succeeds.
	resp = mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "s", Recreate: true})
	assert.True(t, resp.Success)
}

func TestServiceOutToUnknownSpace(t *testing.T) {
	svc := newTestService(t)

	resp := mustProcess(t, svc, &Request{
		Type:  OpOut,
		Space: "nope",
		Tuple: tuple.New(tuple.String("x")),
	})

	require.False(t, resp.Success)
	assert.Equal(t, CodeNoSuchSpace, resp.Error.Code)
}

func TestServiceReadDoesNotConsume(t *testing.T) {
	svc := newTestService(t)
	mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "s"})

	tup := tuple.New(tuple.Atom("tag"), tuple.String("v"))
	mustProcess(t, svc, &Request{Type: OpOut, Space: "s", Tuple: tup})

	pattern := tuple.NewPattern(tuple.LitAtom("tag"), tuple.Any())
	for i := 0; i < 3; i++ {
		resp := mustProcess(t, svc, &Request{Type: OpRead, Space: "s", Pattern: pattern})
		require.True(t, resp.Success, "read %d", i)
		assert.True(t, resp.Tuple.Equal(tup))
	}

	bag, _ := svc.Registry().Get("s")
	assert.Equal(t, 1, bag.Len())
}

func TestServiceValidation(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name string
		req  *Request
	}{
		{"missing space", &Request{Type: OpOut, Tuple: tuple.New(tuple.String("x"))}},
		{"out without tuple", &Request{Type: OpOut, Space: "s"}},
		{"take without pattern", &Request{Type: OpTake, Space: "s"}},
		{"read without pattern", &Request{Type: OpRead, Space: "s"}},
		{"unknown op", &Request{Type: OpType("BOGUS"), Space: "s"}},
		{"create with tuple", &Request{Type: OpCreateSpace, Space: "s", Tuple: tuple.New(tuple.String("x"))}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := svc.ProcessCommand(context.Background(), tc.req)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, CodeInvalid, resp.Error.Code)
		})
	}
}

func TestServiceWireRoundTrip(t *testing.T) {
	req := &Request{
		Type:    OpTake,
		Space:   "task_space",
		Pattern: tuple.NewPattern(tuple.LitAtom("search_task"), tuple.Any()),
	}

	data, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req.Type, got.Type)
	assert.Equal(t, req.Space, got.Space)
	require.Len(t, got.Pattern, 2)
	assert.False(t, got.Pattern[0].Wildcard)
	assert.True(t, got.Pattern[1].Wildcard)
}

func TestServiceUnavailableAfterReplicatorDetached(t *testing.T) {
	svc := newTestService(t)
	mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "s"})

	// Leaving a space detaches the replicator while callers may still be
	// mid retry loop. They must get a structured failure, not a panic.
	svc.SetReplicator(nil)

	resp := mustProcess(t, svc, &Request{Type: OpTake, Space: "s", Pattern: tuple.NewPattern(tuple.Any())})
	require.False(t, resp.Success)
	assert.Equal(t, CodeUnavailable, resp.Error.Code)

	resp = mustProcess(t, svc, &Request{Type: OpRead, Space: "s", Pattern: tuple.NewPattern(tuple.Any())})
	require.False(t, resp.Success)
	assert.Equal(t, CodeUnavailable, resp.Error.Code)

	assert.Zero(t, svc.NodeID())
	leader, isLeader := svc.LeaderInfo()
	assert.Zero(t, leader)
	assert.False(t, isLeader)
}

func TestApplyNotifiesOnlyProposer(t *testing.T) {
	svc := newTestService(t)
	mustProcess(t, svc, &Request{Type: OpCreateSpace, Space: "s"})

	ch := make(chan *Response, 1)
	svc.RegisterPending(7, ch)
	defer svc.UnregisterPending(7)

	// Another node's entry reusing the same event id must execute without
	// waking the local waiter.
	foreign, err := EncodeRequest(&Request{
		Type: OpOut, Space: "s", EventID: 7, ProposerID: 2,
		Tuple: tuple.New(tuple.String("x")),
	})
	require.NoError(t, err)
	_, err = svc.Apply(foreign)
	require.NoError(t, err)

	select {
	case <-ch:
		t.Fatal("waiter received a response for another node's proposal")
	default:
	}

	own, err := EncodeRequest(&Request{
		Type: OpOut, Space: "s", EventID: 7, ProposerID: 1,
		Tuple: tuple.New(tuple.String("y")),
	})
	require.NoError(t, err)
	_, err = svc.Apply(own)
	require.NoError(t, err)

	select {
	case resp := <-ch:
		assert.True(t, resp.Success)
	default:
		t.Fatal("waiter missed the response to its own proposal")
	}
}

func TestServiceReplayDeliversNoResponses(t *testing.T) {
	svc := newTestService(t)

	data, err := EncodeRequest(&Request{Type: OpCreateSpace, Space: "s", EventID: 42})
	require.NoError(t, err)

	ch := make(chan *Response, 1)
	svc.RegisterPending(42, ch)
	defer svc.UnregisterPending(42)

	require.NoError(t, svc.ApplyReplay(data))

	select {
	case <-ch:
		t.Fatal("replay must not notify pending waiters")
	default:
	}
	assert.True(t, svc.Registry().Has("s"))
}
