package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuplespace/internal/command"
	"tuplespace/internal/space"
	"tuplespace/internal/tuple"
)

// localReplicator stands in for a single-node cluster: proposals apply
// straight back into the command service.
type localReplicator struct {
	svc *command.Service
}

func (r *localReplicator) Propose(_ context.Context, data []byte) error {
	_, err := r.svc.Apply(data)
	return err
}

func (r *localReplicator) GetReadIndex(context.Context) (uint64, error)   { return 0, nil }
func (r *localReplicator) WaitUntilApplied(context.Context, uint64) error { return nil }
func (r *localReplicator) IsLeader() bool                                 { return true }
func (r *localReplicator) LeaderID() uint64                               { return 1 }
func (r *localReplicator) NodeID() uint64                                 { return 1 }
func (r *localReplicator) ForwardToLeader(context.Context, *command.Request) (*command.Response, error) {
	panic("leader should not forward")
}

func newTestEngine(t *testing.T, spaces ...string) (*Engine, *space.Registry) {
	t.Helper()

	registry := space.NewRegistry()
	svc := command.NewService(registry)
	svc.SetReplicator(&localReplicator{svc: svc})

	for _, name := range spaces {
		resp, err := svc.ProcessCommand(context.Background(), &command.Request{
			Type:  command.OpCreateSpace,
			Space: name,
		})
		require.NoError(t, err)
		require.True(t, resp.Success)
	}

	return New(svc, registry, 10*time.Millisecond), registry
}

func TestOutThenIn(t *testing.T) {
	eng, _ := newTestEngine(t, "s")
	ctx := context.Background()

	tup := tuple.New(tuple.String("7"), tuple.String("abc"))
	require.NoError(t, eng.Out(ctx, "s", tup))

	got, err := eng.In(ctx, "s", tuple.NewPattern(tuple.Any(), tuple.LitString("abc")))
	require.NoError(t, err)
	assert.True(t, got.Equal(tup))
}

func TestInBlocksUntilInsert(t *testing.T) {
	eng, _ := newTestEngine(t, "s")
	ctx := context.Background()

	done := make(chan tuple.Tuple, 1)
	go func() {
		got, err := eng.In(ctx, "s", tuple.NewPattern(tuple.LitAtom("ready")))
		if err == nil {
			done <- got
		}
	}()

	select {
	case <-done:
		t.Fatal("in returned before any matching insert")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, eng.Out(ctx, "s", tuple.New(tuple.Atom("ready"))))

	select {
	case got := <-done:
		assert.True(t, got.Equal(tuple.New(tuple.Atom("ready"))))
	case <-time.After(2 * time.Second):
		t.Fatal("in did not wake after matching insert")
	}
}

func TestInExclusivity(t *testing.T) {
	eng, _ := newTestEngine(t, "tasks")
	ctx := context.Background()

	require.NoError(t, eng.Out(ctx, "tasks", tuple.New(tuple.Atom("task"), tuple.String("a"))))
	require.NoError(t, eng.Out(ctx, "tasks", tuple.New(tuple.Atom("task"), tuple.String("b"))))

	var mu sync.Mutex
	var taken []string
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := eng.In(ctx, "tasks", tuple.NewPattern(tuple.LitAtom("task"), tuple.Any()))
			require.NoError(t, err)
			mu.Lock()
			taken = append(taken, got[1].Str)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Each tuple was consumed exactly once.
	assert.ElementsMatch(t, []string{"a", "b"}, taken)

	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := eng.In(timeoutCtx, "tasks", tuple.NewPattern(tuple.LitAtom("task"), tuple.Any()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRdDoesNotConsume(t *testing.T) {
	eng, registry := newTestEngine(t, "s")
	ctx := context.Background()

	tup := tuple.New(tuple.Atom("flag"), tuple.String("v"))
	require.NoError(t, eng.Out(ctx, "s", tup))

	for i := 0; i < 3; i++ {
		got, err := eng.Rd(ctx, "s", tuple.NewPattern(tuple.LitAtom("flag"), tuple.Any()))
		require.NoError(t, err)
		assert.True(t, got.Equal(tup))
	}

	bag, ok := registry.Get("s")
	require.True(t, ok)
	assert.Equal(t, 1, bag.Len())
}

func TestRdWakesOnInsert(t *testing.T) {
	eng, _ := newTestEngine(t, "s")
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := eng.Rd(ctx, "s", tuple.NewPattern(tuple.LitAtom("found")))
		require.NoError(t, err)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, eng.Out(ctx, "s", tuple.New(tuple.Atom("found"))))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rd did not wake after matching insert")
	}
}

func TestOpsOnUnknownSpaceFail(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	err := eng.Out(ctx, "nope", tuple.New(tuple.String("x")))
	var cmdErr *command.Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, command.CodeNoSuchSpace, cmdErr.Code)

	_, err = eng.In(ctx, "nope", tuple.NewPattern(tuple.Any()))
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, command.CodeNoSuchSpace, cmdErr.Code)
}

func TestBlockedInFailsWhenReplicationStops(t *testing.T) {
	registry := space.NewRegistry()
	svc := command.NewService(registry)
	svc.SetReplicator(&localReplicator{svc: svc})

	resp, err := svc.ProcessCommand(context.Background(), &command.Request{
		Type:  command.OpCreateSpace,
		Space: "s",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	eng := New(svc, registry, 10*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		_, err := eng.In(context.Background(), "s", tuple.NewPattern(tuple.LitAtom("never")))
		errCh <- err
	}()

	// Let the caller block at least once, then detach the replicator the
	// way a membership stop does mid-flight.
	time.Sleep(30 * time.Millisecond)
	svc.SetReplicator(nil)

	select {
	case err := <-errCh:
		var cmdErr *command.Error
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, command.CodeUnavailable, cmdErr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked in did not fail after replication stopped")
	}
}

// Password-search style workload: workers take tasks, the finder posts a
// result tuple, the master reads it.
func TestSearchWorkload(t *testing.T) {
	eng, _ := newTestEngine(t, "work")
	ctx := context.Background()

	target := sha256.Sum256([]byte("7"))
	targetHex := hex.EncodeToString(target[:])

	for lo, hi := 0, 50; lo < 100; lo, hi = lo+50, hi+50 {
		task := tuple.New(tuple.Atom("range"), tuple.String(fmt.Sprintf("%d", lo)), tuple.String(fmt.Sprintf("%d", hi)))
		require.NoError(t, eng.Out(ctx, "work", task))
	}

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				taskCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
				task, err := eng.In(taskCtx, "work", tuple.NewPattern(tuple.LitAtom("range"), tuple.Any(), tuple.Any()))
				cancel()
				if err != nil {
					return
				}
				var lo, hi int
				fmt.Sscanf(task[1].Str, "%d", &lo)
				fmt.Sscanf(task[2].Str, "%d", &hi)
				for i := lo; i < hi; i++ {
					sum := sha256.Sum256([]byte(fmt.Sprintf("%d", i)))
					if hex.EncodeToString(sum[:]) == targetHex {
						found := tuple.New(tuple.Atom("found"), tuple.String(fmt.Sprintf("%d", i)))
						require.NoError(t, eng.Out(ctx, "work", found))
					}
				}
			}
		}()
	}

	got, err := eng.Rd(ctx, "work", tuple.NewPattern(tuple.LitAtom("found"), tuple.Any()))
	require.NoError(t, err)
	assert.Equal(t, "7", got[1].Str)

	wg.Wait()
}
