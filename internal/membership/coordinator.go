// Package membership drives a node's lifecycle inside a space cluster:
// founding a space, joining an existing one, and leaving. Transitions run
// as explicit step sequences under a single actor; the first failing step
// triggers a rollback to the clean baseline, stopped with no on-disk
// state, so a later attempt starts from scratch.
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tuplespace/internal/metrics"
	"tuplespace/internal/transport/rpc"
)

type RunState int32

const (
	StateStopped RunState = iota
	StateStarting
	StateStarted
	StateStopping
)

func (s RunState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Runtime is the node lifecycle the coordinator drives. The production
// implementation wraps the raft service and command path; tests use a fake.
type Runtime interface {
	// Start brings up the replication runtime. With bootstrap set the node
	// founds a fresh single-member cluster; otherwise it starts as a joiner
	// seeded with the given member addresses.
	Start(ctx context.Context, bootstrap bool, seed []rpc.NodeInfo) error
	Stop(ctx context.Context) error
	// Wipe removes all on-disk and in-memory replicated state.
	Wipe() error
	State() RunState
	// WaitReady blocks until the node sees a leader and has caught up.
	WaitReady(ctx context.Context) error
	CreateSpace(ctx context.Context, name string, recreate bool) error
	// RequestJoin asks an existing member to admit this node as a learner
	// and returns the cluster's member list for seeding.
	RequestJoin(ctx context.Context, peerAddr string) ([]rpc.NodeInfo, error)
	// RequestPromotion asks for voting rights once the local replica has
	// caught up.
	RequestPromotion(ctx context.Context, peerAddr string) error
	// LeaveCluster proposes this node's own removal and waits for commit.
	LeaveCluster(ctx context.Context) error
	Members() ([]rpc.NodeInfo, error)
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

type Coordinator struct {
	// mu makes membership transitions single file. Concurrent admin calls
	// queue here rather than interleaving half-finished transitions.
	mu sync.Mutex

	rt           Runtime
	pollInterval time.Duration
	readyTimeout time.Duration
}

func NewCoordinator(rt Runtime, pollInterval, readyTimeout time.Duration) *Coordinator {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if readyTimeout <= 0 {
		readyTimeout = 30 * time.Second
	}
	return &Coordinator{
		rt:           rt,
		pollInterval: pollInterval,
		readyTimeout: readyTimeout,
	}
}

// Create founds a new space: this node becomes the first member of a
// fresh cluster and registers the named space in it. Founding wipes all
// replicated state, so a node that is already part of a space refuses
// unless force is set; additional spaces on a running member are
// registered in place through the replicated create operation instead.
func (c *Coordinator) Create(ctx context.Context, spaceName string, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.rt.State(); st != StateStopped && !force {
		err := fmt.Errorf("node is %s and already part of a space; refounding wipes all replicated state (use force to proceed)", st)
		c.recordTransition("create", err)
		return err
	}

	err := c.runSteps(ctx, "create", []step{
		{"ensure-stopped", c.ensureStopped},
		{"wipe", func(context.Context) error { return c.rt.Wipe() }},
		{"start-bootstrap", func(ctx context.Context) error {
			return c.rt.Start(ctx, true, nil)
		}},
		{"wait-ready", c.waitReady},
		{"create-space", func(ctx context.Context) error {
			return c.rt.CreateSpace(ctx, spaceName, false)
		}},
	})
	c.recordTransition("create", err)
	return err
}

// Join adds this node to the cluster behind an existing member, wiping
// any previous identity first. The node is admitted as a non-voting
// learner, started, and only promoted to voter once its replica has
// caught up; aborting anywhere before promotion leaves cluster quorum
// untouched. The replicated space contents arrive via the leader's
// snapshot once the learner conf change commits.
func (c *Coordinator) Join(ctx context.Context, peerAddr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var seed []rpc.NodeInfo

	err := c.runSteps(ctx, "join", []step{
		{"ensure-stopped", c.ensureStopped},
		{"wipe", func(context.Context) error { return c.rt.Wipe() }},
		{"request-join", func(ctx context.Context) error {
			members, err := c.rt.RequestJoin(ctx, peerAddr)
			if err != nil {
				return err
			}
			seed = members
			return nil
		}},
		{"start-joiner", func(ctx context.Context) error {
			return c.rt.Start(ctx, false, seed)
		}},
		{"wait-ready", c.waitReady},
		{"request-promotion", func(ctx context.Context) error {
			return c.rt.RequestPromotion(ctx, peerAddr)
		}},
	})
	c.recordTransition("join", err)
	return err
}

// Leave withdraws this node: its removal is committed by the remaining
// cluster, then local state is discarded. The node ends at the clean
// baseline either way.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.rt.State(); st != StateStarted {
		err := fmt.Errorf("cannot leave while %s", st)
		c.recordTransition("leave", err)
		return err
	}

	err := c.runSteps(ctx, "leave", []step{
		{"propose-removal", c.rt.LeaveCluster},
		{"stop", c.rt.Stop},
		{"wipe", func(context.Context) error { return c.rt.Wipe() }},
	})
	c.recordTransition("leave", err)
	return err
}

// Nodes lists the current member set. Only meaningful while started.
func (c *Coordinator) Nodes() ([]rpc.NodeInfo, error) {
	if st := c.rt.State(); st != StateStarted {
		return nil, fmt.Errorf("node is %s, not part of any space", st)
	}
	return c.rt.Members()
}

func (c *Coordinator) State() RunState {
	return c.rt.State()
}

// runSteps executes the steps in order, short-circuiting to rollback on
// the first failure. The returned error names the failed step.
func (c *Coordinator) runSteps(ctx context.Context, kind string, steps []step) error {
	for _, st := range steps {
		slog.Debug("membership step", "transition", kind, "step", st.name)
		if err := st.run(ctx); err != nil {
			slog.Error("membership step failed, rolling back",
				"transition", kind,
				"step", st.name,
				"error", err,
			)
			c.revert()
			return fmt.Errorf("%s: step %s: %w", kind, st.name, err)
		}
	}
	return nil
}

// revert forces the clean baseline: stopped, no replicated state. Errors
// are logged and swallowed; there is nothing further to fall back to.
func (c *Coordinator) revert() {
	ctx, cancel := context.WithTimeout(context.Background(), c.readyTimeout)
	defer cancel()

	if st := c.rt.State(); st != StateStopped {
		if err := c.rt.Stop(ctx); err != nil {
			slog.Warn("rollback stop failed", "error", err)
		}
		if err := c.waitForState(ctx, StateStopped); err != nil {
			slog.Warn("rollback did not reach stopped state", "error", err)
		}
	}

	if err := c.rt.Wipe(); err != nil {
		slog.Warn("rollback wipe failed", "error", err)
	}
}

func (c *Coordinator) ensureStopped(ctx context.Context) error {
	switch c.rt.State() {
	case StateStopped:
		return nil
	case StateStarted, StateStarting:
		if err := c.rt.Stop(ctx); err != nil {
			return err
		}
	case StateStopping:
		// Another transition's stop is still draining; just wait.
	}
	return c.waitForState(ctx, StateStopped)
}

func (c *Coordinator) waitReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()
	return c.rt.WaitReady(readyCtx)
}

// waitForState polls the runtime until it reaches want, failing fast when
// it lands on a different terminal state instead.
func (c *Coordinator) waitForState(ctx context.Context, want RunState) error {
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()

	for {
		st := c.rt.State()
		if st == want {
			return nil
		}
		if terminal(st) && st != want {
			return fmt.Errorf("runtime settled at %s, wanted %s", st, want)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", want, ctx.Err())
		case <-t.C:
		}
	}
}

func terminal(st RunState) bool {
	return st == StateStopped || st == StateStarted
}

func (c *Coordinator) recordTransition(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.MembershipTransitionsTotal.WithLabelValues(kind, status).Inc()
}
