// Package engine implements the client-visible tuple space operations.
// out is a plain replicated write; in and rd block until a match exists,
// suspending on the local bag's insert wave between attempts. Every
// attempt goes through the replicated command path, so a take that wins
// did so in log order on every replica.
package engine

import (
	"context"
	"fmt"
	"time"

	"tuplespace/internal/command"
	"tuplespace/internal/metrics"
	"tuplespace/internal/space"
	"tuplespace/internal/tuple"
)

// CommandProcessor is the slice of the command service the engine needs.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, req *command.Request) (*command.Response, error)
}

type Engine struct {
	commands CommandProcessor
	registry *space.Registry

	// retryBackoff bounds the wait between attempts even without a local
	// insert wave, covering tuples that arrive via replication while the
	// space did not exist locally yet.
	retryBackoff time.Duration
}

func New(commands CommandProcessor, registry *space.Registry, retryBackoff time.Duration) *Engine {
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}
	return &Engine{
		commands:     commands,
		registry:     registry,
		retryBackoff: retryBackoff,
	}
}

// Out inserts one tuple. Duplicates are legal; the bag is a multiset.
func (e *Engine) Out(ctx context.Context, spaceName string, t tuple.Tuple) error {
	resp, err := e.commands.ProcessCommand(ctx, &command.Request{
		Type:  command.OpOut,
		Space: spaceName,
		Tuple: t,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.Error
	}
	return nil
}

// In takes one matching tuple, removing it. Blocks until a match exists
// or ctx ends; concurrent callers for the same tuple are serialized by
// the log, exactly one wins each tuple.
func (e *Engine) In(ctx context.Context, spaceName string, p tuple.Pattern) (tuple.Tuple, error) {
	return e.await(ctx, command.OpTake, spaceName, p)
}

// Rd reads one matching tuple without removing it. Blocks like In.
func (e *Engine) Rd(ctx context.Context, spaceName string, p tuple.Pattern) (tuple.Tuple, error) {
	return e.await(ctx, command.OpRead, spaceName, p)
}

func (e *Engine) await(ctx context.Context, op command.OpType, spaceName string, p tuple.Pattern) (tuple.Tuple, error) {
	for {
		// Grab the wave before the attempt. An insert that lands between
		// the failed attempt and the wait closes this wave, so the retry
		// cannot miss it.
		var wave <-chan struct{}
		if bag, ok := e.registry.Get(spaceName); ok {
			wave = bag.InsertWave()
		}

		resp, err := e.commands.ProcessCommand(ctx, &command.Request{
			Type:    op,
			Space:   spaceName,
			Pattern: p,
		})
		if err != nil {
			return nil, err
		}
		if resp.Success {
			return resp.Tuple, nil
		}
		if !resp.NoMatch() {
			return nil, resp.Error
		}

		if err := e.suspend(ctx, wave); err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, spaceName, err)
		}
	}
}

func (e *Engine) suspend(ctx context.Context, wave <-chan struct{}) error {
	metrics.BlockedWaiters.Inc()
	defer metrics.BlockedWaiters.Dec()

	timer := time.NewTimer(e.retryBackoff)
	defer timer.Stop()

	select {
	case <-wave:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
