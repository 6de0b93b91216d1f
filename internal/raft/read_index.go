package raft

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	etcdraft "go.etcd.io/raft/v3"

	"tuplespace/internal/metrics"
)

// GetReadIndex obtains a linearizable read barrier. etcd raft forwards the
// request to the leader when called on a follower, so any node can serve it.
func (s *Service) GetReadIndex(ctx context.Context) (uint64, error) {
	idx, err := s.doReadIndex(ctx)
	if err != nil {
		metrics.ReadIndexTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.ReadIndexTotal.WithLabelValues("success").Inc()
	return idx, nil
}

func (s *Service) doReadIndex(ctx context.Context) (uint64, error) {
	// The request context must be unique per call; raft echoes it back in
	// the matching ReadState.
	reqCtx := []byte(uuid.NewString())
	reqCtxKey := string(reqCtx)

	ch := make(chan uint64, 1)
	s.registerReadWaiter(reqCtxKey, ch)
	defer s.unregisterReadWaiter(reqCtxKey)

	if err := s.Node.ReadIndex(ctx, reqCtx); err != nil {
		return 0, fmt.Errorf("ReadIndex: %w", err)
	}

	select {
	case idx := <-ch:
		return idx, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stopCh:
		return 0, ErrStopped
	}
}

// WaitUntilApplied blocks until the local applied index reaches index.
func (s *Service) WaitUntilApplied(ctx context.Context, index uint64) error {
	if s.LastApplied() >= index {
		return nil
	}

	key := fmt.Sprintf("applied-%d-%d", index, s.NextRequestID())
	ch := make(chan uint64, 1)

	s.readMu.Lock()
	s.readWaiters[key] = &readWaiter{index: index, ch: ch}
	s.readMu.Unlock()
	defer s.unregisterReadWaiter(key)

	// Re-check after registering, the apply loop may have raced past.
	if s.LastApplied() >= index {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return ErrStopped
	}
}

// HandleReadStates resolves pending read barriers against the raft-chosen
// read index, completing waiters whose index has already been applied.
func (s *Service) HandleReadStates(readStates []etcdraft.ReadState) {
	if len(readStates) == 0 {
		return
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	lastApplied := s.LastApplied()

	for _, rs := range readStates {
		ctxKey := string(rs.RequestCtx)
		waiter, ok := s.readWaiters[ctxKey]
		if !ok {
			continue
		}

		if rs.Index > waiter.index {
			waiter.index = rs.Index
		}

		if lastApplied >= waiter.index {
			select {
			case waiter.ch <- waiter.index:
			default:
			}
			delete(s.readWaiters, ctxKey)
		}
	}
}

func (s *Service) completeReadWaiters(lastApplied uint64) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for ctxKey, w := range s.readWaiters {
		if w == nil || w.index == 0 {
			continue
		}
		if lastApplied >= w.index {
			select {
			case w.ch <- w.index:
			default:
			}
			delete(s.readWaiters, ctxKey)
		}
	}
}

func (s *Service) registerReadWaiter(key string, ch chan uint64) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	s.readWaiters[key] = &readWaiter{index: 0, ch: ch}
}

func (s *Service) unregisterReadWaiter(key string) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	delete(s.readWaiters, key)
}
