package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tuplespace/internal/metrics"
	"tuplespace/internal/space"
)

// Replicator is the replication substrate the command service depends on.
// Production wiring satisfies it with the raft service; tests use a
// single-node fake that applies proposals straight back into the service.
type Replicator interface {
	Propose(ctx context.Context, data []byte) error
	GetReadIndex(ctx context.Context) (uint64, error)
	WaitUntilApplied(ctx context.Context, index uint64) error
	IsLeader() bool
	LeaderID() uint64
	NodeID() uint64
	ForwardToLeader(ctx context.Context, req *Request) (*Response, error)
}

// Service validates incoming operations, routes writes through the
// replicated log, executes committed entries against the registry, and
// delivers responses back to the proposer via the pending registry.
type Service struct {
	registry *space.Registry

	// replicator is swapped on membership transitions while blocked in/rd
	// retries may still be in flight, so access goes through the getter.
	replicatorMu sync.RWMutex
	replicator   Replicator

	pendingMu sync.RWMutex
	pending   map[uint64]chan *Response
	nextID    atomic.Uint64
}

func NewService(registry *space.Registry) *Service {
	return &Service{
		registry: registry,
		pending:  make(map[uint64]chan *Response),
	}
}

// SetReplicator breaks the construction cycle between the raft service
// (which needs Apply) and this service (which needs Propose). Passing nil
// detaches the service when the node leaves its space.
func (s *Service) SetReplicator(r Replicator) {
	s.replicatorMu.Lock()
	s.replicator = r
	s.replicatorMu.Unlock()
}

func (s *Service) currentReplicator() Replicator {
	s.replicatorMu.RLock()
	defer s.replicatorMu.RUnlock()
	return s.replicator
}

func (s *Service) Registry() *space.Registry { return s.registry }

// ProcessCommand is the entry point for client operations. Reads are
// linearized against the applied index; writes are proposed through the
// log, forwarding to the leader when necessary.
func (s *Service) ProcessCommand(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	op := string(req.Type)

	if err := s.validate(req); err != nil {
		metrics.OperationsTotal.WithLabelValues(op, "invalid").Inc()
		return ErrorResponse(req.EventID, CodeInvalid, err.Error()), err
	}

	var resp *Response
	var err error

	switch req.Type {
	case OpRead:
		resp, err = s.processRead(ctx, req)
	case OpOut, OpTake, OpCreateSpace, OpDropSpace:
		resp, err = s.processModify(ctx, req)
	default:
		err = fmt.Errorf("%w: unknown type %s", ErrInvalidCommand, req.Type)
		metrics.OperationsTotal.WithLabelValues(op, "invalid").Inc()
		return ErrorResponse(req.EventID, CodeInvalid, err.Error()), err
	}

	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil || (resp != nil && !resp.Success) {
		status = "error"
	}
	metrics.OperationsTotal.WithLabelValues(op, status).Inc()

	return resp, err
}

func (s *Service) processRead(ctx context.Context, req *Request) (*Response, error) {
	rep := s.currentReplicator()
	if rep == nil {
		return s.unavailable(req), nil
	}

	readIndex, err := rep.GetReadIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("get read index: %w", err)
	}

	if err := rep.WaitUntilApplied(ctx, readIndex); err != nil {
		return nil, fmt.Errorf("wait for applied: %w", err)
	}

	return s.executeRead(req), nil
}

func (s *Service) executeRead(req *Request) *Response {
	bag, ok := s.registry.Get(req.Space)
	if !ok {
		return ErrorResponse(req.EventID, CodeNoSuchSpace,
			fmt.Sprintf("space %q not found", req.Space))
	}

	t, found := bag.Read(req.Pattern)
	if !found {
		return ErrorResponse(req.EventID, CodeNoMatch, "no matching tuple")
	}
	return TupleResponse(req.EventID, t)
}

func (s *Service) processModify(ctx context.Context, req *Request) (*Response, error) {
	rep := s.currentReplicator()
	if rep == nil {
		return s.unavailable(req), nil
	}

	if !rep.IsLeader() {
		return rep.ForwardToLeader(ctx, req)
	}

	// The proposing node owns the event id. Applies match on proposer and
	// id together, so a stale waiter on a deposed leader cannot receive a
	// response meant for another node's proposal.
	req.EventID = s.NextEventID()
	req.ProposerID = rep.NodeID()

	respCh := make(chan *Response, 1)
	s.RegisterPending(req.EventID, respCh)
	defer s.UnregisterPending(req.EventID)

	data, err := EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	if err := rep.Propose(ctx, data); err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		slog.Warn("proposal wait canceled", "event_id", req.EventID, "type", req.Type)
		return nil, ctx.Err()
	}
}

// Apply executes one committed log entry against the registry. It runs on
// every replica in log order; that ordering is what makes TAKE exclusive.
// Only the proposing node delivers the response to its pending waiter.
func (s *Service) Apply(data []byte) ([]byte, error) {
	req, err := DecodeRequest(data)
	if err != nil {
		return nil, err
	}

	resp := s.execute(req)
	if rep := s.currentReplicator(); rep != nil && req.ProposerID == rep.NodeID() {
		s.notifyPending(req.EventID, resp)
	}
	return nil, nil
}

// ApplyReplay executes an entry during recovery without response delivery.
func (s *Service) ApplyReplay(data []byte) error {
	req, err := DecodeRequest(data)
	if err != nil {
		return err
	}
	s.execute(req)
	return nil
}

func (s *Service) execute(req *Request) *Response {
	switch req.Type {
	case OpCreateSpace:
		if err := s.registry.Create(req.Space, req.Recreate); err != nil {
			return ErrorResponse(req.EventID, CodeSpaceExists, err.Error())
		}
		return SuccessResponse(req.EventID)

	case OpDropSpace:
		if err := s.registry.Drop(req.Space); err != nil {
			return ErrorResponse(req.EventID, CodeNoSuchSpace, err.Error())
		}
		return SuccessResponse(req.EventID)

	case OpOut:
		bag, ok := s.registry.Get(req.Space)
		if !ok {
			return ErrorResponse(req.EventID, CodeNoSuchSpace,
				fmt.Sprintf("space %q not found", req.Space))
		}
		bag.Add(req.Tuple)
		return SuccessResponse(req.EventID)

	case OpTake:
		bag, ok := s.registry.Get(req.Space)
		if !ok {
			return ErrorResponse(req.EventID, CodeNoSuchSpace,
				fmt.Sprintf("space %q not found", req.Space))
		}
		t, found := bag.Take(req.Pattern)
		if !found {
			return ErrorResponse(req.EventID, CodeNoMatch, "no matching tuple")
		}
		return TupleResponse(req.EventID, t)

	default:
		return ErrorResponse(req.EventID, CodeInvalid,
			fmt.Sprintf("unknown type: %s", req.Type))
	}
}

func (s *Service) NextEventID() uint64 {
	return s.nextID.Add(1)
}

func (s *Service) RegisterPending(eventID uint64, ch chan *Response) {
	s.pendingMu.Lock()
	s.pending[eventID] = ch
	s.pendingMu.Unlock()
}

func (s *Service) UnregisterPending(eventID uint64) {
	s.pendingMu.Lock()
	delete(s.pending, eventID)
	s.pendingMu.Unlock()
}

func (s *Service) notifyPending(eventID uint64, resp *Response) {
	s.pendingMu.RLock()
	ch, ok := s.pending[eventID]
	s.pendingMu.RUnlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (s *Service) unavailable(req *Request) *Response {
	return ErrorResponse(req.EventID, CodeUnavailable, "replication is not running")
}

func (s *Service) NodeID() uint64 {
	rep := s.currentReplicator()
	if rep == nil {
		return 0
	}
	return rep.NodeID()
}

func (s *Service) LeaderInfo() (uint64, bool) {
	rep := s.currentReplicator()
	if rep == nil {
		return 0, false
	}
	return rep.LeaderID(), rep.IsLeader()
}

func (s *Service) validate(req *Request) error {
	if req.Space == "" {
		return errors.New("space name is required")
	}

	switch req.Type {
	case OpOut:
		if len(req.Tuple) == 0 {
			return errors.New("OUT requires a non-empty tuple")
		}
	case OpTake, OpRead:
		if len(req.Pattern) == 0 {
			return fmt.Errorf("%s requires a non-empty pattern", req.Type)
		}
	case OpCreateSpace, OpDropSpace:
		if len(req.Tuple) != 0 || len(req.Pattern) != 0 {
			return fmt.Errorf("%s does not accept a tuple or pattern", req.Type)
		}
	default:
		return fmt.Errorf("unknown command type: %s", req.Type)
	}

	return nil
}
