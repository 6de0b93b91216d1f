// Package handler contains the gRPC endpoints, thin shims that translate
// between wire types and the node's runtime.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuplespace/internal/command"
	"tuplespace/internal/node"
	"tuplespace/internal/transport/rpc"
	"tuplespace/internal/tuple"
)

// SpaceBackend is the slice of the runtime the data-plane endpoints use.
type SpaceBackend interface {
	ProcessCommand(ctx context.Context, req *command.Request) (*command.Response, error)
	Out(ctx context.Context, space string, t tuple.Tuple) error
	In(ctx context.Context, space string, p tuple.Pattern) (tuple.Tuple, error)
	Rd(ctx context.Context, space string, p tuple.Pattern) (tuple.Tuple, error)
}

type SpaceHandler struct {
	backend SpaceBackend
}

func NewSpaceHandler(backend SpaceBackend) *SpaceHandler {
	return &SpaceHandler{backend: backend}
}

// ProcessCommand is the node-to-node forwarding path. Domain failures ride
// inside the response; only transport-level problems become status errors.
func (h *SpaceHandler) ProcessCommand(ctx context.Context, req *command.Request) (*command.Response, error) {
	resp, err := h.backend.ProcessCommand(ctx, req)
	if resp != nil {
		return resp, nil
	}
	return nil, toStatusError(err)
}

func (h *SpaceHandler) Out(ctx context.Context, req *rpc.OutRequest) (*rpc.OpResponse, error) {
	err := h.backend.Out(ctx, req.Space, req.Tuple)
	if err == nil {
		return &rpc.OpResponse{OK: true}, nil
	}

	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		return &rpc.OpResponse{Error: cmdErr}, nil
	}
	return nil, toStatusError(err)
}

func (h *SpaceHandler) In(ctx context.Context, req *rpc.MatchRequest) (*rpc.TupleReply, error) {
	return h.match(ctx, req, h.backend.In)
}

func (h *SpaceHandler) Rd(ctx context.Context, req *rpc.MatchRequest) (*rpc.TupleReply, error) {
	return h.match(ctx, req, h.backend.Rd)
}

func (h *SpaceHandler) match(
	ctx context.Context,
	req *rpc.MatchRequest,
	op func(context.Context, string, tuple.Pattern) (tuple.Tuple, error),
) (*rpc.TupleReply, error) {
	t, err := op(ctx, req.Space, req.Pattern)
	if err == nil {
		return &rpc.TupleReply{Tuple: t}, nil
	}

	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		return &rpc.TupleReply{Error: cmdErr}, nil
	}

	slog.Debug("match operation ended without result",
		"space", req.Space,
		"pattern", req.Pattern.String(),
		"error", err,
	)
	return nil, toStatusError(err)
}

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, node.ErrNotStarted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
