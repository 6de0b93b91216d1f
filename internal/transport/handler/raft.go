package handler

import (
	"context"

	"tuplespace/internal/transport/rpc"
)

// RaftBackend is the slice of the runtime the peer endpoints use.
type RaftBackend interface {
	HandleRaftMessage(ctx context.Context, data []byte) error
	GetReadIndex(ctx context.Context) (uint64, error)
	HandleJoin(ctx context.Context, req *rpc.JoinRequest) (*rpc.JoinResponse, error)
	HandleLeave(ctx context.Context, req *rpc.LeaveRequest) (*rpc.LeaveResponse, error)
}

type RaftHandler struct {
	backend RaftBackend
}

func NewRaftHandler(backend RaftBackend) *RaftHandler {
	return &RaftHandler{backend: backend}
}

func (h *RaftHandler) SendRaftMessage(ctx context.Context, req *rpc.RaftMessage) (*rpc.RaftMessageAck, error) {
	if err := h.backend.HandleRaftMessage(ctx, req.Data); err != nil {
		return nil, toStatusError(err)
	}
	return &rpc.RaftMessageAck{}, nil
}

func (h *RaftHandler) GetReadIndex(ctx context.Context, _ *rpc.GetReadIndexRequest) (*rpc.GetReadIndexResponse, error) {
	idx, err := h.backend.GetReadIndex(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &rpc.GetReadIndexResponse{ReadIndex: idx}, nil
}

func (h *RaftHandler) RequestJoin(ctx context.Context, req *rpc.JoinRequest) (*rpc.JoinResponse, error) {
	resp, err := h.backend.HandleJoin(ctx, req)
	if err != nil {
		return nil, toStatusError(err)
	}
	return resp, nil
}

func (h *RaftHandler) RequestLeave(ctx context.Context, req *rpc.LeaveRequest) (*rpc.LeaveResponse, error) {
	resp, err := h.backend.HandleLeave(ctx, req)
	if err != nil {
		return nil, toStatusError(err)
	}
	return resp, nil
}
