package handler

import (
	"context"
	"log/slog"

	"tuplespace/internal/transport/rpc"
)

// MembershipCoordinator is the admin-facing surface of the membership
// coordinator.
type MembershipCoordinator interface {
	Create(ctx context.Context, space string, force bool) error
	Join(ctx context.Context, peerAddr string) error
	Leave(ctx context.Context) error
	Nodes() ([]rpc.NodeInfo, error)
}

type AdminHandler struct {
	coordinator MembershipCoordinator
}

func NewAdminHandler(coordinator MembershipCoordinator) *AdminHandler {
	return &AdminHandler{coordinator: coordinator}
}

// Transition failures are reported in-band so the CLI can print the
// reason; the transitions themselves already rolled back.

func (h *AdminHandler) Create(ctx context.Context, req *rpc.CreateRequest) (*rpc.AdminResponse, error) {
	slog.Info("admin: found space", "space", req.Space, "force", req.Force)

	if err := h.coordinator.Create(ctx, req.Space, req.Force); err != nil {
		return &rpc.AdminResponse{Message: err.Error()}, nil
	}
	return &rpc.AdminResponse{OK: true}, nil
}

func (h *AdminHandler) Join(ctx context.Context, req *rpc.JoinClusterRequest) (*rpc.AdminResponse, error) {
	slog.Info("admin: join space", "peer", req.PeerAddr)

	if err := h.coordinator.Join(ctx, req.PeerAddr); err != nil {
		return &rpc.AdminResponse{Message: err.Error()}, nil
	}
	return &rpc.AdminResponse{OK: true}, nil
}

func (h *AdminHandler) Leave(ctx context.Context, _ *rpc.LeaveClusterRequest) (*rpc.AdminResponse, error) {
	slog.Info("admin: leave space")

	if err := h.coordinator.Leave(ctx); err != nil {
		return &rpc.AdminResponse{Message: err.Error()}, nil
	}
	return &rpc.AdminResponse{OK: true}, nil
}

func (h *AdminHandler) Nodes(_ context.Context, _ *rpc.ListNodesRequest) (*rpc.ListNodesResponse, error) {
	nodes, err := h.coordinator.Nodes()
	if err != nil {
		return nil, toStatusError(err)
	}
	return &rpc.ListNodesResponse{Nodes: nodes}, nil
}
