// Package transport hosts the two gRPC servers a node runs: the raft
// server for peer traffic and the client server for the space and admin
// surfaces. Both stay up for the process lifetime; the handlers reject
// data-plane calls while the node is not part of a space.
package transport

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"tuplespace/internal/configuration"
	"tuplespace/internal/metrics"
	"tuplespace/internal/transport/handler"
	"tuplespace/internal/transport/rpc"
)

type Service struct {
	cfg *configuration.TransportProperties

	spaceHandler *handler.SpaceHandler
	raftHandler  *handler.RaftHandler
	adminHandler *handler.AdminHandler

	RaftServer   *grpc.Server
	ClientServer *grpc.Server
}

func NewService(
	cfg *configuration.TransportProperties,
	space handler.SpaceBackend,
	raft handler.RaftBackend,
	admin handler.MembershipCoordinator,
) *Service {
	return &Service{
		cfg:          cfg,
		spaceHandler: handler.NewSpaceHandler(space),
		raftHandler:  handler.NewRaftHandler(raft),
		adminHandler: handler.NewAdminHandler(admin),
	}
}

func (s *Service) Start() error {
	if err := s.startRaftServer(); err != nil {
		return err
	}
	if err := s.startClientServer(); err != nil {
		s.RaftServer.Stop()
		return err
	}
	return nil
}

func (s *Service) startRaftServer() error {
	lis, err := net.Listen(s.cfg.Network, s.cfg.RaftAddr())
	if err != nil {
		return fmt.Errorf("listen on raft addr: %w", err)
	}

	s.RaftServer = grpc.NewServer(
		grpc.MaxConcurrentStreams(s.cfg.MaxConcurrentStreams),
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()),
	)

	rpc.RegisterRaftTransportServiceServer(s.RaftServer, s.raftHandler)
	reflection.Register(s.RaftServer)

	slog.Info("listening for raft peers", "addr", lis.Addr())
	go s.serve(s.RaftServer, lis, "raft")
	return nil
}

func (s *Service) startClientServer() error {
	lis, err := net.Listen(s.cfg.Network, s.cfg.ClientAddr())
	if err != nil {
		return fmt.Errorf("listen on client addr: %w", err)
	}

	// No server-side timeout here: in and rd block for as long as the
	// caller's context allows.
	s.ClientServer = grpc.NewServer(
		grpc.MaxConcurrentStreams(s.cfg.MaxConcurrentStreams),
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()),
	)

	rpc.RegisterSpaceServiceServer(s.ClientServer, s.spaceHandler)
	rpc.RegisterAdminServiceServer(s.ClientServer, s.adminHandler)
	reflection.Register(s.ClientServer)

	slog.Info("listening for clients", "addr", lis.Addr())
	go s.serve(s.ClientServer, lis, "client")
	return nil
}

func (s *Service) serve(srv *grpc.Server, lis net.Listener, name string) {
	if err := srv.Serve(lis); err != nil {
		slog.Error("grpc server stopped", "server", name, "error", err)
	}
}

func (s *Service) Stop() {
	if s.ClientServer != nil {
		s.ClientServer.GracefulStop()
	}
	if s.RaftServer != nil {
		s.RaftServer.GracefulStop()
	}
	slog.Info("transport stopped")
}
