package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tuplespace/internal/configuration"
	"tuplespace/internal/logging"
	"tuplespace/internal/membership"
	"tuplespace/internal/metrics"
	"tuplespace/internal/node"
	"tuplespace/internal/transport"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg, err := configuration.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Init(cfg.App.LogLevel)
	slog.Info("starting tuplespaced",
		"node_id", cfg.Cluster.NodeID,
		"profile", cfg.App.Profile,
	)

	runtime := node.NewRuntime(cfg)
	coordinator := membership.NewCoordinator(runtime,
		cfg.Space.PollIntervalDuration(),
		cfg.Space.ReadyTimeoutDuration(),
	)

	metricsServer := metrics.NewServer(cfg.Transport.MetricsAddr())
	metricsServer.Start()

	servers := transport.NewService(&cfg.Transport, runtime, runtime, coordinator)
	if err := servers.Start(); err != nil {
		slog.Error("failed to start transport", "error", err)
		metricsServer.Stop()
		os.Exit(1)
	}

	// A node that was part of a space when it went down resumes its
	// membership; a fresh node waits for an admin create or join.
	if runtime.HasState() {
		slog.Info("found existing replicated state, resuming membership")
		if err := runtime.Start(ctx, false, nil); err != nil {
			slog.Error("failed to resume membership, staying idle", "error", err)
		}
	} else {
		slog.Info("no replicated state, waiting for create or join")
	}

	slog.Info("tuplespaced ready",
		"client_addr", cfg.Transport.ClientAddr(),
		"raft_addr", cfg.Transport.RaftAddr(),
	)
	<-ctx.Done()

	slog.Info("shutting down")
	servers.Stop()
	if err := runtime.Shutdown(context.Background()); err != nil {
		slog.Error("runtime shutdown failed", "error", err)
	}
	metricsServer.Stop()
}
