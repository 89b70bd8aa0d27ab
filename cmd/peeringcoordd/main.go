// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command peeringcoordd is the peering coordinator daemon: it loads its
// HCL configuration, opens the sqlite store, and serves the Peering and
// Info gRPC services over a persistent listener until terminated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"netsys.dev/peeringcoord/internal/auth"
	"netsys.dev/peeringcoord/internal/config"
	"netsys.dev/peeringcoord/internal/ctlplane"
	"netsys.dev/peeringcoord/internal/infosvc"
	"netsys.dev/peeringcoord/internal/logging"
	"netsys.dev/peeringcoord/internal/metrics"
	"netsys.dev/peeringcoord/internal/pb"
	"netsys.dev/peeringcoord/internal/registry"
	"netsys.dev/peeringcoord/internal/resolver"
	"netsys.dev/peeringcoord/internal/store"
)

func main() {
	configPath := flag.String("config", "peeringcoord.hcl", "path to the daemon's HCL configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "peeringcoordd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.LogLevel),
	})))
	logging.SetDefault(logger)

	if undo, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...any) {
		logger.Info(fmt.Sprintf(format, a...), "component", "automaxprocs")
	})); err != nil {
		logger.Warn("automaxprocs: failed to adjust GOMAXPROCS", "error", err)
	} else {
		defer undo()
	}

	if cfg.BootstrapAdminToken != "" {
		if _, err := auth.HashBootstrapToken(string(cfg.BootstrapAdminToken)); err != nil {
			return fmt.Errorf("bootstrap admin token: %w", err)
		}
		logger.Info("bootstrap admin token configured and hashed")
	}

	s, err := store.Open(cfg.DBPath, logger.WithComponent("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	res := resolver.New(s, logger.WithComponent("resolver"))
	reg := registry.New(logger.WithComponent("registry"))
	authenticator := auth.New(s)

	peeringSrv := ctlplane.NewPeeringServer(s, res, reg, logger.WithComponent("ctlplane"))
	infoSrv := infosvc.New(s)

	metricsReg := metrics.Get()
	collector := metrics.NewCollector(s, reg, logger.WithComponent("metrics"), pollInterval(cfg.Metrics.PollInterval))
	go collector.Start()
	defer collector.Stop()

	creds, err := transportCredentials(cfg.TLS)
	if err != nil {
		return fmt.Errorf("load TLS credentials: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(metricsReg.UnaryInterceptor, authenticator.UnaryInterceptor),
		grpc.ChainStreamInterceptor(metricsReg.StreamInterceptor, authenticator.StreamInterceptor),
	)
	pb.RegisterPeeringServer(grpcServer, peeringSrv)
	pb.RegisterInfoServer(grpcServer, infoSrv)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	metricsServer := &http.Server{Addr: cfg.Metrics.Listen, Handler: promhttp.Handler()}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.Listen)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Metrics.Listen)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}

	return nil
}

// transportCredentials returns insecure.NewCredentials() when tls is nil,
// matching the optional-TLS branch shape of the teacher's cloud client
// setup: TLS is opt-in, never assumed.
func transportCredentials(tls *config.TLSConfig) (credentials.TransportCredentials, error) {
	if tls == nil {
		return insecure.NewCredentials(), nil
	}
	return credentials.NewServerTLSFromFile(tls.CertFile, tls.KeyFile)
}

func pollInterval(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
