package main

import (
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"dealflow/internal/grpcserver"
	"dealflow/internal/logging"
	"dealflow/internal/store"
	"dealflow/pkg/database"
	"dealflow/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig(utils.ConfigPath())
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if _, err := logging.Init(cfg.Logging); err != nil {
		log.Fatalf("init logging failed: %v", err)
	}
	defer logging.Close()

	db := database.MustOpen(cfg.Database.Options())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	listener, err := net.Listen("tcp", cfg.Grpc.Addr)
	if err != nil {
		log.Fatalf("grpc listen failed: %v", err)
	}

	grpcServer := grpc.NewServer()
	grpcserver.RegisterInsightsServer(grpcServer, grpcserver.NewServer(store.New(db)))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig.String())
		grpcServer.GracefulStop()
	}()

	slog.Info("gRPC server listening", "addr", cfg.Grpc.Addr, "service", grpcserver.ServiceName)
	if err := grpcServer.Serve(listener); err != nil {
		log.Fatalf("grpc server stopped: %v", err)
	}
}
