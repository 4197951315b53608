package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sessionkeys/starknet-session/go/internal/config"
	"github.com/sessionkeys/starknet-session/go/internal/logger"
	"github.com/sessionkeys/starknet-session/go/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger first
	zlog, restore, err := logger.Init(cfg.Logger)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer restore()
	defer func() { _ = zlog.Sync() }()

	if cfg.Logger.Stage == logger.StageProd {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(
		server.WithLogger(zlog),
		server.WithDefaultVersion(cfg.DefaultVersion),
	)
	if err != nil {
		zlog.Fatal("failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, cfg.Addr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
