package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/syu-y/card-tictactoe/internal/config"
	"github.com/syu-y/card-tictactoe/internal/repository"
	"github.com/syu-y/card-tictactoe/internal/room"
	"github.com/syu-y/card-tictactoe/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting card tic-tac-toe server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Match history store
	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	recorder, err := repository.New(connectCtx, cfg.Database, logger)
	connectCancel()
	if err != nil {
		logger.Fatal("failed to open match history store", zap.Error(err))
	}
	defer recorder.Close()

	roomMgr := room.NewManager(room.ManagerOptions{
		Room: room.Options{
			StartDelay:    cfg.Game.StartDelay,
			RecordTimeout: cfg.Database.WriteTimeout,
			Recorder:      recorder,
		},
		IdleRoomTTL: cfg.Game.IdleRoomTTL,
	}, logger)
	logger.Info("room manager initialized",
		zap.Duration("start_delay", cfg.Game.StartDelay),
		zap.Duration("idle_room_ttl", cfg.Game.IdleRoomTTL),
	)

	go roomMgr.SweepIdle(ctx, cfg.Game.SweepInterval)

	httpServer := server.NewHTTPServer(server.HTTPServerOptions{
		Config:       cfg.Server,
		Rooms:        roomMgr,
		Recorder:     recorder,
		HistoryLimit: cfg.Database.HistoryLimit,
		Logger:       logger,
	})
	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, roomMgr, logger)
	go grpcServer.WatchRooms(ctx, cfg.Game.SweepInterval, cfg.Game.MaxRooms)

	go func() {
		if serveErr := grpcServer.Start(); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	go func() {
		if httpErr := httpServer.Start(); httpErr != nil {
			logger.Error("HTTP server error", zap.Error(httpErr))
		}
	}()

	logger.Info("server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("database_driver", cfg.Database.Driver),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	roomMgr.CloseAll()
	grpcServer.Stop()

	logger.Info("server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
