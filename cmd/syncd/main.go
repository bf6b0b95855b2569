package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neboman11/any-player-sync-server/internal/config"
	"github.com/neboman11/any-player-sync-server/internal/database"
	"github.com/neboman11/any-player-sync-server/internal/document"
	"github.com/neboman11/any-player-sync-server/internal/notify"
	"github.com/neboman11/any-player-sync-server/internal/server"
)

var (
	cfgFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "syncd",
		Short:        "Versioned document sync server for Any Player clients",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(verbose bool, level string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	if level != "" {
		var parsed zapcore.Level
		if err := parsed.UnmarshalText([]byte(level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	return zapConfig.Build()
}

func runServe() error {
	ctx := context.Background()

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := setupLogger(verbose, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("bindAddress", cfg.Server.BindAddress),
		zap.String("storageMode", cfg.Storage.Mode),
		zap.String("database", cfg.Database.URLSafe()),
		zap.Int("broadcastBufferSize", cfg.Broadcast.BufferSize),
		zap.Int64("maxBodySize", cfg.Server.MaxBodySize),
	)

	var store document.Store
	switch cfg.Storage.Mode {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL())
		if err != nil {
			logger.Error("failed to connect to postgres", zap.Error(err))
			return err
		}
		defer pool.Close()

		pgStore := document.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", zap.Error(err))
			return err
		}
		store = pgStore
	case "memory":
		logger.Warn("storage.mode is 'memory', the document will not survive a restart")
		store = document.NewMemoryStore()
	default:
		return fmt.Errorf("unknown storage mode: %s", cfg.Storage.Mode)
	}

	broadcaster := notify.NewBroadcaster(cfg.Broadcast.BufferSize, logger)

	srv := server.NewServer(store, broadcaster, cfg, logger)
	router := server.NewRouter(srv, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.BindAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("sync server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	// Wake every delivery session; the sessions close their own sockets.
	broadcaster.Close()

	logger.Info("server stopped")
	return nil
}
