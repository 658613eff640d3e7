package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/trustfunds/internal/auth"
	"github.com/blues/trustfunds/internal/chain"
	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/database"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/blues/trustfunds/internal/logic"
	"github.com/blues/trustfunds/internal/metrics"
	"github.com/blues/trustfunds/internal/middleware"
	"github.com/blues/trustfunds/internal/router"
	"github.com/blues/trustfunds/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownGrace = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the chain retry job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context())
		},
	}
}

// newBridge 沙箱模式下不连接节点
func newBridge(ctx context.Context, cfg config.ChainConfig, m *metrics.Metrics) (chain.Bridge, error) {
	if cfg.Sandbox {
		return chain.NewSandboxBridge(cfg), nil
	}
	return chain.NewClient(ctx, cfg, m)
}

func serveRun(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// gin 与标准库日志统一输出到 zap
	restoreStdLog := zap.RedirectStdLog(logger.GetDefaultZapLogger())
	defer restoreStdLog()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	db, err := database.Init(cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	m := metrics.New()

	// 初始化链客户端
	bridge, err := newBridge(ctx, cfg.Chain, m)
	if err != nil {
		return fmt.Errorf("failed to initialize chain bridge: %w", err)
	}
	defer bridge.Close()
	logger.Info("Chain bridge ready, sender %s", bridge.SenderAddress())

	creds, err := auth.NewCredentials(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	limiter.StartCleanup(ctx.Done(), time.Minute)

	// 启动定时任务
	if cfg.Task.Enabled {
		job, err := task.NewCampaignRetryJob(logic.NewCampaignLogic(db, bridge, cfg), cfg.Task, m)
		if err != nil {
			return err
		}
		defer job.Release()

		manager, err := task.NewManager(job)
		if err != nil {
			return err
		}
		if err := manager.Start(); err != nil {
			return err
		}
		defer manager.Stop()
	}

	r := router.Setup(router.Deps{
		DB:          db,
		Bridge:      bridge,
		Credentials: creds,
		Metrics:     m,
		RateLimiter: limiter,
		Config:      cfg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
