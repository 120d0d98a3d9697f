package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/config"
	"github.com/shibacoder/shibacoder-backend/internal/httpapi"
	"github.com/shibacoder/shibacoder-backend/internal/hub"
	"github.com/shibacoder/shibacoder-backend/internal/judge"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var grader judge.Runner
	if cfg.JudgeConfigured() {
		grader = judge.NewJudge0(cfg.Judge0BaseURL, cfg.Judge0APIKey, cfg.Judge0APIHost, logger)
		logger.Info("using judge0 code judge", zap.String("host", cfg.Judge0APIHost))
	} else {
		grader = judge.NewHeuristic()
		logger.Warn("JUDGE0_API_KEY not set, using heuristic grader")
	}

	h := hub.NewHub(ctx, hub.Config{Grader: grader, Logger: logger})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.SetupRoutes(h, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
