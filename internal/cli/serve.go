package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/sparkcoach/internal/config"
	"github.com/lazypower/sparkcoach/internal/engine"
	"github.com/lazypower/sparkcoach/internal/llm"
	"github.com/lazypower/sparkcoach/internal/logger"
	"github.com/lazypower/sparkcoach/internal/server"
	"github.com/lazypower/sparkcoach/internal/store"
	"github.com/lazypower/sparkcoach/internal/vault"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the scheduled sweep",
	RunE:  runServe,
}

// runtime holds everything a process needs to run the engine.
type runtime struct {
	cfg    config.Config
	log    *logger.Logger
	db     *store.DB
	vault  vault.Gateway
	engine *engine.Engine
	closer []func() error
}

func (rt *runtime) Close() {
	for i := len(rt.closer) - 1; i >= 0; i-- {
		if err := rt.closer[i](); err != nil {
			rt.log.Warn("close failed", "error", err)
		}
	}
	rt.log.Sync()
}

func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	rt.db, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.closer = append(rt.closer, rt.db.Close)

	switch cfg.Vault.Provider {
	case "dir":
		dir, err := vault.NewDir(cfg.Vault.Root)
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		rt.vault = dir
	case "mcp", "":
		m := vault.NewMCP(cfg.Vault.URL, cfg.Vault.APIKey, cfg.Vault.Timeout, log.With("component", "vault"), Version)
		rt.closer = append(rt.closer, m.Close)
		rt.vault = m
	default:
		return nil, fmt.Errorf("unknown vault provider %q", cfg.Vault.Provider)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, log)
	if err != nil {
		// Nudges fall back to the template; quizzes report upstream failures.
		log.Warn("LLM not configured", "provider", cfg.LLM.Provider, "error", err)
	}

	var cache engine.QuestionCache
	switch cfg.Quiz.CacheBackend {
	case "redis":
		rc, err := engine.NewRedisQuestionCache(ctx, cfg.Quiz.RedisAddr, cfg.Quiz.CacheTTL)
		if err != nil {
			return nil, err
		}
		rt.closer = append(rt.closer, rc.Close)
		cache = rc
	default:
		cache = engine.NewMemoryQuestionCache(cfg.Quiz.CacheTTL)
	}

	unreviewed, err := engine.ParseRiskLevel(cfg.Sweep.UnreviewedRisk)
	if err != nil {
		return nil, err
	}

	rt.engine = engine.New(engine.Deps{
		Vault: rt.vault,
		LLM:   provider,
		Store: rt.db,
		Cache: cache,
		Log:   log.With("component", "engine"),
	}, engine.Options{
		ResourcesFolder:   cfg.Vault.ResourcesFolder,
		Concurrency:       cfg.Sweep.Concurrency,
		Policy:            engine.RiskPolicy{UnreviewedRisk: unreviewed},
		DefaultQuestions:  cfg.Quiz.DefaultQuestions,
		MaxQuestions:      cfg.Quiz.MaxQuestions,
		SweepSchedule:     cfg.Sweep.Schedule,
		WeeklyTargetHours: cfg.Stats.WeeklyTargetHours,
	})

	log.Info("runtime ready",
		"db", dbPath,
		"vault", cfg.Vault.Provider,
		"llm", cfg.LLM.Provider,
		"cache", cfg.Quiz.CacheBackend)
	ok = true
	return rt, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.StartScheduler(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer rt.engine.Stop()

	srv := server.New(rt.db, rt.engine, VersionString(),
		server.WithLogger(rt.log.With("component", "http")),
		server.WithVault(rt.vault),
		server.WithJWTSecret(cfg.Auth.JWTSecret))
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("sparkcoach serving", "addr", addr, "auth", cfg.Auth.JWTSecret != "", "sweep_schedule", cfg.Sweep.Schedule)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	rt.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
