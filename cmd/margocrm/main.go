// MARGO CRM is the household staff-management backend: a SQLite store, the
// assistant agent loop with its role-gated tool catalog, and the HTTP/websocket
// transport the web client talks to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/agent"
	"github.com/RobertBecaria/MARGOCRM/internal/chatserver"
	"github.com/RobertBecaria/MARGOCRM/internal/config"
	"github.com/RobertBecaria/MARGOCRM/internal/health"
	"github.com/RobertBecaria/MARGOCRM/internal/llm"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
	"github.com/RobertBecaria/MARGOCRM/internal/tools"
)

const tokenPurgeInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search ./config.yaml, ~/.config/margocrm, /etc/margocrm)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	if err := seedOwner(ctx, db, cfg.SeedOwner, logger); err != nil {
		return err
	}

	client := llm.NewClient(cfg, logger.With("component", "llm"))
	if !client.Configured() {
		logger.Warn("DEEPSEEK_API_KEY not set; assistant runs in unavailable mode")
	}
	reg := tools.NewDefaultRegistry(logger.With("component", "tools"))
	gate := tools.NewGate(reg)
	loop := agent.New(cfg, db, db, client, gate, reg, logger.With("component", "agent"))

	healthReg := newHealthRegistry(db, client)
	logger.Debug("health checks registered", "components", healthReg.Names())

	go purgeTokens(ctx, db, logger)

	auth := chatserver.NewAuthenticator(db, cfg.TokenTTL)
	srv := chatserver.New(cfg, auth, loop, db, healthReg, logger.With("component", "http"))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// seedOwner creates the bootstrap owner when the store has none and a seed
// account is configured.
func seedOwner(ctx context.Context, db *store.DB, seed config.OwnerSeed, logger *slog.Logger) error {
	h := db.Shared()
	n, err := h.CountUsersWithRole(ctx, store.RoleOwner)
	if err != nil {
		return fmt.Errorf("counting owners: %w", err)
	}
	if n > 0 {
		return nil
	}
	if seed.Email == "" || seed.Password == "" {
		logger.Warn("no owner account exists and no seed owner is configured")
		return nil
	}
	name := seed.FullName
	if name == "" {
		name = "Владелец"
	}
	u, err := h.CreateUser(ctx, store.NewUser{
		Email:    seed.Email,
		Password: seed.Password,
		FullName: name,
		Role:     store.RoleOwner,
	})
	if errors.Is(err, store.ErrDuplicateEmail) {
		return fmt.Errorf("seed owner %s: email already used by a non-owner account", seed.Email)
	}
	if err != nil {
		return fmt.Errorf("seeding owner: %w", err)
	}
	logger.Info("seeded owner account", "user_id", u.ID, "email", u.Email)
	return nil
}

func newHealthRegistry(db *store.DB, client *llm.Client) *health.Registry {
	reg := health.NewRegistry()
	reg.Register("store", health.CheckerFunc(db.HealthCheck))
	reg.Register("model", client)
	return reg
}

func purgeTokens(ctx context.Context, db *store.DB, logger *slog.Logger) {
	t := time.NewTicker(tokenPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.Shared().PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Warn("purging expired tokens", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired tokens", "count", n)
			}
		}
	}
}
