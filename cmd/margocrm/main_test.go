package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/RobertBecaria/MARGOCRM/internal/config"
	"github.com/RobertBecaria/MARGOCRM/internal/health"
	"github.com/RobertBecaria/MARGOCRM/internal/llm"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

func TestSeedOwner(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Nothing configured: no account, no error.
	if err := seedOwner(ctx, db, config.OwnerSeed{}, logger); err != nil {
		t.Fatal(err)
	}
	seed := config.OwnerSeed{Email: "Owner@Example.com", Password: "pw"}
	for i := 0; i < 2; i++ {
		if err := seedOwner(ctx, db, seed, logger); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	n, err := db.Shared().CountUsersWithRole(ctx, store.RoleOwner)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("owners = %d, want 1", n)
	}
	u, err := db.Shared().UserByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.FullName != "Владелец" || !u.CheckPassword("pw") {
		t.Errorf("owner = %+v", u)
	}
}

func TestNewHealthRegistry(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.APIKey = ""
	reg := newHealthRegistry(db, llm.NewClient(cfg, logger))

	names := reg.Names()
	if len(names) != 2 || names[0] != "model" || names[1] != "store" {
		t.Fatalf("Names() = %v", names)
	}
	report := reg.Check()
	if got := report.Components["store"].Status; got != health.StatusOK {
		t.Errorf("store status = %q", got)
	}
	if report.Components["store"].LastOK == nil {
		t.Error("store LastOK not set after a successful check")
	}
	// No API key: the assistant is up but degraded.
	if got := report.Components["model"].Status; got != health.StatusDegraded {
		t.Errorf("model status = %q", got)
	}
	if report.Status != health.StatusDegraded {
		t.Errorf("overall status = %q", report.Status)
	}
}
