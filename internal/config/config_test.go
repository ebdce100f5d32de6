package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/punchamoorthee/visaops/internal/domain"
)

func TestLoadRequiresDBSource(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_SOURCE", "")
	t.Setenv("JWT_SECRET", "s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DB_SOURCE")
	}
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_SOURCE", "postgres://x")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("APPROVAL_ROUTES_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.SessionTTL != 12*time.Hour || cfg.BudgetAuditSchedule == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRoutesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "routes.yaml")
	body := "routes:\n  cover: [sales.manager, finance.head]\n  Regular: [sales.manager]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_SOURCE", "postgres://x")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("APPROVAL_ROUTES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	got := cfg.Routes.For(domain.VisaCover)
	if len(got) != 2 || got[1] != "finance.head" {
		t.Fatalf("cover route = %v", got)
	}
	if len(cfg.Routes.For(domain.VisaCorporate)) != 0 {
		t.Fatal("corporate route should be empty")
	}
}

func TestParseRoutesRejectsUnknownType(t *testing.T) {
	if _, err := ParseRoutes([]byte("routes:\n  Special: [a]\n")); err == nil {
		t.Fatal("expected error for unknown visa type")
	}
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it switches the working
// directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
