package config

import (
	"strings"
	"testing"
)

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DBNAME", "")
	t.Setenv("DBUSER", "")
	t.Setenv("HOST", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing database config")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DBNAME", "fleet")
	t.Setenv("DBUSER", "fleet")
	t.Setenv("HOST", "db.local")
	t.Setenv("PASSWORD", "secret")
	t.Setenv("WORKER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "5432" {
		t.Fatalf("default port = %q, want 5432", cfg.Port)
	}
	if cfg.ListenAddr != ":5553" {
		t.Fatalf("default listen addr = %q", cfg.ListenAddr)
	}
	if !cfg.IsDev() {
		t.Fatalf("default environment should be dev")
	}
	if !strings.HasPrefix(cfg.Worker, "worker-") {
		t.Fatalf("worker identity fallback missing, got %q", cfg.Worker)
	}
}

func TestConnStringPinsTimezone(t *testing.T) {
	cfg := &Config{DBName: "fleet", DBUser: "u", Password: "p", Host: "h", Port: "5432"}
	got := cfg.ConnString()
	want := "postgres://u:p@h:5432/fleet?timezone=Europe/Moscow"
	if got != want {
		t.Fatalf("conn string = %q, want %q", got, want)
	}
}

func TestManagerService(t *testing.T) {
	cfg := &Config{AppManager: "eu1"}
	if got := cfg.ManagerService(); got != "eu1_app_manager" {
		t.Fatalf("manager service = %q", got)
	}
}
