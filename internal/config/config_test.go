package config

import (
	"testing"
	"time"
)

func TestConfigLoad_Defaults(t *testing.T) {
	t.Setenv("MEMORY_BUILD_TARGET", "local")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("local build target should derive sqlite, got %s", cfg.DBDriver)
	}
	if cfg.TurnEmbedModel != "nomic-embed-text" || cfg.MemoryEmbedModel != "mxbai-embed-large" {
		t.Fatalf("unexpected default embed models: %+v", cfg)
	}
	if cfg.SessionCacheTTL() != time.Hour {
		t.Fatalf("unexpected default session TTL: %v", cfg.SessionCacheTTL())
	}
	if cfg.RetentionAge() != 90*24*time.Hour {
		t.Fatalf("unexpected default retention age: %v", cfg.RetentionAge())
	}
}

func TestConfigLoad_CloudRequiresDSN(t *testing.T) {
	t.Setenv("MEMORY_BUILD_TARGET", "cloud")
	t.Setenv("MEMORY_POSTGRES_DSN", "")

	if _, err := New(); err == nil {
		t.Fatalf("cloud target without a postgres DSN should fail")
	}

	t.Setenv("MEMORY_POSTGRES_DSN", "postgres://localhost/memory")
	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("cloud build target should derive postgres, got %s", cfg.DBDriver)
	}
}

func TestConfigLoad_DriverOverride(t *testing.T) {
	t.Setenv("MEMORY_BUILD_TARGET", "cloud")
	t.Setenv("MEMORY_DB_DRIVER", "sqlite")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("driver override failed, got %s", cfg.DBDriver)
	}
}

func TestConfigLoad_InvalidBuildTarget(t *testing.T) {
	t.Setenv("MEMORY_BUILD_TARGET", "mainframe")

	if _, err := New(); err == nil {
		t.Fatalf("invalid build target should fail")
	}
}
