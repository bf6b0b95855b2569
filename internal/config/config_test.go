package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load with defaults, got error: %v", err)
	}

	if cfg.Server.BindAddress != "127.0.0.1:8080" {
		t.Errorf("expected default bind address, got '%s'", cfg.Server.BindAddress)
	}
	if cfg.Server.MaxBodySize != 1024*1024 {
		t.Errorf("expected 1 MiB default body limit, got %d", cfg.Server.MaxBodySize)
	}
	if cfg.Storage.Mode != "postgres" {
		t.Errorf("expected postgres storage mode by default, got '%s'", cfg.Storage.Mode)
	}
	if cfg.Broadcast.BufferSize != 512 {
		t.Errorf("expected 512 broadcast buffer by default, got %d", cfg.Broadcast.BufferSize)
	}
	if cfg.Database.Name != "any_player_sync" {
		t.Errorf("expected default database name, got '%s'", cfg.Database.Name)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SYNC_SERVER_BIND_ADDRESS", "0.0.0.0:9090")
	t.Setenv("SYNC_STORAGE_MODE", "memory")
	t.Setenv("SYNC_DATABASE_PASSWORD", "hunter2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.Server.BindAddress != "0.0.0.0:9090" {
		t.Errorf("expected env bind address override, got '%s'", cfg.Server.BindAddress)
	}
	if cfg.Storage.Mode != "memory" {
		t.Errorf("expected memory storage mode, got '%s'", cfg.Storage.Mode)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("expected env password override, got '%s'", cfg.Database.Password)
	}
}

func TestLoadRejectsBadStorageMode(t *testing.T) {
	t.Setenv("SYNC_STORAGE_MODE", "sqlite")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for unknown storage mode")
	}
	if !strings.Contains(err.Error(), "storage.mode") {
		t.Errorf("error should mention storage.mode, got: %v", err)
	}
}

func TestLoadRejectsBadBindAddress(t *testing.T) {
	t.Setenv("SYNC_SERVER_BIND_ADDRESS", "not-an-address")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for malformed bind address")
	}
}

func TestDatabaseURLMasksPassword(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5432",
		User:     "sync",
		Password: "s3cret",
		Name:     "any_player_sync",
		SSLMode:  "require",
	}

	if url := db.URL(); !strings.Contains(url, "s3cret") {
		t.Errorf("URL() should carry the real password, got '%s'", url)
	}
	safe := db.URLSafe()
	if strings.Contains(safe, "s3cret") {
		t.Errorf("URLSafe() leaked the password: '%s'", safe)
	}
	if !strings.Contains(safe, "****") {
		t.Errorf("URLSafe() should mask the password: '%s'", safe)
	}
}
