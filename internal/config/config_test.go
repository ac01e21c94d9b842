package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PROJECT_ROOT", root)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Port)
	}
	if cfg.BaseStreamPort != 8080 {
		t.Errorf("Expected base stream port 8080, got %d", cfg.BaseStreamPort)
	}
	if cfg.MaxUploadBytes != 500*1024*1024 {
		t.Errorf("Expected 500MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if want := filepath.Join(root, "darknet"); cfg.WorkerDir != want {
		t.Errorf("Expected worker dir %s, got %s", want, cfg.WorkerDir)
	}
	if want := filepath.Join(root, "darknet", "build", "src-examples", "simple_stream_progressive"); cfg.WorkerBinary != want {
		t.Errorf("Expected worker binary %s, got %s", want, cfg.WorkerBinary)
	}
	if want := filepath.Join(root, "logs"); cfg.LogDir != want {
		t.Errorf("Expected log dir %s, got %s", want, cfg.LogDir)
	}
	if cfg.LogdyEnabled {
		t.Error("Expected logdy to be disabled by default")
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "fleet.yaml")
	data := []byte("port: 4000\nlog_level: debug\nnats_subject: cams\nshutdown_timeout: 3s\nworker_dir: /opt/darknet\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PROJECT_ROOT", root)
	t.Setenv("PORT", "4100")
	t.Setenv("NATS_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 4100 {
		t.Errorf("Expected environment to win with port 4100, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level from file, got %s", cfg.LogLevel)
	}
	if cfg.NatsSubject != "cams" {
		t.Errorf("Expected subject from file, got %s", cfg.NatsSubject)
	}
	if !cfg.NatsEnabled {
		t.Error("Expected NATS enabled from environment")
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected 3s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if cfg.WorkerDir != "/opt/darknet" {
		t.Errorf("Expected absolute worker dir kept, got %s", cfg.WorkerDir)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PROJECT_ROOT", t.TempDir())
	t.Setenv("BASE_STREAM_PORT", "70000")

	if _, err := Load(""); err == nil {
		t.Fatal("Expected error for out-of-range stream port")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}
