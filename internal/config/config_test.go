package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("MMR_LAMBDA", "")
	t.Setenv("PROCESSING_MODE", "")
	t.Setenv("EMBEDDING_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 900 || cfg.ChunkOverlap != 150 {
		t.Fatalf("unexpected chunk defaults %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MMRLambda != 0.85 || cfg.SemanticThreshold != 0.65 {
		t.Fatalf("unexpected float defaults %v/%v", cfg.MMRLambda, cfg.SemanticThreshold)
	}
	if cfg.ProcessingMode != "sync" || cfg.EmbeddingTimeoutSeconds != 120 {
		t.Fatalf("unexpected mode/timeout defaults %q/%d", cfg.ProcessingMode, cfg.EmbeddingTimeoutSeconds)
	}
	if cfg.ParentChunkSize != 2000 || cfg.ChildChunkSize != 500 || cfg.ChildChunkOverlap != 50 {
		t.Fatalf("unexpected parent/child defaults %+v", cfg)
	}
}

func TestLoadEnvOverridesAndBadValuesFallBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "1200")
	t.Setenv("MMR_LAMBDA", "0.5")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("CHUNK_OVERLAP", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 1200 || cfg.MMRLambda != 0.5 || cfg.BreakerEnabled {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.ChunkOverlap != 150 {
		t.Fatalf("expected invalid int to fall back, got %d", cfg.ChunkOverlap)
	}
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raggae.yaml")
	content := "STORE_BACKEND: memory\nchunk_size: 700\nMINIO_USE_SSL: true\nSEMANTIC_THRESHOLD: 0.7\nAPI_PORT: 9000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("MINIO_USE_SSL", "")
	t.Setenv("SEMANTIC_THRESHOLD", "")
	t.Setenv("API_PORT", "8181")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreBackend != "memory" || cfg.ChunkSize != 700 || !cfg.MinioUseSSL || cfg.SemanticThreshold != 0.7 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.APIPort != "8181" {
		t.Fatalf("expected env to win over file, got %q", cfg.APIPort)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("CHUNK_SIZE: [1,\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected read error")
	}
}
