package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// Run from an empty directory so no config.yaml is picked up.
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.MaxChunkChars != 1500 {
		t.Errorf("expected default chunk bound 1500, got %d", cfg.Generation.MaxChunkChars)
	}
	if cfg.Generation.MaxUtteranceChars != 100 {
		t.Errorf("expected default utterance bound 100, got %d", cfg.Generation.MaxUtteranceChars)
	}
	if cfg.Voicevox.DefaultSpeaker != "ずんだもん" {
		t.Errorf("unexpected default speaker: %q", cfg.Voicevox.DefaultSpeaker)
	}
	if cfg.Voicevox.RequestDelay != 100*time.Millisecond {
		t.Errorf("unexpected request delay: %v", cfg.Voicevox.RequestDelay)
	}
	if cfg.Video.CaptionWidth != 30 {
		t.Errorf("expected caption width 30, got %d", cfg.Video.CaptionWidth)
	}
	if len(cfg.Pipeline.Sources) != 1 || cfg.Pipeline.Sources[0] != "wiki" {
		t.Errorf("unexpected default sources: %v", cfg.Pipeline.Sources)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
generation:
  max_chunk_chars: 800
voicevox:
  default_speaker: 四国めたん
pipeline:
  sources: [wiki, paper]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.MaxChunkChars != 800 {
		t.Errorf("expected file override 800, got %d", cfg.Generation.MaxChunkChars)
	}
	if cfg.Generation.MaxRetries != 3 {
		t.Errorf("expected default retries kept, got %d", cfg.Generation.MaxRetries)
	}
	if cfg.Voicevox.DefaultSpeaker != "四国めたん" {
		t.Errorf("expected overridden speaker, got %q", cfg.Voicevox.DefaultSpeaker)
	}
	if len(cfg.Pipeline.Sources) != 2 {
		t.Errorf("expected 2 sources, got %v", cfg.Pipeline.Sources)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("generation:\n  max_chunk_chars: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for zero chunk bound")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@h:5432/db?sslmode=disable"}
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != p.URL {
		t.Errorf("expected explicit URL used, got %q", dsn)
	}

	p = PostgresConfig{Host: "localhost", User: "sc", Password: "pw", DBName: "scriptcast"}
	dsn, err = p.DSN()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "postgres://sc:pw@localhost:5432/scriptcast?sslmode=disable"
	if dsn != want {
		t.Errorf("expected %q, got %q", want, dsn)
	}

	p = PostgresConfig{}
	if _, err := p.DSN(); err == nil {
		t.Fatal("expected error for unconfigured postgres")
	}
}
