package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/config"
)

func TestDefaultTemplatesReferenceTitle(t *testing.T) {
	cfg := config.Default()
	if !strings.Contains(cfg.Library.MovieTemplate, "{title}") {
		t.Fatalf("movie template missing {title}: %q", cfg.Library.MovieTemplate)
	}
	if !strings.Contains(cfg.Library.EpisodeTemplate, "{season}") {
		t.Fatalf("episode template missing {season}: %q", cfg.Library.EpisodeTemplate)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
library_dir = "` + filepath.Join(dir, "library") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[provider]
base_url = "https://example.test/api/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as found")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: %s", resolved)
	}
	if cfg.Provider.BaseURL != "https://example.test/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Library.MovieTemplate == "" {
		t.Fatal("expected default movie template to be applied")
	}
	if cfg.Provider.TimeoutSeconds <= 0 {
		t.Fatalf("expected provider timeout default, got %d", cfg.Provider.TimeoutSeconds)
	}
}

func TestLoadRejectsBadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[library]
movie_template = "static-name"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for template without {title}")
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unsupported log format")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Library.MoviesDir != "movies" || cfg.Library.TVDir != "tv" {
		t.Fatalf("unexpected library dirs: %+v", cfg.Library)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.LibraryDir = filepath.Join(dir, "library")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s, err=%v", p, err)
		}
	}
}
