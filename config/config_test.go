package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

type fakeFS struct {
	files map[string]bool
}

func (f *fakeFS) Exists(path string) bool { return f.files[path] }
func (f *fakeFS) LoadEnv(path string) error {
	return nil
}

func TestServiceConfigDefaults(t *testing.T) {
	cfg := &ServiceConfig{Name: "loaderd"}
	cfg.ApplyDefaults()

	if cfg.Environment != "development" {
		t.Errorf("expected development, got %q", cfg.Environment)
	}
	if !cfg.Debug {
		t.Error("development must enable debug")
	}
	if cfg.Loader.Mode != "immediate" {
		t.Errorf("expected immediate mode, got %q", cfg.Loader.Mode)
	}
	if cfg.Loader.Level != "standard" {
		t.Errorf("expected standard level, got %q", cfg.Loader.Level)
	}
	if cfg.Loader.DefaultTimeout != 30*time.Second {
		t.Errorf("expected 30s default timeout, got %s", cfg.Loader.DefaultTimeout)
	}
}

// An unconfigured standard level must still name optional extras; otherwise
// it silently selects the same set as minimum.
func TestLoaderSettingsDefaultStandardComponents(t *testing.T) {
	var s LoaderSettings
	s.ApplyDefaults()

	if !slices.Equal(s.StandardComponents, DefaultStandardComponents) {
		t.Errorf("expected default standard components, got %v", s.StandardComponents)
	}

	configured := LoaderSettings{StandardComponents: []string{"audit-chain"}}
	configured.ApplyDefaults()
	if !slices.Equal(configured.StandardComponents, []string{"audit-chain"}) {
		t.Errorf("explicit list must win, got %v", configured.StandardComponents)
	}
}

func TestServiceConfigValidate(t *testing.T) {
	cfg := &ServiceConfig{Name: "loaderd"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestServiceConfigValidateMissingName(t *testing.T) {
	cfg := &ServiceConfig{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestServiceConfigValidateBadLevel(t *testing.T) {
	cfg := &ServiceConfig{Name: "loaderd"}
	cfg.ApplyDefaults()
	cfg.Loader.Level = "paranoid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := []byte("name: loaderd\nenvironment: production\nloader:\n  level: maximum\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	var cfg ServiceConfig
	if err := LoadConfig("loaderd", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "loaderd" {
		t.Errorf("expected name loaderd, got %q", cfg.Name)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected production, got %q", cfg.Environment)
	}
	if cfg.Loader.Level != "maximum" {
		t.Errorf("expected maximum level, got %q", cfg.Loader.Level)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LOADERKIT_LOADER_LEVEL", "minimum")

	var cfg ServiceConfig
	if err := LoadConfig("loaderd", &cfg, WithFileSystem(&fakeFS{files: map[string]bool{}})); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Loader.Level != "minimum" {
		t.Errorf("expected env override to set level, got %q", cfg.Loader.Level)
	}
}

func TestLoadConfigNoFiles(t *testing.T) {
	var cfg ServiceConfig
	err := LoadConfig("loaderd", &cfg, WithFileSystem(&fakeFS{files: map[string]bool{}}))
	if err != nil {
		t.Fatalf("expected missing files to be fine, got %v", err)
	}
}
