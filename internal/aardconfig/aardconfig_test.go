package aardconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "aardwolf.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDecodesExcludedPackagesAndDestDir(t *testing.T) {
	path := writeConfig(t, `
excludePkgs:
  - "github.com/example/vendor"
destDir: "/tmp/out"
disableInstrument: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsExcluded("github.com/example/vendor") {
		t.Fatal("expected vendor package to be excluded")
	}
	if cfg.IsExcluded("github.com/example/other") {
		t.Fatal("expected unrelated package to not be excluded")
	}
	if !cfg.InstrumentationDisabled() {
		t.Fatal("expected instrumentation to be disabled")
	}
}

func TestLoadMissingFileReturnsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestResolveDestDirPrefersEnvOverConfig(t *testing.T) {
	cfg := &Config{DestDir: "/from/config"}

	t.Setenv("AARDWOLF_DATA_DEST", "/from/env")
	if got := cfg.ResolveDestDir(); got != "/from/env" {
		t.Fatalf("expected env to win, got %q", got)
	}
}

func TestResolveDestDirFallsBackToConfigThenCwd(t *testing.T) {
	t.Setenv("AARDWOLF_DATA_DEST", "")

	cfg := &Config{DestDir: "/from/config"}
	if got := cfg.ResolveDestDir(); got != "/from/config" {
		t.Fatalf("expected config destDir, got %q", got)
	}

	if got := Default().ResolveDestDir(); got != "." {
		t.Fatalf("expected cwd fallback, got %q", got)
	}
}

func TestNilConfigIsExcludedAndDisabledAreFalse(t *testing.T) {
	var cfg *Config
	if cfg.IsExcluded("anything") {
		t.Fatal("expected nil config to exclude nothing")
	}
	if cfg.InstrumentationDisabled() {
		t.Fatal("expected nil config to never disable instrumentation")
	}
}
