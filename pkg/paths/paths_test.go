// Copyright 2024-2026 Aiku AI

package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBaseDataDirFromEnv(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p, err := LoadWith(map[string]string{"DATA_ROOT": root})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	base := p.BaseDataDir()
	if !strings.HasPrefix(base, root) {
		t.Errorf("BaseDataDir %q not under DATA_ROOT %q", base, root)
	}
	// The user segment sits directly under the root.
	if filepath.Dir(base) != root {
		t.Errorf("BaseDataDir %q is not <root>/<user>", base)
	}
}

func TestBaseDataDirFallback(t *testing.T) {
	t.Parallel()
	p, err := LoadWith(map[string]string{})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	base := p.BaseDataDir()
	if base == "" {
		t.Fatal("BaseDataDir is empty without DATA_ROOT")
	}
	if !strings.HasSuffix(base, appDirName) {
		t.Errorf("fallback BaseDataDir %q does not end in %q", base, appDirName)
	}
}

func TestDefaultProfile(t *testing.T) {
	t.Parallel()
	p, err := LoadWith(map[string]string{})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if p.DefaultProfile() != "default" {
		t.Errorf("DefaultProfile: got %q, want %q", p.DefaultProfile(), "default")
	}

	p, err = LoadWith(map[string]string{"PROFILE": "work"})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if p.DefaultProfile() != "work" {
		t.Errorf("DefaultProfile from env: got %q, want %q", p.DefaultProfile(), "work")
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p, err := LoadWith(map[string]string{"DATA_ROOT": root})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	got := p.ConfigPath("default")
	want := filepath.Join(p.BaseDataDir(), "default", "config.yaml")
	if got != want {
		t.Errorf("ConfigPath: got %q, want %q", got, want)
	}
}

func TestModuleDataDirLazyCreate(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p, err := LoadWith(map[string]string{"DATA_ROOT": root})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}

	dir, err := p.ModuleDataDir("default", "tests.slave.StubSlave#i1")
	if err != nil {
		t.Fatalf("ModuleDataDir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("module data dir not created: %v", err)
	}
	if !strings.Contains(dir, filepath.Join("default", "tests.slave.StubSlave#i1")) {
		t.Errorf("ModuleDataDir %q missing profile/module segments", dir)
	}

	// Idempotent on the second call.
	if _, err := p.ModuleDataDir("default", "tests.slave.StubSlave#i1"); err != nil {
		t.Errorf("second ModuleDataDir: %v", err)
	}
}

func TestModuleCacheDirFromEnv(t *testing.T) {
	t.Parallel()
	cacheRoot := t.TempDir()
	p, err := LoadWith(map[string]string{"CACHE_ROOT": cacheRoot})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	dir, err := p.ModuleCacheDir("default", "tests.slave.StubSlave")
	if err != nil {
		t.Fatalf("ModuleCacheDir: %v", err)
	}
	if !strings.HasPrefix(dir, cacheRoot) {
		t.Errorf("ModuleCacheDir %q not under CACHE_ROOT %q", dir, cacheRoot)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
}
