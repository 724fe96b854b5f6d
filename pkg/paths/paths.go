// Copyright 2024-2026 Aiku AI

// Package paths implements the data, cache and profile directory
// conventions. Every module owns files under its per-module data
// directory; the core defines the layout but never the file formats.
package paths

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/aiku/chatbridge/pkg/ids"
)

// appDirName is the directory name under the platform config/cache homes.
const appDirName = "chatbridge"

// Env is the environment surface of the path conventions.
type Env struct {
	DataRoot  string `env:"DATA_ROOT"`
	CacheRoot string `env:"CACHE_ROOT"`
	Profile   string `env:"PROFILE" envDefault:"default"`
}

// Paths resolves the directory layout for one process.
type Paths struct {
	env      Env
	username string
}

// Load reads the environment and the current OS user.
func Load() (*Paths, error) {
	return load(env.Options{})
}

// LoadWith reads from an explicit environment map instead of the process
// environment. Intended for tests.
func LoadWith(environ map[string]string) (*Paths, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Paths, error) {
	var e Env
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return nil, fmt.Errorf("parsing path environment: %w", err)
	}
	username := "user"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = filepath.Base(u.Username)
	}
	return &Paths{env: e, username: username}, nil
}

// DefaultProfile is the profile used when neither the CLI nor the
// environment selects one.
func (p *Paths) DefaultProfile() string {
	return p.env.Profile
}

// BaseDataDir is $DATA_ROOT/<user> when DATA_ROOT is set, else the
// platform config home.
func (p *Paths) BaseDataDir() string {
	if p.env.DataRoot != "" {
		return filepath.Join(p.env.DataRoot, p.username)
	}
	if home, err := os.UserConfigDir(); err == nil {
		return filepath.Join(home, appDirName)
	}
	return filepath.Join(".", appDirName)
}

// BaseCacheDir is $CACHE_ROOT/<user> when CACHE_ROOT is set, else the
// platform cache home, else a .cache directory under the data base.
func (p *Paths) BaseCacheDir() string {
	if p.env.CacheRoot != "" {
		return filepath.Join(p.env.CacheRoot, p.username)
	}
	if home, err := os.UserCacheDir(); err == nil {
		return filepath.Join(home, appDirName)
	}
	return filepath.Join(p.BaseDataDir(), ".cache")
}

// ModulesDir is the directory scanned for user module plugins. It is
// shared by every profile.
func (p *Paths) ModulesDir() string {
	return filepath.Join(p.BaseDataDir(), "modules")
}

// ProfileDir is the directory holding one profile's config and module
// data.
func (p *Paths) ProfileDir(profile string) string {
	return filepath.Join(p.BaseDataDir(), profile)
}

// ConfigPath is the profile's configuration file location.
func (p *Paths) ConfigPath(profile string) string {
	return filepath.Join(p.ProfileDir(profile), "config.yaml")
}

// ModuleDataDir returns <base>/<profile>/<module_id>/, creating it lazily.
func (p *Paths) ModuleDataDir(profile string, moduleID ids.ModuleID) (string, error) {
	dir := filepath.Join(p.ProfileDir(profile), string(moduleID))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating module data dir: %w", err)
	}
	return dir, nil
}

// ModuleCacheDir returns the per-module cache directory, creating it
// lazily.
func (p *Paths) ModuleCacheDir(profile string, moduleID ids.ModuleID) (string, error) {
	dir := filepath.Join(p.BaseCacheDir(), profile, string(moduleID))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating module cache dir: %w", err)
	}
	return dir, nil
}
