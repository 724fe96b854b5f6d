// Copyright 2024-2026 Aiku AI

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	"github.com/rs/zerolog"
)

// RegisterSymbol is the symbol every module plugin exports. The plugin
// registers its modules against the registry it is handed.
const RegisterSymbol = "RegisterModules"

// RegisterFuncType is the required type of the exported symbol.
type RegisterFuncType = func(*Registry) error

// LoadPluginDir loads every Go plugin (*.so) in dir and invokes its
// RegisterModules symbol against r. A missing directory is not an error;
// a plugin without the symbol, or with the wrong symbol type, is.
func (r *Registry) LoadPluginDir(dir string, log zerolog.Logger) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading module dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".so" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.loadPlugin(path); err != nil {
			return err
		}
		log.Info().Str("plugin", path).Msg("Loaded module plugin")
	}
	return nil
}

func (r *Registry) loadPlugin(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("opening module plugin %q: %w", path, err)
	}
	sym, err := p.Lookup(RegisterSymbol)
	if err != nil {
		return fmt.Errorf("module plugin %q does not export %s: %w", path, RegisterSymbol, err)
	}
	register, ok := sym.(RegisterFuncType)
	if !ok {
		return fmt.Errorf("module plugin %q: %s has type %T, want %s", path, RegisterSymbol, sym, "func(*Registry) error")
	}
	if err := register(r); err != nil {
		return fmt.Errorf("module plugin %q: %w", path, err)
	}
	return nil
}
