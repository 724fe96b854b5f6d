// Copyright 2024-2026 Aiku AI

// Package config loads and validates the profile descriptor naming one
// master channel, N slave channels and M middlewares.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/chatbridge/pkg/ids"
	"github.com/aiku/chatbridge/pkg/registry"
)

//go:embed example-config.yaml
var ExampleConfig string

// ErrCreatedExample reports that no config existed, so the example was
// written for the user to edit. The process exits non-zero in this case.
var ErrCreatedExample = errors.New("wrote example config, edit it and restart")

// Profile is one named configuration bundle, selected at startup.
type Profile struct {
	MasterChannel string   `yaml:"master_channel"`
	SlaveChannels []string `yaml:"slave_channels"`
	Middlewares   []string `yaml:"middlewares"`

	// Logging is handed to the logging subsystem unchanged.
	Logging *zeroconfig.Config `yaml:"logging"`
	// Telemetry is the metrics endpoint listen address; empty disables.
	Telemetry string `yaml:"telemetry"`
}

func (p *Profile) UnmarshalYAML(node *yaml.Node) error {
	type rawProfile Profile
	return node.Decode((*rawProfile)(p))
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "master_channel")
	helper.Copy(up.List, "slave_channels")
	helper.Copy(up.List, "middlewares")
	helper.Copy(up.Map, "logging")
	helper.Copy(up.Str, "telemetry")
}

// Upgrader returns the config upgrader that merges a user config with the
// embedded example, preserving known keys.
func Upgrader() up.BaseUpgrader {
	return &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks:         nil,
		Base:           ExampleConfig,
	}
}

// Load reads the profile config at path. When the file does not exist, the
// embedded example is written there and ErrCreatedExample is returned.
// An existing file is upgraded in place against the example before
// parsing, so new keys appear with their defaults.
func Load(path string) (*Profile, error) {
	_, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := writeExample(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%q did not exist: %w", path, ErrCreatedExample)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	upgraded, changed, err := up.Do(path, false, Upgrader())
	if err != nil {
		return nil, fmt.Errorf("upgrading config %q: %w", path, err)
	}
	if changed {
		if err := os.WriteFile(path, upgraded, 0o600); err != nil {
			return nil, fmt.Errorf("saving upgraded config %q: %w", path, err)
		}
	}

	var profile Profile
	if err := yaml.Unmarshal(upgraded, &profile); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return &profile, nil
}

func writeExample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating profile dir for %q: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(ExampleConfig), 0o600); err != nil {
		return fmt.Errorf("writing example config %q: %w", path, err)
	}
	return nil
}

// Validate checks the profile against the registry: the master resolves to
// a master channel, every slave to a slave channel, every middleware to a
// middleware, and no composite id appears twice within the slaves or
// within the middlewares.
func (p *Profile) Validate(reg *registry.Registry) error {
	if p.MasterChannel == "" {
		return fmt.Errorf("master_channel is missing or empty")
	}
	if err := p.checkRole(reg, p.MasterChannel, registry.RoleMaster); err != nil {
		return err
	}

	if len(p.SlaveChannels) == 0 {
		return fmt.Errorf("slave_channels is missing or empty")
	}
	seenSlaves := make(map[ids.ModuleID]struct{}, len(p.SlaveChannels))
	for _, spec := range p.SlaveChannels {
		if err := p.checkRole(reg, spec, registry.RoleSlave); err != nil {
			return err
		}
		composite := compositeID(spec)
		if _, dup := seenSlaves[composite]; dup {
			return fmt.Errorf("slave channel %q is listed twice", spec)
		}
		seenSlaves[composite] = struct{}{}
	}

	seenMiddlewares := make(map[ids.ModuleID]struct{}, len(p.Middlewares))
	for _, spec := range p.Middlewares {
		if err := p.checkRole(reg, spec, registry.RoleMiddleware); err != nil {
			return err
		}
		composite := compositeID(spec)
		if _, dup := seenMiddlewares[composite]; dup {
			return fmt.Errorf("middleware %q is listed twice", spec)
		}
		seenMiddlewares[composite] = struct{}{}
	}
	return nil
}

func (p *Profile) checkRole(reg *registry.Registry, spec string, want registry.Role) error {
	entry, _, err := reg.Resolve(spec)
	if err != nil {
		return fmt.Errorf("%s %q: %w", want, spec, err)
	}
	if entry.Role != want {
		return fmt.Errorf("%s %q: module is registered as a %s", want, spec, entry.Role)
	}
	return nil
}

// compositeID folds a validated spec into its composite module id for
// duplicate detection. Validation has already run, so parse errors cannot
// occur here.
func compositeID(spec string) ids.ModuleID {
	base, instance, _ := ids.ParseModuleID(spec)
	return base.WithInstance(instance)
}
