// Copyright 2024-2026 Aiku AI

// Package runner owns the process lifecycle: it constructs every module
// named by the profile, registers them with the coordinator, runs one poll
// task per channel, and shuts the whole set down cooperatively on signal.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/chatbridge/pkg/bridge"
	"github.com/aiku/chatbridge/pkg/config"
	"github.com/aiku/chatbridge/pkg/metrics"
	"github.com/aiku/chatbridge/pkg/paths"
	"github.com/aiku/chatbridge/pkg/registry"
)

// telemetryShutdownTimeout bounds how long shutdown waits for the metrics
// listener to drain.
const telemetryShutdownTimeout = 5 * time.Second

// Runner wires one profile's modules together and runs them to
// completion.
type Runner struct {
	profile string
	cfg     *config.Profile
	reg     *registry.Registry
	paths   *paths.Paths
	log     zerolog.Logger

	coord     *bridge.Coordinator
	collector *metrics.Collector
	telemetry *http.Server
	channels  []bridge.Channel

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a runner for the given profile. Call Setup before Run.
func New(profile string, cfg *config.Profile, reg *registry.Registry, p *paths.Paths, log zerolog.Logger) *Runner {
	return &Runner{
		profile:  profile,
		cfg:      cfg,
		reg:      reg,
		paths:    p,
		log:      log.With().Str("component", "runner").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Coordinator returns the hub. Valid after Setup.
func (r *Runner) Coordinator() *bridge.Coordinator { return r.coord }

// Setup validates the profile and constructs the master, every slave and
// every middleware in declared order, registering all of them with a fresh
// coordinator.
func (r *Runner) Setup() error {
	if err := r.cfg.Validate(r.reg); err != nil {
		return fmt.Errorf("profile %q: %w", r.profile, err)
	}

	r.coord = bridge.NewCoordinator(r.profile, r.log)
	if r.cfg.Telemetry != "" {
		r.collector = metrics.NewCollector()
		r.coord.SetMetrics(r.collector)
	}

	master, err := r.buildChannel(r.cfg.MasterChannel, registry.RoleMaster)
	if err != nil {
		return err
	}
	if err := r.coord.AddChannel(master); err != nil {
		return err
	}
	r.channels = append(r.channels, master)

	for _, spec := range r.cfg.SlaveChannels {
		slave, err := r.buildChannel(spec, registry.RoleSlave)
		if err != nil {
			return err
		}
		if err := r.coord.AddChannel(slave); err != nil {
			return err
		}
		r.channels = append(r.channels, slave)
	}

	for _, spec := range r.cfg.Middlewares {
		ctx, err := r.buildContext(spec)
		if err != nil {
			return err
		}
		mw, err := r.reg.BuildMiddleware(spec, ctx)
		if err != nil {
			return err
		}
		r.coord.AddMiddleware(mw)
	}

	r.log.Info().
		Str("profile", r.profile).
		Str("master", string(master.ID())).
		Int("slaves", len(r.cfg.SlaveChannels)).
		Int("middlewares", len(r.cfg.Middlewares)).
		Msg("Modules constructed")
	return nil
}

func (r *Runner) buildChannel(spec string, role registry.Role) (bridge.Channel, error) {
	ctx, err := r.buildContext(spec)
	if err != nil {
		return nil, err
	}
	return r.reg.BuildChannel(spec, role, ctx)
}

// buildContext assembles the per-module construction context, including
// the module's lazily created data and cache directories.
func (r *Runner) buildContext(spec string) (registry.BuildContext, error) {
	entry, instance, err := r.reg.Resolve(spec)
	if err != nil {
		return registry.BuildContext{}, err
	}
	composite := entry.ID.WithInstance(instance)
	dataDir, err := r.paths.ModuleDataDir(r.profile, composite)
	if err != nil {
		return registry.BuildContext{}, err
	}
	cacheDir, err := r.paths.ModuleCacheDir(r.profile, composite)
	if err != nil {
		return registry.BuildContext{}, err
	}
	return registry.BuildContext{
		Coordinator: r.coord,
		Log:         r.log.With().Str("module", string(composite)).Logger(),
		Profile:     r.profile,
		DataDir:     dataDir,
		CacheDir:    cacheDir,
	}, nil
}

// Run spawns one poll task per channel, installs the shutdown signals and
// blocks until every poll task has returned. It is the whole process
// lifetime: startup, steady state, shutdown.
func (r *Runner) Run(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.collector != nil {
		r.telemetry = r.collector.Serve(r.cfg.Telemetry, r.log)
	}

	for _, ch := range r.channels {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			log := r.log.With().Str("channel", string(ch.ID())).Logger()
			log.Info().Msg("Poll task started")
			if err := ch.Poll(pollCtx); err != nil {
				log.Error().Err(err).Msg("Poll task failed")
				return
			}
			log.Info().Msg("Poll task finished")
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		r.log.Info().Str("signal", sig.String()).Msg("Shutting down on signal")
	case <-ctx.Done():
		r.log.Info().Msg("Shutting down, context cancelled")
	case <-r.stopChan:
		r.log.Info().Msg("Shutting down on request")
	}

	// Cooperative shutdown: flag every channel, then join the poll tasks.
	// Channels are responsible for returning in bounded time.
	for _, ch := range r.channels {
		ch.StopPolling()
	}
	cancel()
	r.wg.Wait()

	if r.telemetry != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := r.telemetry.Shutdown(shutdownCtx); err != nil {
			r.log.Warn().Err(err).Msg("Telemetry endpoint shutdown failed")
		}
	}

	r.log.Info().Msg("All poll tasks joined, exiting")
	return nil
}

// Stop triggers the same shutdown path as a signal. Idempotent.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}
