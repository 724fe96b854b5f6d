// Copyright 2024-2026 Aiku AI

// Command chatbridge runs one configuration profile of the chat tunneling
// framework: it loads the profile, constructs the master channel, the slave
// channels and the middlewares it names, and forwards messages between them
// until the process is told to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	flag "maunium.net/go/mauflag"

	"github.com/aiku/chatbridge/pkg/config"
	_ "github.com/aiku/chatbridge/pkg/modules/loopback"
	"github.com/aiku/chatbridge/pkg/paths"
	"github.com/aiku/chatbridge/pkg/registry"
	"github.com/aiku/chatbridge/pkg/runner"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	profileArg  = flag.MakeFull("p", "profile", "The configuration profile to run.", "").String()
	verbose     = flag.MakeFull("v", "verbose", "Force the log level down to debug.", "false").Bool()
	wantVersion = flag.MakeFull("V", "version", "View chatbridge version and quit.", "false").Bool()
	wantHelp, _ = flag.MakeHelpFlag()
)

func main() {
	flag.SetHelpTitles(
		"chatbridge - a bidirectional chat tunneling framework",
		"chatbridge [-hvV] [-p profile]")
	if err := flag.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	}

	p, err := paths.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read environment:", err)
		os.Exit(1)
	}
	profile := *profileArg
	if profile == "" {
		profile = p.DefaultProfile()
	}

	cfgPath := p.ConfigPath(profile)
	cfg, err := config.Load(cfgPath)
	if *wantVersion {
		printVersion(cfg)
		os.Exit(0)
	}
	if errors.Is(err, config.ErrCreatedExample) {
		fmt.Fprintf(os.Stderr, "No configuration found for profile %q.\n", profile)
		fmt.Fprintf(os.Stderr, "An example was written to %s, edit it and start chatbridge again.\n", cfgPath)
		os.Exit(2)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to configure logging:", err)
		os.Exit(1)
	}

	if err := registry.Default.LoadPluginDir(p.ModulesDir(), log); err != nil {
		log.Fatal().Err(err).Msg("Failed to load module plugins")
	}

	r := runner.New(profile, cfg, registry.Default, p, log)
	if err := r.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to construct modules")
	}
	log.Info().
		Str("version", Tag).
		Str("profile", profile).
		Msg("chatbridge starting")
	if err := r.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Runner exited with error")
	}
}

// printVersion reports the core build info plus the version of every module
// the profile names. A missing or broken config still prints the core line.
func printVersion(cfg *config.Profile) {
	fmt.Printf("chatbridge %s (%s, built %s)\n", Tag, Commit, BuildTime)
	if cfg == nil {
		return
	}
	specs := make([]string, 0, 1+len(cfg.SlaveChannels)+len(cfg.Middlewares))
	specs = append(specs, cfg.MasterChannel)
	specs = append(specs, cfg.SlaveChannels...)
	specs = append(specs, cfg.Middlewares...)
	for _, spec := range specs {
		entry, instance, err := registry.Default.Resolve(spec)
		if err != nil {
			fmt.Printf("  %s: not registered\n", spec)
			continue
		}
		fmt.Printf("  %s: %s %s\n", entry.ID.WithInstance(instance), entry.Info.Name, entry.Info.Version)
	}
}

func buildLogger(cfg *config.Profile) (zerolog.Logger, error) {
	var log zerolog.Logger
	if cfg.Logging != nil {
		compiled, err := cfg.Logging.Compile()
		if err != nil {
			return log, err
		}
		log = *compiled
	} else {
		log = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.Stamp
		})).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	}
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	}
	return log, nil
}
