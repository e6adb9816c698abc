package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittocraft/internal/dispatcher"
	"github.com/marmos91/dittocraft/internal/entity"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/config"
	"github.com/marmos91/dittocraft/pkg/server"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const usage = `Dittocraft - a Minecraft (protocol 29) server

Usage:
  dittocraft <command> [flags]

Commands:
  init      Write a default configuration file
  start     Start the server
  version   Print version information

Flags for init:
  --config string   Path to write (default: $XDG_CONFIG_HOME/dittocraft/config.yaml)
  --force           Overwrite an existing file

Flags for start:
  --config string   Path to config file (default: $XDG_CONFIG_HOME/dittocraft/config.yaml)

Environment variables with the DITTOCRAFT_ prefix override any key,
e.g. DITTOCRAFT_GAME_MAX_PLAYERS=50.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("dittocraft %s (commit %s)\n", version, commit)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to write the configuration file")
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Start the server with: dittocraft start")
	return nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	out, err := logger.OpenOutput(cfg.Logging.Output)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, out); err != nil {
		return err
	}

	logger.Info("Dittocraft %s starting", version)
	logger.Info("Log level: %s, format: %s", cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsResult := config.InitializeMetrics(cfg)

	// A nil interface, not a nil *chunk.Provider, tells the world there is
	// nothing to load from.
	var provider world.Provider
	store, err := config.CreateChunkStore(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create chunk store: %w", err)
	}
	if store != nil {
		p := chunk.NewProvider(store)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("Failed to close chunk store: %v", err)
			}
		}()
		provider = p
		logger.Info("Chunk store: %s", cfg.Store.Type)
	} else {
		logger.Info("Chunk store: none (world is not persisted)")
	}

	generator, err := config.CreateGenerator(&cfg.Game)
	if err != nil {
		return err
	}
	logger.Info("World: level type %s, seed %d", generator.LevelType(), cfg.Game.Seed)

	w := world.NewManager(generator, provider, cfg.World.ManagerConfig(), metricsResult.World)
	d := dispatcher.New(
		config.DispatcherConfig(&cfg.Game),
		w,
		entity.NewRegistry(cfg.Game.ViewDistance),
		dispatcher.OfflineAuthenticator{},
		metricsResult.Game,
	)

	srv := server.New(d, w)
	srv.SetShutdownTimeout(cfg.Server.ShutdownTimeout)

	if metricsResult.Server != nil {
		metricsResult.Server.SetStatus(config.GameStatus(&cfg.Game, srv.Hub().Online))
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	adapters, err := config.CreateAdapters(cfg, metricsResult.Connection)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
