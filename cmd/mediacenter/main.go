package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/mmcdole/mediacenter/internal/config"
	"github.com/mmcdole/mediacenter/internal/log"
	"github.com/mmcdole/mediacenter/internal/metadata"
	"github.com/mmcdole/mediacenter/internal/paths"
	"github.com/mmcdole/mediacenter/internal/provider"
	"github.com/mmcdole/mediacenter/internal/provider/builtin"
	"github.com/mmcdole/mediacenter/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

var errUsage = errors.New("usage")

// app carries the wired services for one command
type app struct {
	cfg       *config.Config
	paths     *paths.Paths
	logger    *slog.Logger
	store     *store.ItemStore
	registry  *provider.Registry
	refresher *metadata.Refresher
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"paths":       {"paths", runPaths},
	"providers":   {"providers [-match q]", runProviders},
	"import":      {"import [-kind k] <path>...", runImport},
	"items":       {"items [-filter q]", runItems},
	"refresh":     {"refresh [-force] [-fast] [<id|path>...]", runRefresh},
	"watch-input": {"watch-input", runWatchInput},
}

func main() {
	// Handle version flag
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("mediacenter %s\n", Version)
		return
	}

	if err := run(flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: mediacenter [-v] <command> [args]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	fmt.Fprint(os.Stderr, b.String())
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	a.logger.Info("starting mediacenter", "version", Version, "command", args[0])
	return cmd.run(ctx, a, args[1:])
}

// setup loads configuration and wires the services every command shares.
func setup() (*app, func(), error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	p, err := paths.New(cfg.Paths.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare directories: %w", err)
	}
	if cfg.Paths.UserSettings != "" {
		if err := p.SetUserSettingsPath(cfg.Paths.UserSettings); err != nil {
			return nil, nil, err
		}
	}

	// Setup logger
	logger, sink, err := log.SetupLogger(&cfg.Logging, p.AppLogPath())
	if err != nil {
		// Fall back to null logger if file logging fails
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	s, err := store.NewItemStore(p.AppProviderCachePath())
	if err != nil {
		closeSink(sink)
		return nil, nil, fmt.Errorf("failed to open item store: %w", err)
	}

	registry, err := builtin.NewRegistry(cfg)
	if err != nil {
		s.Close()
		closeSink(sink)
		return nil, nil, fmt.Errorf("failed to register providers: %w", err)
	}

	refresher := metadata.NewRefresher(registry, s, metadata.Options{
		AllowInternetProviders: cfg.Metadata.AllowInternetProviders,
	}, logger)

	a := &app{
		cfg:       cfg,
		paths:     p,
		logger:    logger,
		store:     s,
		registry:  registry,
		refresher: refresher,
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close item store", "error", err)
		}
		logger.Info("shutting down")
		closeSink(sink)
	}
	return a, cleanup, nil
}

func closeSink(sink *log.MultiSink) {
	if sink != nil {
		sink.Close()
	}
}
