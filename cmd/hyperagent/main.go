// Command hyperagent runs the reasoning agent: an HTTP API over a paced
// decision loop, or a fixed number of cycles with -once.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/api"
	"github.com/goclaw/hyperagent/pkg/api/events"
	"github.com/goclaw/hyperagent/pkg/engine"
	"github.com/goclaw/hyperagent/pkg/logger"
	"github.com/goclaw/hyperagent/pkg/metrics"
	"github.com/goclaw/hyperagent/pkg/seed"
	"github.com/goclaw/hyperagent/pkg/storage"
	"github.com/goclaw/hyperagent/pkg/storage/badger"
	"github.com/goclaw/hyperagent/pkg/storage/memory"
	"github.com/goclaw/hyperagent/pkg/telemetry/tracing"
	"github.com/goclaw/hyperagent/pkg/version"
)

// options holds parsed command line flags.
type options struct {
	configPath string
	seedPath   string
	fileRoot   string
	once       int
	port       int
	logLevel   string
	debug      bool
	version    bool
	help       bool
}

func newFlagSet(opts *options, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("hyperagent", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.seedPath, "seed", "", "Path to a YAML seed of facts, goals and episodes")
	fs.StringVar(&opts.fileRoot, "file-root", "", "Directory the file_read tool may read from (disabled when empty)")
	fs.IntVar(&opts.once, "once", 0, "Run N cycles, print a report and exit")
	fs.IntVar(&opts.port, "port", 0, "Override server port")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	fs.BoolVar(&opts.version, "version", false, "Print version information")
	fs.BoolVar(&opts.help, "help", false, "Print help information")
	return fs
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.help {
		printHelp(stdout, fs)
		return 0
	}
	if opts.version {
		printVersion(stdout)
		return 0
	}
	if opts.once < 0 {
		fmt.Fprintln(stderr, "-once must not be negative")
		return 2
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(opts.configPath, opts.overrides())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration:\n%s\n", err)
		return 1
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	build := version.Info()
	log.Info("Starting hyperagent",
		"version", build.Version,
		"buildTime", build.BuildTime,
		"gitCommit", build.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name,
		tracing.WithServiceVersion(build.Version),
		tracing.WithEnvironment(cfg.App.Environment),
	)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	store, err := openStorage(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	metricsManager := metrics.NewManager(metrics.FromConfig(cfg.Metrics))

	engOpts := []engine.Option{engine.WithMetrics(metricsManager)}
	if opts.fileRoot != "" {
		engOpts = append(engOpts, engine.WithFileRoot(opts.fileRoot))
	}
	eng, err := engine.New(cfg, log, store, engOpts...)
	if err != nil {
		log.Error("Failed to create engine", "error", err)
		return 1
	}
	if err := eng.Start(ctx); err != nil {
		log.Error("Failed to start engine", "error", err)
		return 1
	}

	if opts.seedPath != "" {
		if err := applySeed(ctx, opts.seedPath, eng, log); err != nil {
			log.Error("Failed to apply seed", "error", err)
			stopEngine(eng, cfg, log)
			return 1
		}
	}

	if opts.once > 0 {
		code := runOnce(ctx, eng, opts.once, stdout, log)
		stopEngine(eng, cfg, log)
		return code
	}

	if err := serve(ctx, cfg, loader, opts.configPath, eng, metricsManager, log); err != nil {
		log.Error("Server error", "error", err)
		stopEngine(eng, cfg, log)
		return 1
	}
	stopEngine(eng, cfg, log)
	log.Info("hyperagent stopped gracefully")
	return 0
}

// overrides maps flags onto config keys. -once always runs without the
// background loop so the report covers exactly the requested cycles.
func (o *options) overrides() map[string]interface{} {
	overrides := make(map[string]interface{})
	if o.port != 0 {
		overrides["server.port"] = o.port
	}
	if o.logLevel != "" {
		overrides["log.level"] = o.logLevel
	}
	if o.debug {
		overrides["app.debug"] = true
	}
	if o.once > 0 {
		overrides["runner.enabled"] = false
	}
	return overrides
}

func openStorage(cfg *config.Config, log logger.Logger) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "badger":
		badgerCfg := &badger.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
		}
		store, err := badger.NewBadgerStorage(badgerCfg)
		if err != nil {
			return nil, err
		}
		log.Info("Initialized Badger storage", "path", badgerCfg.Path)
		return store, nil
	case "", "memory":
		log.Info("Initialized memory storage")
		return memory.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func applySeed(ctx context.Context, path string, eng *engine.Engine, log logger.Logger) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	res, err := f.Apply(ctx, eng)
	if err != nil {
		return err
	}
	log.Info("Seed applied",
		"path", path,
		"symbols", res.Symbols,
		"triples", res.Triples,
		"goals", res.Goals,
		"skipped_goals", res.SkippedGoals,
		"episodes", res.Episodes,
	)
	return nil
}

func runOnce(ctx context.Context, eng *engine.Engine, n int, out io.Writer, log logger.Logger) int {
	results, err := eng.RunCycles(ctx, n)
	renderCycles(out, eng, results)
	renderGoals(out, eng)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Cycle failed", "error", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, loader *config.Loader, configPath string,
	eng *engine.Engine, mm *metrics.Manager, log logger.Logger) error {
	if mm.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := mm.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, loader, config.WithErrorHandler(func(err error) {
			log.Warn("Config reload failed", "error", err)
		}))
		if err != nil {
			log.Warn("Config hot reload disabled", "error", err)
		} else {
			watcher.OnChange(eng.ApplyConfig)
			go func() {
				if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	handlers := api.NewHandlers(cfg, log, eng)
	handlers.Metrics = mm
	if handlers.Events != nil {
		relay := events.NewRelay(eng, handlers.Events, log.Named("relay"))
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("start event relay: %w", err)
		}
		defer relay.Stop()
	}

	httpServer := api.NewHTTPServer(cfg, log, handlers)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	log.Info("hyperagent is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"runner", cfg.Runner.Enabled,
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}
	return runErr
}

func stopEngine(eng *engine.Engine, cfg *config.Config, log logger.Logger) {
	timeout := cfg.Server.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		log.Error("Error during engine shutdown", "error", err)
	}
}

func printVersion(w io.Writer) {
	info := version.Info()
	fmt.Fprintf(w, "hyperagent %s\n", info)
	fmt.Fprintf(w, "Version:    %s\n", info.Version)
	fmt.Fprintf(w, "Build Time: %s\n", info.BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", info.GitCommit)
	fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
}

func printHelp(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "hyperagent - OODA reasoning agent over a knowledge graph and hypervector memory\n\n")
	fmt.Fprintf(w, "Usage: hyperagent [options]\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  hyperagent                                  # Serve the API with default config\n")
	fmt.Fprintf(w, "  hyperagent -config config.yaml              # Use specific config file\n")
	fmt.Fprintf(w, "  hyperagent -seed solar.yaml -once 10        # Seed, run 10 cycles, print a report\n")
	fmt.Fprintf(w, "  hyperagent -port 9090 -log-level debug      # Override specific options\n")
}
