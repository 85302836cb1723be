package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"camscout/internal/adapter"
	"camscout/internal/attack"
	"camscout/internal/config"
	"camscout/internal/dict"
	"camscout/internal/interrupt"
	"camscout/internal/logger"
	"camscout/internal/media"
	"camscout/internal/netdetect"
	"camscout/internal/pipeline"
	"camscout/internal/plugin"
	"camscout/internal/probe"
	"camscout/internal/repository"
)

// Exit codes
const (
	exitOK          = 0
	exitSetup       = 1
	exitTaskFailed  = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Command line flags
	configPath := flag.String("c", "", "Config file path (default: search standard locations)")
	discover := flag.Bool("d", false, "Run the discovery stage (mapping and parsing)")
	brute := flag.Bool("b", false, "Run the attack stage (credentials and routes)")
	thumbnails := flag.Bool("t", false, "Run the thumbnail stage")
	validate := flag.Bool("g", false, "Run the stream validation stage")
	logLevel := flag.String("l", "", "Log level override (debug, info, warn, error)")
	targets := flag.String("targets", "", "Comma separated targets, overrides the config file")
	ports := flag.String("ports", "", "Ports to scan, overrides the config file")
	backend := flag.String("store", "", "Store backend, overrides the config file")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "camscout: %v\n", err)
		return exitSetup
	}
	if *targets != "" {
		cfg.Targets = splitList(*targets)
	}
	if *ports != "" {
		cfg.Ports = *ports
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "camscout: %v\n", err)
		return exitSetup
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "camscout: init logger: %v\n", err)
		return exitSetup
	}
	defer log.Close()

	if path != "" {
		log.Info("Configuration loaded", zap.String("path", path))
	}
	stages := pipeline.Stages{
		Discover:  *discover,
		Attack:    *brute,
		Thumbnail: *thumbnails,
		Validate:  *validate,
	}
	if len(cfg.Targets) == 0 && stages.Discovers() {
		subnets, err := netdetect.LocalSubnets()
		if err != nil || len(subnets) == 0 {
			log.Error("No targets configured and none could be detected", zap.Error(err))
			return exitSetup
		}
		log.Info("Targets detected from local interfaces", zap.Strings("targets", subnets))
		cfg.Targets = subnets
	}
	log.Debug("Effective configuration", zap.String("summary", cfg.Summary()))

	controller := interrupt.New()
	controller.OnChange(func(s interrupt.State) {
		log.Warn("Interrupt received", zap.Stringer("state", s))
	})
	ctx := context.Background()
	stopSignals := controller.Notify(ctx)
	defer stopSignals()

	loader := plugin.NewLoader(plugin.DefaultRegistry(), cfg.Store.PluginDir, cfg.Store.Symbol, log.Logger)
	return execute(ctx, cfg.Store, loader, log.Logger, func(store repository.Store) (*pipeline.Dispatcher, error) {
		return buildPipeline(cfg, stages, store, controller, log.Logger)
	})
}

// pipelineFactory assembles the dispatcher once the store is ready
type pipelineFactory func(store repository.Store) (*pipeline.Dispatcher, error)

// execute resolves and configures the store backend, then builds and runs
// the pipeline. Nothing is built, and no task runs, unless the store is
// ready.
func execute(ctx context.Context, storeCfg config.StoreConfig, loader *plugin.Loader, log *zap.Logger, build pipelineFactory) int {
	store, desc, err := loader.Load(storeCfg.Backend)
	if err != nil {
		log.Error("Failed to load store backend", zap.Error(err))
		return exitSetup
	}
	if err := store.Configure(ctx, storeCfg); err != nil {
		log.Error("Failed to configure store backend", zap.String("backend", desc.Name), zap.Error(err))
		return exitSetup
	}
	defer store.Close()
	log.Info("Store ready", zap.String("backend", store.Name()), zap.String("path", desc.Path))

	dispatcher, err := build(store)
	if err != nil {
		log.Error("Failed to build pipeline", zap.Error(err))
		return exitSetup
	}
	log.Info("Pipeline ready", zap.Strings("tasks", dispatcher.Tasks()))

	err = dispatcher.Run(ctx)
	switch {
	case err == nil:
		log.Info("Run complete")
		return exitOK
	case errors.Is(err, pipeline.ErrStopped), errors.Is(err, pipeline.ErrForceStopped):
		log.Warn("Run interrupted", zap.Error(err))
		return exitInterrupted
	default:
		log.Error("Run failed", zap.Error(err))
		return exitTaskFailed
	}
}

// buildPipeline wires the scan, attack and post-processing collaborators
func buildPipeline(cfg *config.Config, stages pipeline.Stages, store repository.Store, controller *interrupt.Controller, log *zap.Logger) (*pipeline.Dispatcher, error) {
	dictionary, err := dict.Load(cfg.Dictionaries.Credentials, cfg.Dictionaries.Routes)
	if err != nil {
		return nil, fmt.Errorf("load dictionaries: %w", err)
	}
	log.Info("Dictionaries loaded",
		zap.Int("usernames", len(dictionary.Usernames())),
		zap.Int("passwords", len(dictionary.Passwords())),
		zap.Int("routes", len(dictionary.Routes())),
	)

	runID := uuid.NewString()
	log.Info("Starting run", zap.String("run_id", runID), zap.Strings("targets", cfg.Targets))

	scanner := adapter.NewNmapScanner(cfg.Targets,
		adapter.WithPorts(cfg.Ports),
		adapter.WithTimingTemplate(cfg.Scan.Timing),
		adapter.WithServiceDetection(cfg.Scan.ServiceDetection),
		adapter.WithSkipHostDiscovery(cfg.Scan.SkipHostDiscovery),
		adapter.WithTimeout(cfg.Scan.Timeout.Duration()),
		adapter.WithReportDir(cfg.Scan.Dir),
		adapter.WithLogger(log),
	)
	engine := attack.NewEngine(store,
		probe.NewRTSPProber(cfg.Attack.Timeout.Duration(), log),
		dictionary,
		controller,
		attack.WithWorkers(cfg.Attack.MaxWorkers),
		attack.WithInterval(cfg.Attack.Interval.Duration()),
		attack.WithLogger(log),
	)

	// Progress events
	events := pipeline.NewEventBus()
	eventChan := make(chan pipeline.Event, 100)
	events.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			if event.Type == pipeline.EventTaskSucceeded {
				log.Debug("Progress", zap.String("task", event.Task), zap.Duration("elapsed", event.Duration))
			}
		}
	}()

	dispatcher := pipeline.NewDispatcher(controller, events, log)
	dispatcher.Build(stages, pipeline.Deps{
		RunID:       runID,
		Store:       store,
		Scanner:     scanner,
		ParseReport: adapter.ParseReport,
		Attacker:    engine,
		Thumbnailer: media.NewThumbnailer(cfg.Thumbnails.FFmpeg, cfg.Thumbnails.Dir, cfg.Thumbnails.Timeout.Duration(), log),
		Validator:   media.NewValidator(cfg.Validation.Timeout.Duration(), cfg.Validation.Transport, log),
		ReportPath:  cfg.Report.Path,
		Formats:     cfg.Report.Formats,
		Logger:      log,
	})
	return dispatcher, nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
