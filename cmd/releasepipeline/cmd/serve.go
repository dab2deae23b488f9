package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cineripr/releasepipeline/internal/config"
	pipeerrors "github.com/cineripr/releasepipeline/internal/errors"
	"github.com/cineripr/releasepipeline/internal/extract"
	"github.com/cineripr/releasepipeline/internal/fileops"
	"github.com/cineripr/releasepipeline/internal/logging"
	"github.com/cineripr/releasepipeline/internal/metadata"
	"github.com/cineripr/releasepipeline/internal/pipeline"
	"github.com/cineripr/releasepipeline/internal/rename"
	"github.com/cineripr/releasepipeline/internal/settings"
	"github.com/cineripr/releasepipeline/internal/supervisor"
	"github.com/cineripr/releasepipeline/internal/tracker"
)

var serveOnce bool

// fatal logs a precondition failure and exits with code 1, the contract
// for configuration and tool-resolution errors.
func fatal(logger *slog.Logger, err error) {
	logger.Error("startup precondition failed",
		"kind", pipeerrors.KindOf(err).String(), "err", err)
	os.Exit(1)
}

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the release pipeline supervisor loop",
		Long:  `Watch the configured download roots, extract completed releases, and relocate them into the library.`,
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&serveOnce, "once", false, "run a single pass and exit instead of looping")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.SetupLogRotation(logging.Config{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal(logger, pipeerrors.NewConfigurationInvalid(err.Error()))
	}
	if err := cfg.ValidateDirectories(); err != nil {
		fatal(logger, pipeerrors.NewConfigurationInvalid(err.Error()))
	}

	// The archive tool must resolve before the loop starts.
	if _, err := extract.ResolveTool(cfg.Tool.Path, cfg.Tool.Candidates); err != nil {
		fatal(logger, pipeerrors.NewToolMissing(err.Error()))
	}

	store, err := settings.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open settings store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	manager := config.NewManager(cfg, configFile)
	track := tracker.New(logger)
	logger = logging.WithSink(logger, track)
	slog.SetDefault(logger)

	fs := afero.NewOsFs()
	ops := fileops.New(fs, logger)
	renamer := rename.New(fs, logger)

	var catalog *metadata.Catalog
	if len(cfg.Arrs) > 0 {
		instances := make([]metadata.Instance, 0, len(cfg.Arrs))
		for _, inst := range cfg.Arrs {
			instances = append(instances, metadata.Instance{
				Name: inst.Name, Type: inst.Type, URL: inst.URL, APIKey: inst.APIKey,
			})
		}
		catalog = metadata.NewCatalog(instances, logger)
	}
	metaStep := metadata.NewStep(catalog, logger)

	orchestrator := pipeline.NewOrchestrator(
		manager.GetConfigGetter(), store, track, ops, renamer, metaStep, catalog, logger)
	loop := supervisor.New(manager.GetConfigGetter(), store, track, ops, orchestrator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveOnce {
		// Single-shot mode for scripting: force one pass regardless of the
		// persisted repeat flag and surface the pass's exit code.
		if err := store.Set("repeat_forever", false); err != nil {
			logger.Warn("could not pin single-shot mode", "err", err)
		}
	}

	logger.Info("Starting release pipeline", "download_roots", cfg.Paths.DownloadRoots)
	code := loop.Run(ctx)

	if serveOnce && code != 0 {
		os.Exit(code)
	}
	return nil
}
