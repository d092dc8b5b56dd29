// Package ui holds the command tree of the canasat CLI.
package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/forest-guardian/canasat/internal/cache"
	"github.com/forest-guardian/canasat/internal/gdalio"
	"github.com/forest-guardian/canasat/internal/logger"
	"github.com/forest-guardian/canasat/internal/metrics"
	"github.com/forest-guardian/canasat/internal/notification"
	"github.com/forest-guardian/canasat/internal/properties"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Set through -ldflags at build time.
var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

const (
	loaderCacheSize = 64
	queryCacheAge   = 30 * 24 * time.Hour
)

// app carries what every command needs once configuration is loaded.
type app struct {
	cfgFile  string
	logLevel string

	cfg      properties.Config
	logger   zerolog.Logger
	metrics  *metrics.Provider
	notifier *notification.Discord
	store    *gdalio.Store
	loader   raster.Loader
}

func (a *app) init(cmd *cobra.Command) error {
	if err := properties.Init(a.cfgFile); err != nil {
		return err
	}
	cfg, err := properties.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = logger.Build(logger.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Component: cmd.Name()}, cmd.ErrOrStderr())
	a.metrics = metrics.Init(metrics.BuildInfo{Version: Version, Revision: Revision, BuildDate: BuildDate})
	a.notifier = notification.NewDiscord(cfg.Discord.ErrorURL, cfg.Discord.SuccessURL)
	return nil
}

// rasters opens the GDAL store on first use so commands that never touch a
// raster do not register drivers.
func (a *app) rasters() (*gdalio.Store, raster.Loader, error) {
	if a.store != nil {
		return a.store, a.loader, nil
	}
	store := gdalio.NewStore(a.logger)
	loader, err := raster.NewCachedLoader(store, loaderCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create raster cache: %w", err)
	}
	a.store, a.loader = store, loader
	return store, loader, nil
}

// catalog returns nil when no Copernicus credentials are configured.
func (a *app) catalog() (*sentinel.Catalog, error) {
	if !a.cfg.HasSentinelCredentials() {
		return nil, nil
	}
	queries := cache.NewFileCache[sentinel.Product](a.cfg.CacheDir, cache.WithMaxAge[sentinel.Product](queryCacheAge))
	return sentinel.NewCatalog(a.cfg.CatalogConfig(),
		sentinel.WithQueryCache(queries),
		sentinel.WithCatalogLogger(a.logger),
	)
}

func (a *app) finish() error {
	if a.metrics == nil || a.cfg.MetricsFile == "" {
		return nil
	}
	return a.metrics.WriteTextfile(a.cfg.MetricsFile)
}

func (a *app) notifyError(ctx context.Context, message string) {
	if err := a.notifier.SendError(ctx, message); err != nil {
		a.logger.Warn().Err(err).Msg("failed to send error notification")
	}
}

func (a *app) notifySuccess(ctx context.Context, message string) {
	if err := a.notifier.SendSuccess(ctx, message); err != nil {
		a.logger.Warn().Err(err).Msg("failed to send success notification")
	}
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "canasat",
		Short:         "Sentinel-2 spectral index maps",
		Long:          "canasat downloads Sentinel-2 L2A scenes, computes spectral indices and renders them as interactive maps.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.finish()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default canasat.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(a),
		newIndexCommand(a),
		newMultiCommand(a),
		newTrueColorCommand(a),
		newCSVMapCommand(a),
		newDashboardCommand(a),
		newGalleryCommand(a),
		newCompareCommand(a),
		newIndicesCommand(),
		newServeCommand(a),
	)
	return root
}

// Execute runs the CLI and prints the error, if any, in red.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(os.Stderr, err.Error())
		return err
	}
	return nil
}
