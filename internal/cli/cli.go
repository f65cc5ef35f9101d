package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/config"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/fetch"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/metrics"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
)

// CLI encapsulates the command-line interface with its dependencies.
type CLI struct {
	version     string
	verbose     bool
	silent      bool
	configFile  string
	metricsFile string
	runID       string
	initialized bool
	rootCmd     *cobra.Command
}

// New creates a new CLI instance with the given version string.
func New(version string) *CLI {
	c := &CLI{version: version}
	c.setupCommands()
	return c
}

// setupCommands initializes all CLI commands and their configurations.
func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:           "extractor",
		Short:         "Extract the entity list a query asks for from a web page",
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.initApp()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.writeMetrics()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	pf := c.rootCmd.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose/debug output")
	pf.BoolVarP(&c.silent, "silent", "s", false, "Suppress all logging")
	pf.StringVar(&c.configFile, "config", "", "YAML config file (keys are flag names)")
	pf.StringVar(&c.metricsFile, "metrics-file", "", "Write prometheus metrics to this file on exit")

	defaultHelp := c.rootCmd.HelpFunc()
	c.rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		c.initApp()
		defaultHelp(cmd, args)
	})

	c.rootCmd.AddCommand(c.newTrainCommand())
	c.rootCmd.AddCommand(c.newEvaluateCommand())
	c.rootCmd.AddCommand(c.newRunCommand())
	c.rootCmd.AddCommand(c.newDataCommand())
	c.rootCmd.AddCommand(c.newUpCommand())
}

// Run executes the CLI and returns any error.
func (c *CLI) Run(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// initApp initializes logging with a fresh run ID.
func (c *CLI) initApp() {
	if c.initialized {
		return
	}
	c.initialized = true
	c.runID = uuid.NewString()

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	if c.silent {
		level = slog.Level(100)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})).With("run_id", c.runID))
}

func (c *CLI) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(c.configFile, cmd.Flags())
}

func (c *CLI) writeMetrics() error {
	if c.metricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(c.metricsFile); err != nil {
		return err
	}
	slog.Debug("Metrics written", "path", c.metricsFile)
	return nil
}

// newFetcher opens the page cache of cfg and returns a fetcher over it and
// the frozen cache of the data folder. close syncs and closes the cache.
func newFetcher(cfg *config.Config) (f *fetch.Fetcher, closeFn func(), err error) {
	store := storage.NewStorage(cfg.DataDir)
	var cache *fetch.PageCache
	if cfg.CacheDir != "" {
		cache, err = fetch.OpenCache(fetch.CacheConfig{Path: cfg.CacheDir, Logger: slog.Default()})
		if err != nil {
			return nil, nil, err
		}
	}
	closeFn = func() {
		if cache == nil {
			return
		}
		if err := cache.Sync(); err != nil {
			slog.Warn("Failed to sync page cache", "error", err)
		}
		if err := cache.Close(); err != nil {
			slog.Warn("Failed to close page cache", "error", err)
		}
	}
	return fetch.New(cfg.FetchOptions(), store, cache), closeFn, nil
}
