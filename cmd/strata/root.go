package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/adapters/file"
	"github.com/aretw0/strata/pkg/adapters/loam"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/adapters/sqlite"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata edits layered pipeline configurations",
	Long: `Strata stores pipelines as stacks of layers. A child pipeline inherits
its parent's layers and records its own changes on top, so inherited
elements and properties can be overridden, removed and reverted.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	flags.String("store", "", "Pipeline store: memory, file, redis, sqlite or loam (default file)")
	flags.String("dir", "", "Directory of the file and loam stores (default .strata/pipelines)")
	flags.String("redis-addr", "", "Redis address (default localhost:6379)")
	flags.String("sqlite-path", "", "SQLite database file (default .strata/strata.db)")
	flags.String("registry", "", "YAML element type catalogue replacing the built-in one")
	flags.String("log-level", "", "Log level: debug, info, warn or error (default info)")
}

// settings loads the config file, lets explicitly set flags override it and
// fills the remaining defaults.
func settings(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("store", &cfg.Store)
	override("dir", &cfg.Dir)
	override("redis-addr", &cfg.Redis.Addr)
	override("sqlite-path", &cfg.SQLite.Path)
	override("registry", &cfg.Registry)
	override("log-level", &cfg.LogLevel)

	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// app bundles what a command needs; Close releases the store.
type app struct {
	cfg      config.Config
	editor   *strata.Editor
	registry *registry.Registry
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := settings(cmd)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New(level)}

	a.registry = registry.Default()
	if cfg.Registry != "" {
		if a.registry, err = registry.LoadFile(cfg.Registry); err != nil {
			return nil, err
		}
	}

	store, locker, err := a.openStore()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a.gatherer = reg
	opts := []strata.Option{
		strata.WithStore(store),
		strata.WithRegistry(a.registry),
		strata.WithLogger(a.logger),
		strata.WithMetrics(reg),
		strata.WithHistoryLimit(cfg.HistoryLimit),
	}
	if locker != nil {
		opts = append(opts, strata.WithLocker(locker))
	}
	if a.editor, err = strata.New(opts...); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore() (ports.PipelineStore, ports.DistributedLocker, error) {
	cfg := a.cfg
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil
	case config.StoreFile:
		return file.New(cfg.Dir), nil, nil
	case config.StoreLoam:
		store, err := loam.New(cfg.Dir)
		return store, nil, err
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil
	case config.StoreRedis:
		ttl, err := cfg.RedisTTL()
		if err != nil {
			return nil, nil, err
		}
		opts := []redis.Option{redis.WithTTL(ttl)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		store := redis.New(cfg.Redis.Addr, "", 0, opts...)
		a.closers = append(a.closers, store.Close)
		return store, redis.NewLocker(store.Client(), store.Prefix()), nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// withApp wraps a command body that needs an editor.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}
