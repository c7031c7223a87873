package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/hop/internal/app"
	"github.com/MrSnakeDoc/hop/internal/config"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/seed"
	"github.com/MrSnakeDoc/hop/internal/version"
)

var (
	seedFile string

	rootCmd = &cobra.Command{
		Use:   "hop",
		Short: "hop is a URL shortener",
		Long: `hop maps short codes to destination URLs, redirects them and
records click analytics. Configuration is read from HOP_* environment variables.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  runServe,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load development links and clicks from a YAML file",
		RunE:  runSeed,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Flag every link whose expiry has passed, once",
		RunE:  runSweep,
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis redirect cache",
	}

	cacheFlushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Delete every cached link",
		RunE:  runCacheFlush,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
)

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "seed.yaml", "path to the seed YAML file")

	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(serveCmd, seedCmd, sweepCmd, cacheCmd, versionCmd)
}

// setup loads the configuration and the logger shared by every command.
func setup() (*config.Config, logger.Logger) {
	cfg := config.Load()
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log := setup()
	defer func() { _ = log.Sync() }()

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	return a.Run()
}

// withCore runs fn against a connected core and closes it afterwards.
func withCore(ctx context.Context, fn func(ctx context.Context, core *app.Core) error) error {
	cfg, log := setup()
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout+time.Minute)
	defer cancel()

	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			log.Warn("failed to close storage", logger.Error(err))
		}
	}()

	return fn(ctx, core)
}

func runSeed(cmd *cobra.Command, args []string) error {
	file, err := seed.NewLoader(seedFile).Load()
	if err != nil {
		return err
	}

	return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
		res, err := seed.NewSeeder(core.Store, core.Generator, core.Logger.Named("seed"), nil).Apply(ctx, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d links and %d clicks (%d already present)\n",
			res.Links, res.Clicks, res.Skipped)
		return nil
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
		n, err := core.Lifecycle.SweepExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d links expired\n", n)
		return nil
	})
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
		if core.Redis == nil {
			return fmt.Errorf("redis is not configured (HOP_REDIS_ADDR is empty)")
		}
		n, err := core.Redis.FlushLinks(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d cached links\n", n)
		return nil
	})
}
