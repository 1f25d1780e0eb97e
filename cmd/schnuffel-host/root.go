package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/miampf/schnuffel/host"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/source"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose  bool
	budget   time.Duration
	sha256   string
	wasi     bool
	redisURL string
	cacheTTL time.Duration
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "schnuffel-host",
		Short:         "Load and run schnuffel plugin modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log at debug level, including plugin log lines")
	root.PersistentFlags().DurationVar(&g.budget, "budget", host.DefaultExecutionBudget, "Wall-clock budget for each call into the module")
	root.PersistentFlags().StringVar(&g.sha256, "sha256", "", "Require the module bytes to have this hex SHA-256 digest")
	root.PersistentFlags().BoolVar(&g.wasi, "wasi", false, "Grant the module WASI imports")
	root.PersistentFlags().StringVar(&g.redisURL, "redis", "", "Cache fetched modules in Redis (redis://host:port/db)")
	root.PersistentFlags().DurationVar(&g.cacheTTL, "cache-ttl", 24*time.Hour, "Expiry of modules cached in Redis")

	root.AddCommand(newConfigCmd(&g), newExecCmd(&g))
	return root
}

// hostOptions turns the global flags into host options. The returned cleanup
// releases the Redis cache, if one was opened.
func (g *globalFlags) hostOptions(cmd *cobra.Command) ([]host.Option, func(), error) {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts := []host.Option{host.WithLogger(logger)}
	if cmd.Flags().Changed("budget") {
		opts = append(opts, host.WithExecutionBudget(g.budget))
	}
	if g.sha256 != "" {
		opts = append(opts, host.WithSHA256(g.sha256))
	}
	if g.wasi {
		opts = append(opts, host.WithSandboxOptions(sandbox.WithWASI()))
	}

	cleanup := func() {}
	if g.redisURL != "" {
		cache, err := source.NewRedisCache(source.RedisOptions{URL: g.redisURL, TTL: g.cacheTTL})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, host.WithFetchOptions(source.WithCache(cache)))
		cleanup = func() {
			if err := cache.Close(); err != nil {
				logger.Warn("failed to close resource", "resource", "redis cache", "error", err)
			}
		}
	}
	return opts, cleanup, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
