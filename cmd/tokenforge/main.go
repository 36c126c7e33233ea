package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"tokenforge.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Full bool `short:"f" help:"Bypass the dependency diff and rebuild everything"`
	} `cmd:"" help:"Run one build of the configured token sources"`

	Watch struct{} `cmd:"" help:"Watch sources and rebuild on change"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	_ = godotenv.Load()
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "build":
		if err := runBuild(CLI.Config, CLI.Build.Full); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(CLI.Config); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	}
}

func runBuild(configPath string, full bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	caches, err := newCaches(cfg)
	if err != nil {
		return err
	}
	env, err := newEnvironment(cfg, caches)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			slog.Warn("Environment teardown reported errors", "error", err)
		}
	}()

	reporter := newSlogReporter()
	summary, err := env.Runner.Run(ctx, "manual build", full)
	if err != nil {
		reporter.BuildFailed("manual build", err)
		return err
	}
	reporter.BuildSucceeded(summary)
	return nil
}

func runWatch(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	caches, err := newCaches(cfg)
	if err != nil {
		return err
	}

	orch, err := watch.NewOrchestrator(watch.Options{
		ConfigPath: configPath,
		Factory:    newEnvironment,
		Watcher:    watch.NewFSWatcher(),
		Reporter:   newSlogReporter(),
		Caches:     caches,
	})
	if err != nil {
		return err
	}
	if err := orch.Start(ctx); err != nil {
		return err
	}

	slog.Info("Watching for changes, press Ctrl+C to stop")
	<-ctx.Done()

	slog.Info("Shutdown signal received, closing watch session")
	return orch.Close()
}
