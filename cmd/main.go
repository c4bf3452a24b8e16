package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/shared"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)
	err := app.Run(context.Background(), os.Args)
	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("failed to close store", "error", closeErr)
	}

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command. Its Before hook loads configuration into r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "recordkit",
		Usage:   "Store, query and expire notes through a record controller",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (.toml, .yaml or .yml)",
				Value:   "config.toml",
				Sources: cli.EnvVars(shared.EnvPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (overrides config): debug, info, warn, error",
			},
		},
		Before:   r.loadConfig,
		Commands: r.register(),
	}
}

// loadConfig reads the configuration file, falling back to defaults when it does not exist.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")

	config, err := shared.LoadConfigOrDefault(path)
	if err != nil {
		return ctx, fmt.Errorf("failed to load config: %w", err)
	}
	r.SetConfig(config, path)

	level := config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	ll, err := shared.ParseLogLevel(level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, ll)
	return ctx, nil
}
