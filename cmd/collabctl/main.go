package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/commands"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/config"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/logger"
)

func main() {
	flags := &commands.Flags{Out: os.Stdout}

	app := &cli.Command{
		Name:  "collabctl",
		Usage: "Operate the collaboration service",
		Description: `collabctl reads the same configuration as the service (YAML file plus
COLLAB_* environment variables) and works against its database or its
websocket endpoint.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a YAML config file",
				Sources:     cli.EnvVars("COLLAB_CONFIG"),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			l, err := logger.NewConsole(flags.LogLevel)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			flags.Config = cfg
			flags.Logger = l
			return ctx, nil
		},
		After: func(context.Context, *cli.Command) error {
			if flags.Logger != nil {
				_ = flags.Logger.Sync()
			}
			return nil
		},
	}

	app = commands.NewReplayCmd(flags).Register(app)
	app = commands.NewMigrateCmd(flags).Register(app)
	app = commands.NewTemplatesCmd(flags).Register(app)
	app = commands.NewWatchCmd(flags).Register(app)

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
