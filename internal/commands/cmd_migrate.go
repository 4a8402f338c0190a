package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/migrations"
)

type MigrateCmd struct {
	flags *Flags
	steps int
}

func NewMigrateCmd(flags *Flags) *MigrateCmd {
	return &MigrateCmd{flags: flags}
}

func (cmd *MigrateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "migrate",
		Usage: "Manage the event log schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: cmd.runUp,
			},
			{
				Name:  "down",
				Usage: "Roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Usage:       "number of migrations to roll back",
						Value:       1,
						Destination: &cmd.steps,
					},
				},
				Action: cmd.runDown,
			},
			{
				Name:   "version",
				Usage:  "Print the current schema version",
				Action: cmd.runVersion,
			},
		},
	})
	return app
}

func (cmd *MigrateCmd) runUp(ctx context.Context, _ *cli.Command) error {
	return migrations.Run(ctx, cmd.flags.Config.DatabaseURL, cmd.flags.Logger)
}

func (cmd *MigrateCmd) runDown(ctx context.Context, _ *cli.Command) error {
	if cmd.steps <= 0 {
		return fmt.Errorf("--steps must be positive, got %d", cmd.steps)
	}
	return migrations.Down(ctx, cmd.flags.Config.DatabaseURL, cmd.steps, cmd.flags.Logger)
}

func (cmd *MigrateCmd) runVersion(ctx context.Context, _ *cli.Command) error {
	version, dirty, err := migrations.Version(ctx, cmd.flags.Config.DatabaseURL)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.flags.Out, "%d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.flags.Out, "%d\n", version)
	return nil
}
