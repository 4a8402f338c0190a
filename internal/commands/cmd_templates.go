package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
)

type TemplatesCmd struct {
	flags *Flags
	name  string
}

func NewTemplatesCmd(flags *Flags) *TemplatesCmd {
	return &TemplatesCmd{flags: flags}
}

func (cmd *TemplatesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "templates",
		Usage: "Print the session template presets",
		Description: `Prints the built-in presets merged with the file at templates.path,
in the same YAML format that file uses.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "print only this template",
				Destination: &cmd.name,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *TemplatesCmd) run(_ context.Context, _ *cli.Command) error {
	templates, err := domain.LoadTemplates(cmd.flags.Config.TemplatesPath)
	if err != nil {
		return err
	}

	out := make(map[string]domain.TemplatePreset, len(templates))
	if cmd.name != "" {
		preset, err := templates.Get(domain.Template(cmd.name))
		if err != nil {
			return err
		}
		out[cmd.name] = preset
	} else {
		for name, preset := range templates {
			out[string(name)] = preset
		}
	}

	enc := yaml.NewEncoder(cmd.flags.Out)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	return enc.Close()
}
