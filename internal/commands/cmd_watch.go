package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/channel"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/collab"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

type WatchCmd struct {
	flags *Flags

	url      string
	user     string
	username string
	rooms    []string
}

func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "watch",
		Usage: "Follow a running server's channel",
		Description: `Connects to /ws as a collaborator, prints every event it receives and
keeps a local projection. On exit (Ctrl-C or server shutdown) the projected
state is summarized.

Example: collabctl watch --user alice --room s1`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "websocket endpoint (defaults to ws://localhost:<http.port>/ws)",
				Sources:     cli.EnvVars("COLLAB_WATCH_URL"),
				Destination: &cmd.url,
			},
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id to connect as",
				Required:    true,
				Destination: &cmd.user,
			},
			&cli.StringFlag{
				Name:        "username",
				Usage:       "display name (defaults to the user id)",
				Destination: &cmd.username,
			},
			&cli.StringSliceFlag{
				Name:        "room",
				Aliases:     []string{"r"},
				Usage:       "session id whose room to join, may be repeated",
				Destination: &cmd.rooms,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *WatchCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := cmd.flags.Config
	log := cmd.flags.Logger

	url := cmd.url
	if url == "" {
		url = "ws://localhost:" + cfg.HTTPPort + "/ws"
	}
	username := cmd.username
	if username == "" {
		username = cmd.user
	}

	templates, err := domain.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		return err
	}

	client, err := channel.Dial(ctx, url, cmd.user, cfg.HubBuffer, log)
	if err != nil {
		return err
	}
	defer client.Close()

	ctrl := collab.New(client, templates, printNotifier{w: cmd.flags.Out}, dropLogger{log: log}, log, collab.Config{
		User:          domain.UserRef{ID: cmd.user, Username: username},
		TypingTimeout: cfg.TypingTimeout,
		InvitationTTL: cfg.InvitationTTL,
	})
	defer ctrl.Close()

	unsubscribe := client.SubscribeAll(func(env events.Envelope) {
		writeEvent(cmd.flags.Out, env)
	})
	defer unsubscribe()

	for _, room := range cmd.rooms {
		if err := client.JoinRoom(ctx, room, cmd.user); err != nil {
			return fmt.Errorf("join %s: %w", room, err)
		}
	}

	log.Info("watching", zap.String("url", url), zap.Strings("rooms", cmd.rooms))
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Fprintln(cmd.flags.Out)
	return writeSummary(cmd.flags.Out, summarize(ctrl.Snapshot()))
}

func writeEvent(w io.Writer, env events.Envelope) {
	seq := "-"
	if env.Seq > 0 {
		seq = fmt.Sprint(env.Seq)
	}
	fmt.Fprintf(w, "%6s  %s  %-28s %-12s %s\n",
		seq, env.At.Local().Format(time.TimeOnly), env.Event, env.Sender, env.Room)
}

type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Notify(level collab.Level, message string) {
	fmt.Fprintf(n.w, "[%s] %s\n", level, message)
}

type dropLogger struct {
	log *zap.Logger
}

func (d dropLogger) EventApplied(events.Name) {}

func (d dropLogger) EventDropped(name events.Name, err error) {
	d.log.Warn("event not applied", zap.String("event", string(name)), zap.Error(err))
}
