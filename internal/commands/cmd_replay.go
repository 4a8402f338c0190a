package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/repository"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/storage/postgres"
)

const replayPageSize = 500

// EventLog is the read side of the event log.
type EventLog interface {
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]events.Envelope, error)
	LastSeq(ctx context.Context) (int64, error)
}

type ReplayCmd struct {
	flags *Flags

	until   int64
	verbose bool
}

func NewReplayCmd(flags *Flags) *ReplayCmd {
	return &ReplayCmd{flags: flags}
}

func (cmd *ReplayCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "replay",
		Usage: "Fold the event log and print the resulting state",
		Description: `Reads the event log from the database in order and applies every event
with the same reducer the server uses. Events the reducer refuses are counted
as rejected; --verbose prints each one.`,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "until",
				Usage:       "stop after this seq (0 replays everything)",
				Destination: &cmd.until,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "print rejected events",
				Destination: &cmd.verbose,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReplayCmd) run(ctx context.Context, _ *cli.Command) error {
	pool, err := postgres.New(ctx, cmd.flags.Config.DatabaseURL, postgres.Options{MaxConns: 2}, cmd.flags.Logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return cmd.replay(ctx, repository.New(pool))
}

func (cmd *ReplayCmd) replay(ctx context.Context, log EventLog) error {
	head, err := log.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}
	stop := head
	if cmd.until > 0 && cmd.until < head {
		stop = cmd.until
	}

	var (
		state   projection.State
		after   int64
		applied int
		refused []error
	)
	for after < stop {
		page, err := log.ListEvents(ctx, after, replayPageSize)
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
		page = truncateAt(page, stop)
		if len(page) == 0 {
			break
		}

		next, skipped, err := projection.Fold(state, page)
		if err != nil {
			return fmt.Errorf("fold event log: %w", err)
		}
		state = next
		after = page[len(page)-1].Seq
		applied += len(page)
		refused = append(refused, skipped...)
	}

	cmd.flags.Logger.Debug("replay finished",
		zap.Int("events", applied),
		zap.Int64("last_seq", after),
		zap.Int64("head", head),
	)

	if cmd.verbose {
		for _, err := range refused {
			fmt.Fprintf(cmd.flags.Out, "rejected: %v\n", err)
		}
	}

	s := summarize(state)
	s.Events = applied
	s.Rejected = len(refused)
	s.LastSeq = after
	s.Head = head
	return writeSummary(cmd.flags.Out, s)
}

func truncateAt(page []events.Envelope, seq int64) []events.Envelope {
	for i, env := range page {
		if env.Seq > seq {
			return page[:i]
		}
	}
	return page
}
