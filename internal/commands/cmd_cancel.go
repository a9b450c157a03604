package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type CancelCmd struct {
	flags *Flags

	// flags
	reason string
}

// NewCancelCmd creates a new cancel command
func NewCancelCmd(flags *Flags) *CancelCmd {
	return &CancelCmd{flags: flags}
}

// Register adds the cancel command to the application
func (cmd *CancelCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel a pending review session",
		UsageText: "holdpoint cancel [--reason] <session-id>",
		Description: `Cancels a pending review session and releases any blocked waiters.

Cancelling a session that has already been decided is a no-op.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "reason",
				Usage:       "reason reported to waiters",
				Destination: &cmd.reason,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *CancelCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one session id argument")
	}
	id := c.Args().First()

	api, err := cmd.flags.Client()
	if err != nil {
		return err
	}

	if err := api.Cancel(ctx, id, cmd.reason); err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "Cancelled %s\n", id)
	return nil
}
