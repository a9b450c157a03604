package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/holdpoint/internal/core/review"
	"github.com/colonyops/holdpoint/internal/core/styles"
)

type WaitCmd struct {
	flags *Flags

	// flags
	poll bool
}

// NewWaitCmd creates a new wait command
func NewWaitCmd(flags *Flags) *WaitCmd {
	return &WaitCmd{flags: flags}
}

// Register adds the wait command to the application
func (cmd *WaitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "wait",
		Usage:     "Wait for a review session to be decided",
		UsageText: "holdpoint wait [--poll] <session-id>",
		Description: `Blocks until the reviewer decides, then prints the outcome.

Use --poll to print the current status immediately instead of blocking.
Exits non-zero when the review ends in anything but approval.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "poll",
				Usage:       "print the current status without blocking",
				Destination: &cmd.poll,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WaitCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one session id argument")
	}

	api, err := cmd.flags.Client()
	if err != nil {
		return err
	}

	status, err := api.Wait(ctx, c.Args().First(), !cmd.poll)
	if err != nil {
		return fmt.Errorf("wait for review: %w", err)
	}

	printOutcome(c.Root().Writer, status)

	if cmd.poll || status.Status == review.StatusApproved {
		return nil
	}
	return cli.Exit("", 1)
}

// printOutcome renders a wait projection for the terminal.
func printOutcome(out io.Writer, status review.WaitStatus) {
	fmt.Fprintf(out, "%s %s\n", styles.Render(styles.Title, "Review"), styles.Status(string(status.Status)))

	if status.Reason != "" {
		fmt.Fprintf(out, "  %s\n", status.Reason)
	}
	if status.Feedback != "" {
		fmt.Fprintf(out, "\n%s\n  %s\n", styles.Render(styles.Title, "Feedback:"), status.Feedback)
	}
	if len(status.Comments) > 0 {
		fmt.Fprintf(out, "\n%s\n", styles.Render(styles.Title, "Comments:"))
		for _, cm := range status.Comments {
			loc := fmt.Sprintf("%s:%d", cm.FilePath, cm.StartLine)
			if cm.EndLine > cm.StartLine {
				loc = fmt.Sprintf("%s-%d", loc, cm.EndLine)
			}
			fmt.Fprintf(out, "  %s\n    %s\n", styles.Render(styles.Muted, loc), cm.Text)
		}
	}
}
