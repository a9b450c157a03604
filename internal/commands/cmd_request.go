package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/holdpoint/internal/client"
	"github.com/colonyops/holdpoint/internal/core/git"
	"github.com/colonyops/holdpoint/internal/core/review"
	"github.com/colonyops/holdpoint/internal/core/styles"
)

type RequestCmd struct {
	flags *Flags

	// flags
	source      string
	commit      string
	base        string
	head        string
	dir         string
	title       string
	description string
	wait        bool
}

// NewRequestCmd creates a new request command
func NewRequestCmd(flags *Flags) *RequestCmd {
	return &RequestCmd{flags: flags}
}

// Register adds the request command to the application
func (cmd *RequestCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "request",
		Usage:     "Request a human review of changes",
		UsageText: "holdpoint request [--source] [--wait] [paths...]",
		Description: `Creates a review session from local changes and prints the review URL.

Sources:
  uncommitted  working tree changes against HEAD (default)
  commit       a single commit (requires --commit)
  branch       a branch diff (requires --head, --base defaults to the merge base)
  local        plain files matched by path patterns, no git required

With --wait the command suspends until the reviewer decides, then prints the
outcome and exits non-zero when changes were requested or the review was
cancelled.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "source",
				Usage:       "file source (uncommitted, commit, branch, local)",
				Value:       string(git.SourceUncommitted),
				Destination: &cmd.source,
			},
			&cli.StringFlag{
				Name:        "commit",
				Usage:       "commit hash for the commit source",
				Destination: &cmd.commit,
			},
			&cli.StringFlag{
				Name:        "base",
				Usage:       "base ref for the branch source",
				Destination: &cmd.base,
			},
			&cli.StringFlag{
				Name:        "head",
				Usage:       "head ref for the branch source",
				Destination: &cmd.head,
			},
			&cli.StringFlag{
				Name:        "dir",
				Usage:       "repository directory (defaults to the working directory)",
				Destination: &cmd.dir,
			},
			&cli.StringFlag{
				Name:        "title",
				Aliases:     []string{"t"},
				Usage:       "review title shown in the browser",
				Destination: &cmd.title,
			},
			&cli.StringFlag{
				Name:        "description",
				Usage:       "context for the reviewer",
				Destination: &cmd.description,
			},
			&cli.BoolFlag{
				Name:        "wait",
				Aliases:     []string{"w"},
				Usage:       "block until the review is decided",
				Destination: &cmd.wait,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RequestCmd) run(ctx context.Context, c *cli.Command) error {
	api, err := cmd.flags.Client()
	if err != nil {
		return err
	}

	dir := cmd.dir
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
	}

	spec := git.SourceSpec{
		Type:   git.SourceType(cmd.source),
		Dir:    dir,
		Commit: cmd.commit,
		Base:   cmd.base,
		Head:   cmd.head,
		Paths:  c.Args().Slice(),
	}

	created, err := api.CreateSession(ctx, client.CreateSessionRequest{
		Source:      spec,
		Title:       cmd.title,
		Description: cmd.description,
	})
	if err != nil {
		return fmt.Errorf("create review session: %w", err)
	}

	out := c.Root().Writer
	fmt.Fprintf(out, "%s %s\n", styles.Render(styles.Title, "Review requested:"), created.SessionID)
	fmt.Fprintf(out, "  %d file(s)\n", created.FilesCount)
	fmt.Fprintf(out, "  %s\n", styles.Render(styles.URL, created.URL))

	if !cmd.wait {
		return nil
	}

	fmt.Fprintln(out, styles.Render(styles.Muted, "Waiting for review..."))

	status, err := api.Wait(ctx, created.SessionID, true)
	if err != nil {
		return fmt.Errorf("wait for review: %w", err)
	}

	printOutcome(out, status)

	if status.Status == review.StatusApproved {
		return nil
	}
	return cli.Exit("", 1)
}
