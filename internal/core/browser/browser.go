// Package browser opens review URLs in the user's browser. Failures here
// are never fatal: a session is still reachable by pasting the URL.
package browser

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/colonyops/holdpoint/pkg/executil"
)

// Opener launches the platform browser, or a user-configured command.
type Opener struct {
	command string
	exec    executil.Executor
	log     zerolog.Logger
}

// NewOpener creates an opener. command overrides the platform default when
// non-empty.
func NewOpener(command string, exec executil.Executor, logger zerolog.Logger) *Opener {
	return &Opener{command: command, exec: exec, log: logger}
}

// Open launches the browser at url.
func (o *Opener) Open(ctx context.Context, url string) error {
	cmd, args := o.openCommand(url)
	_, err := o.exec.Run(ctx, cmd, args...)
	return err
}

// OpenBestEffort launches the browser and downgrades failure to a warning.
func (o *Opener) OpenBestEffort(ctx context.Context, url string) {
	if err := o.Open(ctx, url); err != nil {
		o.log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}

func (o *Opener) openCommand(url string) (string, []string) {
	if o.command != "" {
		return o.command, []string{url}
	}

	switch runtime.GOOS {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "cmd", []string{"/c", "start", url}
	default:
		return "xdg-open", []string{url}
	}
}
