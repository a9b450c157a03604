package executil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Dir  string
	Cmd  string
	Args []string
}

// Key builds the lookup key for a command line, used by RecordingExecutor's
// Outputs and Errors maps.
func Key(cmd string, args ...string) string {
	return strings.Join(append([]string{cmd}, args...), " ")
}

// RecordingExecutor captures commands for testing. Outputs and Errors map
// full command lines (see Key) to canned return values; unmatched commands
// fall back to the bare command name, then to empty output.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	Outputs map[string][]byte
	Errors  map[string]error

	// Strict makes unmatched commands fail instead of returning empty
	// output, which keeps extraction tests honest about the git calls
	// they expect.
	Strict bool
}

var _ Executor = (*RecordingExecutor)(nil)

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.RunDir(ctx, "", cmd, args...)
}

// RunDir records the command with its directory and returns configured
// output/error.
func (e *RecordingExecutor) RunDir(_ context.Context, dir, cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Commands = append(e.Commands, RecordedCommand{Dir: dir, Cmd: cmd, Args: args})

	key := Key(cmd, args...)
	if err, ok := e.Errors[key]; ok {
		return nil, err
	}
	if out, ok := e.Outputs[key]; ok {
		return out, nil
	}
	if err, ok := e.Errors[cmd]; ok {
		return nil, err
	}
	if out, ok := e.Outputs[cmd]; ok {
		return out, nil
	}
	if e.Strict {
		return nil, fmt.Errorf("unexpected command: %s", key)
	}
	return nil, nil
}
