package executil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run(t *testing.T) {
	e := &RealExecutor{}

	out, err := e.Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRealExecutor_RunDir(t *testing.T) {
	e := &RealExecutor{}
	dir := t.TempDir()

	out, err := e.RunDir(context.Background(), dir, "pwd")
	require.NoError(t, err)
	assert.Contains(t, string(out), dir)
}

func TestRealExecutor_ErrorIncludesStderr(t *testing.T) {
	e := &RealExecutor{}

	_, err := e.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRecordingExecutor_KeyedLookup(t *testing.T) {
	rec := &RecordingExecutor{
		Outputs: map[string][]byte{
			Key("git", "diff", "HEAD"): []byte("patch"),
			"git":                      []byte("fallback"),
		},
		Errors: map[string]error{
			Key("git", "merge-base", "a", "b"): errors.New("no common ancestor"),
		},
	}

	out, err := rec.Run(context.Background(), "git", "diff", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "patch", string(out))

	out, err = rec.Run(context.Background(), "git", "status")
	require.NoError(t, err)
	assert.Equal(t, "fallback", string(out))

	_, err = rec.Run(context.Background(), "git", "merge-base", "a", "b")
	assert.ErrorContains(t, err, "no common ancestor")

	assert.Len(t, rec.Commands, 3)
}

func TestRecordingExecutor_Strict(t *testing.T) {
	rec := &RecordingExecutor{Strict: true}

	_, err := rec.Run(context.Background(), "git", "push")
	assert.ErrorContains(t, err, "unexpected command")
}
