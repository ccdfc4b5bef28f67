package process_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrun/sandrun/internal/executor/process"
	"github.com/sandrun/sandrun/internal/model"
)

func newTestExecutor(t *testing.T, root string) *process.Executor {
	t.Helper()

	exec, err := process.NewExecutor(process.ExecutorConfig{
		AllowedRoot: root,
		GracePeriod: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	return exec
}

func TestExecutorExecute(t *testing.T) {
	tests := map[string]struct {
		request model.ExecutionRequest
		check   func(t *testing.T, res *model.ExecutionResult)
	}{
		"A simple echo should complete with exit code zero": {
			request: model.ExecutionRequest{
				Command:       []string{"echo", "hello world"},
				Timeout:       10 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Equal(t, 0, res.ExitCode)
				assert.True(t, res.Success())
				assert.Contains(t, res.Stdout, "hello world")
			},
		},

		"A nonzero exit should still be a completed run": {
			request: model.ExecutionRequest{
				Command:       []string{"sh", "-c", "exit 42"},
				Timeout:       10 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Equal(t, 42, res.ExitCode)
				assert.False(t, res.Success())
			},
		},

		"A command exceeding its timeout should time out": {
			request: model.ExecutionRequest{
				Command:       []string{"sleep", "10"},
				Timeout:       300 * time.Millisecond,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeTimedOut, res.Outcome)
				assert.GreaterOrEqual(t, res.Duration, 300*time.Millisecond)
				assert.Less(t, res.Duration, 5*time.Second, "the process must be terminated, not waited for")
			},
		},

		"Caller environment variables should reach the command": {
			request: model.ExecutionRequest{
				Command:       []string{"sh", "-c", "echo $TEST_VAR"},
				Env:           map[string]string{"TEST_VAR": "test_value"},
				Timeout:       10 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Contains(t, res.Stdout, "test_value")
			},
		},

		"A stdin payload should be written to the command": {
			request: model.ExecutionRequest{
				Command:       []string{"cat"},
				Stdin:         "hello from stdin",
				Timeout:       10 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Contains(t, res.Stdout, "hello from stdin")
			},
		},

		"A command reading stdin without a payload should not block": {
			request: model.ExecutionRequest{
				Command:       []string{"cat"},
				Timeout:       5 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Empty(t, res.Stdout)
			},
		},

		"A nonexistent binary should fail, not time out": {
			request: model.ExecutionRequest{
				Command:       []string{"nonexistent_command_xyz_123"},
				Timeout:       10 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeFailed, res.Outcome)
				assert.NotEmpty(t, res.Reason)
				assert.Error(t, res.Cause)
			},
		},

		"An empty command should be denied": {
			request: model.ExecutionRequest{
				Timeout: 10 * time.Second,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeDenied, res.Outcome)
				assert.NotEmpty(t, res.Reason)
			},
		},

		"A traversal input file should be denied before staging": {
			request: model.ExecutionRequest{
				Command:       []string{"echo", "never runs"},
				InputFiles:    []string{"../../etc/passwd"},
				Timeout:       10 * time.Second,
				CaptureOutput: true,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeDenied, res.Outcome)
				assert.Contains(t, res.Reason, "input file rejected")
			},
		},

		"Disabling output capture should discard stdout": {
			request: model.ExecutionRequest{
				Command: []string{"echo", "discarded"},
				Timeout: 10 * time.Second,
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Empty(t, res.Stdout)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			exec := newTestExecutor(t, t.TempDir())

			res, err := exec.Execute(context.Background(), test.request)
			require.NoError(t, err)

			test.check(t, res)
		})
	}
}

func TestExecutorInputStaging(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "input.txt"), []byte("staged content"), 0o600))

	exec := newTestExecutor(t, root)

	res, err := exec.Execute(context.Background(), model.ExecutionRequest{
		Command:       []string{"sh", "-c", `cat "$INPUT_DIR/input.txt"`},
		InputFiles:    []string{"input.txt"},
		Timeout:       10 * time.Second,
		CaptureOutput: true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, res.Outcome)
	assert.Contains(t, res.Stdout, "staged content")
}

func TestExecutorArtifactRoundTrip(t *testing.T) {
	exec := newTestExecutor(t, t.TempDir())

	res, err := exec.Execute(context.Background(), model.ExecutionRequest{
		Command:       []string{"sh", "-c", `printf hello > "$OUTPUT_DIR/greeting.txt"`},
		Timeout:       10 * time.Second,
		CaptureOutput: true,
	})
	require.NoError(t, err)

	require.Equal(t, model.OutcomeCompleted, res.Outcome)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "greeting.txt", res.Artifacts[0].Name)
	assert.Equal(t, int64(5), res.Artifacts[0].SizeBytes)
}

func TestExecutorScratchCleanup(t *testing.T) {
	t.Run("Scratch directories should be removed after a completed run", func(t *testing.T) {
		exec := newTestExecutor(t, t.TempDir())

		res, err := exec.Execute(context.Background(), model.ExecutionRequest{
			Command:       []string{"sh", "-c", "echo $INPUT_DIR"},
			Timeout:       10 * time.Second,
			CaptureOutput: true,
		})
		require.NoError(t, err)
		require.Equal(t, model.OutcomeCompleted, res.Outcome)

		inputDir := strings.TrimSpace(res.Stdout)
		require.NotEmpty(t, inputDir)
		assert.NoDirExists(t, inputDir)
	})

	t.Run("Scratch directories should be removed after a timed out run", func(t *testing.T) {
		exec := newTestExecutor(t, t.TempDir())

		res, err := exec.Execute(context.Background(), model.ExecutionRequest{
			Command:       []string{"sh", "-c", "echo $INPUT_DIR >&2; sleep 10"},
			Timeout:       300 * time.Millisecond,
			CaptureOutput: true,
		})
		require.NoError(t, err)
		require.Equal(t, model.OutcomeTimedOut, res.Outcome)

		inputDir := strings.TrimSpace(res.Stderr)
		require.NotEmpty(t, inputDir, "partial stderr must be available after a timeout")
		assert.NoDirExists(t, inputDir)
	})
}

func TestExecutorCheckAvailability(t *testing.T) {
	exec := newTestExecutor(t, t.TempDir())
	assert.NoError(t, exec.CheckAvailability(context.Background()))
}

func TestExecutorValidate(t *testing.T) {
	exec := newTestExecutor(t, t.TempDir())

	t.Run("A well formed request should validate", func(t *testing.T) {
		err := exec.Validate(model.ExecutionRequest{
			Command: []string{"echo"},
			Timeout: time.Second,
		})
		assert.NoError(t, err)
	})

	t.Run("A traversal input file should not validate", func(t *testing.T) {
		err := exec.Validate(model.ExecutionRequest{
			Command:    []string{"echo"},
			InputFiles: []string{"../../etc/passwd"},
			Timeout:    time.Second,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrDenied)
	})
}
