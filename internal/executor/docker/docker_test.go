package docker_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sandrun/sandrun/internal/executor/docker"
	"github.com/sandrun/sandrun/internal/model"
)

type clientMock struct {
	mock.Mock
}

func (m *clientMock) Ping(ctx context.Context) (types.Ping, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Ping), args.Error(1)
}

func (m *clientMock) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, refStr, options)
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *clientMock) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)
	return args.Get(0).(container.CreateResponse), args.Error(1)
}

func (m *clientMock) ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error) {
	args := m.Called(ctx, containerID, options)
	return args.Get(0).(types.HijackedResponse), args.Error(1)
}

func (m *clientMock) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

func (m *clientMock) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	args := m.Called(ctx, containerID, condition)
	return args.Get(0).(chan container.WaitResponse), args.Get(1).(chan error)
}

func (m *clientMock) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, containerID, options)
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *clientMock) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

func (m *clientMock) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// multiplexedLogs produces a Docker log stream in the daemon's multiplexed
// framing, the format ContainerLogs returns for non-TTY containers.
func multiplexedLogs(stdoutData, stderrData string) io.ReadCloser {
	var buf bytes.Buffer
	w := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
	_, _ = w.Write([]byte(stdoutData))
	w = stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
	_, _ = w.Write([]byte(stderrData))
	return io.NopCloser(&buf)
}

func waitChannels(exitCode int64) (chan container.WaitResponse, chan error) {
	waitCh := make(chan container.WaitResponse, 1)
	waitCh <- container.WaitResponse{StatusCode: exitCode}
	return waitCh, make(chan error, 1)
}

func newTestExecutor(t *testing.T, c docker.DockerClient, tweak func(*docker.ExecutorConfig)) *docker.Executor {
	t.Helper()

	cfg := docker.ExecutorConfig{
		Client:      c,
		Image:       "python:3.12-slim",
		AllowedRoot: t.TempDir(),
	}
	if tweak != nil {
		tweak(&cfg)
	}

	exec, err := docker.NewExecutor(cfg)
	require.NoError(t, err)

	return exec
}

func TestExecutorCheckAvailability(t *testing.T) {
	tests := map[string]struct {
		mock   func(c *clientMock)
		expErr bool
	}{
		"A reachable daemon should report available": {
			mock: func(c *clientMock) {
				c.On("Ping", mock.Anything).Once().Return(types.Ping{APIVersion: "1.48"}, nil)
			},
		},

		"An unreachable daemon should report unavailable": {
			mock: func(c *clientMock) {
				c.On("Ping", mock.Anything).Once().Return(types.Ping{}, fmt.Errorf("connection refused"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mc := &clientMock{}
			test.mock(mc)

			exec := newTestExecutor(t, mc, nil)

			err := exec.CheckAvailability(context.Background())
			if test.expErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrUnavailable)
			} else {
				assert.NoError(t, err)
			}

			mc.AssertExpectations(t)
		})
	}
}

func TestExecutorExecute(t *testing.T) {
	req := model.ExecutionRequest{
		Command:       []string{"echo", "hello world"},
		Timeout:       10 * time.Second,
		CaptureOutput: true,
	}

	tests := map[string]struct {
		request model.ExecutionRequest
		tweak   func(cfg *docker.ExecutorConfig)
		mock    func(c *clientMock)
		check   func(t *testing.T, res *model.ExecutionResult)
	}{
		"A successful run should complete with the container exit code and output": {
			request: req,
			mock: func(c *clientMock) {
				c.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
					Return(container.CreateResponse{ID: "cid1"}, nil)
				c.On("ContainerStart", mock.Anything, "cid1", mock.Anything).Once().Return(nil)
				waitCh, errCh := waitChannels(0)
				c.On("ContainerWait", mock.Anything, "cid1", container.WaitConditionNotRunning).Once().Return(waitCh, errCh)
				c.On("ContainerLogs", mock.Anything, "cid1", mock.Anything).Once().
					Return(multiplexedLogs("hello world\n", "warning line\n"), nil)
				c.On("ContainerRemove", mock.Anything, "cid1", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Equal(t, 0, res.ExitCode)
				assert.True(t, res.Success())
				assert.Equal(t, "hello world\n", res.Stdout)
				assert.Equal(t, "warning line\n", res.Stderr)
			},
		},

		"A nonzero container exit should still be a completed run": {
			request: req,
			mock: func(c *clientMock) {
				c.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
					Return(container.CreateResponse{ID: "cid2"}, nil)
				c.On("ContainerStart", mock.Anything, "cid2", mock.Anything).Once().Return(nil)
				waitCh, errCh := waitChannels(42)
				c.On("ContainerWait", mock.Anything, "cid2", container.WaitConditionNotRunning).Once().Return(waitCh, errCh)
				c.On("ContainerLogs", mock.Anything, "cid2", mock.Anything).Once().
					Return(multiplexedLogs("", ""), nil)
				c.On("ContainerRemove", mock.Anything, "cid2", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
				assert.Equal(t, 42, res.ExitCode)
				assert.False(t, res.Success())
			},
		},

		"A create failure should fail without leaking a container": {
			request: req,
			mock: func(c *clientMock) {
				c.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
					Return(container.CreateResponse{}, fmt.Errorf("no such image"))
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeFailed, res.Outcome)
				assert.NotEmpty(t, res.Reason)
				assert.Error(t, res.Cause)
			},
		},

		"A start failure should fail and still remove the container": {
			request: req,
			mock: func(c *clientMock) {
				c.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
					Return(container.CreateResponse{ID: "cid3"}, nil)
				c.On("ContainerStart", mock.Anything, "cid3", mock.Anything).Once().Return(fmt.Errorf("oci runtime error"))
				c.On("ContainerRemove", mock.Anything, "cid3", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeFailed, res.Outcome)
			},
		},

		"A container exceeding its timeout should be stopped, removed and reported as timed out": {
			request: model.ExecutionRequest{
				Command:       []string{"sleep", "60"},
				Timeout:       50 * time.Millisecond,
				CaptureOutput: true,
			},
			mock: func(c *clientMock) {
				c.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
					Return(container.CreateResponse{ID: "cid4"}, nil)
				c.On("ContainerStart", mock.Anything, "cid4", mock.Anything).Once().Return(nil)
				// Channels never deliver: the container keeps running until
				// the watchdog fires.
				c.On("ContainerWait", mock.Anything, "cid4", container.WaitConditionNotRunning).Once().
					Return(make(chan container.WaitResponse), make(chan error))
				c.On("ContainerStop", mock.Anything, "cid4", mock.Anything).Once().Return(nil)
				c.On("ContainerLogs", mock.Anything, "cid4", mock.Anything).Once().
					Return(multiplexedLogs("", "partial progress\n"), nil)
				c.On("ContainerRemove", mock.Anything, "cid4", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeTimedOut, res.Outcome)
				assert.GreaterOrEqual(t, res.Duration, 50*time.Millisecond)
				assert.Equal(t, "partial progress\n", res.Stderr)
			},
		},

		"An image pull should happen before create when enabled": {
			request: req,
			tweak:   func(cfg *docker.ExecutorConfig) { cfg.PullImage = true },
			mock: func(c *clientMock) {
				c.On("ImagePull", mock.Anything, "python:3.12-slim", mock.Anything).Once().
					Return(io.NopCloser(bytes.NewReader(nil)), nil)
				c.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
					Return(container.CreateResponse{ID: "cid5"}, nil)
				c.On("ContainerStart", mock.Anything, "cid5", mock.Anything).Once().Return(nil)
				waitCh, errCh := waitChannels(0)
				c.On("ContainerWait", mock.Anything, "cid5", container.WaitConditionNotRunning).Once().Return(waitCh, errCh)
				c.On("ContainerLogs", mock.Anything, "cid5", mock.Anything).Once().
					Return(multiplexedLogs("", ""), nil)
				c.On("ContainerRemove", mock.Anything, "cid5", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeCompleted, res.Outcome)
			},
		},

		"A pull failure should fail before any container exists": {
			request: req,
			tweak:   func(cfg *docker.ExecutorConfig) { cfg.PullImage = true },
			mock: func(c *clientMock) {
				c.On("ImagePull", mock.Anything, "python:3.12-slim", mock.Anything).Once().
					Return(io.NopCloser(bytes.NewReader(nil)), fmt.Errorf("pull access denied"))
			},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeFailed, res.Outcome)
			},
		},

		"An empty command should be denied before any daemon call": {
			request: model.ExecutionRequest{Timeout: 10 * time.Second},
			mock:    func(c *clientMock) {},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeDenied, res.Outcome)
			},
		},

		"A traversal input file should be denied before any daemon call": {
			request: model.ExecutionRequest{
				Command:    []string{"echo"},
				InputFiles: []string{"../../etc/passwd"},
				Timeout:    10 * time.Second,
			},
			mock: func(c *clientMock) {},
			check: func(t *testing.T, res *model.ExecutionResult) {
				assert.Equal(t, model.OutcomeDenied, res.Outcome)
				assert.Contains(t, res.Reason, "input file rejected")
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mc := &clientMock{}
			test.mock(mc)

			exec := newTestExecutor(t, mc, test.tweak)

			res, err := exec.Execute(context.Background(), test.request)
			require.NoError(t, err)

			test.check(t, res)
			mc.AssertExpectations(t)
		})
	}
}

func TestExecutorHostConfig(t *testing.T) {
	t.Run("The hardened preset should drop capabilities, disable the network and tighten limits", func(t *testing.T) {
		mc := &clientMock{}

		var gotHost *container.HostConfig
		mc.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
			Run(func(args mock.Arguments) {
				gotHost = args.Get(2).(*container.HostConfig)
			}).
			Return(container.CreateResponse{ID: "cid"}, nil)
		mc.On("ContainerStart", mock.Anything, "cid", mock.Anything).Once().Return(nil)
		waitCh, errCh := waitChannels(0)
		mc.On("ContainerWait", mock.Anything, "cid", container.WaitConditionNotRunning).Once().Return(waitCh, errCh)
		mc.On("ContainerLogs", mock.Anything, "cid", mock.Anything).Once().Return(multiplexedLogs("", ""), nil)
		mc.On("ContainerRemove", mock.Anything, "cid", container.RemoveOptions{Force: true}).Once().Return(nil)

		exec := newTestExecutor(t, mc, func(cfg *docker.ExecutorConfig) {
			cfg.Hardened = true
			cfg.NetworkEnabled = true // Hardened wins over this.
		})

		res, err := exec.Execute(context.Background(), model.ExecutionRequest{
			Command: []string{"echo"},
			Timeout: 10 * time.Second,
		})
		require.NoError(t, err)
		require.Equal(t, model.OutcomeCompleted, res.Outcome)

		require.NotNil(t, gotHost)
		assert.Equal(t, container.NetworkMode(network.NetworkNone), gotHost.NetworkMode)
		assert.Contains(t, gotHost.CapDrop, "ALL")
		assert.Contains(t, gotHost.SecurityOpt, "no-new-privileges")
		assert.True(t, gotHost.ReadonlyRootfs)
		assert.Equal(t, int64(256*1024*1024), gotHost.Resources.Memory)
		assert.Equal(t, int64(0.5*1e9), gotHost.Resources.NanoCPUs)

		mc.AssertExpectations(t)
	})

	t.Run("Default limits should apply one CPU and 512 MiB with no network", func(t *testing.T) {
		mc := &clientMock{}

		var gotHost *container.HostConfig
		var gotCfg *container.Config
		mc.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
			Run(func(args mock.Arguments) {
				gotCfg = args.Get(1).(*container.Config)
				gotHost = args.Get(2).(*container.HostConfig)
			}).
			Return(container.CreateResponse{ID: "cid"}, nil)
		mc.On("ContainerStart", mock.Anything, "cid", mock.Anything).Once().Return(nil)
		waitCh, errCh := waitChannels(0)
		mc.On("ContainerWait", mock.Anything, "cid", container.WaitConditionNotRunning).Once().Return(waitCh, errCh)
		mc.On("ContainerLogs", mock.Anything, "cid", mock.Anything).Once().Return(multiplexedLogs("", ""), nil)
		mc.On("ContainerRemove", mock.Anything, "cid", container.RemoveOptions{Force: true}).Once().Return(nil)

		exec := newTestExecutor(t, mc, nil)

		res, err := exec.Execute(context.Background(), model.ExecutionRequest{
			Command: []string{"python3", "-c", "print(1)"},
			Env:     map[string]string{"EXTRA": "1"},
			Timeout: 10 * time.Second,
		})
		require.NoError(t, err)
		require.Equal(t, model.OutcomeCompleted, res.Outcome)

		require.NotNil(t, gotHost)
		assert.Equal(t, container.NetworkMode(network.NetworkNone), gotHost.NetworkMode)
		assert.Equal(t, int64(512*1024*1024), gotHost.Resources.Memory)
		assert.Equal(t, int64(1e9), gotHost.Resources.NanoCPUs)
		assert.Len(t, gotHost.Binds, 2)
		assert.Contains(t, gotHost.Binds[0], ":/sandbox/input:ro")
		assert.Contains(t, gotHost.Binds[1], ":/sandbox/output:rw")

		require.NotNil(t, gotCfg)
		assert.Equal(t, []string{"python3", "-c", "print(1)"}, []string(gotCfg.Cmd))
		assert.Contains(t, gotCfg.Env, "INPUT_DIR=/sandbox/input")
		assert.Contains(t, gotCfg.Env, "OUTPUT_DIR=/sandbox/output")
		assert.Contains(t, gotCfg.Env, "EXTRA=1")

		mc.AssertExpectations(t)
	})
}
