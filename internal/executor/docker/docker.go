// Package docker provides the container executor: commands run inside a
// freshly created, ephemeral, resource-limited container. It offers the same
// contract as the process executor with stronger isolation (filesystem,
// network and namespace separation) at the cost of startup latency.
package docker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
	"github.com/sandrun/sandrun/internal/pathsafe"
	utilsenv "github.com/sandrun/sandrun/internal/utils/env"
)

const (
	// Fixed in-container paths for the staged input and artifact output
	// volumes.
	containerInputDir  = "/sandbox/input"
	containerOutputDir = "/sandbox/output"

	defaultMemoryMB = 512
	defaultCPUs     = 1.0

	// Hardened preset tightens the defaults further.
	hardenedMemoryMB = 256
	hardenedCPUs     = 0.5

	// cleanupTimeout bounds the forced stop/remove calls so cleanup cannot
	// hang forever on a wedged daemon.
	cleanupTimeout = 10 * time.Second

	scratchPrefix = "sandrun-docker"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// ExecutorConfig is the configuration for the container executor.
type ExecutorConfig struct {
	// Client is the Docker API client. Default: from environment.
	Client DockerClient
	// Image is the container image reference commands run in. Required.
	Image string
	// AllowedRoot confines input file resolution. Default: working directory.
	AllowedRoot string
	// MemoryMB is the hard memory limit. Default: 512 (256 hardened).
	MemoryMB int
	// CPUs is the CPU rate limit in cores. Default: 1.0 (0.5 hardened).
	CPUs float64
	// NetworkEnabled attaches the container to the default bridge network.
	// Disabled means no network stack at all.
	NetworkEnabled bool
	// Hardened applies the maximally isolated preset: network disabled, all
	// capabilities dropped, no privilege escalation, read-only root
	// filesystem and tightened resource limits.
	Hardened bool
	// PullImage pulls the image before every execution.
	PullImage bool
	// OutputCapBytes caps captured stdout/stderr. Default: 1 MiB each.
	OutputCapBytes int
	// RecursiveArtifacts scans the output directory recursively.
	RecursiveArtifacts bool
	Logger             log.Logger
}

func (c *ExecutorConfig) defaults() error {
	if c.Image == "" {
		return fmt.Errorf("container image is required")
	}
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = defaultMemoryMB
	}
	if c.CPUs <= 0 {
		c.CPUs = defaultCPUs
	}
	if c.Hardened {
		c.NetworkEnabled = false
		if c.MemoryMB > hardenedMemoryMB {
			c.MemoryMB = hardenedMemoryMB
		}
		if c.CPUs > hardenedCPUs {
			c.CPUs = hardenedCPUs
		}
	}
	if c.OutputCapBytes <= 0 {
		c.OutputCapBytes = executor.DefaultOutputCap
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Docker"})
	return nil
}

// Executor runs commands inside ephemeral Docker containers.
type Executor struct {
	client    DockerClient
	resolver  *pathsafe.Resolver
	image     string
	memoryMB  int
	cpus      float64
	network   bool
	hardened  bool
	pull      bool
	outputCap int
	recursive bool
	logger    log.Logger
}

// NewExecutor creates a new container executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	resolver, err := pathsafe.NewResolver(pathsafe.ResolverConfig{Root: cfg.AllowedRoot})
	if err != nil {
		return nil, fmt.Errorf("could not create path resolver: %w", err)
	}

	return &Executor{
		client:    cfg.Client,
		resolver:  resolver,
		image:     cfg.Image,
		memoryMB:  cfg.MemoryMB,
		cpus:      cfg.CPUs,
		network:   cfg.NetworkEnabled,
		hardened:  cfg.Hardened,
		pull:      cfg.PullImage,
		outputCap: cfg.OutputCapBytes,
		recursive: cfg.RecursiveArtifacts,
		logger:    cfg.Logger,
	}, nil
}

// Validate checks the request shape and proves input file containment before
// anything is staged.
func (e *Executor) Validate(req model.ExecutionRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %v: %w", err, model.ErrDenied)
	}

	for _, f := range req.InputFiles {
		if _, err := e.resolver.Resolve(f); err != nil {
			return fmt.Errorf("input file rejected: %w", err)
		}
	}

	return nil
}

// CheckAvailability probes the Docker daemon. Unlike the process executor
// this executor depends on an external runtime, so it can be down.
func (e *Executor) CheckAvailability(ctx context.Context) error {
	if _, err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker runtime is not reachable: %v: %w", err, model.ErrUnavailable)
	}
	return nil
}

// Execute runs the command in a fresh container, blocking until one of the
// four outcomes is produced. The container is always removed afterwards,
// regardless of outcome.
func (e *Executor) Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	if err := e.Validate(req); err != nil {
		return model.NewDenied(err.Error()), nil
	}

	scratch, err := executor.NewScratch(scratchPrefix)
	if err != nil {
		return model.NewFailed("could not set up execution directories", err), nil
	}
	defer scratch.Cleanup(e.logger)

	for _, f := range req.InputFiles {
		resolved, err := e.resolver.Resolve(f)
		if err != nil {
			return model.NewDenied(err.Error()), nil
		}
		if err := scratch.Stage(resolved); err != nil {
			return model.NewFailed(fmt.Sprintf("could not stage input file %q", f), err), nil
		}
	}

	if e.pull {
		pullResp, err := e.client.ImagePull(ctx, e.image, image.PullOptions{})
		if err != nil {
			return model.NewFailed(fmt.Sprintf("could not pull image %q", e.image), err), nil
		}
		// Consume the pull response to ensure it completes.
		_, _ = io.Copy(io.Discard, pullResp)
		pullResp.Close()
	}

	name := containerName()
	resp, err := e.client.ContainerCreate(ctx, e.containerConfig(req), e.hostConfig(scratch), nil, nil, name)
	if err != nil {
		return model.NewFailed(fmt.Sprintf("could not create container from image %q", e.image), err), nil
	}
	containerID := resp.ID
	defer e.removeContainer(containerID)

	// Stdin is attached before start and closed after the payload so the
	// command never blocks waiting on input.
	if req.Stdin != "" {
		attach, err := e.client.ContainerAttach(ctx, containerID, container.AttachOptions{Stream: true, Stdin: true})
		if err != nil {
			return model.NewFailed("could not attach to container stdin", err), nil
		}
		defer attach.Close()
		go func() {
			_, _ = io.Copy(attach.Conn, strings.NewReader(req.Stdin))
			_ = attach.CloseWrite()
		}()
	}

	e.logger.Debugf("Executing command %v in container %s (image %s, timeout %s)", req.Command, name, e.image, req.Timeout)

	start := time.Now()
	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return model.NewFailed("could not start container", err), nil
	}

	// Watchdog over the container wait, mirroring the process executor: the
	// timer bounds the running container only.
	waitCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case wait := <-waitCh:
		if wait.Error != nil {
			return model.NewFailed(fmt.Sprintf("container wait failed: %s", wait.Error.Message), nil), nil
		}
		return e.finish(ctx, containerID, scratch, req, int(wait.StatusCode), time.Since(start)), nil

	case err := <-errCh:
		return model.NewFailed("could not wait for container", err), nil

	case <-timer.C:
		e.logger.Warningf("Container %s exceeded timeout %s, stopping", name, req.Timeout)
		e.stopContainer(containerID)
		return model.NewTimedOut(time.Since(start), e.partialStderr(containerID)), nil

	case <-ctx.Done():
		e.logger.Warningf("Container %s cancelled, stopping", name)
		e.stopContainer(containerID)
		return model.NewFailed("execution cancelled before completion", ctx.Err()), nil
	}
}

// finish collects the finished container's output and host-side artifacts.
func (e *Executor) finish(ctx context.Context, containerID string, scratch *executor.Scratch, req model.ExecutionRequest, exitCode int, elapsed time.Duration) *model.ExecutionResult {
	stdout := executor.NewCappedBuffer(e.outputCap)
	stderr := executor.NewCappedBuffer(e.outputCap)

	logs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return model.NewFailed("could not read container output", err)
	}
	defer logs.Close()

	var stdoutDst io.Writer = stdout
	if !req.CaptureOutput {
		stdoutDst = io.Discard
	}
	if _, err := stdcopy.StdCopy(stdoutDst, stderr, logs); err != nil {
		return model.NewFailed("could not demultiplex container output", err)
	}

	artifacts, err := executor.CollectArtifacts(scratch.OutputDir, e.recursive)
	if err != nil {
		return model.NewFailed("could not collect artifacts", err)
	}

	e.logger.Debugf("Container command %v completed: exit code %d, %d artifact(s), %s", req.Command, exitCode, len(artifacts), elapsed)

	return model.NewCompleted(exitCode, stdout.String(), stderr.String(), elapsed, artifacts)
}

// containerConfig builds the container-side configuration: the exact command
// tokens, a sanitized environment with the volume paths exposed, and stdin
// wiring when a payload is present.
func (e *Executor) containerConfig(req model.ExecutionRequest) *container.Config {
	base := map[string]string{
		"HOME":                "/sandbox",
		"LANG":                "en_US.UTF-8",
		"TERM":                "dumb",
		executor.EnvInputDir:  containerInputDir,
		executor.EnvOutputDir: containerOutputDir,
	}

	cfg := &container.Config{
		Image:      e.image,
		Cmd:        req.Command,
		Env:        utilsenv.ToList(utilsenv.MergeMaps(base, req.Env)),
		WorkingDir: req.WorkingDir,
	}

	if req.Stdin != "" {
		cfg.OpenStdin = true
		cfg.StdinOnce = true
		cfg.AttachStdin = true
	}

	return cfg
}

// hostConfig builds the host-side configuration: volumes, resource limits
// applied at creation time, network policy and the hardened options.
func (e *Executor) hostConfig(scratch *executor.Scratch) *container.HostConfig {
	memory := int64(e.memoryMB) * 1024 * 1024

	cfg := &container.HostConfig{
		Binds: []string{
			// Input is read-only so a script cannot tamper with its own
			// inputs mid-run.
			scratch.InputDir + ":" + containerInputDir + ":ro",
			scratch.OutputDir + ":" + containerOutputDir + ":rw",
		},
		Resources: container.Resources{
			NanoCPUs:   int64(e.cpus * 1e9),
			Memory:     memory,
			MemorySwap: memory, // Same as memory: no swap, OOM kill on exceed.
		},
	}

	if !e.network {
		cfg.NetworkMode = network.NetworkNone
	}

	if e.hardened {
		cfg.CapDrop = strslice.StrSlice{"ALL"}
		cfg.SecurityOpt = []string{"no-new-privileges"}
		cfg.ReadonlyRootfs = true
		cfg.Tmpfs = map[string]string{"/tmp": "rw,noexec,nosuid,size=64m"}
	}

	return cfg
}

// stopContainer forcibly stops a container that exceeded its bound. A zero
// stop timeout skips the daemon's graceful grace period: the watchdog has
// already decided.
func (e *Executor) stopContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	timeout := 0
	if err := e.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		e.logger.Warningf("Could not stop container %s: %v", containerID, err)
	}
}

// removeContainer removes the container on every exit path so none is ever
// leaked. It runs on a background context: cleanup must happen even when the
// caller's context is already done.
func (e *Executor) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	err := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !strings.Contains(err.Error(), "No such container") {
		e.logger.Warningf("Could not remove container %s: %v", containerID, err)
	}
}

// partialStderr retrieves whatever stderr the container produced before it
// was stopped. Best effort: a timed out result is valid without it.
func (e *Executor) partialStderr(containerID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	logs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStderr: true})
	if err != nil {
		return ""
	}
	defer logs.Close()

	stderr := executor.NewCappedBuffer(e.outputCap)
	_, _ = stdcopy.StdCopy(io.Discard, stderr, logs)
	return stderr.String()
}

func containerName() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	return "sandrun-" + strings.ToLower(id)
}

var _ executor.Executor = (*Executor)(nil)
