package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	// workspaceDir is where the session's host workspace is mounted
	// inside the container; execs default to it as working directory.
	workspaceDir = "/workspace"
	// scratchDir is the size-capped throwaway tmpfs.
	scratchDir = "/scratch"

	stopGraceSeconds = 5
)

// dockerRuntime is the docker-engine implementation of ContainerRuntime.
type dockerRuntime struct {
	cli    *client.Client
	logger *slog.Logger
}

// endpointCandidates builds the daemon discovery ladder: the configured
// endpoint, then DOCKER_HOST, then the well-known sockets.
func endpointCandidates(configured string) []string {
	var out []string
	add := func(ep string) {
		if ep == "" {
			return
		}
		for _, seen := range out {
			if seen == ep {
				return
			}
		}
		out = append(out, ep)
	}

	add(configured)
	add(os.Getenv("DOCKER_HOST"))
	add("unix:///var/run/docker.sock")
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		add("unix://" + filepath.Join(dir, "docker.sock"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		add("unix://" + filepath.Join(home, ".docker", "run", "docker.sock"))
	}
	return out
}

// NewDockerRuntime probes the endpoint ladder and connects to the first
// daemon that answers a ping. No daemon anywhere is a setup failure.
func NewDockerRuntime(ctx context.Context, configured string, logger *slog.Logger) (ContainerRuntime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var probeErrs []string
	for _, ep := range endpointCandidates(configured) {
		cli, err := client.NewClientWithOpts(
			client.WithHost(ep),
			client.WithAPIVersionNegotiation(),
		)
		if err != nil {
			probeErrs = append(probeErrs, fmt.Sprintf("%s: %v", ep, err))
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_, err = cli.Ping(pingCtx)
		cancel()
		if err != nil {
			probeErrs = append(probeErrs, fmt.Sprintf("%s: %v", ep, err))
			cli.Close()
			continue
		}

		logger.Info("sandbox: connected to container engine", "endpoint", ep)
		return &dockerRuntime{cli: cli, logger: logger}, nil
	}

	return nil, fmt.Errorf("%w: no reachable container engine: %s", ErrSetup, strings.Join(probeErrs, "; "))
}

func (d *dockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("sandbox: ping: %w", err)
	}
	return nil
}

func (d *dockerRuntime) FindByName(ctx context.Context, name string) (string, bool, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+name+"$")),
	})
	if err != nil {
		return "", false, fmt.Errorf("sandbox: list containers: %w", err)
	}
	for _, c := range list {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") == name {
				return c.ID, c.State == "running", nil
			}
		}
	}
	return "", false, nil
}

func (d *dockerRuntime) Create(ctx context.Context, name string, spec ContainerSpec) (string, error) {
	networkMode := container.NetworkMode("none")
	if spec.NetworkEnabled {
		networkMode = container.NetworkMode("bridge")
	}

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      spec.Image,
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: workspaceDir,
			Env:        spec.Env,
			Labels:     spec.Labels,
		},
		&container.HostConfig{
			NetworkMode: networkMode,
			SecurityOpt: []string{"no-new-privileges"},
			Binds:       []string{spec.WorkspaceDir + ":" + workspaceDir},
			Tmpfs: map[string]string{
				scratchDir: "rw,exec,size=" + spec.ScratchSize,
			},
			Resources: container.Resources{
				Memory:   spec.MemoryBytes,
				NanoCPUs: spec.NanoCPUs,
			},
		},
		nil, nil, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: image %s not found: %v", ErrSetup, spec.Image, err)
		}
		return "", fmt.Errorf("sandbox: create container: %w", err)
	}
	return resp.ID, nil
}

func (d *dockerRuntime) Start(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("sandbox: start container: %w", err)
	}
	return nil
}

func (d *dockerRuntime) Stop(ctx context.Context, id string) error {
	timeout := stopGraceSeconds
	err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("sandbox: stop container: %w", err)
	}
	return nil
}

func (d *dockerRuntime) Remove(ctx context.Context, id string) error {
	err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("sandbox: remove container: %w", err)
	}
	return nil
}

// Exec runs a command and streams both channels to completion. The
// caller's ctx bounds the whole execution; cancellation abandons the
// stream but not the in-container process.
// syncBuffer is a bytes.Buffer safe for one writer and a concurrent
// reader, as happens when an exec stream outlives its deadline.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (d *dockerRuntime) Exec(ctx context.Context, id string, spec ExecSpec) (ExecResult, error) {
	start := time.Now()

	workDir := spec.WorkDir
	if workDir == "" {
		workDir = workspaceDir
	}
	created, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          spec.Cmd,
		WorkingDir:   workDir,
		Env:          spec.Env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec create: %w", err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec attach: %w", err)
	}
	defer attach.Close()

	// The copier keeps writing after a context timeout, so the buffers
	// are locked; the timeout branch reads partial output safely.
	var stdout, stderr syncBuffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- err
	}()

	select {
	case err := <-copyDone:
		if err != nil && err != io.EOF {
			return ExecResult{}, fmt.Errorf("sandbox: exec stream: %w", err)
		}
	case <-ctx.Done():
		return ExecResult{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, ctx.Err()
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec inspect: %w", err)
	}

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}, nil
}

func (d *dockerRuntime) Close() error {
	return d.cli.Close()
}
