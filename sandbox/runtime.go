// Package sandbox manages the per-session container pool: deterministic
// naming, orphan recovery across restarts, resource-limited command
// execution, and workspace file access.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrSetup marks environment failures no retry can fix in-process: the
// daemon is unreachable or the sandbox image is absent. The manager trips
// its breaker on this error and stops probing.
var ErrSetup = errors.New("sandbox: environment setup failed")

// ErrPathEscape is returned when a requested path would leave the
// workspace root.
var ErrPathEscape = errors.New("sandbox: path escapes workspace")

// ErrNotRunning is returned by operations that require a provisioned
// sandbox when the session has none.
var ErrNotRunning = errors.New("sandbox: no running sandbox for session")

// ContainerSpec describes a sandbox container to create. WorkspaceDir is
// a host directory bind-mounted as the container's working directory;
// ScratchSize caps the ephemeral scratch tmpfs.
type ContainerSpec struct {
	Image          string
	WorkspaceDir   string
	Env            []string
	MemoryBytes    int64
	NanoCPUs       int64
	ScratchSize    string
	NetworkEnabled bool
	Labels         map[string]string
}

// ExecSpec is one command to run inside a container.
type ExecSpec struct {
	Cmd     []string
	WorkDir string
	Env     []string

	// Timeout bounds this run; zero means the manager's configured
	// default.
	Timeout time.Duration
}

// ExecResult is the outcome of a command. A timed-out command reports
// ExitCode -1; the process itself may still be running inside the
// container.
type ExecResult struct {
	ExitCode int           `json:"exitCode"`
	Success  bool          `json:"success"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	TimedOut bool          `json:"timedOut"`
	Duration time.Duration `json:"duration"`
}

// ContainerRuntime is the narrow surface the manager needs from a
// container engine. The docker client satisfies it; tests use fakes.
type ContainerRuntime interface {
	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error

	// FindByName returns the ID of a container with the exact name, or
	// "" when none exists.
	FindByName(ctx context.Context, name string) (id string, running bool, err error)

	// Create creates (without starting) a container.
	Create(ctx context.Context, name string, spec ContainerSpec) (id string, err error)

	// Start starts a created container.
	Start(ctx context.Context, id string) error

	// Stop stops a running container with a grace period. Stopping a
	// container that already exited is not an error.
	Stop(ctx context.Context, id string) error

	// Remove force-removes a container, running or not.
	Remove(ctx context.Context, id string) error

	// Exec runs a command to completion, honoring ctx cancellation.
	Exec(ctx context.Context, id string, spec ExecSpec) (ExecResult, error)

	Close() error
}
