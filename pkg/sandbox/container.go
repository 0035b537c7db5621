package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/benekli/minerva/pkg/config"
)

// ContainerRunner is sandbox layer 3: run the program inside an isolated
// container with no network, a read-only root filesystem, and hard memory,
// CPU, and process caps. The program source is mounted read-only; the only
// writable surface is a per-run tmpfs.
type ContainerRunner struct {
	cfg            *config.ContainerConfig
	maxOutputLines int
	logger         *slog.Logger
	binaryPath     string
	available      bool
}

// NewContainerRunner detects the container CLI and probes the daemon.
func NewContainerRunner(cfg *config.ContainerConfig, maxOutputLines int, logger *slog.Logger) *ContainerRunner {
	r := &ContainerRunner{
		cfg:            cfg,
		maxOutputLines: maxOutputLines,
		logger:         logger,
	}

	path, err := exec.LookPath(cfg.Runtime)
	if err != nil {
		return r
	}
	r.binaryPath = path

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, path, "version", "--format", "{{.Server.Version}}").Run(); err != nil {
		return r
	}

	r.available = true
	return r
}

// IsAvailable reports whether the container runtime answered the probe.
func (r *ContainerRunner) IsAvailable() bool {
	return r.available
}

// Run writes the program to a per-run temp dir and executes it inside the
// container. Deadline handling follows the caller's context.
func (r *ContainerRunner) Run(ctx context.Context, code string) (*Result, error) {
	if !r.available {
		return nil, fmt.Errorf("container runtime %q is not available", r.cfg.Runtime)
	}

	workDir, err := os.MkdirTemp("", "minerva-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	srcPath := filepath.Join(workDir, "main.go")
	if err := os.WriteFile(srcPath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write program: %w", err)
	}

	args := r.buildArgs(workDir)
	cmd := exec.CommandContext(ctx, r.binaryPath, args...)

	stdout := newLineLimitWriter(r.maxOutputLines)
	stderr := newLineLimitWriter(r.maxOutputLines)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	result := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
		if result.Stderr != "" {
			result.Stderr += "\n"
		}
		result.Stderr += "execution timed out"
	case ctx.Err() == context.Canceled:
		return nil, ctx.Err()
	case runErr != nil:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("container run failed: %w", runErr)
		}
	}

	return result, nil
}

// buildArgs assembles the isolation flags around `go run`.
func (r *ContainerRunner) buildArgs(hostDir string) []string {
	args := []string{
		"run", "--rm",
		"--network", "none",
		"--read-only",
		"--tmpfs", "/tmp:size=128m",
		"--security-opt", "no-new-privileges",
		"--memory", fmt.Sprintf("%dm", r.cfg.MemoryMB),
		"--cpus", fmt.Sprintf("%g", r.cfg.CPUs),
		"--pids-limit", fmt.Sprintf("%d", r.cfg.PidsLimit),
		"-v", fmt.Sprintf("%s:/src:ro", hostDir),
		"-w", "/src",
		"-e", "GOCACHE=/tmp/gocache",
		"-e", "GOFLAGS=-mod=mod",
		"-e", "HOME=/tmp",
		r.cfg.Image,
		"go", "run", "main.go",
	}
	return args
}
