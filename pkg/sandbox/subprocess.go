package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// runSubprocess executes a program with `go run` in a throwaway module,
// killed on deadline. It is the fallback for programs the interpreter
// cannot host on deployments without a container runtime; the AST and
// restricted-compilation layers have already vetted the program by the
// time it reaches here.
func runSubprocess(ctx context.Context, code string, maxOutputLines int) (*Result, error) {
	workDir, err := os.MkdirTemp("", "minerva-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	srcPath := filepath.Join(workDir, "main.go")
	if err := os.WriteFile(srcPath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write program: %w", err)
	}
	modFile := "module sandboxrun\n\ngo 1.24\n"
	if err := os.WriteFile(filepath.Join(workDir, "go.mod"), []byte(modFile), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write go.mod: %w", err)
	}

	cmd := exec.CommandContext(ctx, "go", "run", ".")
	cmd.Dir = workDir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + workDir,
		"GOCACHE=" + filepath.Join(workDir, "gocache"),
		"GOFLAGS=-mod=mod",
		"GOPROXY=off",
	}

	stdout := newLineLimitWriter(maxOutputLines)
	stderr := newLineLimitWriter(maxOutputLines)
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
			return nil, fmt.Errorf("subprocess run failed: %w", runErr)
		}
	}

	return result, nil
}
