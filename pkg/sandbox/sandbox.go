// Package sandbox runs untrusted generated Go programs behind layered
// defenses: an AST validator, a restricted interpreter whose symbol table
// only contains whitelisted packages, and an optional container layer with
// OS-level resource caps.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/observability"
)

// ErrViolation marks a program rejected by the validation layers. Rejected
// programs never execute.
var ErrViolation = errors.New("sandbox policy violation")

// ViolationError carries which layer rejected the program and why.
type ViolationError struct {
	Layer  string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("sandbox policy violation (%s): %s", e.Layer, e.Reason)
}

func (e *ViolationError) Unwrap() error { return ErrViolation }

// Result captures one program run.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Truncated bool
	Duration  time.Duration
}

// Sandbox orchestrates the layers. Layers 1 (AST validation) and 2
// (restricted interpreter) are mandatory; layer 3 (container) is enabled by
// config and falls back to in-process interpretation, or to a capped
// subprocess for programs the interpreter cannot host.
type Sandbox struct {
	cfg       *config.CodeConfig
	logger    *slog.Logger
	validator *Validator
	interp    *Interpreter
	container *ContainerRunner
}

// New builds a sandbox from config.
func New(cfg *config.CodeConfig, logger *slog.Logger) (*Sandbox, error) {
	if cfg == nil {
		return nil, fmt.Errorf("code config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sandbox")

	s := &Sandbox{
		cfg:       cfg,
		logger:    logger,
		validator: NewValidator(cfg.AllowedImports),
		interp:    NewInterpreter(cfg.AllowedImports, cfg.MaxOutputLines),
	}

	if cfg.EnableContainer {
		runner := NewContainerRunner(&cfg.Container, cfg.MaxOutputLines, logger)
		if runner.IsAvailable() {
			s.container = runner
		} else {
			logger.Warn("container runtime not available, falling back to interpreter execution",
				"runtime", cfg.Container.Runtime)
		}
	}

	return s, nil
}

// Validate runs only the static layers (1 and 2) against a program. The
// code strategy uses it to drive regeneration without executing anything.
func (s *Sandbox) Validate(code string) error {
	if err := s.validator.Validate(code); err != nil {
		s.recordLayer(context.Background(), "ast", 0, err)
		return err
	}
	if err := s.interp.Check(code); err != nil && !s.interp.Unhostable(err) {
		s.recordLayer(context.Background(), "interp", 0, err)
		return err
	}
	return nil
}

// Run validates and executes a program. A *ViolationError is returned for
// programs rejected before execution; execution failures are reported
// inside the Result, not as errors.
func (s *Sandbox) Run(ctx context.Context, code string) (*Result, error) {
	tracer := observability.GetTracer("minerva.sandbox")
	ctx, span := tracer.Start(ctx, observability.SpanSandboxExecution)
	defer span.End()

	start := time.Now()

	// Layer 1: AST walk.
	if err := s.validator.Validate(code); err != nil {
		span.SetAttributes(attribute.String(observability.AttrSandboxLayer, "ast"))
		span.SetStatus(codes.Error, err.Error())
		s.recordLayer(ctx, "ast", time.Since(start), err)
		return nil, err
	}

	// Layer 2: restricted compilation. Symbols outside the whitelist do
	// not exist in the interpreter, so programs that slipped past the AST
	// walk still cannot reach them.
	program, err := s.interp.Compile(code)
	unhostable := false
	if err != nil {
		var verr *ViolationError
		switch {
		case errors.As(err, &verr):
			span.SetAttributes(attribute.String(observability.AttrSandboxLayer, "interp"))
			span.SetStatus(codes.Error, err.Error())
			s.recordLayer(ctx, "interp", time.Since(start), err)
			return nil, err
		case s.interp.Unhostable(err):
			// Programs the interpreter cannot host (unsupported
			// constructs) get one shot in a capped subprocess or
			// the container.
			unhostable = true
		default:
			// A plain compile error is the program's fault, not a
			// policy violation: report it like a failed run.
			return &Result{
				Stderr:   fmt.Sprintf("compilation failed: %v", err),
				ExitCode: 1,
				Duration: time.Since(start),
			}, nil
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecutionTimeout.Duration())
	defer cancel()

	var result *Result
	var layer string

	switch {
	case s.container != nil:
		layer = "container"
		result, err = s.container.Run(execCtx, code)
	case unhostable:
		layer = "subprocess"
		result, err = runSubprocess(execCtx, code, s.cfg.MaxOutputLines)
	default:
		layer = "interp"
		result, err = s.interp.Execute(execCtx, program)
	}

	duration := time.Since(start)
	span.SetAttributes(attribute.String(observability.AttrSandboxLayer, layer))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordLayer(ctx, layer, duration, err)
		return nil, err
	}

	result.Duration = duration
	if result.TimedOut {
		s.logger.Warn("program execution timed out",
			"layer", layer, "timeout", s.cfg.ExecutionTimeout.String())
	}

	span.SetStatus(codes.Ok, "success")
	s.recordLayer(ctx, layer, duration, nil)
	return result, nil
}

func (s *Sandbox) recordLayer(ctx context.Context, layer string, duration time.Duration, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordSandboxExecution(ctx, layer, duration, err)
	}
}
