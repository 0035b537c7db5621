package strategies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/sandbox"
)

const generatePrompt = `Write a complete, self-contained Go program (package main with a main function) that solves the problem below. Print the answer to stdout. Use only these imports: %s. Respond with Go source code only, no prose and no Markdown fences.

Problem: %s`

const regeneratePrompt = `The previous program was rejected by the sandbox validator:

%s

Rejected program:
%s

Write a corrected complete Go program for the same problem. Use only these imports: %s. Respond with Go source code only.

Problem: %s`

const explainPrompt = `A program was run to solve this problem. Explain the result in one short paragraph for the person who asked.

Problem: %s

Program output:
%s`

// CodeStrategy generates a program, validates it, executes it in the
// sandbox, and explains the output. Generation and execution failures are
// reported inside the result, never as a strategy error.
type CodeStrategy struct {
	cfg     *config.CodeConfig
	manager *llms.Manager
	sandbox *sandbox.Sandbox
	logger  *slog.Logger
}

// NewCodeStrategy builds the strategy and its sandbox.
func NewCodeStrategy(cfg *config.CodeConfig, manager *llms.Manager, logger *slog.Logger) (*CodeStrategy, error) {
	if manager == nil {
		return nil, fmt.Errorf("completion manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sb, err := sandbox.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &CodeStrategy{
		cfg:     cfg,
		manager: manager,
		sandbox: sb,
		logger:  logger.With("strategy", "code"),
	}, nil
}

func (s *CodeStrategy) Name() string { return "code" }

func (s *CodeStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	code, err := s.generate(ctx, req.Query)
	if err != nil {
		return &Outcome{Code: &CodeResult{
			Problem:     req.Query,
			Success:     false,
			Stderr:      err.Error(),
			Explanation: fmt.Sprintf("Could not produce a valid program: %v", err),
		}}, nil
	}

	result, err := s.sandbox.Run(ctx, code)
	if err != nil {
		var verr *sandbox.ViolationError
		if errors.As(err, &verr) {
			return &Outcome{Code: &CodeResult{
				Problem:     req.Query,
				Code:        code,
				Success:     false,
				Stderr:      verr.Error(),
				Explanation: fmt.Sprintf("The generated program was rejected by the sandbox: %v", err),
			}}, nil
		}
		return &Outcome{Code: &CodeResult{
			Problem:     req.Query,
			Code:        code,
			Success:     false,
			Explanation: fmt.Sprintf("The program could not be executed: %v", err),
		}}, nil
	}

	outcome := &CodeResult{
		Problem:   req.Query,
		Code:      code,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		Success:   result.ExitCode == 0 && !result.TimedOut,
		Truncated: result.Truncated,
	}

	outcome.Explanation = s.explain(ctx, req.Query, outcome)

	return &Outcome{Code: outcome}, nil
}

// generate produces a validated program, feeding each rejection back to the
// model up to MaxGenerationRetries times.
func (s *CodeStrategy) generate(ctx context.Context, problem string) (string, error) {
	imports := strings.Join(s.cfg.AllowedImports, ", ")

	code, err := s.complete(ctx, fmt.Sprintf(generatePrompt, imports, problem))
	if err != nil {
		return "", err
	}
	code = stripCodeFences(code)

	validationErr := s.sandbox.Validate(code)
	for attempt := 0; validationErr != nil && attempt < s.cfg.MaxGenerationRetries; attempt++ {
		s.logger.Debug("regenerating rejected program",
			"attempt", attempt+1, "reason", validationErr)

		code, err = s.complete(ctx, fmt.Sprintf(regeneratePrompt,
			validationErr.Error(), code, imports, problem))
		if err != nil {
			return "", err
		}
		code = stripCodeFences(code)
		validationErr = s.sandbox.Validate(code)
	}

	if validationErr != nil {
		return "", fmt.Errorf("program rejected after %d regeneration attempts: %w",
			s.cfg.MaxGenerationRetries, validationErr)
	}
	return code, nil
}

func (s *CodeStrategy) complete(ctx context.Context, prompt string) (string, error) {
	response, err := s.manager.Complete(ctx, []llms.Message{llms.User(prompt)},
		&llms.Options{Temperature: config.Float64Ptr(0.2)})
	if err != nil {
		return "", err
	}
	return response, nil
}

// explain is best-effort; a failed explanation leaves the field empty.
func (s *CodeStrategy) explain(ctx context.Context, problem string, result *CodeResult) string {
	output := result.Stdout
	if !result.Success {
		output = fmt.Sprintf("exit failure\nstdout:\n%s\nstderr:\n%s", result.Stdout, result.Stderr)
	}
	output = truncateText(output, 4000)

	explanation, err := s.complete(ctx, fmt.Sprintf(explainPrompt, problem, output))
	if err != nil {
		s.logger.Warn("explanation failed", "error", err)
		return ""
	}
	return strings.TrimSpace(explanation)
}

// stripCodeFences unwraps a Markdown-fenced response. Models add fences
// even when told not to.
func stripCodeFences(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var _ Strategy = (*CodeStrategy)(nil)
