package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Interpreter is sandbox layer 2: a yaegi interpreter whose symbol table
// only contains whitelisted packages. Symbols outside the whitelist simply
// do not exist, so a program that hid a reference from the AST walk still
// cannot resolve it.
type Interpreter struct {
	symbols        interp.Exports
	maxOutputLines int
}

// NewInterpreter builds the filtered symbol table for the whitelist.
func NewInterpreter(allowedImports []string, maxOutputLines int) *Interpreter {
	allowed := make(map[string]bool, len(allowedImports))
	for _, imp := range allowedImports {
		allowed[imp] = true
	}

	// stdlib.Symbols keys look like "fmt/fmt" and "math/rand/rand":
	// import path, then the package name again.
	symbols := make(interp.Exports, len(allowedImports))
	for key, pkg := range stdlib.Symbols {
		path := key
		if ix := strings.LastIndex(key, "/"); ix >= 0 {
			path = key[:ix]
		}
		if allowed[path] {
			symbols[key] = pkg
		}
	}

	return &Interpreter{symbols: symbols, maxOutputLines: maxOutputLines}
}

// compiled couples a program with the interpreter it was compiled in and
// the output buffers wired into it.
type compiled struct {
	interp  *interp.Interpreter
	program *interp.Program
	stdout  *lineLimitWriter
	stderr  *lineLimitWriter
}

// Compile parses and type-checks a program against the restricted symbol
// table. References to packages outside the whitelist fail here with a
// *ViolationError.
func (it *Interpreter) Compile(code string) (*compiled, error) {
	stdout := newLineLimitWriter(it.maxOutputLines)
	stderr := newLineLimitWriter(it.maxOutputLines)

	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(it.symbols); err != nil {
		return nil, fmt.Errorf("failed to install symbols: %w", err)
	}

	program, err := i.Compile(code)
	if err != nil {
		if isSymbolError(err) {
			return nil, &ViolationError{Layer: "interp",
				Reason: fmt.Sprintf("restricted compilation rejected the program: %v", err)}
		}
		return nil, err
	}

	return &compiled{interp: i, program: program, stdout: stdout, stderr: stderr}, nil
}

// Check compiles and discards; used for validation without execution.
func (it *Interpreter) Check(code string) error {
	_, err := it.Compile(code)
	return err
}

// Execute runs a compiled program under the context's deadline. The
// interpreter cannot be pre-empted, so on timeout the goroutine is
// abandoned and the result marked TimedOut.
func (it *Interpreter) Execute(ctx context.Context, c *compiled) (*Result, error) {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		_, err := c.interp.Execute(c.program)
		done <- err
	}()

	select {
	case err := <-done:
		result := &Result{
			Stdout:    c.stdout.String(),
			Stderr:    c.stderr.String(),
			Truncated: c.stdout.Truncated() || c.stderr.Truncated(),
		}
		if err != nil {
			result.ExitCode = 1
			if result.Stderr != "" {
				result.Stderr += "\n"
			}
			result.Stderr += err.Error()
		}
		return result, nil
	case <-ctx.Done():
		return &Result{
			Stdout:    c.stdout.String(),
			Stderr:    fmt.Sprintf("execution timed out: %v", ctx.Err()),
			ExitCode:  -1,
			TimedOut:  true,
			Truncated: c.stdout.Truncated(),
		}, nil
	}
}

// Unhostable reports whether a compile error indicates a construct the
// interpreter cannot host, as opposed to a broken program.
func (it *Interpreter) Unhostable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"not supported", "unsupported", "constraints"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isSymbolError reports whether a compile error stems from an unresolvable
// symbol, which under the filtered table means a policy violation.
func isSymbolError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "undefined: ") || strings.Contains(msg, "unable to find source related to")
}
