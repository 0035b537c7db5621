package config

import (
	"fmt"
	"time"
)

// CodeConfig configures the code strategy and its sandbox.
type CodeConfig struct {
	// ExecutionTimeout is the wall-clock cap per program run.
	ExecutionTimeout Duration `yaml:"execution_timeout,omitempty" json:"execution_timeout,omitempty" jsonschema:"title=Execution Timeout,description=Wall-clock cap per sandbox run,default=30s"`

	// MaxOutputLines caps captured stdout and stderr line counts.
	MaxOutputLines int `yaml:"max_output_lines,omitempty" json:"max_output_lines,omitempty" jsonschema:"title=Max Output Lines,description=Line cap for captured stdout/stderr,default=1000"`

	// AllowedImports is the sandbox import whitelist.
	AllowedImports []string `yaml:"allowed_imports,omitempty" json:"allowed_imports,omitempty" jsonschema:"title=Allowed Imports,description=Import whitelist for generated programs"`

	// MaxGenerationRetries bounds validator-driven regeneration attempts.
	MaxGenerationRetries int `yaml:"max_generation_retries,omitempty" json:"max_generation_retries,omitempty" jsonschema:"title=Max Generation Retries,description=Regeneration attempts after a validation rejection,default=2"`

	// EnableContainer turns on the container isolation layer. Without it
	// execution falls back to a capped subprocess.
	EnableContainer bool `yaml:"enable_container,omitempty" json:"enable_container,omitempty" jsonschema:"title=Enable Container,description=Run programs inside an isolated container,default=false"`

	// Container holds the isolation layer limits.
	Container ContainerConfig `yaml:"container,omitempty" json:"container,omitempty"`
}

// ContainerConfig carries container runtime limits for the isolation layer.
type ContainerConfig struct {
	// Runtime is the container CLI (docker, podman).
	Runtime string `yaml:"runtime,omitempty" json:"runtime,omitempty" jsonschema:"title=Runtime,description=Container CLI binary,enum=docker,enum=podman,default=docker"`

	// Image is the execution image.
	Image string `yaml:"image,omitempty" json:"image,omitempty" jsonschema:"title=Image,description=Container image for program runs,default=golang:1.24-alpine"`

	// MemoryMB caps container memory.
	MemoryMB int `yaml:"memory_mb,omitempty" json:"memory_mb,omitempty" jsonschema:"title=Memory MB,description=Container memory cap in MiB,default=512"`

	// CPUs caps container CPU units.
	CPUs float64 `yaml:"cpus,omitempty" json:"cpus,omitempty" jsonschema:"title=CPUs,description=Container CPU cap,default=1"`

	// PidsLimit caps processes inside the container.
	PidsLimit int `yaml:"pids_limit,omitempty" json:"pids_limit,omitempty" jsonschema:"title=Pids Limit,description=Maximum processes inside the container,default=64"`
}

// DefaultAllowedImports is the standard-library whitelist for generated
// programs: pure computation and formatting, no file, network, or process
// access.
func DefaultAllowedImports() []string {
	return []string{
		"bufio",
		"bytes",
		"errors",
		"fmt",
		"math",
		"math/big",
		"math/bits",
		"math/cmplx",
		"math/rand",
		"regexp",
		"sort",
		"strconv",
		"strings",
		"time",
		"unicode",
		"unicode/utf8",
	}
}

// SetDefaults applies default values to CodeConfig.
func (c *CodeConfig) SetDefaults() {
	if c.ExecutionTimeout == 0 {
		c.ExecutionTimeout = Duration(30 * time.Second)
	}
	if c.MaxOutputLines == 0 {
		c.MaxOutputLines = 1000
	}
	if len(c.AllowedImports) == 0 {
		c.AllowedImports = DefaultAllowedImports()
	}
	if c.MaxGenerationRetries == 0 {
		c.MaxGenerationRetries = 2
	}

	if c.Container.Runtime == "" {
		c.Container.Runtime = "docker"
	}
	if c.Container.Image == "" {
		c.Container.Image = "golang:1.24-alpine"
	}
	if c.Container.MemoryMB == 0 {
		c.Container.MemoryMB = 512
	}
	if c.Container.CPUs == 0 {
		c.Container.CPUs = 1.0
	}
	if c.Container.PidsLimit == 0 {
		c.Container.PidsLimit = 64
	}
}

// Validate checks the CodeConfig.
func (c *CodeConfig) Validate() error {
	if c.ExecutionTimeout < 0 {
		return fmt.Errorf("execution_timeout cannot be negative")
	}
	if c.MaxOutputLines < 1 {
		return fmt.Errorf("max_output_lines must be at least 1")
	}
	if c.MaxGenerationRetries < 0 {
		return fmt.Errorf("max_generation_retries cannot be negative")
	}

	if c.EnableContainer {
		switch c.Container.Runtime {
		case "docker", "podman":
		default:
			return fmt.Errorf("invalid container runtime %q (valid: docker, podman)", c.Container.Runtime)
		}
		if c.Container.MemoryMB < 16 {
			return fmt.Errorf("container memory_mb must be at least 16")
		}
	}

	return nil
}
