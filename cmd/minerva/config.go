package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benekli/minerva/pkg/config"
)

// loadConfig loads the config file when one is given, or falls back to the
// processed zero-config defaults. The returned loader is nil in the
// zero-config case.
func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("default config: %w", err)
		}
		slog.Info("No config file given, using defaults")
		return cfg, nil, nil
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}
