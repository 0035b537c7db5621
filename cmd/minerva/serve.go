package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/benekli/minerva/pkg/engine"
	"github.com/benekli/minerva/pkg/logger"
	"github.com/benekli/minerva/pkg/observability"
	"github.com/benekli/minerva/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)." default:"0"`
	Watch bool `help:"Watch the config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer func() { _ = loader.Close() }()
	}

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	eng, err := engine.New(cfg, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() { _ = eng.Close() }()

	// Document indexing must not delay the listener.
	if len(cfg.DocumentStores) > 0 {
		go func() {
			if err := eng.IngestDocuments(ctx); err != nil {
				slog.Warn("Document ingestion failed", "error", err)
			}
		}()
	}

	srv, err := server.New(&cfg.Server, eng, logger.GetLogger())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	fmt.Printf("\nminerva ready\n")
	fmt.Printf("   Query:   http://%s/v1/query\n", addr)
	fmt.Printf("   Health:  http://%s/healthz\n", addr)
	fmt.Printf("   Metrics: http://%s/metrics\n", addr)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Run(ctx)
}
