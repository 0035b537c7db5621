// Package engine assembles the query pipeline: router, strategies,
// workflow engine, and their shared components, constructed once from
// config and owned for the process lifetime.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/databases"
	"github.com/benekli/minerva/pkg/domains"
	"github.com/benekli/minerva/pkg/embedders"
	"github.com/benekli/minerva/pkg/history"
	"github.com/benekli/minerva/pkg/ingest"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/rag"
	"github.com/benekli/minerva/pkg/registry"
	"github.com/benekli/minerva/pkg/router"
	"github.com/benekli/minerva/pkg/search"
	"github.com/benekli/minerva/pkg/strategies"
	"github.com/benekli/minerva/pkg/workflow"
)

// Engine owns the process-lifetime components and serves queries.
type Engine struct {
	cfg        *config.Config
	manager    *llms.Manager
	router     router.Router
	strategies *registry.BaseRegistry[strategies.Strategy]
	workflow   *workflow.Engine
	decomposer *workflow.Decomposer
	aggregator *workflow.Aggregator
	ragEngine  *rag.Engine
	embedder   embedders.Embedder
	logger     *slog.Logger
	closers    []io.Closer
}

// New builds the engine from a processed config. A missing API key
// disables the owning strategy with a warning; it never fails startup.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	manager, err := llms.NewManager(&cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm manager: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		manager:    manager,
		strategies: registry.NewBaseRegistry[strategies.Strategy](),
		logger:     logger,
	}
	e.closers = append(e.closers, manager)

	if err := e.buildStrategies(); err != nil {
		_ = e.Close()
		return nil, err
	}

	e.router, err = router.New(&cfg.Router, manager, logger)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("router: %w", err)
	}

	e.workflow, err = workflow.NewEngine(&cfg.Workflow, e, logger)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.decomposer, err = workflow.NewDecomposer(&cfg.Workflow, manager, logger)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.aggregator, err = workflow.NewAggregator(manager)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	return e, nil
}

func (e *Engine) buildStrategies() error {
	cfg := e.cfg

	searcher, err := search.NewClient(&cfg.Research.Search)
	if err != nil {
		return fmt.Errorf("search client: %w", err)
	}

	e.embedder = e.buildEmbedder()
	store := e.buildStore()

	research, err := strategies.NewResearchStrategy(&cfg.Research, e.manager, searcher, e.embedder, e.logger)
	if err != nil {
		return err
	}
	e.register(router.TaskResearch, research)

	code, err := strategies.NewCodeStrategy(&cfg.Code, e.manager, e.logger)
	if err != nil {
		return err
	}
	e.register(router.TaskCode, code)

	conversations, err := history.NewStore(&cfg.History)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	e.closers = append(e.closers, conversations)

	chat, err := strategies.NewChatStrategy(&cfg.History, e.manager, conversations, e.logger)
	if err != nil {
		return err
	}
	e.register(router.TaskChat, chat)

	if store != nil && e.embedder != nil {
		e.ragEngine, err = rag.NewEngine(&cfg.RAG, store, e.embedder, e.manager, e.logger)
		if err != nil {
			return err
		}
		// The retrieval engine owns the store from here on.
		e.closers = append(e.closers, e.ragEngine)

		ragStrategy, err := strategies.NewRAGStrategy(e.ragEngine)
		if err != nil {
			return err
		}
		e.register(router.TaskRAG, ragStrategy)
	} else {
		if store != nil {
			e.closers = append(e.closers, store)
		}
		e.logger.Warn("rag strategy disabled: vector store or embedder unavailable")
	}

	return e.buildDomainStrategies()
}

func (e *Engine) buildDomainStrategies() error {
	cfg := e.cfg

	if config.BoolValue(cfg.Domains.Weather.Enabled, true) {
		chain, err := domains.NewWeatherChain(&cfg.Domains.Weather)
		if err != nil {
			return fmt.Errorf("weather providers: %w", err)
		}
		weather, err := strategies.NewWeatherStrategy(chain, e.manager, e.logger)
		if err != nil {
			return err
		}
		e.register(router.TaskWeather, weather)
	}

	if config.BoolValue(cfg.Domains.Finance.Enabled, true) {
		apiKey := os.Getenv(cfg.Domains.Finance.APIKeyEnv)
		if apiKey == "" {
			e.logger.Warn("finance primary source has no API key, starting at the fallback",
				"env", cfg.Domains.Finance.APIKeyEnv)
		}
		chain, err := domains.NewFinanceChain(&cfg.Domains.Finance, apiKey)
		if err != nil {
			return fmt.Errorf("finance providers: %w", err)
		}
		finance, err := strategies.NewFinanceStrategy(chain, e.manager, e.logger)
		if err != nil {
			return err
		}
		e.register(router.TaskFinance, finance)
	}

	if config.BoolValue(cfg.Domains.Routing.Enabled, true) {
		chain, err := domains.NewRouteChain(&cfg.Domains.Routing)
		if err != nil {
			return fmt.Errorf("routing providers: %w", err)
		}
		routing, err := strategies.NewRoutingStrategy(chain, e.manager, e.logger)
		if err != nil {
			return err
		}
		e.register(router.TaskRouting, routing)
	}

	return nil
}

func (e *Engine) register(kind router.TaskKind, strategy strategies.Strategy) {
	if err := e.strategies.Register(string(kind), strategy); err != nil {
		e.logger.Warn("strategy registration failed", "kind", kind, "error", err)
	}
}

// buildEmbedder creates the configured embedder; failure (typically a
// missing API key) disables retrieval features rather than startup.
func (e *Engine) buildEmbedder() embedders.Embedder {
	name := e.cfg.RAG.Embedder
	section, ok := e.cfg.Embedders[name]
	if !ok {
		e.logger.Warn("no embedder section configured", "embedder", name)
		return nil
	}

	embedder, err := embedders.NewRegistry().CreateFromConfig(name, section)
	if err != nil {
		e.logger.Warn("embedder unavailable", "embedder", name, "error", err)
		return nil
	}
	e.closers = append(e.closers, embedder)
	return embedder
}

func (e *Engine) buildStore() databases.Store {
	name := e.cfg.RAG.Database
	section, ok := e.cfg.Databases[name]
	if !ok {
		e.logger.Warn("no database section configured", "database", name)
		return nil
	}

	store, err := databases.NewRegistry().CreateFromConfig(name, section)
	if err != nil {
		e.logger.Warn("vector store unavailable", "database", name, "error", err)
		return nil
	}
	return store
}

// IngestDocuments runs every configured document store through the
// ingestion pipeline into the retrieval engine's cached store.
func (e *Engine) IngestDocuments(ctx context.Context) error {
	if e.ragEngine == nil {
		if len(e.cfg.DocumentStores) > 0 {
			return fmt.Errorf("document stores configured but retrieval is disabled")
		}
		return nil
	}

	for name, storeCfg := range e.cfg.DocumentStores {
		pipeline, err := ingest.NewPipeline(storeCfg, e.embedder, e.ragEngine.Store(), e.logger)
		if err != nil {
			return fmt.Errorf("document store %q: %w", name, err)
		}
		stats, err := pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("document store %q: %w", name, err)
		}
		e.logger.Info("document store ingested", "store", name,
			"files", stats.FilesSeen, "skipped", stats.FilesSkipped,
			"failed", stats.FilesFailed, "chunks", stats.Chunks)
	}
	return nil
}

// Health reports per-provider availability for the health endpoint.
func (e *Engine) Health(ctx context.Context) map[string]bool {
	return e.manager.Healthy(ctx)
}

// Close releases every owned component, keeping the first error.
func (e *Engine) Close() error {
	var firstErr error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
