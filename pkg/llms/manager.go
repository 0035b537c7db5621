package llms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/benekli/minerva/pkg/config"
)

// ErrAllProvidersFailed is returned when every provider in the fallback
// chain has been tried and failed. It wraps the last attempt's error.
var ErrAllProvidersFailed = errors.New("all LLM providers failed")

// ErrNoProviders is returned when the pool is empty.
var ErrNoProviders = errors.New("no LLM providers configured")

const defaultHealthTTL = 5 * time.Second

// Manager is the provider-agnostic completion facade. It owns the fallback
// order: preferred provider (per request) first, then the configured
// primary, then the rest in registration order. Fallback is strictly
// sequential; provider N+1 is tried only after N is known to fail.
type Manager struct {
	registry *Registry
	primary  string
	logger   *slog.Logger

	healthTTL time.Duration
	healthMu  sync.Mutex
	health    map[string]healthEntry

	semaphores map[string]*semaphore.Weighted
}

type healthEntry struct {
	available bool
	checked   time.Time
}

// NewManager builds the provider pool from config. Providers whose
// constructor fails (for example a missing key that slipped past config
// defaulting) are logged and skipped, not fatal.
func NewManager(cfg *config.LLMConfig, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm.manager")

	m := &Manager{
		registry:   NewRegistry(),
		primary:    cfg.Primary,
		logger:     logger,
		healthTTL:  defaultHealthTTL,
		health:     make(map[string]healthEntry),
		semaphores: make(map[string]*semaphore.Weighted),
	}

	for _, pc := range cfg.EnabledProviders() {
		if _, err := m.registry.CreateFromConfig(pc); err != nil {
			logger.Warn("skipping provider", "provider", pc.Name, "error", err)
			continue
		}
		if pc.MaxConcurrent > 0 {
			m.semaphores[pc.Name] = semaphore.NewWeighted(int64(pc.MaxConcurrent))
		}
		logger.Info("registered provider", "provider", pc.Name, "model", pc.Model)
	}

	if m.registry.Len() == 0 {
		return nil, ErrNoProviders
	}

	return m, nil
}

// NewManagerWithProviders builds a manager over pre-constructed providers,
// registered in the given order. Used by tests and embedders of the engine.
func NewManagerWithProviders(primary string, logger *slog.Logger, providers map[string]Provider, order []string) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		registry:   NewRegistry(),
		primary:    primary,
		logger:     logger.With("component", "llm.manager"),
		healthTTL:  defaultHealthTTL,
		health:     make(map[string]healthEntry),
		semaphores: make(map[string]*semaphore.Weighted),
	}

	for _, name := range order {
		p, ok := providers[name]
		if !ok {
			return nil, fmt.Errorf("provider %q missing from map", name)
		}
		if err := m.registry.RegisterProvider(name, p); err != nil {
			return nil, err
		}
	}

	if m.registry.Len() == 0 {
		return nil, ErrNoProviders
	}
	return m, nil
}

// Complete runs one completion through the fallback chain and returns the
// response text.
func (m *Manager) Complete(ctx context.Context, messages []Message, opts *Options) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	var preferred string
	if opts != nil {
		preferred = opts.PreferredProvider
	}

	chain := m.fallbackChain(preferred)
	if len(chain) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for _, name := range chain {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		provider, ok := m.registry.Get(name)
		if !ok {
			continue
		}

		if !m.available(ctx, name, provider) {
			m.logger.Debug("provider unavailable, skipping", "provider", name)
			if lastErr == nil {
				lastErr = fmt.Errorf("provider %q unavailable", name)
			}
			continue
		}

		text, err := m.completeOne(ctx, name, provider, messages, opts)
		if err == nil {
			return text, nil
		}

		// A context error is the caller's cancellation, not a provider
		// failure; do not march down the chain.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		m.logger.Warn("provider attempt failed", "provider", name, "error", err)
		m.markUnavailable(name)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider available")
	}
	return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

func (m *Manager) completeOne(ctx context.Context, name string, provider Provider, messages []Message, opts *Options) (string, error) {
	if sem := m.semaphores[name]; sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer sem.Release(1)
	}

	text, _, err := provider.Complete(ctx, messages, opts)
	return text, err
}

// fallbackChain returns provider names in try order: preferred, primary,
// then registration order, without duplicates.
func (m *Manager) fallbackChain(preferred string) []string {
	order := m.registry.Order()
	chain := make([]string, 0, len(order))
	seen := make(map[string]bool, len(order))

	appendName := func(name string) {
		if name == "" || seen[name] {
			return
		}
		if _, ok := m.registry.Get(name); !ok {
			return
		}
		seen[name] = true
		chain = append(chain, name)
	}

	appendName(preferred)
	appendName(m.primary)
	for _, name := range order {
		appendName(name)
	}

	return chain
}

// available consults the cached health probe, refreshing it past TTL.
func (m *Manager) available(ctx context.Context, name string, provider Provider) bool {
	m.healthMu.Lock()
	entry, ok := m.health[name]
	if ok && time.Since(entry.checked) < m.healthTTL {
		m.healthMu.Unlock()
		return entry.available
	}
	m.healthMu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	alive := provider.Available(probeCtx)

	m.healthMu.Lock()
	m.health[name] = healthEntry{available: alive, checked: time.Now()}
	m.healthMu.Unlock()

	return alive
}

func (m *Manager) markUnavailable(name string) {
	m.healthMu.Lock()
	m.health[name] = healthEntry{available: false, checked: time.Now()}
	m.healthMu.Unlock()
}

// Providers returns the registered provider names in registration order.
func (m *Manager) Providers() []string {
	return m.registry.Order()
}

// Healthy reports which providers currently pass their health probe.
func (m *Manager) Healthy(ctx context.Context) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.registry.Order() {
		if p, ok := m.registry.Get(name); ok {
			out[name] = m.available(ctx, name, p)
		}
	}
	return out
}

// SetHealthTTL overrides the health probe cache TTL.
func (m *Manager) SetHealthTTL(ttl time.Duration) {
	m.healthMu.Lock()
	m.healthTTL = ttl
	m.healthMu.Unlock()
}

// Close tears down every provider.
func (m *Manager) Close() error {
	return m.registry.Close()
}
