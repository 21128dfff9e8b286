package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// HTTPConfig holds the shared HTTP client settings passed to factories.
type HTTPConfig struct {
	Timeout       time.Duration
	TLSSkipVerify bool
	UserAgent     string
	Logger        *slog.Logger
}

// FactoryConfig is everything a factory needs to build a provider of one type.
type FactoryConfig struct {
	// Type is the provider type tag, e.g. "hetzner".
	Type string

	// Settings are the type-level settings from the providers section of the config.
	Settings map[string]string

	// HTTP configures the HTTP client for API-based providers.
	HTTP HTTPConfig
}

// Factory is a function that creates a provider from configuration.
type Factory func(cfg FactoryConfig) (Provider, error)

// Registry maps provider type tags to factories and holds one instance per type.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Provider
	logger    *slog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
		logger:    logger,
	}
}

// RegisterFactory registers a provider factory for a given type.
func (r *Registry) RegisterFactory(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(typeName)] = factory
}

// Types returns the registered type tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CreateInstance builds the provider for cfg.Type and registers it.
// An existing instance of the same type is replaced.
func (r *Registry) CreateInstance(cfg FactoryConfig) error {
	typeName := strings.ToLower(cfg.Type)

	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[typeName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProviderType, cfg.Type)
	}

	if cfg.Settings == nil {
		cfg.Settings = map[string]string{}
	}
	if cfg.HTTP.Logger == nil {
		cfg.HTTP.Logger = r.logger
	}
	cfg.Type = typeName

	p, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("creating provider %s: %w", typeName, err)
	}

	r.instances[typeName] = p
	r.logger.Debug("provider registered", slog.String("type", typeName))
	return nil
}

// Get returns the provider instance for a type tag.
func (r *Registry) Get(typeName string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.instances[strings.ToLower(typeName)]
	return p, ok
}

// Lookup is Get with an ErrUnknownProviderType error for missing types.
func (r *Registry) Lookup(typeName string) (Provider, error) {
	p, ok := r.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProviderType, typeName)
	}
	return p, nil
}

// All returns all provider instances sorted by type.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		providers = append(providers, r.instances[name])
	}
	return providers
}
