// Package store provides the transactional destinations for canonical flow
// records.
package store

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Factory opens a store from its configuration.
type Factory func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (model.Store, error)

// registry holds the mapping of store types to their factory functions.
var registry = make(map[string]Factory)

// Register registers a new store type with its factory function.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("store type '%s' already registered", name))
	}
	registry[name] = factory
}

// Open creates the store selected by cfg.Type.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (model.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown store type: '%s'", cfg.Type)
	}

	logger.Info("opening store", zap.String("type", cfg.Type))
	s, err := factory(ctx, cfg, logger.Named(cfg.Type))
	if err != nil {
		return nil, fmt.Errorf("error creating store type '%s': %w", cfg.Type, err)
	}
	return s, nil
}

// Types returns the registered store types in sorted order.
func Types() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
