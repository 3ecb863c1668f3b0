package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"
)

// OpenFunc connects a backend from configuration
type OpenFunc func(ctx context.Context, cfg *config.Config) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]OpenFunc{}
)

// Register makes a backend available under name. Backends call it from init.
func Register(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if open == nil {
		panic("database: Register open func is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("database: Register called twice for driver " + name)
	}
	drivers[name] = open
}

// Drivers returns the registered backend names
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects the backend named by cfg.DatabaseDriver
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	driversMu.RLock()
	open, ok := drivers[cfg.DatabaseDriver]
	driversMu.RUnlock()

	if !ok {
		return nil, apperrors.NewConfigValidationFailed("DATABASE_DRIVER",
			fmt.Sprintf("driver %q is not registered (forgotten import?), have %v", cfg.DatabaseDriver, Drivers()))
	}
	return open(ctx, cfg)
}

var (
	defaultStore    Store
	defaultStoreErr error
	defaultOnce     sync.Once
)

// Default returns the process-wide store, connecting on first use.
// A failed first connection is returned again on every later call.
func Default(ctx context.Context) (Store, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultStoreErr = err
			return
		}
		defaultStore, defaultStoreErr = Open(ctx, cfg)
	})
	return defaultStore, defaultStoreErr
}
