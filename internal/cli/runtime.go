package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/contextmemory/internal/config"
	"github.com/lewisedginton/contextmemory/internal/context_builder"
	"github.com/lewisedginton/contextmemory/internal/context_store"
	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

const sharedStoreName = "shared"

// runtime is everything a command needs: the storage backend, the store it
// operates on and the preferences stored beside it.
type runtime struct {
	cfg         config.AppConfig
	log         logger.Logger
	storage     *storage_manager.StorageManager
	registry    *context_store.Registry
	store       *context_store.Store
	scope       storage_manager.FileProvider
	preferences *context_builder.FilePreferences
	metrics     *context_store.Metrics
}

// openRuntime connects the configured backend and opens the shared store, or
// the session store when --session is given.
func openRuntime(c *cli.Context, metrics *context_store.Metrics) (*runtime, error) {
	cfg, err := getConfig(c)
	if err != nil {
		return nil, err
	}
	log := getLogger(c)

	sm, err := storage_manager.New(c.Context, cfg.StorageManagerConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log, storage: sm, metrics: metrics}

	template := cfg.StoreConfig(sharedStoreName)
	template.Logger = log
	template.Metrics = metrics
	template.FileProvider = sm.GetRootProvider()
	rt.registry = context_store.NewRegistry(template)

	scope := sm.GetRootProvider()
	if session := c.String("session"); session != "" {
		store, err := rt.registry.Get(c.Context, session)
		if err != nil {
			_ = sm.Close()
			return nil, err
		}
		rt.store = store
		scope = sm.GetProvider("sessions/" + session)
	} else {
		rt.store = context_store.Open(c.Context, template)
	}
	rt.scope = scope
	rt.preferences = cfg.NewPreferences(scope)

	return rt, nil
}

// save persists the store; commands that change it call this before exiting.
func (rt *runtime) save(c *cli.Context) error {
	if err := rt.store.Save(c.Context); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	return nil
}

func (rt *runtime) close() {
	if err := rt.storage.Close(); err != nil {
		rt.log.Warn("Failed to close storage", logger.ErrorField(err))
	}
}

// withRuntime wraps a command action with runtime setup and teardown.
func withRuntime(fn func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := openRuntime(c, nil)
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(c, rt)
	}
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
