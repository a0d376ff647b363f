package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/contextmemory/internal/context_store"
	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/pkg/health"
	"github.com/lewisedginton/contextmemory/pkg/health/checkers"
	"github.com/lewisedginton/contextmemory/pkg/logger"
	"github.com/lewisedginton/contextmemory/pkg/metrics"
)

// DefaultRefreshInterval is how often serve reloads the stored snapshot.
const DefaultRefreshInterval = 15 * time.Second

// ServeCommand exposes metrics and health probes for the configured store.
// Other commands write the snapshot from their own processes, so serve
// reloads it on an interval and reports what it finds.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve /metrics, /livez and /readyz for the configured store",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "Listener port (default from METRICS_PORT)"},
			&cli.DurationFlag{Name: "refresh", Value: DefaultRefreshInterval, Usage: "Snapshot reload interval"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	storeMetrics := context_store.NewMetrics()
	rt, err := openRuntime(c, storeMetrics)
	if err != nil {
		return err
	}
	defer rt.close()

	m := metrics.NewMetrics(true, rt.log)
	m.AllowOrigins(rt.cfg.Metrics.CORSOrigins...)
	if err := m.Register(storeMetrics.Collectors()...); err != nil {
		return err
	}

	refresh := c.Duration("refresh")
	if refresh <= 0 {
		return fmt.Errorf("--refresh must be positive, got %s", refresh)
	}
	watcher := newSnapshotWatcher(rt.store, rt.log)

	hc := health.New(health.WithLogger(rt.log))
	hc.AddReadinessCheck(watcher)
	hc.AddReadinessCheck(checkers.NewPingChecker(rt.storage, string(rt.storage.Backend())))
	hc.AddReadinessCheck(checkers.NewBlobChecker(rt.scope, rt.cfg.Memory.SnapshotKey, func(err error) bool {
		return errors.Is(err, storage_manager.ErrNotFound)
	}))
	m.Mount(hc.Routes)

	port := rt.cfg.Metrics.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.run(ctx, refresh)
	}()

	rt.log.Info("Serving store metrics",
		logger.IntField("port", port),
		logger.StoreField(rt.store.Name()),
		logger.IntField("entries", rt.store.Len()),
		logger.DurationField("refresh", refresh))

	err = m.Listen(ctx, port)
	stop()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}

// snapshotWatcher reloads a store from its snapshot. Load refreshes the
// entries gauge and counts failures as persistence errors; the watcher
// remembers the last outcome for the readiness probe.
type snapshotWatcher struct {
	store *context_store.Store
	log   logger.Logger

	mu      sync.Mutex
	lastErr error
}

func newSnapshotWatcher(store *context_store.Store, log logger.Logger) *snapshotWatcher {
	return &snapshotWatcher{store: store, log: log}
}

func (w *snapshotWatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reload(ctx)
		}
	}
}

func (w *snapshotWatcher) reload(ctx context.Context) {
	err := w.store.Load(ctx)
	if ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	if err == nil {
		w.log.Debug("Reloaded context snapshot", logger.IntField("entries", w.store.Len()))
	}
}

func (w *snapshotWatcher) Name() string {
	return "snapshot_reload"
}

// Check fails while the most recent reload failed.
func (w *snapshotWatcher) Check(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastErr != nil {
		return fmt.Errorf("last snapshot reload failed: %w", w.lastErr)
	}
	return nil
}
