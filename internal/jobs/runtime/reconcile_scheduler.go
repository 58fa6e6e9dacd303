package runtime

import (
	"context"
	"sync"
	"time"

	"proxycare/internal/cache"
	"proxycare/internal/config"
	"proxycare/internal/database"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ReconcileScheduler drives the staleness rescue across all known sources on
// a fixed cadence. Sources touch disjoint rows, so cycles run concurrently up
// to the configured limit; a per-source in-flight guard keeps a slow cycle
// from overlapping with itself on the next tick.
type ReconcileScheduler struct {
	poolCache *cache.PoolCache
	clock     func() time.Time

	inFlight sync.Map // sourceID -> struct{}
}

func NewReconcileScheduler(poolCache *cache.PoolCache) *ReconcileScheduler {
	return &ReconcileScheduler{poolCache: poolCache, clock: time.Now}
}

// NewReconcileSchedulerWithClock injects the time source for tests.
func NewReconcileSchedulerWithClock(poolCache *cache.PoolCache, clock func() time.Time) *ReconcileScheduler {
	if clock == nil {
		clock = time.Now
	}
	return &ReconcileScheduler{poolCache: poolCache, clock: clock}
}

// RunReconciliationTick reconciles every source once. A failing source only
// loses its own cycle; the others proceed. Returns how many proxies were
// unblocked across all sources.
func (scheduler *ReconcileScheduler) RunReconciliationTick(ctx context.Context) (int64, error) {
	settings := config.GetSettings()

	sourceIDs, err := database.ListSourceIDs()
	if err != nil {
		return 0, err
	}

	var (
		rescued   int64
		rescuedMu sync.Mutex
	)

	group := new(errgroup.Group)
	group.SetLimit(settings.ReconcileConcurrency)

	now := scheduler.clock()
	for _, sourceID := range sourceIDs {
		if ctx.Err() != nil {
			break
		}

		if _, busy := scheduler.inFlight.LoadOrStore(sourceID, struct{}{}); busy {
			log.Debug("skipping source with reconciliation already in flight", "source_id", sourceID)
			continue
		}

		group.Go(func() error {
			defer scheduler.inFlight.Delete(sourceID)

			unblocked, reconcileErr := ReconcileSource(sourceID, now, settings.StaleAfter)
			if reconcileErr != nil {
				log.Error("source reconciliation failed", "source_id", sourceID, "error", reconcileErr)
				return nil
			}
			if unblocked == 0 {
				return nil
			}

			rescuedMu.Lock()
			rescued += unblocked
			rescuedMu.Unlock()

			if refreshErr := scheduler.poolCache.RefreshSource(ctx, sourceID); refreshErr != nil {
				log.Warn("pool cache refresh after rescue failed", "source_id", sourceID, "error", refreshErr)
			}
			return nil
		})
	}

	_ = group.Wait()
	return rescued, ctx.Err()
}

// Start blocks, firing a tick immediately and then on every interval until
// the context ends.
func (scheduler *ReconcileScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	runTick := func() {
		rescued, err := scheduler.RunReconciliationTick(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error("reconciliation tick failed", "error", err)
			return
		}
		if rescued > 0 {
			log.Info("reconciliation tick complete", "unblocked", rescued)
		}
	}

	runTick()

	ticker := time.NewTicker(config.GetSettings().ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runTick()
		}
	}
}
