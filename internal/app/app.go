package app

import (
	"context"
	"flag"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"proxycare/internal/app/server"
	"proxycare/internal/cache"
	"proxycare/internal/config"
	"proxycare/internal/database"
	"proxycare/internal/health"
	"proxycare/internal/jobs/runtime"
	"proxycare/internal/pool"
	"proxycare/internal/support"
)

const defaultAPIPort = 8000

const reconcileLeaderKey = "proxycare:leader:reconcile"

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	apiPortFlag := flag.Int("api-port", defaultAPIPort, "Port for API server")
	flag.Parse()

	config.LoadFromEnv()

	apiPort := support.GetEnvInt("API_PORT", *apiPortFlag)

	if _, err := database.SetupDB(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var poolCache *cache.PoolCache

	redisClient, err := support.GetRedisClient()
	if err != nil {
		log.Warn("Redis unavailable, running without pool cache and leader lock", "error", err)
	} else {
		defer func() {
			if closeErr := support.CloseRedisClient(); closeErr != nil {
				log.Warn("failed to close Redis client", "error", closeErr)
			}
		}()

		poolCache = cache.NewPoolCache(redisClient)

		heartbeatCancel := runtime.LaunchInstanceHeartbeat(ctx, redisClient)
		defer heartbeatCancel()

		if _, err := poolCache.RefreshAll(ctx); err != nil {
			log.Warn("initial pool cache refresh failed", "error", err)
		}
	}

	scheduler := runtime.NewReconcileScheduler(poolCache)
	go func() {
		if redisClient != nil {
			// Multiple instances may serve traffic, but only the leader runs
			// reconciliation ticks.
			err := support.RunWithLeader(ctx, redisClient, reconcileLeaderKey, support.DefaultLeadershipTTL, scheduler.Start)
			if err != nil && ctx.Err() == nil {
				log.Error("reconciliation leadership loop terminated", "error", err)
			}
			return
		}
		scheduler.Start(ctx)
	}()

	deps := server.Deps{
		Engine:    pool.NewEngine(pool.DatabaseStore{}),
		Tracker:   health.NewTracker(),
		PoolCache: poolCache,
		Redis:     redisClient,
	}

	return server.OpenRoutes(apiPort, deps)
}
