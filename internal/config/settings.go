package config

import (
	"sync/atomic"
	"time"

	"proxycare/internal/support"
)

// Settings holds the runtime-tunable knobs of the engine. A copy lives in an
// atomic.Value so request handlers and the scheduler read a consistent
// snapshot without locking.
type Settings struct {
	// DefaultUsageCooldown applies to proxies ingested without an explicit
	// per-proxy cooldown.
	DefaultUsageCooldown time.Duration

	// StaleAfter is how long a source may go without any proxy activity
	// before the reconciler unblocks its whole set.
	StaleAfter time.Duration

	// ReconcileInterval is the cadence of reconciliation ticks.
	ReconcileInterval time.Duration

	// ReconcileConcurrency bounds how many sources a single tick reconciles
	// in parallel.
	ReconcileConcurrency int

	// FailureThreshold is how many times a single failing status code must be
	// reported for one proxy before it is blocked.
	FailureThreshold int64

	// MaxFailureRatio blocks a proxy whose overall failure fraction exceeds
	// it, once at least MinSamples outcomes were reported.
	MaxFailureRatio float64
	MinSamples      int64

	// FailureRatioWindow bounds how far back FailureRatio aggregates.
	FailureRatioWindow time.Duration
}

var settingsValue atomic.Value

func init() {
	settingsValue.Store(defaultSettings())
}

func defaultSettings() Settings {
	return Settings{
		DefaultUsageCooldown: 30 * time.Second,
		StaleAfter:           5 * time.Minute,
		ReconcileInterval:    5 * time.Minute,
		ReconcileConcurrency: 8,
		FailureThreshold:     3,
		MaxFailureRatio:      0.5,
		MinSamples:           10,
		FailureRatioWindow:   time.Hour,
	}
}

// LoadFromEnv overrides the defaults from the environment. Called once at
// startup, after godotenv has run.
func LoadFromEnv() {
	settings := defaultSettings()

	settings.DefaultUsageCooldown = support.GetEnvDuration("PROXY_USAGE_COOLDOWN", settings.DefaultUsageCooldown)
	settings.StaleAfter = support.GetEnvDuration("SOURCE_STALE_AFTER", settings.StaleAfter)
	settings.ReconcileInterval = support.GetEnvDuration("RECONCILE_INTERVAL", settings.ReconcileInterval)
	settings.ReconcileConcurrency = support.GetEnvInt("RECONCILE_CONCURRENCY", settings.ReconcileConcurrency)
	settings.FailureThreshold = int64(support.GetEnvInt("FAILURE_THRESHOLD", int(settings.FailureThreshold)))
	settings.MaxFailureRatio = support.GetEnvFloat("MAX_FAILURE_RATIO", settings.MaxFailureRatio)
	settings.MinSamples = int64(support.GetEnvInt("FAILURE_MIN_SAMPLES", int(settings.MinSamples)))
	settings.FailureRatioWindow = support.GetEnvDuration("FAILURE_RATIO_WINDOW", settings.FailureRatioWindow)

	settings = settings.sanitized()
	settingsValue.Store(settings)
}

func (settings Settings) sanitized() Settings {
	if settings.DefaultUsageCooldown <= 0 {
		settings.DefaultUsageCooldown = 30 * time.Second
	}
	if settings.StaleAfter <= 0 {
		settings.StaleAfter = 5 * time.Minute
	}
	if settings.ReconcileInterval <= 0 {
		settings.ReconcileInterval = 5 * time.Minute
	}
	if settings.ReconcileConcurrency <= 0 {
		settings.ReconcileConcurrency = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 1
	}
	if settings.MaxFailureRatio <= 0 || settings.MaxFailureRatio > 1 {
		settings.MaxFailureRatio = 0.5
	}
	if settings.MinSamples <= 0 {
		settings.MinSamples = 1
	}
	if settings.FailureRatioWindow <= 0 {
		settings.FailureRatioWindow = time.Hour
	}
	return settings
}

func GetSettings() Settings {
	return settingsValue.Load().(Settings)
}

// UpdateSettings replaces the current snapshot. Used by tests and the admin
// surface.
func UpdateSettings(settings Settings) {
	settingsValue.Store(settings.sanitized())
}
