package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PROXY_USAGE_COOLDOWN", "45s")
	t.Setenv("SOURCE_STALE_AFTER", "600")
	t.Setenv("FAILURE_THRESHOLD", "5")
	t.Setenv("MAX_FAILURE_RATIO", "0.8")

	LoadFromEnv()
	t.Cleanup(func() { UpdateSettings(defaultSettings()) })

	settings := GetSettings()
	if settings.DefaultUsageCooldown != 45*time.Second {
		t.Fatalf("cooldown = %v, want 45s", settings.DefaultUsageCooldown)
	}
	if settings.StaleAfter != 10*time.Minute {
		t.Fatalf("stale after = %v, want 10m (600 bare seconds)", settings.StaleAfter)
	}
	if settings.FailureThreshold != 5 {
		t.Fatalf("failure threshold = %d, want 5", settings.FailureThreshold)
	}
	if settings.MaxFailureRatio != 0.8 {
		t.Fatalf("max failure ratio = %v, want 0.8", settings.MaxFailureRatio)
	}
}

func TestUpdateSettingsSanitizes(t *testing.T) {
	UpdateSettings(Settings{ReconcileConcurrency: -4, MaxFailureRatio: 3})
	t.Cleanup(func() { UpdateSettings(defaultSettings()) })

	settings := GetSettings()
	if settings.ReconcileConcurrency != 1 {
		t.Fatalf("concurrency = %d, want clamped to 1", settings.ReconcileConcurrency)
	}
	if settings.MaxFailureRatio != 0.5 {
		t.Fatalf("ratio = %v, want fallback 0.5", settings.MaxFailureRatio)
	}
	if settings.StaleAfter != 5*time.Minute {
		t.Fatalf("stale after = %v, want default 5m", settings.StaleAfter)
	}
}
