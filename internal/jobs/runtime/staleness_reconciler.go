package runtime

import (
	"time"

	"proxycare/internal/database"

	"github.com/charmbracelet/log"
)

// ReconcileSource gives a stalled source's proxies a fresh chance. When the
// most recent last_touched across the source's proxies is older than
// staleAfter, every blocked proxy of the source is unblocked in one batch;
// otherwise nothing happens. Liveness safeguard, not a health verdict: a
// short stretch of reusing bad proxies is accepted in exchange for the
// source never starving permanently.
//
// Running it twice back to back is harmless: after the first rescue nothing
// is blocked, so the second pass changes zero rows.
func ReconcileSource(sourceID uint, now time.Time, staleAfter time.Duration) (int64, error) {
	latest, hasProxies, err := database.LatestSourceTouch(sourceID)
	if err != nil {
		return 0, err
	}
	if !hasProxies {
		return 0, nil
	}

	if now.Sub(latest) <= staleAfter {
		return 0, nil
	}

	unblocked, err := database.UnblockSourceProxies(sourceID)
	if err != nil {
		return 0, err
	}

	if unblocked > 0 {
		log.Info("rescued stale source",
			"source_id", sourceID,
			"unblocked", unblocked,
			"idle_for", now.Sub(latest).Round(time.Second),
		)
	}
	return unblocked, nil
}
