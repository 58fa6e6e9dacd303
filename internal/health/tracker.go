package health

import (
	"time"

	"proxycare/internal/config"
	"proxycare/internal/database"

	"github.com/charmbracelet/log"
)

// Tracker records reported outcomes against proxies and applies the blocking
// policy after each report. The policy snapshot is re-read per report so
// threshold changes take effect without a restart.
type Tracker struct {
	policy func() Policy
	window func() time.Duration
	clock  func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		policy: func() Policy { return PolicyFromSettings(config.GetSettings()) },
		window: func() time.Duration { return config.GetSettings().FailureRatioWindow },
		clock:  time.Now,
	}
}

// NewTrackerWithClock injects policy and time sources for deterministic tests.
func NewTrackerWithClock(policy Policy, window time.Duration, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		policy: func() Policy { return policy },
		window: func() time.Duration { return window },
		clock:  clock,
	}
}

// Report validates and records one outcome, then lets the policy decide on a
// block transition. Returns whether the proxy ended up blocked by this
// report. Unknown status codes are rejected with database.ErrStatusUnknown
// before any state is touched.
func (tracker *Tracker) Report(proxyID uint64, statusCode int) (bool, error) {
	proxy, err := database.GetProxy(proxyID)
	if err != nil {
		return false, err
	}

	known, err := database.StatusKnown(statusCode)
	if err != nil {
		return false, err
	}
	if !known {
		log.Warn("rejected outcome report with unknown status", "proxy_id", proxyID, "status", statusCode)
		return false, database.ErrStatusUnknown
	}

	now := tracker.clock()
	if err := database.IncrementUsageStatistic(proxyID, statusCode, now); err != nil {
		return false, err
	}

	statistic, err := database.GetUsageStatistic(proxyID, statusCode)
	if err != nil {
		return false, err
	}

	since := now.Add(-tracker.window())
	failures, total, err := database.OutcomeTotals(proxyID, since)
	if err != nil {
		return false, err
	}

	outcome := Outcome{
		StatusCode:  statusCode,
		StatusCount: statistic.Counter,
		Failures:    failures,
		Total:       total,
	}

	if proxy.Blocked || !tracker.policy().ShouldBlock(outcome) {
		return proxy.Blocked, nil
	}

	if err := database.SetProxyBlocked(proxyID, true, now); err != nil {
		return false, err
	}
	log.Info("proxy blocked after failing outcome",
		"proxy_id", proxyID,
		"source_id", proxy.SourceID,
		"status", statusCode,
		"status_count", outcome.StatusCount,
		"failures", failures,
		"total", total,
	)
	return true, nil
}

// FailureRatio is the fraction of outcomes inside the window classified as
// failures (status >= 400). Zero when nothing was reported in the window.
func (tracker *Tracker) FailureRatio(proxyID uint64, window time.Duration) (float64, error) {
	if _, err := database.GetProxy(proxyID); err != nil {
		return 0, err
	}

	if window <= 0 {
		window = tracker.window()
	}

	since := tracker.clock().Add(-window)
	failures, total, err := database.OutcomeTotals(proxyID, since)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(failures) / float64(total), nil
}
