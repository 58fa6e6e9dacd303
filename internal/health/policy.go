package health

import (
	"proxycare/internal/config"
	"proxycare/internal/domain"
)

// Outcome is the aggregate view of a proxy's history right after a report
// was recorded. The policy works on this snapshot only; it never reads or
// writes state itself.
type Outcome struct {
	StatusCode  int
	StatusCount int64 // how often this exact status was reported for the proxy
	Failures    int64 // failing outcomes inside the ratio window
	Total       int64 // all outcomes inside the ratio window
}

// Policy decides whether a proxy should be excluded from selection. It only
// ever blocks: a run of successes never clears the flag, that is the
// reconciler's (or an operator's) call. The thresholds come from
// config.Settings, not constants.
type Policy struct {
	FailureThreshold   int64
	MaxFailureRatio    float64
	MinSamples         int64
	UnrecoverableCodes map[int]struct{}
}

func PolicyFromSettings(settings config.Settings) Policy {
	return Policy{
		FailureThreshold: settings.FailureThreshold,
		MaxFailureRatio:  settings.MaxFailureRatio,
		MinSamples:       settings.MinSamples,
		UnrecoverableCodes: map[int]struct{}{
			domain.TransportFailureCode: {},
		},
	}
}

func (policy Policy) ShouldBlock(outcome Outcome) bool {
	if _, unrecoverable := policy.UnrecoverableCodes[outcome.StatusCode]; unrecoverable {
		return true
	}

	if outcome.StatusCode < 400 {
		return false
	}

	if outcome.StatusCount >= policy.FailureThreshold {
		return true
	}

	if outcome.Total >= policy.MinSamples {
		ratio := float64(outcome.Failures) / float64(outcome.Total)
		if ratio > policy.MaxFailureRatio {
			return true
		}
	}

	return false
}
