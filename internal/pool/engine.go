package pool

import (
	"errors"
	"fmt"
	"time"

	"proxycare/internal/domain"
)

var (
	// ErrExhausted means every eligible proxy of the source is inside its
	// cooldown window, or the source has no unblocked proxies at all.
	// Retryable from the caller's side, never fatal.
	ErrExhausted = errors.New("no proxy is currently eligible for the source")

	// ErrConflict is returned by a Store when a proxy's cooldown has not
	// elapsed at claim time. The engine consumes it internally by moving on
	// to the next candidate.
	ErrConflict = errors.New("proxy is inside its cooldown window")
)

// Store is the slice of the proxy record store the selection engine needs.
// MarkAssigned must be atomic: of two concurrent calls for the same proxy
// inside one cooldown window, at most one may succeed.
type Store interface {
	ListEligible(sourceID uint) ([]domain.Proxy, error)
	MarkAssigned(proxyID uint64, now time.Time) error
}

// Handle is a successful assignment.
type Handle struct {
	ProxyID    uint64
	Address    string
	SourceID   uint
	Priority   int
	AssignedAt time.Time
}

type Engine struct {
	store Store
	clock func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, clock: time.Now}
}

// NewEngineWithClock injects the time source, for deterministic tests.
func NewEngineWithClock(store Store, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: store, clock: clock}
}

// Acquire picks the best currently usable proxy of the source: candidates
// come back ordered by priority (id as tie-break) and the first one whose
// claim succeeds wins. Claiming instead of filtering keeps the scan race-free:
// a candidate another caller grabbed between the list and the claim fails with
// ErrConflict and the scan moves on. The scan is bounded; it never waits for a
// cooldown to elapse.
func (engine *Engine) Acquire(sourceID uint) (*Handle, error) {
	candidates, err := engine.store.ListEligible(sourceID)
	if err != nil {
		return nil, fmt.Errorf("selection: list eligible proxies: %w", err)
	}

	now := engine.clock()
	for idx := range candidates {
		candidate := &candidates[idx]

		claimErr := engine.store.MarkAssigned(candidate.ID, now)
		if claimErr == nil {
			return &Handle{
				ProxyID:    candidate.ID,
				Address:    candidate.Address,
				SourceID:   candidate.SourceID,
				Priority:   candidate.Priority,
				AssignedAt: now,
			}, nil
		}
		if errors.Is(claimErr, ErrConflict) {
			continue
		}
		return nil, fmt.Errorf("selection: claim proxy %d: %w", candidate.ID, claimErr)
	}

	return nil, ErrExhausted
}
