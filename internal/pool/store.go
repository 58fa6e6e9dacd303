package pool

import (
	"errors"
	"time"

	"proxycare/internal/database"
	"proxycare/internal/domain"
)

// DatabaseStore adapts the database package to the engine's Store contract.
type DatabaseStore struct{}

func (DatabaseStore) ListEligible(sourceID uint) ([]domain.Proxy, error) {
	return database.ListEligibleProxies(sourceID)
}

func (DatabaseStore) MarkAssigned(proxyID uint64, now time.Time) error {
	err := database.MarkProxyAssigned(proxyID, now)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrCooldownActive):
		return ErrConflict
	case errors.Is(err, database.ErrProxyNotFound):
		// Deleted between list and claim by an administrative action; the
		// next candidate is still fine.
		return ErrConflict
	default:
		return err
	}
}
