package database

import (
	"errors"
	"fmt"
	"time"

	"proxycare/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrProxyNotFound  = errors.New("proxy not found")
	ErrSourceNotFound = errors.New("source not found")

	// ErrCooldownActive means the proxy's cooldown window has not elapsed, or
	// a concurrent caller claimed the proxy first. Selection treats it as
	// "try the next candidate".
	ErrCooldownActive = errors.New("proxy cooldown has not elapsed")
)

func GetProxy(proxyID uint64) (*domain.Proxy, error) {
	if DB == nil {
		return nil, fmt.Errorf("proxy store: database connection was not initialised")
	}

	var proxy domain.Proxy
	if err := DB.First(&proxy, proxyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProxyNotFound
		}
		return nil, err
	}
	return &proxy, nil
}

// ListEligibleProxies returns the source's unblocked proxies ordered by
// priority descending with the id as a deterministic tie-break. Cooldown is
// not filtered here: the selection engine resolves it per candidate through
// MarkProxyAssigned so the decision stays atomic.
func ListEligibleProxies(sourceID uint) ([]domain.Proxy, error) {
	if DB == nil {
		return nil, fmt.Errorf("proxy store: database connection was not initialised")
	}

	var proxies []domain.Proxy
	err := DB.
		Where("source_id = ? AND blocked = ?", sourceID, false).
		Order("priority DESC, id ASC").
		Find(&proxies).Error
	if err != nil {
		return nil, err
	}
	return proxies, nil
}

// MarkProxyAssigned claims the proxy for an assignment at now. The update is
// a compare-and-swap on last_touched: the row is only touched when its stored
// timestamp still matches the one the cooldown check was made against, so two
// racing callers cannot both claim the same proxy inside its window.
func MarkProxyAssigned(proxyID uint64, now time.Time) error {
	if DB == nil {
		return fmt.Errorf("proxy store: database connection was not initialised")
	}

	proxy, err := GetProxy(proxyID)
	if err != nil {
		return err
	}

	if !proxy.CooldownElapsed(now) {
		return ErrCooldownActive
	}

	res := DB.Model(&domain.Proxy{}).
		Where("id = ? AND last_touched = ?", proxyID, proxy.LastTouched).
		Update("last_touched", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCooldownActive
	}
	return nil
}

// SetProxyBlocked flips the blocked flag. Blocking counts as activity and
// bumps last_touched; clearing the flag leaves the timestamp alone so a
// rescued proxy is assignable immediately.
func SetProxyBlocked(proxyID uint64, blocked bool, now time.Time) error {
	if DB == nil {
		return fmt.Errorf("proxy store: database connection was not initialised")
	}

	updates := map[string]any{"blocked": blocked}
	if blocked {
		updates["last_touched"] = now
	}

	res := DB.Model(&domain.Proxy{}).
		Where("id = ?", proxyID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProxyNotFound
	}
	return nil
}

// UnblockSourceProxies clears the blocked flag on every blocked proxy of the
// source in one statement and returns how many rows changed. last_touched is
// deliberately untouched: the stale rescue must leave the set immediately
// eligible, not push it into a fresh cooldown.
func UnblockSourceProxies(sourceID uint) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("proxy store: database connection was not initialised")
	}

	res := DB.Model(&domain.Proxy{}).
		Where("source_id = ? AND blocked = ?", sourceID, true).
		Update("blocked", false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// LatestSourceTouch returns the most recent last_touched among the source's
// proxies. The second return is false when the source owns no proxies.
func LatestSourceTouch(sourceID uint) (time.Time, bool, error) {
	if DB == nil {
		return time.Time{}, false, fmt.Errorf("proxy store: database connection was not initialised")
	}

	var proxy domain.Proxy
	err := DB.
		Where("source_id = ?", sourceID).
		Order("last_touched DESC").
		First(&proxy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return proxy.LastTouched, true, nil
}

// CreateProxy validates and inserts a proxy. Ingestion plumbing for the API
// surface and tests; the engine itself never creates rows.
func CreateProxy(proxy *domain.Proxy) error {
	if DB == nil {
		return fmt.Errorf("proxy store: database connection was not initialised")
	}

	if err := proxy.ValidateAddress(); err != nil {
		return err
	}
	if proxy.UsageCooldownSeconds <= 0 {
		proxy.UsageCooldownSeconds = domain.DefaultUsageCooldownSeconds
	}

	var source domain.Source
	if err := DB.First(&source, proxy.SourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSourceNotFound
		}
		return err
	}

	if proxy.ProviderID != nil {
		if _, err := GetProvider(*proxy.ProviderID); err != nil {
			return err
		}
	}

	return DB.Create(proxy).Error
}

func CountProxies(sourceID uint) (total int64, blocked int64, err error) {
	if DB == nil {
		return 0, 0, fmt.Errorf("proxy store: database connection was not initialised")
	}

	if err = DB.Model(&domain.Proxy{}).
		Where("source_id = ?", sourceID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = DB.Model(&domain.Proxy{}).
		Where("source_id = ? AND blocked = ?", sourceID, true).
		Count(&blocked).Error
	return total, blocked, err
}
