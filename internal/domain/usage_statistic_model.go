package domain

import "time"

// UsageStatistic aggregates reported outcomes per (proxy, status code). One
// row per pair with a running counter; the tracker bumps Counter and
// LastReportedAt on every report instead of appending a row per outcome.
type UsageStatistic struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ProxyID    uint64 `gorm:"not null;uniqueIndex:idx_usage_proxy_status,priority:1"`
	StatusCode int    `gorm:"not null;uniqueIndex:idx_usage_proxy_status,priority:2"`
	Counter    int64  `gorm:"not null;default:0"`

	LastReportedAt time.Time `gorm:"index"`

	Proxy  Proxy         `gorm:"foreignKey:ProxyID"`
	Status StatusOutcome `gorm:"foreignKey:StatusCode;references:Code"`
}

func (statistic *UsageStatistic) IsFailure() bool {
	return statistic.StatusCode >= 400
}
