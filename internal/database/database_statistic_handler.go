package database

import (
	"errors"
	"fmt"
	"time"

	"proxycare/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStatusUnknown means a reported status code is not in the catalog.
	// The report is rejected without touching any state.
	ErrStatusUnknown = errors.New("status code is not in the outcome catalog")
)

func StatusKnown(code int) (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("statistic store: database connection was not initialised")
	}

	var status domain.StatusOutcome
	err := DB.First(&status, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func ListStatusCatalog() ([]domain.StatusOutcome, error) {
	if DB == nil {
		return nil, fmt.Errorf("statistic store: database connection was not initialised")
	}

	var catalog []domain.StatusOutcome
	if err := DB.Order("code ASC").Find(&catalog).Error; err != nil {
		return nil, err
	}
	return catalog, nil
}

// IncrementUsageStatistic bumps the (proxy, status) counter, inserting the
// row on first report. Single upsert statement, safe under concurrent
// reports for the same pair.
func IncrementUsageStatistic(proxyID uint64, statusCode int, now time.Time) error {
	if DB == nil {
		return fmt.Errorf("statistic store: database connection was not initialised")
	}

	row := domain.UsageStatistic{
		ProxyID:        proxyID,
		StatusCode:     statusCode,
		Counter:        1,
		LastReportedAt: now,
	}

	return DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proxy_id"}, {Name: "status_code"}},
		DoUpdates: clause.Assignments(map[string]any{
			"counter":          gorm.Expr("counter + 1"),
			"last_reported_at": now,
		}),
	}).Create(&row).Error
}

func GetUsageStatistic(proxyID uint64, statusCode int) (*domain.UsageStatistic, error) {
	if DB == nil {
		return nil, fmt.Errorf("statistic store: database connection was not initialised")
	}

	var statistic domain.UsageStatistic
	err := DB.
		Where("proxy_id = ? AND status_code = ?", proxyID, statusCode).
		First(&statistic).Error
	if err != nil {
		return nil, err
	}
	return &statistic, nil
}

// OutcomeTotals sums the proxy's counters reported since the cutoff,
// returning failing (status >= 400) and overall totals.
func OutcomeTotals(proxyID uint64, since time.Time) (failures int64, total int64, err error) {
	if DB == nil {
		return 0, 0, fmt.Errorf("statistic store: database connection was not initialised")
	}

	query := DB.Model(&domain.UsageStatistic{}).
		Where("proxy_id = ? AND last_reported_at >= ?", proxyID, since)

	var sums struct {
		Failures int64
		Total    int64
	}
	err = query.
		Select(
			"COALESCE(SUM(CASE WHEN status_code >= 400 THEN counter ELSE 0 END), 0) AS failures, " +
				"COALESCE(SUM(counter), 0) AS total",
		).
		Scan(&sums).Error
	if err != nil {
		return 0, 0, err
	}
	return sums.Failures, sums.Total, nil
}

func ListProxyReports(proxyID uint64) ([]domain.UsageStatistic, error) {
	if DB == nil {
		return nil, fmt.Errorf("statistic store: database connection was not initialised")
	}

	var reports []domain.UsageStatistic
	err := DB.
		Where("proxy_id = ?", proxyID).
		Order("status_code ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func ensureStatusCatalog(db *gorm.DB) error {
	if !db.Migrator().HasTable(&domain.StatusOutcome{}) {
		return nil
	}

	var count int64
	if err := db.Model(&domain.StatusOutcome{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	catalog := defaultStatusCatalog()
	return db.Create(&catalog).Error
}

func defaultStatusCatalog() []domain.StatusOutcome {
	return []domain.StatusOutcome{
		{Code: 200, Description: "OK"},
		{Code: 201, Description: "Created"},
		{Code: 202, Description: "Accepted"},
		{Code: 204, Description: "No Content"},
		{Code: 206, Description: "Partial Content"},
		{Code: 301, Description: "Moved Permanently"},
		{Code: 302, Description: "Found"},
		{Code: 304, Description: "Not Modified"},
		{Code: 307, Description: "Temporary Redirect"},
		{Code: 308, Description: "Permanent Redirect"},
		{Code: 400, Description: "Bad Request"},
		{Code: 401, Description: "Unauthorized"},
		{Code: 403, Description: "Forbidden"},
		{Code: 404, Description: "Not Found"},
		{Code: 405, Description: "Method Not Allowed"},
		{Code: 407, Description: "Proxy Authentication Required"},
		{Code: 408, Description: "Request Timeout"},
		{Code: 410, Description: "Gone"},
		{Code: 418, Description: "I'm a teapot"},
		{Code: 421, Description: "Misdirected Request"},
		{Code: 425, Description: "Too Early"},
		{Code: 429, Description: "Too Many Requests"},
		{Code: 451, Description: "Unavailable For Legal Reasons"},
		{Code: 500, Description: "Internal Server Error"},
		{Code: 502, Description: "Bad Gateway"},
		{Code: 503, Description: "Service Unavailable"},
		{Code: 504, Description: "Gateway Timeout"},
		{Code: 521, Description: "Web Server Is Down"},
		{Code: 522, Description: "Connection Timed Out"},
		{Code: 525, Description: "SSL Handshake Failed"},
		{Code: domain.TransportFailureCode, Description: "Proxy Transport Failure"},
	}
}
