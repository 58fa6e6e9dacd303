package dto

import "time"

type OutcomeReport struct {
	ProxyID    uint64 `json:"proxy_id"`
	StatusCode int    `json:"status_code"`
}

type OutcomeAck struct {
	ProxyID    uint64 `json:"proxy_id"`
	StatusCode int    `json:"status_code"`
	Blocked    bool   `json:"blocked"`
}

type ProxyReportRow struct {
	StatusCode     int       `json:"status_code"`
	Description    string    `json:"description,omitempty"`
	Counter        int64     `json:"counter"`
	LastReportedAt time.Time `json:"last_reported_at"`
}

type ProxyReports struct {
	ProxyID uint64           `json:"proxy_id"`
	Reports []ProxyReportRow `json:"reports"`
}

type FailureRatio struct {
	ProxyID       uint64  `json:"proxy_id"`
	WindowSeconds int64   `json:"window_seconds"`
	Ratio         float64 `json:"ratio"`
}
