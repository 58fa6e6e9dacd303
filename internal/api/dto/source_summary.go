package dto

import "time"

type SourceSummary struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	TotalProxies   int64      `json:"total_proxies"`
	BlockedProxies int64      `json:"blocked_proxies"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
}

type SourceCreateRequest struct {
	Name string `json:"name"`
}

type ProviderCreateRequest struct {
	Name string `json:"name"`
}

type ProxyCreateRequest struct {
	Address              string `json:"address"`
	SourceID             uint   `json:"source_id"`
	ProviderID           uint   `json:"provider_id,omitempty"`
	Priority             int    `json:"priority"`
	UsageCooldownSeconds int    `json:"usage_cooldown_seconds,omitempty"`
}
