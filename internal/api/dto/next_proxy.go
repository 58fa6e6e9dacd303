package dto

import "time"

type NextProxy struct {
	ProxyID    uint64    `json:"proxy_id"`
	Address    string    `json:"address"`
	SourceID   uint      `json:"source_id"`
	Priority   int       `json:"priority"`
	AssignedAt time.Time `json:"assigned_at"`
}
