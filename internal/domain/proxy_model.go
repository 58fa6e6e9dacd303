package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultUsageCooldownSeconds is the minimum gap enforced between two
// assignments of the same proxy when a row does not carry its own value.
const DefaultUsageCooldownSeconds = 30

type Proxy struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Address string `gorm:"size:100;not null;index" json:"address"` // host:port, duplicates across sources allowed

	SourceID uint `gorm:"not null;index:idx_proxy_source"`

	// ProviderID is nullable: proxies obtained outside a vendor relationship
	// carry no provider.
	ProviderID *uint `gorm:"index"`

	Priority int  `gorm:"not null;default:0;index:idx_proxy_source,priority:2"`
	Blocked  bool `gorm:"not null;default:false;index"`

	// UsageCooldownSeconds is the per-proxy cooldown window. LastTouched is
	// bumped by every engine mutation (assignment or block-state change), not
	// by a database trigger, so the contract stays testable without one.
	UsageCooldownSeconds int       `gorm:"not null;default:30"`
	LastTouched          time.Time `gorm:"index"`

	Source     Source           `gorm:"foreignKey:SourceID"`
	Provider   Provider         `gorm:"foreignKey:ProviderID"`
	Statistics []UsageStatistic `gorm:"foreignKey:ProxyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (proxy *Proxy) UsageCooldown() time.Duration {
	seconds := proxy.UsageCooldownSeconds
	if seconds <= 0 {
		seconds = DefaultUsageCooldownSeconds
	}
	return time.Duration(seconds) * time.Second
}

// CooldownElapsed reports whether the proxy may be assigned again at now.
func (proxy *Proxy) CooldownElapsed(now time.Time) bool {
	if proxy.LastTouched.IsZero() {
		return true
	}
	return now.Sub(proxy.LastTouched) >= proxy.UsageCooldown()
}

func (proxy *Proxy) Host() string {
	host, _, err := net.SplitHostPort(proxy.Address)
	if err != nil {
		return proxy.Address
	}
	return host
}

func (proxy *Proxy) Port() uint16 {
	_, rawPort, err := net.SplitHostPort(proxy.Address)
	if err != nil {
		return 0
	}
	port, err := strconv.ParseUint(rawPort, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}

// ValidateAddress rejects addresses that cannot be split into host and port.
func (proxy *Proxy) ValidateAddress() error {
	address := strings.TrimSpace(proxy.Address)
	if address == "" {
		return fmt.Errorf("proxy address is empty")
	}
	host, rawPort, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("proxy address %q is not host:port", address)
	}
	if host == "" {
		return fmt.Errorf("proxy address %q has an empty host", address)
	}
	if _, err := strconv.ParseUint(rawPort, 10, 16); err != nil {
		return fmt.Errorf("proxy address %q has an invalid port", address)
	}
	proxy.Address = address
	return nil
}
