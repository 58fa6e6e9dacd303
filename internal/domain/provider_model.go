package domain

// Provider identifies the vendor a proxy was bought or obtained from.
type Provider struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`

	Proxies []Proxy `gorm:"foreignKey:ProviderID"`
}
