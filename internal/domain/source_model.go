package domain

// Source is an upstream origin that supplies proxies. Sources are created by
// the ingestion side and never mutated by the engine.
type Source struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`

	Proxies []Proxy `gorm:"foreignKey:SourceID"`
}
