package database

import (
	"fmt"
	"testing"
	"time"

	"proxycare/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.Source{},
		&domain.Provider{},
		&domain.Proxy{},
		&domain.StatusOutcome{},
		&domain.UsageStatistic{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	if err := ensureStatusCatalog(db); err != nil {
		t.Fatalf("seed status catalog: %v", err)
	}

	DB = db

	t.Cleanup(func() {
		DB = nil
	})

	return db
}

func createTestSource(t *testing.T, db *gorm.DB, name string) domain.Source {
	t.Helper()

	source := domain.Source{Name: name}
	if err := db.Create(&source).Error; err != nil {
		t.Fatalf("create source %q: %v", name, err)
	}
	return source
}

func createTestProxy(t *testing.T, db *gorm.DB, sourceID uint, address string, priority int, blocked bool, lastTouched time.Time) domain.Proxy {
	t.Helper()

	proxy := domain.Proxy{
		Address:              address,
		SourceID:             sourceID,
		Priority:             priority,
		Blocked:              blocked,
		UsageCooldownSeconds: 30,
		LastTouched:          lastTouched,
	}
	if err := db.Create(&proxy).Error; err != nil {
		t.Fatalf("create proxy %q: %v", address, err)
	}
	return proxy
}
