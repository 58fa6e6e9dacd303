package pool

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"proxycare/internal/database"
	"proxycare/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if _, err := database.SetupDB(
		database.WithExistingDB(db),
		database.WithAutoMigrate(true),
		database.WithMigrations(
			domain.Source{},
			domain.Provider{},
			domain.Proxy{},
			domain.StatusOutcome{},
			domain.UsageStatistic{},
		),
		database.WithSeedDefaults(true),
	); err != nil {
		t.Fatalf("setup database: %v", err)
	}

	t.Cleanup(func() {
		database.DB = nil
	})

	return db
}

func TestDatabaseStore_AcquireScenario(t *testing.T) {
	db := setupStoreTestDB(t)

	source := domain.Source{Name: "shop-a"}
	if err := db.Create(&source).Error; err != nil {
		t.Fatalf("create source: %v", err)
	}

	base := time.Now()
	proxies := []domain.Proxy{
		{Address: "10.0.0.1:8080", SourceID: source.ID, Priority: 100, UsageCooldownSeconds: 30, LastTouched: base.Add(-60 * time.Second)},
		{Address: "10.0.0.2:8080", SourceID: source.ID, Priority: 90, UsageCooldownSeconds: 30, LastTouched: base.Add(-60 * time.Second)},
	}
	for idx := range proxies {
		if err := db.Create(&proxies[idx]).Error; err != nil {
			t.Fatalf("create proxy %d: %v", idx, err)
		}
	}

	engine := NewEngineWithClock(DatabaseStore{}, func() time.Time { return base })

	first, err := engine.Acquire(source.ID)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if first.ProxyID != proxies[0].ID {
		t.Fatalf("first acquire = proxy %d, want the priority-100 proxy %d", first.ProxyID, proxies[0].ID)
	}

	second, err := engine.Acquire(source.ID)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if second.ProxyID != proxies[1].ID {
		t.Fatalf("second acquire = proxy %d, want %d", second.ProxyID, proxies[1].ID)
	}

	if _, err := engine.Acquire(source.ID); !errors.Is(err, ErrExhausted) {
		t.Fatalf("third Acquire = %v, want ErrExhausted with both proxies cooling down", err)
	}
}

func TestDatabaseStore_MapsCooldownToConflict(t *testing.T) {
	db := setupStoreTestDB(t)

	source := domain.Source{Name: "shop-a"}
	if err := db.Create(&source).Error; err != nil {
		t.Fatalf("create source: %v", err)
	}

	now := time.Now()
	proxy := domain.Proxy{Address: "10.0.0.1:8080", SourceID: source.ID, Priority: 10, UsageCooldownSeconds: 30, LastTouched: now.Add(-time.Second)}
	if err := db.Create(&proxy).Error; err != nil {
		t.Fatalf("create proxy: %v", err)
	}

	store := DatabaseStore{}
	if err := store.MarkAssigned(proxy.ID, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("MarkAssigned inside cooldown = %v, want ErrConflict", err)
	}

	if err := store.MarkAssigned(404040, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("MarkAssigned on vanished proxy = %v, want ErrConflict", err)
	}
}
