package database

import (
	"testing"
	"time"

	"proxycare/internal/domain"
)

func TestStatusKnown(t *testing.T) {
	setupTestDB(t)

	known, err := StatusKnown(200)
	if err != nil {
		t.Fatalf("StatusKnown(200): %v", err)
	}
	if !known {
		t.Fatal("200 should be seeded into the catalog")
	}

	known, err = StatusKnown(domain.TransportFailureCode)
	if err != nil {
		t.Fatalf("StatusKnown(transport failure): %v", err)
	}
	if !known {
		t.Fatal("transport failure code should be seeded into the catalog")
	}

	known, err = StatusKnown(299)
	if err != nil {
		t.Fatalf("StatusKnown(299): %v", err)
	}
	if known {
		t.Fatal("299 should not be in the catalog")
	}
}

func TestIncrementUsageStatistic_RunsCounter(t *testing.T) {
	db := setupTestDB(t)
	source := createTestSource(t, db, "shop-a")
	proxy := createTestProxy(t, db, source.ID, "10.0.0.1:8080", 50, false, time.Now().Add(-time.Hour))

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := IncrementUsageStatistic(proxy.ID, 403, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("IncrementUsageStatistic #%d: %v", i+1, err)
		}
	}

	statistic, err := GetUsageStatistic(proxy.ID, 403)
	if err != nil {
		t.Fatalf("GetUsageStatistic: %v", err)
	}
	if statistic.Counter != 3 {
		t.Fatalf("counter = %d, want 3", statistic.Counter)
	}
	if statistic.LastReportedAt.Sub(now.Add(2*time.Second)).Abs() > time.Second {
		t.Fatalf("last reported at = %v, want the newest report time", statistic.LastReportedAt)
	}

	var rows int64
	if err := db.Model(&domain.UsageStatistic{}).Where("proxy_id = ?", proxy.ID).Count(&rows).Error; err != nil {
		t.Fatalf("count statistic rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("statistic rows = %d, want a single upserted row per (proxy, status)", rows)
	}
}

func TestOutcomeTotals_WindowFilter(t *testing.T) {
	db := setupTestDB(t)
	source := createTestSource(t, db, "shop-a")
	proxy := createTestProxy(t, db, source.ID, "10.0.0.1:8080", 50, false, time.Now().Add(-time.Hour))

	now := time.Now()
	stale := now.Add(-2 * time.Hour)

	if err := IncrementUsageStatistic(proxy.ID, 200, now); err != nil {
		t.Fatalf("record 200: %v", err)
	}
	if err := IncrementUsageStatistic(proxy.ID, 200, now); err != nil {
		t.Fatalf("record second 200: %v", err)
	}
	if err := IncrementUsageStatistic(proxy.ID, 502, now); err != nil {
		t.Fatalf("record 502: %v", err)
	}
	if err := IncrementUsageStatistic(proxy.ID, 404, stale); err != nil {
		t.Fatalf("record stale 404: %v", err)
	}

	failures, total, err := OutcomeTotals(proxy.ID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("OutcomeTotals: %v", err)
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want 1 (stale 404 outside window)", failures)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	failures, total, err = OutcomeTotals(proxy.ID, stale.Add(-time.Minute))
	if err != nil {
		t.Fatalf("OutcomeTotals with wide window: %v", err)
	}
	if failures != 2 || total != 4 {
		t.Fatalf("wide window totals = (%d, %d), want (2, 4)", failures, total)
	}
}
