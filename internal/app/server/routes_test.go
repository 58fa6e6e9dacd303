package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proxycare/internal/api/dto"
	"proxycare/internal/database"
	"proxycare/internal/domain"
	"proxycare/internal/health"
	"proxycare/internal/pool"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouterTest(t *testing.T) (http.Handler, *gorm.DB) {
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

	router := NewRouter(Deps{
		Engine:  pool.NewEngine(pool.DatabaseStore{}),
		Tracker: health.NewTracker(),
	})
	return router, db
}

func seedRouterProxy(t *testing.T, db *gorm.DB) (domain.Source, domain.Proxy) {
	t.Helper()

	source := domain.Source{Name: "shop-a"}
	if err := db.Create(&source).Error; err != nil {
		t.Fatalf("create source: %v", err)
	}
	proxy := domain.Proxy{
		Address:              "10.0.0.1:8080",
		SourceID:             source.ID,
		Priority:             50,
		UsageCooldownSeconds: 30,
		LastTouched:          time.Now().Add(-time.Hour),
	}
	if err := db.Create(&proxy).Error; err != nil {
		t.Fatalf("create proxy: %v", err)
	}
	return source, proxy
}

func doRequest(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodGet, "/health", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.Code)
	}
}

func TestNextProxyEndpoint(t *testing.T) {
	router, db := setupRouterTest(t)
	source, proxy := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodGet, fmt.Sprintf("/nextProxy/%d", source.ID), nil)
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", response.Code, response.Body.String())
	}

	var payload dto.NextProxy
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ProxyID != proxy.ID {
		t.Fatalf("proxy_id = %d, want %d", payload.ProxyID, proxy.ID)
	}
	if payload.Address != proxy.Address {
		t.Fatalf("address = %q, want %q", payload.Address, proxy.Address)
	}

	// The only proxy is now inside its cooldown window.
	response = doRequest(t, router, http.MethodGet, fmt.Sprintf("/nextProxy/%d", source.ID), nil)
	if response.Code != http.StatusConflict {
		t.Fatalf("second acquire status = %d, want 409", response.Code)
	}
}

func TestNextProxyEndpoint_UnknownSource(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodGet, "/nextProxy/999", nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", response.Code)
	}
}

func TestNextProxyEndpoint_InvalidSourceID(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodGet, "/nextProxy/notanumber", nil)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", response.Code)
	}
}

func TestReportOutcomeEndpoint(t *testing.T) {
	router, db := setupRouterTest(t)
	_, proxy := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/reportOutcome", dto.OutcomeReport{
		ProxyID:    proxy.ID,
		StatusCode: 200,
	})
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", response.Code, response.Body.String())
	}

	var ack dto.OutcomeAck
	if err := json.Unmarshal(response.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Blocked {
		t.Fatal("a single success must not block the proxy")
	}
}

func TestReportOutcomeEndpoint_UnknownStatus(t *testing.T) {
	router, db := setupRouterTest(t)
	_, proxy := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/reportOutcome", dto.OutcomeReport{
		ProxyID:    proxy.ID,
		StatusCode: 299,
	})
	if response.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an uncatalogued status", response.Code)
	}
}

func TestReportOutcomeEndpoint_UnknownProxy(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodPost, "/reportOutcome", dto.OutcomeReport{
		ProxyID:    12345,
		StatusCode: 200,
	})
	if response.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", response.Code)
	}
}

func TestReportOutcomeEndpoint_TransportFailureBlocks(t *testing.T) {
	router, db := setupRouterTest(t)
	source, proxy := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/reportOutcome", dto.OutcomeReport{
		ProxyID:    proxy.ID,
		StatusCode: domain.TransportFailureCode,
	})
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", response.Code, response.Body.String())
	}

	var ack dto.OutcomeAck
	if err := json.Unmarshal(response.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Blocked {
		t.Fatal("transport failure should block on the first report")
	}

	response = doRequest(t, router, http.MethodGet, fmt.Sprintf("/nextProxy/%d", source.ID), nil)
	if response.Code != http.StatusConflict {
		t.Fatalf("acquire after block status = %d, want 409", response.Code)
	}
}

func TestProxyReportsEndpoint(t *testing.T) {
	router, db := setupRouterTest(t)
	_, proxy := seedRouterProxy(t, db)

	for _, code := range []int{200, 200, 502} {
		response := doRequest(t, router, http.MethodPost, "/reportOutcome", dto.OutcomeReport{
			ProxyID:    proxy.ID,
			StatusCode: code,
		})
		if response.Code != http.StatusOK {
			t.Fatalf("report %d status = %d", code, response.Code)
		}
	}

	response := doRequest(t, router, http.MethodGet, fmt.Sprintf("/proxies/%d/reports", proxy.ID), nil)
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", response.Code, response.Body.String())
	}

	var reports dto.ProxyReports
	if err := json.Unmarshal(response.Body.Bytes(), &reports); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(reports.Reports) != 2 {
		t.Fatalf("report rows = %d, want 2 (one per status code)", len(reports.Reports))
	}

	counters := make(map[int]int64, len(reports.Reports))
	for _, row := range reports.Reports {
		counters[row.StatusCode] = row.Counter
	}
	if counters[200] != 2 || counters[502] != 1 {
		t.Fatalf("counters = %v, want 200:2 502:1", counters)
	}
}

func TestCreateProxyEndpoint(t *testing.T) {
	router, db := setupRouterTest(t)
	source, _ := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/proxies", dto.ProxyCreateRequest{
		Address:  "10.0.0.2:8080",
		SourceID: source.ID,
		Priority: 75,
	})
	if response.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", response.Code, response.Body.String())
	}

	var count int64
	if err := db.Model(&domain.Proxy{}).Where("source_id = ?", source.ID).Count(&count).Error; err != nil {
		t.Fatalf("count proxies: %v", err)
	}
	if count != 2 {
		t.Fatalf("proxies = %d, want 2", count)
	}
}

func TestCreateProxyEndpoint_BadAddress(t *testing.T) {
	router, db := setupRouterTest(t)
	source, _ := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/proxies", dto.ProxyCreateRequest{
		Address:  "not-an-address",
		SourceID: source.ID,
	})
	if response.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", response.Code)
	}
}

func TestCreateProxyEndpoint_UnknownSource(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodPost, "/proxies", dto.ProxyCreateRequest{
		Address:  "10.0.0.2:8080",
		SourceID: 999,
	})
	if response.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", response.Code)
	}
}

func TestSourceEndpoints(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodPost, "/sources", dto.SourceCreateRequest{Name: "shop-b"})
	if response.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", response.Code, response.Body.String())
	}

	response = doRequest(t, router, http.MethodPost, "/sources", dto.SourceCreateRequest{Name: "shop-b"})
	if response.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", response.Code)
	}

	response = doRequest(t, router, http.MethodGet, "/sources", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("list status = %d", response.Code)
	}

	var listing struct {
		Sources []dto.SourceSummary `json:"sources"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(listing.Sources) != 1 || listing.Sources[0].Name != "shop-b" {
		t.Fatalf("summaries = %+v, want just shop-b", listing.Sources)
	}
}

func TestCreateProviderEndpoint(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodPost, "/providers", dto.ProviderCreateRequest{Name: "vendor-a"})
	if response.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", response.Code, response.Body.String())
	}

	response = doRequest(t, router, http.MethodPost, "/providers", dto.ProviderCreateRequest{Name: "vendor-a"})
	if response.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", response.Code)
	}

	response = doRequest(t, router, http.MethodPost, "/providers", dto.ProviderCreateRequest{Name: "  "})
	if response.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", response.Code)
	}
}

func TestCreateProxyEndpoint_WithProvider(t *testing.T) {
	router, db := setupRouterTest(t)
	source, _ := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/providers", dto.ProviderCreateRequest{Name: "vendor-a"})
	if response.Code != http.StatusCreated {
		t.Fatalf("create provider status = %d, body %s", response.Code, response.Body.String())
	}

	var provider domain.Provider
	if err := json.Unmarshal(response.Body.Bytes(), &provider); err != nil {
		t.Fatalf("decode provider: %v", err)
	}

	response = doRequest(t, router, http.MethodPost, "/proxies", dto.ProxyCreateRequest{
		Address:    "10.0.0.3:8080",
		SourceID:   source.ID,
		ProviderID: provider.ID,
	})
	if response.Code != http.StatusCreated {
		t.Fatalf("create proxy status = %d, body %s", response.Code, response.Body.String())
	}
}

func TestCreateProxyEndpoint_UnknownProvider(t *testing.T) {
	router, db := setupRouterTest(t)
	source, _ := seedRouterProxy(t, db)

	response := doRequest(t, router, http.MethodPost, "/proxies", dto.ProxyCreateRequest{
		Address:    "10.0.0.3:8080",
		SourceID:   source.ID,
		ProviderID: 999,
	})
	if response.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unknown provider", response.Code)
	}
}

func TestRefreshPoolsEndpoint_WithoutCache(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodPost, "/proxies/refresh", nil)
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without a configured cache", response.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupRouterTest(t)

	response := doRequest(t, router, http.MethodOptions, "/health", nil)
	if response.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", response.Code)
	}
	if origin := response.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("allow-origin = %q", origin)
	}
}
