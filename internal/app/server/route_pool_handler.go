package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"proxycare/internal/api/dto"
	"proxycare/internal/database"
	"proxycare/internal/domain"
	"proxycare/internal/jobs/runtime"
	"proxycare/internal/pool"

	"github.com/charmbracelet/log"
)

type routeHandlers struct {
	deps Deps
}

func (handlers *routeHandlers) healthCheck(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "healthy"}

	if handlers.deps.Redis != nil {
		instances, err := runtime.CountActiveInstances(r.Context(), handlers.deps.Redis)
		if err != nil {
			log.Warn("instance count lookup failed", "error", err)
		} else {
			payload["instances"] = instances
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

func (handlers *routeHandlers) nextProxy(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := parseUintPathValue(w, r, "sourceId")
	if !ok {
		return
	}

	if _, err := database.GetSource(uint(sourceID)); err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			writeError(w, "Source not found", http.StatusNotFound)
			return
		}
		writeError(w, "Proxy store unavailable", http.StatusServiceUnavailable)
		return
	}

	handle, err := handlers.deps.Engine.Acquire(uint(sourceID))
	if err != nil {
		if errors.Is(err, pool.ErrExhausted) {
			// Retryable: every proxy is cooling down or blocked right now.
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		log.Error("proxy acquisition failed", "source_id", sourceID, "error", err)
		writeError(w, "Proxy store unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, dto.NextProxy{
		ProxyID:    handle.ProxyID,
		Address:    handle.Address,
		SourceID:   handle.SourceID,
		Priority:   handle.Priority,
		AssignedAt: handle.AssignedAt,
	})
}

func (handlers *routeHandlers) reportOutcome(w http.ResponseWriter, r *http.Request) {
	var payload dto.OutcomeReport
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.ProxyID == 0 {
		writeError(w, "Missing proxy id", http.StatusBadRequest)
		return
	}

	blocked, err := handlers.deps.Tracker.Report(payload.ProxyID, payload.StatusCode)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrProxyNotFound):
			writeError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, database.ErrStatusUnknown):
			writeError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error("outcome report failed", "proxy_id", payload.ProxyID, "error", err)
			writeError(w, "Proxy store unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.OutcomeAck{
		ProxyID:    payload.ProxyID,
		StatusCode: payload.StatusCode,
		Blocked:    blocked,
	})
}

func (handlers *routeHandlers) proxyReports(w http.ResponseWriter, r *http.Request) {
	proxyID, ok := parseUintPathValue(w, r, "id")
	if !ok {
		return
	}

	if _, err := database.GetProxy(proxyID); err != nil {
		if errors.Is(err, database.ErrProxyNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "Proxy store unavailable", http.StatusServiceUnavailable)
		return
	}

	reports, err := database.ListProxyReports(proxyID)
	if err != nil {
		writeError(w, "Failed to load proxy reports", http.StatusInternalServerError)
		return
	}

	descriptions := statusDescriptions()

	rows := make([]dto.ProxyReportRow, 0, len(reports))
	for _, report := range reports {
		rows = append(rows, dto.ProxyReportRow{
			StatusCode:     report.StatusCode,
			Description:    descriptions[report.StatusCode],
			Counter:        report.Counter,
			LastReportedAt: report.LastReportedAt,
		})
	}

	writeJSON(w, http.StatusOK, dto.ProxyReports{ProxyID: proxyID, Reports: rows})
}

func (handlers *routeHandlers) proxyFailureRatio(w http.ResponseWriter, r *http.Request) {
	proxyID, ok := parseUintPathValue(w, r, "id")
	if !ok {
		return
	}

	window := time.Duration(0)
	if raw := strings.TrimSpace(r.URL.Query().Get("window")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, "Invalid window duration", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	ratio, err := handlers.deps.Tracker.FailureRatio(proxyID, window)
	if err != nil {
		if errors.Is(err, database.ErrProxyNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "Proxy store unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, dto.FailureRatio{
		ProxyID:       proxyID,
		WindowSeconds: int64(window / time.Second),
		Ratio:         ratio,
	})
}

func (handlers *routeHandlers) createProxy(w http.ResponseWriter, r *http.Request) {
	var payload dto.ProxyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	proxy := domain.Proxy{
		Address:              payload.Address,
		SourceID:             payload.SourceID,
		Priority:             payload.Priority,
		UsageCooldownSeconds: payload.UsageCooldownSeconds,
	}
	if payload.ProviderID != 0 {
		providerID := payload.ProviderID
		proxy.ProviderID = &providerID
	}

	if err := database.CreateProxy(&proxy); err != nil {
		switch {
		case errors.Is(err, database.ErrSourceNotFound),
			errors.Is(err, database.ErrProviderNotFound):
			writeError(w, err.Error(), http.StatusNotFound)
		default:
			writeError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	if err := handlers.deps.PoolCache.RefreshSource(r.Context(), proxy.SourceID); err != nil {
		log.Warn("pool cache refresh after proxy creation failed", "source_id", proxy.SourceID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"proxy_id": proxy.ID})
}

func (handlers *routeHandlers) refreshPools(w http.ResponseWriter, r *http.Request) {
	if !handlers.deps.PoolCache.Enabled() {
		writeError(w, "Pool cache is not configured", http.StatusServiceUnavailable)
		return
	}

	refreshed, err := handlers.deps.PoolCache.RefreshAll(r.Context())
	if err != nil {
		log.Error("pool cache refresh failed", "error", err)
		writeError(w, "Failed to refresh pool cache", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Proxy pools refreshed", "pools": refreshed})
}

func (handlers *routeHandlers) debugPools(w http.ResponseWriter, r *http.Request) {
	sizes, err := handlers.deps.PoolCache.PoolSizes(r.Context())
	if err != nil {
		log.Error("pool size listing failed", "error", err)
		writeError(w, "Failed to inspect pool cache", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pools": sizes})
}

func (handlers *routeHandlers) statusCatalog(w http.ResponseWriter, _ *http.Request) {
	catalog, err := database.ListStatusCatalog()
	if err != nil {
		writeError(w, "Failed to load status catalog", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": catalog})
}

func statusDescriptions() map[int]string {
	catalog, err := database.ListStatusCatalog()
	if err != nil {
		log.Warn("status catalog lookup failed", "error", err)
		return map[int]string{}
	}
	descriptions := make(map[int]string, len(catalog))
	for _, status := range catalog {
		descriptions[status.Code] = status.Description
	}
	return descriptions
}

func parseUintPathValue(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		writeError(w, "Missing "+name, http.StatusBadRequest)
		return 0, false
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}
