package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"proxycare/internal/api/dto"
	"proxycare/internal/database"
)

func (handlers *routeHandlers) listSources(w http.ResponseWriter, _ *http.Request) {
	sources, err := database.ListSources()
	if err != nil {
		writeError(w, "Failed to load sources", http.StatusInternalServerError)
		return
	}

	summaries := make([]dto.SourceSummary, 0, len(sources))
	for _, source := range sources {
		total, blocked, countErr := database.CountProxies(source.ID)
		if countErr != nil {
			writeError(w, "Failed to load sources", http.StatusInternalServerError)
			return
		}

		summary := dto.SourceSummary{
			ID:             source.ID,
			Name:           source.Name,
			TotalProxies:   total,
			BlockedProxies: blocked,
		}

		latest, hasProxies, touchErr := database.LatestSourceTouch(source.ID)
		if touchErr != nil {
			writeError(w, "Failed to load sources", http.StatusInternalServerError)
			return
		}
		if hasProxies && !latest.IsZero() {
			summary.LastActivity = &latest
		}

		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": summaries})
}

func (handlers *routeHandlers) createSource(w http.ResponseWriter, r *http.Request) {
	var payload dto.SourceCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	source, err := database.CreateSource(payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrSourceNameRequired):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, database.ErrSourceNameConflict):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, "Failed to create source", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, source)
}

func (handlers *routeHandlers) createProvider(w http.ResponseWriter, r *http.Request) {
	var payload dto.ProviderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	provider, err := database.CreateProvider(payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrProviderNameRequired):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, database.ErrProviderNameConflict):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, "Failed to create provider", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, provider)
}
