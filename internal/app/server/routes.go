package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"proxycare/internal/cache"
	"proxycare/internal/health"
	"proxycare/internal/pool"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Deps are the engine pieces the routes expose. Authentication lives in the
// surrounding deployment, not here.
type Deps struct {
	Engine    *pool.Engine
	Tracker   *health.Tracker
	PoolCache *cache.PoolCache
	Redis     *redis.Client
}

func NewRouter(deps Deps) http.Handler {
	handlers := &routeHandlers{deps: deps}

	router := http.NewServeMux()
	router.HandleFunc("GET /health", handlers.healthCheck)

	router.HandleFunc("GET /nextProxy/{sourceId}", handlers.nextProxy)
	router.HandleFunc("POST /reportOutcome", handlers.reportOutcome)
	router.HandleFunc("GET /proxies/{id}/reports", handlers.proxyReports)
	router.HandleFunc("GET /proxies/{id}/failureRatio", handlers.proxyFailureRatio)
	router.HandleFunc("POST /proxies", handlers.createProxy)
	router.HandleFunc("POST /proxies/refresh", handlers.refreshPools)

	router.HandleFunc("GET /statusCatalog", handlers.statusCatalog)

	router.HandleFunc("GET /sources", handlers.listSources)
	router.HandleFunc("POST /sources", handlers.createSource)
	router.HandleFunc("POST /providers", handlers.createProvider)

	router.HandleFunc("GET /debug/pools", handlers.debugPools)

	return enableCORS(router)
}

// OpenRoutes serves the API until the listener fails.
func OpenRoutes(port int, deps Deps) error {
	server := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: NewRouter(deps),
	}

	log.Info("Starting API server", "port", port)
	return server.ListenAndServe()
}
