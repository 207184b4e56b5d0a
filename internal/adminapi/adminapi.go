// Package adminapi exposes the cache subsystem's operational surface:
// liveness, per-region stats, and on-demand gc/clear/reload triggers.
package adminapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/stockcache/cachesrv/internal/cachefacade"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// NewServer builds an *http.Server bound to addr exposing the admin routes.
// token is the bearer token required on every /admin/* route; an empty
// token disables auth (healthz is always open, for load balancer probes).
// It is not started here; callers control ListenAndServe/Shutdown timing.
func NewServer(addr string, facade *cachefacade.Facade, token string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /admin/stats", requireToken(token, handleStats(facade)))
	mux.Handle("POST /admin/gc", requireToken(token, handleGC(facade)))
	mux.Handle("POST /admin/clear", requireToken(token, handleClear(facade)))
	mux.Handle("POST /admin/reload-stock", requireToken(token, handleReloadStock(facade)))
	return &http.Server{Addr: addr, Handler: mux}
}

func requireToken(token string, next http.HandlerFunc) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing admin token"})
			return
		}
		next(w, r)
	})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(facade *cachefacade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"regions": facade.Stats(),
		})
	}
}

func handleGC(facade *cachefacade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := facade.GC()
		writeJSON(w, http.StatusOK, map[string]any{"expired_removed": removed})
	}
}

func handleClear(facade *cachefacade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facade.ClearAll()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func handleReloadStock(facade *cachefacade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := facade.ReloadStockData(); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}
