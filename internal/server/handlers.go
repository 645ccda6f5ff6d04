package server

import (
	"net/http"

	"github.com/joshp123/gobotvac/internal/core"
)

// HealthHandler returns ok for liveness checks, or 503 when any plugin is in
// the error state.
func HealthHandler(plugins []core.Plugin) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for _, plugin := range plugins {
			if plugin.Health() == core.HealthError {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(plugin.ID() + ": " + plugin.HealthMessage()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
