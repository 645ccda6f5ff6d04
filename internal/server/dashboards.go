package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joshp123/gobotvac/internal/core"
)

// mountDashboards serves each plugin dashboard under core.DashboardPath and
// an index of those paths at /dashboards.
func mountDashboards(r chi.Router, dashboards map[string][]byte) {
	paths := make([]string, 0, len(dashboards))
	for path := range dashboards {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	r.Get("/dashboards", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"dashboards": paths})
	})
	r.Get("/dashboards/{plugin}/{file}", func(w http.ResponseWriter, req *http.Request) {
		name, ok := strings.CutSuffix(chi.URLParam(req, "file"), ".json")
		data, found := dashboards[core.DashboardPath(chi.URLParam(req, "plugin"), name)]
		if !ok || !found {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})
}
