package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// DashboardPath is the HTTP path a dashboard is served under.
func DashboardPath(pluginID, name string) string {
	return "/dashboards/" + pluginID + "/" + name + ".json"
}

// DashboardsMap materializes dashboard content keyed by DashboardPath.
func DashboardsMap(plugins []Plugin) map[string][]byte {
	result := make(map[string][]byte)
	for _, plugin := range plugins {
		id := plugin.Manifest().PluginID
		for _, dash := range plugin.Dashboards() {
			result[DashboardPath(id, dash.Name)] = dash.JSON
		}
	}
	return result
}

// WriteDashboards writes dashboards to dir/<plugin>/<name>.json for Grafana
// provisioning. An empty dir disables writing.
func WriteDashboards(dir string, plugins []Plugin) error {
	if dir == "" {
		return nil
	}

	for _, plugin := range plugins {
		id := plugin.Manifest().PluginID
		dashboards := plugin.Dashboards()
		if len(dashboards) == 0 {
			continue
		}
		pluginDir := filepath.Join(dir, id)
		if err := os.MkdirAll(pluginDir, 0o755); err != nil {
			return fmt.Errorf("create dashboard dir: %w", err)
		}
		for _, dash := range dashboards {
			path := filepath.Join(pluginDir, dash.Name+".json")
			if err := os.WriteFile(path, dash.JSON, 0o644); err != nil {
				return fmt.Errorf("write dashboard %s: %w", path, err)
			}
		}
	}
	return nil
}
