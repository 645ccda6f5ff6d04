// Package core defines the plugin contract hosted by the gobotvac daemon.
package core

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/joshp123/gobotvac/internal/oauth"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// HealthStatus represents plugin health states for registry reporting.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthError    HealthStatus = "ERROR"
)

// Dashboard is a Grafana dashboard asset embedded by the plugin.
type Dashboard struct {
	Name string
	JSON []byte
}

// Manifest describes a plugin for discovery and registry metadata.
type Manifest struct {
	PluginID    string   `json:"plugin_id"`
	DisplayName string   `json:"display_name"`
	Version     string   `json:"version"`
	Services    []string `json:"services"`
}

// Plugin is the compile-time contract for all plugins.
type Plugin interface {
	ID() string
	Manifest() Manifest
	AgentsMD() string
	OAuthDeclaration() oauth.Declaration
	Dashboards() []Dashboard
	RegisterGRPC(*grpc.Server)
	Collectors() []prometheus.Collector
	Health() HealthStatus
	HealthMessage() string
}

// HTTPRegistrant allows plugins to expose HTTP handlers.
type HTTPRegistrant interface {
	RegisterHTTP(chi.Router)
}

// Starter is implemented by plugins with background work. Start must not
// block; the work stops when ctx is done.
type Starter interface {
	Start(ctx context.Context)
}

// Closer releases plugin resources on shutdown.
type Closer interface {
	Close()
}
