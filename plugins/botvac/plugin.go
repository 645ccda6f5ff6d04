package botvac

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/joshp123/gobotvac/internal/blob"
	"github.com/joshp123/gobotvac/internal/config"
	"github.com/joshp123/gobotvac/internal/core"
	"github.com/joshp123/gobotvac/internal/oauth"
	"github.com/joshp123/gobotvac/internal/rate"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

const pluginID = "botvac"

var (
	_ core.Plugin         = (*Plugin)(nil)
	_ core.HTTPRegistrant = (*Plugin)(nil)
	_ core.Starter        = (*Plugin)(nil)
	_ core.Closer         = (*Plugin)(nil)
)

// Plugin implements the plugin contract for Neato Botvac robots.
type Plugin struct {
	cfg     Config
	manager *Manager

	mu            sync.RWMutex
	health        core.HealthStatus
	healthMessage string
	publisher     SnapshotPublisher
}

// NewPlugin builds the plugin from its config section. The robot list is
// loaded by Start.
func NewPlugin(section *config.BotvacConfig) (core.Plugin, bool) {
	if section == nil {
		return nil, false
	}
	p := &Plugin{health: core.HealthDegraded, healthMessage: "not connected"}

	cfg, err := ConfigFrom(section)
	if err != nil {
		p.setHealth(core.HealthError, err.Error())
		return p, true
	}
	p.cfg = cfg

	client, err := NewClientFromConfig(context.Background(), cfg)
	if err != nil {
		p.setHealth(core.HealthError, err.Error())
		return p, true
	}
	p.manager = NewManager(client, cfg.Email, cfg.Password)
	return p, true
}

// NewClientFromConfig builds a Client with the credential store and token
// source cfg describes.
func NewClientFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	store, err := credentialBlobStore(cfg)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithFleetURL(cfg.FleetURL),
		WithDeviceURL(cfg.DeviceURL),
		WithAuthRetry(cfg.AuthRetry),
		WithListRetry(cfg.ListRetry),
		WithRefreshRetry(cfg.RefreshRetry),
	}
	if cfg.RequestLimit.Enabled() {
		opts = append(opts, WithHTTPClient(rate.WrapHTTP(cfg.RequestLimit, nil, requestTimeout)))
	}

	if cfg.TokenType == TokenOAuth {
		if cfg.OAuth == nil {
			return nil, fmt.Errorf("botvac oauth config is required for oauth tokens")
		}
		source, err := oauth.NewTokenSource(ctx, oauthDeclaration(cfg), oauth.Bootstrap{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RefreshToken: cfg.OAuth.RefreshToken,
		}, store)
		if err != nil {
			return nil, fmt.Errorf("botvac oauth: %w", err)
		}
		opts = append(opts, WithTokenSource(source))
	} else {
		opts = append(opts, WithCredentialStore(NewCredentialStore(store)))
	}
	return NewClient(opts...), nil
}

func credentialBlobStore(cfg Config) (blob.Store, error) {
	local, err := blob.NewFileStore(cfg.CredentialDir)
	if err != nil {
		return nil, fmt.Errorf("botvac credential store: %w", err)
	}
	if cfg.Blob == nil {
		return local, nil
	}
	remote, err := blob.NewS3Store(*cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("botvac credential store: %w", err)
	}
	return blob.Mirror{Primary: local, Secondary: remote}, nil
}

func oauthDeclaration(cfg Config) oauth.Declaration {
	if cfg.OAuth == nil {
		return oauth.Declaration{}
	}
	return oauth.Declaration{Provider: pluginID, TokenURL: cfg.OAuth.TokenURL}
}

// Start connects to the account in the background and then polls.
func (p *Plugin) Start(ctx context.Context) {
	if p.manager == nil {
		return
	}
	go p.run(ctx)
}

func (p *Plugin) run(ctx context.Context) {
	fleet, err := p.manager.Connect(ctx)
	if err != nil {
		log.Printf("botvac connect failed: %v", err)
		p.setHealth(core.HealthError, err.Error())
		return
	}
	if failed := fleet.Failed(); len(failed) > 0 {
		p.setHealth(core.HealthDegraded, fmt.Sprintf("%d of %d robots did not refresh", len(failed), len(fleet.Robots)))
	} else {
		p.setHealth(core.HealthHealthy, "")
	}
	log.Printf("botvac connected: %d robots", len(fleet.Robots))

	var publisher SnapshotPublisher
	if p.cfg.MQTT != nil {
		mqttPublisher, err := NewMQTTPublisher(*p.cfg.MQTT)
		if err != nil {
			log.Printf("botvac mqtt disabled: %v", err)
		} else {
			publisher = mqttPublisher
			p.mu.Lock()
			p.publisher = publisher
			p.mu.Unlock()
		}
	}

	poller := NewPoller(p.manager, p.cfg.PollInterval, publisher)
	poller.onRound = func(failed, total int) {
		switch {
		case failed == 0:
			p.setHealth(core.HealthHealthy, "")
		default:
			p.setHealth(core.HealthDegraded, fmt.Sprintf("%d of %d robots did not refresh", failed, total))
		}
	}
	poller.Run(ctx)
}

func (p *Plugin) Close() {
	p.mu.RLock()
	publisher := p.publisher
	p.mu.RUnlock()
	if publisher != nil {
		publisher.Close()
	}
}

func (p *Plugin) Manager() *Manager {
	return p.manager
}

func (p *Plugin) ID() string {
	return pluginID
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    pluginID,
		DisplayName: "Neato Botvac",
		Version:     "0.1.0",
		Services:    []string{ServiceName},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) OAuthDeclaration() oauth.Declaration {
	return oauthDeclaration(p.cfg)
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "botvac-overview", JSON: dashboardJSON}}
}

func (p *Plugin) RegisterGRPC(server *grpc.Server) {
	if err := RegisterBotvacService(server, p.manager); err != nil {
		log.Printf("botvac grpc register failed: %v", err)
	}
}

func (p *Plugin) RegisterHTTP(r chi.Router) {
	if p.manager == nil {
		return
	}
	r.Mount("/botvac", NewHTTPHandler(p.manager))
}

func (p *Plugin) Collectors() []prometheus.Collector {
	collectors := RequestCollectors()
	if p.manager != nil {
		collectors = append(collectors, NewMetricsCollector(p.manager))
	}
	if p.cfg.OAuth != nil {
		collectors = append(collectors, oauth.MetricsCollectors()...)
	}
	if p.cfg.RequestLimit.Enabled() {
		collectors = append(collectors, rate.MetricsCollectors()...)
	}
	return collectors
}

func (p *Plugin) Health() core.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Plugin) HealthMessage() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthMessage
}

func (p *Plugin) setHealth(status core.HealthStatus, message string) {
	p.mu.Lock()
	p.health = status
	p.healthMessage = message
	p.mu.Unlock()
}
