package core

import (
	"context"
	"sync"

	"github.com/joshp123/gobotvac/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const RegistryServiceName = "gobotvac.registry.v1.Registry"

// PluginSummary is one entry of ListPlugins.
type PluginSummary struct {
	PluginID    string `json:"plugin_id"`
	DisplayName string `json:"display_name"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

type DashboardRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// PluginDescriptor is the DescribePlugin response.
type PluginDescriptor struct {
	Manifest
	AgentsMD      string         `json:"agents_md"`
	Status        string         `json:"status"`
	HealthMessage string         `json:"health_message,omitempty"`
	Dashboards    []DashboardRef `json:"dashboards"`
}

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

// Register exposes the registry on server.
func (r *RegistryService) Register(server *grpc.Server) error {
	return rpc.Register(server, rpc.Service{
		Name: RegistryServiceName,
		Methods: []rpc.Method{
			{Name: "ListPlugins", Handler: func(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
				return encode(map[string]any{"plugins": r.ListPlugins(ctx)})
			}},
			{Name: "DescribePlugin", Handler: func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				var req struct {
					PluginID string `json:"plugin_id"`
				}
				if err := rpc.FromStruct(in, &req); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
				desc, ok := r.DescribePlugin(ctx, req.PluginID)
				if !ok {
					return nil, status.Errorf(codes.NotFound, "plugin %q not found", req.PluginID)
				}
				return encode(desc)
			}},
		},
	})
}

func (r *RegistryService) ListPlugins(_ context.Context) []PluginSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []PluginSummary{}
	for _, p := range r.plugins {
		manifest := p.Manifest()
		out = append(out, PluginSummary{
			PluginID:    manifest.PluginID,
			DisplayName: manifest.DisplayName,
			Version:     manifest.Version,
			Status:      string(p.Health()),
		})
	}
	return out
}

func (r *RegistryService) DescribePlugin(_ context.Context, pluginID string) (PluginDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != pluginID {
			continue
		}

		desc := PluginDescriptor{
			Manifest:      manifest,
			AgentsMD:      p.AgentsMD(),
			Status:        string(p.Health()),
			HealthMessage: p.HealthMessage(),
			Dashboards:    []DashboardRef{},
		}
		for _, d := range p.Dashboards() {
			desc.Dashboards = append(desc.Dashboards, DashboardRef{
				Name: d.Name,
				Path: DashboardPath(manifest.PluginID, d.Name),
			})
		}
		return desc, true
	}
	return PluginDescriptor{}, false
}

func encode(v any) (*structpb.Struct, error) {
	out, err := rpc.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
