// Package plugins holds the plugin factories linked into this binary.
package plugins

import (
	"fmt"
	"slices"
	"sync"

	"github.com/joshp123/gobotvac/internal/config"
	"github.com/joshp123/gobotvac/internal/core"
)

// Factory builds a plugin from the loaded config. It reports false when the
// plugin's config section is absent.
type Factory func(*config.Config) (core.Plugin, bool)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register links a factory under id. Registering an id twice panics.
func Register(id string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[id]; dup {
		panic(fmt.Sprintf("plugins: %q registered twice", id))
	}
	factories[id] = factory
}

// IDs lists the linked plugin ids in sorted order.
func IDs() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Compiled builds every plugin whose section is present in cfg, in id order.
func Compiled(cfg *config.Config) []core.Plugin {
	if cfg == nil {
		return nil
	}
	var out []core.Plugin
	for _, id := range IDs() {
		mu.RLock()
		factory := factories[id]
		mu.RUnlock()
		if plugin, ok := factory(cfg); ok {
			out = append(out, plugin)
		}
	}
	return out
}
