package plugins

import (
	"github.com/joshp123/gobotvac/internal/config"
	"github.com/joshp123/gobotvac/internal/core"
	"github.com/joshp123/gobotvac/plugins/botvac"
)

func init() {
	Register("botvac", func(cfg *config.Config) (core.Plugin, bool) {
		return botvac.NewPlugin(cfg.Botvac)
	})
}
