// Package builtin assembles the static provider registration table.
package builtin

import (
	"net/http"

	"github.com/mmcdole/mediacenter/internal/config"
	"github.com/mmcdole/mediacenter/internal/provider"
	"github.com/mmcdole/mediacenter/internal/provider/local"
	"github.com/mmcdole/mediacenter/internal/provider/mediainfo"
	"github.com/mmcdole/mediacenter/internal/provider/web"
)

// Descriptors returns every built-in provider configured from cfg, in
// registration order.
func Descriptors(cfg *config.Config) []provider.Descriptor {
	return []provider.Descriptor{
		local.FilenameDescriptor(),
		local.NFODescriptor(),
		local.ImageDescriptor(),
		mediainfo.Descriptor(mediainfo.FFProbe{Command: cfg.MediaInfo.FFProbe}),
		web.Descriptor(web.Options{
			SearchURL: cfg.Web.SearchURL,
			UserAgent: cfg.Web.UserAgent,
			MaxAge:    cfg.Web.MaxAge,
			Client:    &http.Client{Timeout: cfg.Web.Timeout},
		}),
	}
}

// NewRegistry builds the registry of built-in providers.
func NewRegistry(cfg *config.Config) (*provider.Registry, error) {
	return provider.NewRegistry(Descriptors(cfg)...)
}
