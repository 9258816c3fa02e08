// Package mediainfo probes video files for container and stream details.
package mediainfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mmcdole/mediacenter/internal/domain"
	"github.com/mmcdole/mediacenter/internal/provider"
)

const Kind = "mediainfo"

// ErrNoFile is returned for items without a regular media file.
var ErrNoFile = errors.New("item has no media file")

// Prober extracts stream details from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*domain.MediaInfo, error)
}

type state struct {
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// Provider fills Item.MediaInfo. Probing is slow, so it runs only when the
// file changed since the last probe.
type Provider struct {
	provider.Base
	provider.Stateful[state]

	prober Prober
}

// Descriptor registers the provider with prober.
func Descriptor(prober Prober) provider.Descriptor {
	return provider.Descriptor{
		Kind:     Kind,
		Slow:     true,
		Priority: provider.Priority(5),
		SupportedTypes: []provider.TypeSupport{
			{Kind: domain.KindVideo, IncludeSubtypes: true},
		},
		New: func() provider.Provider { return New(prober) },
	}
}

// New creates a provider using prober.
func New(prober Prober) *Provider {
	return &Provider{prober: prober}
}

func (p *Provider) Kind() string { return Kind }

func (p *Provider) NeedsRefresh(ctx context.Context) (bool, error) {
	info, err := stat(p.Item())
	if err != nil {
		return false, err
	}
	if p.Item().MediaInfo == nil {
		return true, nil
	}
	return info.Size() != p.State.Size || !info.ModTime().Equal(p.State.ModTime), nil
}

// BeforeFetch discards preserved stream details on a forced refresh when
// they were probed from a different file or file version.
func (p *Provider) BeforeFetch(ctx context.Context, opts domain.RefreshOptions) error {
	item := p.Item()
	if !opts.Has(domain.RefreshForce) || item.MediaInfo == nil {
		return nil
	}
	info, err := stat(item)
	if err != nil {
		return err
	}
	if item.MediaInfo.ProbedFile != item.Path || !item.MediaInfo.ProbedModTime.Equal(info.ModTime()) {
		item.MediaInfo = nil
	}
	return nil
}

func (p *Provider) Fetch(ctx context.Context) error {
	item := p.Item()
	info, err := stat(item)
	if err != nil {
		return err
	}
	probed, err := p.prober.Probe(ctx, item.Path)
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", item.Path, err)
	}
	probed.ProbedFile = item.Path
	probed.ProbedModTime = info.ModTime()
	item.MediaInfo = probed

	if item.RunningTime == 0 && probed.RunTime > 0 {
		item.RunningTime = (probed.RunTime + 30) / 60
	}
	p.State = state{Size: info.Size(), ModTime: info.ModTime()}
	return nil
}

func stat(item *domain.Item) (os.FileInfo, error) {
	if item.Path == "" {
		return nil, ErrNoFile
	}
	info, err := os.Stat(item.Path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNoFile, item.Path)
	}
	return info, nil
}
