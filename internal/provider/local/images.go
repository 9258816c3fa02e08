package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mmcdole/mediacenter/internal/domain"
	"github.com/mmcdole/mediacenter/internal/provider"
)

const KindImages = "local.images"

var imageExts = []string{".jpg", ".jpeg", ".png"}

var (
	primaryNames  = []string{"folder", "poster", "cover"}
	bannerNames   = []string{"banner"}
	backdropNames = []string{"backdrop", "fanart"}
)

type imageState struct {
	Signature string `json:"signature,omitempty"`
}

// ImageProvider picks up poster, banner and backdrop images stored next to
// the media.
type ImageProvider struct {
	provider.Base
	provider.Stateful[imageState]
}

// ImageDescriptor registers ImageProvider.
func ImageDescriptor() provider.Descriptor {
	return provider.Descriptor{
		Kind:     KindImages,
		Priority: provider.Priority(20),
		SupportedTypes: []provider.TypeSupport{
			{Kind: domain.KindItem, IncludeSubtypes: true},
		},
		New: func() provider.Provider { return &ImageProvider{} },
	}
}

func (p *ImageProvider) Kind() string { return KindImages }

func (p *ImageProvider) NeedsRefresh(ctx context.Context) (bool, error) {
	set, err := scanImages(p.Item())
	if err != nil {
		return false, err
	}
	return set.signature() != p.State.Signature, nil
}

func (p *ImageProvider) Fetch(ctx context.Context) error {
	set, err := scanImages(p.Item())
	if err != nil {
		return err
	}
	item := p.Item()
	if set.primary != "" {
		item.PrimaryImagePath = set.primary
	}
	if set.banner != "" {
		item.BannerImagePath = set.banner
	}
	if len(set.backdrops) > 0 {
		item.BackdropImagePaths = set.backdrops
	}
	p.State.Signature = set.signature()
	return nil
}

type imageSet struct {
	primary   string
	banner    string
	backdrops []string
	stamps    []string
}

func (s imageSet) signature() string {
	return strings.Join(s.stamps, "|")
}

// scanImages inspects the item's directory. Files named after a video take
// precedence over folder-wide images.
func scanImages(item *domain.Item) (imageSet, error) {
	var set imageSet
	if item.Path == "" {
		return set, nil
	}
	dir, base := item.Path, ""
	if !item.Kind.IsFolder() {
		dir = filepath.Dir(item.Path)
		base = strings.TrimSuffix(filepath.Base(item.Path), filepath.Ext(item.Path))
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return set, nil
	}
	if err != nil {
		return set, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := make(map[string]os.DirEntry, len(entries))
	var names []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		files[stem] = e
		names = append(names, e.Name())
	}

	pick := func(stems ...string) string {
		for _, stem := range stems {
			if e, ok := files[strings.ToLower(stem)]; ok {
				return filepath.Join(dir, e.Name())
			}
		}
		return ""
	}

	var primaries []string
	if base != "" {
		primaries = append(primaries, base, base+"-poster")
	}
	set.primary = pick(append(primaries, primaryNames...)...)

	var banners []string
	if base != "" {
		banners = append(banners, base+"-banner")
	}
	set.banner = pick(append(banners, bannerNames...)...)

	slices.Sort(names)
	for _, name := range names {
		stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		for _, prefix := range backdropNames {
			if strings.HasPrefix(stem, prefix) || (base != "" && stem == strings.ToLower(base)+"-"+prefix) {
				set.backdrops = append(set.backdrops, filepath.Join(dir, name))
				break
			}
		}
	}

	for _, path := range append([]string{set.primary, set.banner}, set.backdrops...) {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		set.stamps = append(set.stamps, fmt.Sprintf("%s@%d", filepath.Base(path), info.ModTime().UnixNano()))
	}
	return set, nil
}
