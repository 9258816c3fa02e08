package local

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/mediacenter/internal/domain"
	"github.com/mmcdole/mediacenter/internal/provider"
)

const KindNFO = "local.nfo"

// movieNFO is the Kodi/Jellyfin movie sidecar format.
type movieNFO struct {
	XMLName xml.Name `xml:"movie"`

	Title         string `xml:"title"`
	OriginalTitle string `xml:"originaltitle"`
	SortTitle     string `xml:"sorttitle"`
	Year          int    `xml:"year"`
	Premiered     string `xml:"premiered"`
	Rating        string `xml:"rating"`
	MPAA          string `xml:"mpaa"`
	Plot          string `xml:"plot"`
	Outline       string `xml:"outline"`
	Tagline       string `xml:"tagline"`
	Runtime       int    `xml:"runtime"`

	Genres    []string `xml:"genre"`
	Studios   []string `xml:"studio"`
	Directors []string `xml:"director"`
	Actors    []struct {
		Name string `xml:"name"`
	} `xml:"actor"`
	UniqueIDs []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"uniqueid"`
}

type nfoState struct {
	Path    string    `json:"path,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// NFOProvider reads a movie.nfo or <name>.nfo sidecar. It runs again when
// the sidecar appears, disappears or changes.
type NFOProvider struct {
	provider.Base
	provider.Stateful[nfoState]
}

// NFODescriptor registers NFOProvider.
func NFODescriptor() provider.Descriptor {
	return provider.Descriptor{
		Kind:     KindNFO,
		Priority: provider.Priority(15),
		SupportedTypes: []provider.TypeSupport{
			{Kind: domain.KindMovie, IncludeSubtypes: true},
		},
		New: func() provider.Provider { return &NFOProvider{} },
	}
}

func (p *NFOProvider) Kind() string { return KindNFO }

func (p *NFOProvider) NeedsRefresh(ctx context.Context) (bool, error) {
	path, mod, err := findNFO(p.Item())
	if err != nil {
		return false, err
	}
	return path != p.State.Path || !mod.Equal(p.State.ModTime), nil
}

func (p *NFOProvider) Fetch(ctx context.Context) error {
	path, mod, err := findNFO(p.Item())
	if err != nil {
		return err
	}
	if path == "" {
		p.ResetState()
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var nfo movieNFO
	if err := xml.Unmarshal(data, &nfo); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	applyNFO(p.Item(), &nfo)

	p.State = nfoState{Path: path, ModTime: mod}
	return nil
}

func applyNFO(item *domain.Item, nfo *movieNFO) {
	if title := strings.TrimSpace(nfo.Title); title != "" {
		item.Title = title
	} else if title := strings.TrimSpace(nfo.OriginalTitle); title != "" {
		item.Title = title
	}
	if s := strings.TrimSpace(nfo.SortTitle); s != "" {
		item.SortTitle = s
	} else if item.Title != "" {
		item.SortTitle = SortTitle(item.Title)
	}

	switch {
	case nfo.Year > 0:
		item.Year = nfo.Year
	case len(nfo.Premiered) >= 4:
		if y, err := strconv.Atoi(nfo.Premiered[:4]); err == nil {
			item.Year = y
		}
	}
	if r, err := strconv.ParseFloat(strings.TrimSpace(nfo.Rating), 64); err == nil {
		item.Rating = r
	}
	if s := strings.TrimSpace(nfo.MPAA); s != "" {
		item.MPAARating = s
	}
	if s := strings.TrimSpace(nfo.Plot); s != "" {
		item.Overview = s
	} else if s := strings.TrimSpace(nfo.Outline); s != "" {
		item.Overview = s
	}
	if s := strings.TrimSpace(nfo.Tagline); s != "" {
		item.Tagline = s
	}
	if nfo.Runtime > 0 {
		item.RunningTime = nfo.Runtime
	}

	if l := normList(nfo.Genres); len(l) > 0 {
		item.Genres = l
	}
	if l := normList(nfo.Studios); len(l) > 0 {
		item.Studios = l
	}
	if l := normList(nfo.Directors); len(l) > 0 {
		item.Directors = l
	}
	actors := make([]string, 0, len(nfo.Actors))
	for _, a := range nfo.Actors {
		actors = append(actors, a.Name)
	}
	if l := normList(actors); len(l) > 0 {
		item.Actors = l
	}

	for _, id := range nfo.UniqueIDs {
		typ, val := strings.ToLower(strings.TrimSpace(id.Type)), strings.TrimSpace(id.Value)
		if typ == "" || val == "" {
			continue
		}
		if item.ProviderIDs == nil {
			item.ProviderIDs = make(map[string]string)
		}
		item.ProviderIDs[typ] = val
	}
}

// findNFO returns the sidecar path and mtime, or "" when there is none.
func findNFO(item *domain.Item) (string, time.Time, error) {
	for _, candidate := range nfoCandidates(item) {
		info, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", time.Time{}, err
		}
		if info.Mode().IsRegular() {
			return candidate, info.ModTime(), nil
		}
	}
	return "", time.Time{}, nil
}

func nfoCandidates(item *domain.Item) []string {
	if item.Path == "" {
		return nil
	}
	if item.Kind.IsFolder() {
		return []string{filepath.Join(item.Path, "movie.nfo")}
	}
	dir := filepath.Dir(item.Path)
	base := strings.TrimSuffix(filepath.Base(item.Path), filepath.Ext(item.Path))
	return []string{
		filepath.Join(dir, base+".nfo"),
		filepath.Join(dir, "movie.nfo"),
	}
}

// normList trims, drops empties and de-duplicates, keeping input order.
func normList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}
