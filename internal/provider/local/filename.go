// Package local implements providers that read metadata from the media
// files themselves and the files stored next to them.
package local

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmcdole/mediacenter/internal/domain"
	"github.com/mmcdole/mediacenter/internal/provider"
)

const KindFilename = "local.filename"

var (
	// "Title (1999)" or "Title [1999]"
	yearInBrackets = regexp.MustCompile(`^(.*?)[\s._]*[(\[](\d{4})[)\]]`)
	// "Title.1999.1080p.BluRay"
	yearDotted = regexp.MustCompile(`^(.*?)[\s._-]+((?:19|20)\d{2})(?:[\s._-]|$)`)
	// "Show - S01E02 - Name" or "Show.1x02"
	episodeTag = regexp.MustCompile(`(?i)^(.*?)[\s._-]*(?:s(\d{1,2})e(\d{1,3})|(\d{1,2})x(\d{2,3}))`)
	// "Season 2", "Series 02", "S02"
	seasonName = regexp.MustCompile(`(?i)^(?:season|series|s)[\s._-]*(\d{1,2})$`)

	sortPrefixes = []string{"the ", "a ", "an "}
)

// ParsedName is what a file or folder name says about its content.
type ParsedName struct {
	Title   string
	Year    int
	Season  int
	Episode int
}

// ParseName extracts a title, a year and episode numbering from a file or
// folder name. Unknown parts are left zero.
func ParseName(name string) ParsedName {
	name = strings.TrimSpace(name)
	var p ParsedName

	if m := seasonName.FindStringSubmatch(name); m != nil {
		p.Season, _ = strconv.Atoi(m[1])
		p.Title = name
		return p
	}

	if m := episodeTag.FindStringSubmatch(name); m != nil {
		season, episode := m[2], m[3]
		if season == "" {
			season, episode = m[4], m[5]
		}
		p.Season, _ = strconv.Atoi(season)
		p.Episode, _ = strconv.Atoi(episode)
		p.Title = cleanTitle(m[1])
		return p
	}

	if m := yearInBrackets.FindStringSubmatch(name); m != nil {
		p.Title = cleanTitle(m[1])
		p.Year, _ = strconv.Atoi(m[2])
	} else if m := yearDotted.FindStringSubmatch(name); m != nil && m[1] != "" {
		p.Title = cleanTitle(m[1])
		p.Year, _ = strconv.Atoi(m[2])
	} else {
		p.Title = cleanTitle(name)
	}
	if p.Title == "" {
		p.Title = name
	}
	return p
}

func cleanTitle(s string) string {
	if !strings.Contains(s, " ") {
		s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	}
	return strings.Join(strings.Fields(strings.Trim(s, " -._")), " ")
}

// SortTitle drops a leading article.
func SortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, prefix := range sortPrefixes {
		if strings.HasPrefix(lower, prefix) && len(title) > len(prefix) {
			return strings.TrimSpace(title[len(prefix):])
		}
	}
	return title
}

type filenameState struct {
	Name string `json:"name"`
}

// FilenameProvider derives a title and year from the item's file or folder
// name. It runs again only when the name changes.
type FilenameProvider struct {
	provider.Base
	provider.Stateful[filenameState]
}

// FilenameDescriptor registers FilenameProvider.
func FilenameDescriptor() provider.Descriptor {
	return provider.Descriptor{
		Kind:     KindFilename,
		Priority: provider.Priority(10),
		SupportedTypes: []provider.TypeSupport{
			{Kind: domain.KindVideo, IncludeSubtypes: true},
			{Kind: domain.KindFolder, IncludeSubtypes: true},
		},
		New: func() provider.Provider { return &FilenameProvider{} },
	}
}

func (p *FilenameProvider) Kind() string { return KindFilename }

func (p *FilenameProvider) NeedsRefresh(ctx context.Context) (bool, error) {
	return p.State.Name != nameOf(p.Item()), nil
}

func (p *FilenameProvider) Fetch(ctx context.Context) error {
	item := p.Item()
	name := nameOf(item)
	parsed := ParseName(name)

	item.Title = parsed.Title
	item.SortTitle = SortTitle(parsed.Title)
	if parsed.Year > 0 {
		item.Year = parsed.Year
	}
	if item.Kind.IsA(domain.KindEpisode) || item.Kind == domain.KindSeason {
		item.SeasonNum = parsed.Season
		item.EpisodeNum = parsed.Episode
	}
	p.State.Name = name
	return nil
}

// nameOf returns the item name, falling back to the path's base name
// without extension.
func nameOf(item *domain.Item) string {
	if item.Name != "" {
		return item.Name
	}
	base := filepath.Base(item.Path)
	if !item.Kind.IsFolder() {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}
