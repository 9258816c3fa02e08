package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Item is a media entity enriched by metadata providers.
//
// Fields carry a `meta` tag that drives clearing and merging:
//   - "noprovider": never sourced from a provider, survives every clear
//   - "keep":       survives a forced clear; a nested struct gets one extra
//     pass that clears its own clearable fields
//   - "-":          not persistable at all
//
// Untagged exported fields are provider-sourced and cleared on refresh.
type Item struct {
	ID           uuid.UUID `json:"id" meta:"noprovider"`
	Kind         ItemKind  `json:"kind" meta:"noprovider"`
	ParentID     uuid.UUID `json:"parent_id,omitempty" meta:"noprovider"`
	Path         string    `json:"path" meta:"noprovider"`
	Name         string    `json:"name" meta:"noprovider"`
	DateCreated  time.Time `json:"date_created" meta:"noprovider"`
	DateModified time.Time `json:"date_modified" meta:"noprovider"`

	// Parent is a back-reference, never owned, cloned or persisted.
	Parent *Item `json:"-" meta:"-"`

	Title       string            `json:"title,omitempty"`
	SortTitle   string            `json:"sort_title,omitempty"`
	Overview    string            `json:"overview,omitempty"`
	Tagline     string            `json:"tagline,omitempty"`
	Year        int               `json:"year,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	MPAARating  string            `json:"mpaa_rating,omitempty"`
	RunningTime int               `json:"running_time,omitempty"` // minutes
	Genres      []string          `json:"genres,omitempty"`
	Studios     []string          `json:"studios,omitempty"`
	Actors      []string          `json:"actors,omitempty"`
	Directors   []string          `json:"directors,omitempty"`
	ProviderIDs map[string]string `json:"provider_ids,omitempty"`

	PrimaryImagePath   string   `json:"primary_image_path,omitempty"`
	BannerImagePath    string   `json:"banner_image_path,omitempty"`
	BackdropImagePaths []string `json:"backdrop_image_paths,omitempty"`

	// Episode/season numbering (0 = unknown)
	SeasonNum  int `json:"season_num,omitempty"`
	EpisodeNum int `json:"episode_num,omitempty"`

	MediaInfo *MediaInfo `json:"media_info,omitempty" meta:"keep"`
}

// MediaInfo holds technical stream details discovered by probing the file.
type MediaInfo struct {
	Container     string `json:"container,omitempty"`
	VideoCodec    string `json:"video_codec,omitempty"`
	AudioCodec    string `json:"audio_codec,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	AudioChannels int    `json:"audio_channels,omitempty"`
	Bitrate       int    `json:"bitrate,omitempty"` // kbps
	RunTime       int    `json:"run_time,omitempty"` // seconds

	// Identify the file state the info was probed from
	ProbedFile    string    `json:"probed_file,omitempty" meta:"noprovider"`
	ProbedModTime time.Time `json:"probed_mod_time,omitempty" meta:"noprovider"`
}

// NewItem creates an item with a fresh identifier.
func NewItem(kind ItemKind, path, name string) *Item {
	now := time.Now()
	return &Item{
		ID:           uuid.New(),
		Kind:         kind,
		Path:         path,
		Name:         name,
		DateCreated:  now,
		DateModified: now,
	}
}

// DisplayTitle returns the provider title when known, else the item name.
func (i *Item) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Name
}

// Resolution returns a human-readable resolution string based on video height
func (m *MediaInfo) Resolution() string {
	if m == nil {
		return ""
	}
	switch {
	case m.Height >= 2160:
		return "4K"
	case m.Height >= 1080:
		return "1080p"
	case m.Height >= 720:
		return "720p"
	case m.Height >= 480:
		return "480p"
	case m.Height > 0:
		return fmt.Sprintf("%dp", m.Height)
	default:
		return ""
	}
}

// Clone returns a deep copy of the item. The parent reference is not
// cloned; the copy points at the same parent as the original.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Parent = nil
	c.Genres = slices.Clone(i.Genres)
	c.Studios = slices.Clone(i.Studios)
	c.Actors = slices.Clone(i.Actors)
	c.Directors = slices.Clone(i.Directors)
	c.BackdropImagePaths = slices.Clone(i.BackdropImagePaths)
	c.ProviderIDs = maps.Clone(i.ProviderIDs)
	if i.MediaInfo != nil {
		mi := *i.MediaInfo
		c.MediaInfo = &mi
	}
	c.Parent = i.Parent
	return &c
}
