package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemKindIsA(t *testing.T) {
	assert.True(t, KindMovie.IsA(KindMovie))
	assert.True(t, KindMovie.IsA(KindVideo))
	assert.True(t, KindMovie.IsA(KindItem))
	assert.True(t, KindSeason.IsA(KindFolder))
	assert.False(t, KindMovie.IsA(KindFolder))
	assert.False(t, KindVideo.IsA(KindMovie))
	assert.False(t, ItemKind(99).IsA(KindItem))
}

func TestParseItemKind(t *testing.T) {
	k, ok := ParseItemKind(" Movie ")
	require.True(t, ok)
	assert.Equal(t, KindMovie, k)

	_, ok = ParseItemKind("podcast")
	assert.False(t, ok)
}

func TestItemCloneIsDeepAndKeepsParent(t *testing.T) {
	parent := NewItem(KindFolder, "/media", "media")
	item := NewItem(KindMovie, "/media/Alien (1979).mkv", "Alien (1979)")
	item.Parent = parent
	item.Genres = []string{"Horror"}
	item.ProviderIDs = map[string]string{"imdb": "tt0078748"}
	item.MediaInfo = &MediaInfo{VideoCodec: "H.264"}

	c := item.Clone()
	require.NotSame(t, item, c)
	assert.Same(t, parent, c.Parent)
	assert.Equal(t, item.ID, c.ID)

	c.Genres[0] = "Sci-Fi"
	c.ProviderIDs["imdb"] = "changed"
	c.MediaInfo.VideoCodec = "HEVC"

	assert.Equal(t, "Horror", item.Genres[0])
	assert.Equal(t, "tt0078748", item.ProviderIDs["imdb"])
	assert.Equal(t, "H.264", item.MediaInfo.VideoCodec)
}

func TestRefreshOptions(t *testing.T) {
	opts := RefreshForce | RefreshFastOnly
	assert.True(t, opts.Has(RefreshForce))
	assert.True(t, opts.Has(RefreshFastOnly))
	assert.False(t, RefreshDefault.Has(RefreshForce))
	assert.False(t, opts.Has(RefreshDefault))
	assert.Equal(t, "fast-only|force", opts.String())
	assert.Equal(t, "default", RefreshDefault.String())
}

func TestMediaInfoResolution(t *testing.T) {
	var nilInfo *MediaInfo
	assert.Equal(t, "", nilInfo.Resolution())
	assert.Equal(t, "1080p", (&MediaInfo{Height: 1080}).Resolution())
	assert.Equal(t, "360p", (&MediaInfo{Height: 360}).Resolution())
}
