package domain

import "strings"

// ItemKind tags the variant of an Item.
type ItemKind int

const (
	KindItem ItemKind = iota
	KindFolder
	KindVideo
	KindMovie
	KindEpisode
	KindSeries
	KindSeason
	KindBoxSet
)

// kindParents is the is-subtype-of table. KindItem is the root.
var kindParents = map[ItemKind]ItemKind{
	KindFolder:  KindItem,
	KindVideo:   KindItem,
	KindMovie:   KindVideo,
	KindEpisode: KindVideo,
	KindSeries:  KindFolder,
	KindSeason:  KindFolder,
	KindBoxSet:  KindFolder,
}

var kindNames = map[ItemKind]string{
	KindItem:    "item",
	KindFolder:  "folder",
	KindVideo:   "video",
	KindMovie:   "movie",
	KindEpisode: "episode",
	KindSeries:  "series",
	KindSeason:  "season",
	KindBoxSet:  "boxset",
}

// IsA reports whether k equals base or is a (transitive) subtype of it.
func (k ItemKind) IsA(base ItemKind) bool {
	for {
		if k == base {
			return true
		}
		parent, ok := kindParents[k]
		if !ok {
			return false
		}
		k = parent
	}
}

// IsFolder reports whether items of this kind contain children.
func (k ItemKind) IsFolder() bool { return k.IsA(KindFolder) }

func (k ItemKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseItemKind converts a kind name back to an ItemKind.
func ParseItemKind(s string) (ItemKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindItem, false
}
