// Package paths resolves and creates the application directory tree.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

// AppData is the root entry every table name ultimately hangs from.
const AppData = "app_data"

// Names of resolved directories
const (
	AppConfigPath        = "AppConfigPath"
	AppCachePath         = "AppCachePath"
	AppImagePath         = "AppImagePath"
	AppProviderCachePath = "AppProviderCachePath"
	AppPluginPath        = "AppPluginPath"
	PluginConfigPath     = "PluginConfigPath"
	AppLogPath           = "AppLogPath"
	AppRSSPath           = "AppRSSPath"
	AppPodcastPath       = "AppPodcastPath"
	AppLocalizationPath  = "AppLocalizationPath"
	CustomImagePath      = "CustomImagePath"
	AutoPlaylistPath     = "AutoPlaylistPath"
	AppInitialDirPath    = "AppInitialDirPath"
	AppUserSettingsPath  = "AppUserSettingsPath"
)

var (
	// ErrUnresolvedParent indicates a table entry references a parent that
	// is not resolved yet (unknown name or forward reference).
	ErrUnresolvedParent = errors.New("unresolved parent path")

	// ErrPathNotExist indicates an override target directory is missing.
	ErrPathNotExist = errors.New("path does not exist")
)

// Entry is one row of the directory table.
type Entry struct {
	Name   string
	Parent string
	Subdir string
}

// DefaultTable is hand-ordered: every name appears after its parent.
var DefaultTable = []Entry{
	{AppConfigPath, AppData, "MediaCenter"},
	{AppCachePath, AppConfigPath, "Cache"},
	{AppImagePath, AppCachePath, "Images"},
	{AppProviderCachePath, AppCachePath, "Providers"},
	{CustomImagePath, AppImagePath, "Custom"},
	{AppPluginPath, AppConfigPath, "Plugins"},
	{PluginConfigPath, AppPluginPath, "Configurations"},
	{AppLogPath, AppConfigPath, "Logs"},
	{AppRSSPath, AppConfigPath, "RSS"},
	{AppPodcastPath, AppRSSPath, "Podcasts"},
	{AppLocalizationPath, AppConfigPath, "Localization"},
	{AutoPlaylistPath, AppConfigPath, "AutoPlaylists"},
	{AppInitialDirPath, AppConfigPath, "StartupFolder"},
	{AppUserSettingsPath, AppConfigPath, ""},
}

// Resolved is a named absolute directory.
type Resolved struct {
	Name string
	Dir  string
}

// Paths holds the resolved directory tree.
type Paths struct {
	mu       sync.RWMutex
	resolved map[string]string
}

// New resolves DefaultTable under root, creating every directory.
// An empty root selects DefaultRoot().
func New(root string) (*Paths, error) {
	return NewFromTable(root, DefaultTable)
}

// NewFromTable resolves table in order under root.
func NewFromTable(root string, table []Entry) (*Paths, error) {
	if root == "" {
		root = DefaultRoot()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	resolved := map[string]string{AppData: abs}
	for _, e := range table {
		parent, ok := resolved[e.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnresolvedParent, e.Name, e.Parent)
		}
		dir := filepath.Join(parent, e.Subdir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", e.Name, err)
		}
		resolved[e.Name] = dir
	}

	return &Paths{resolved: resolved}, nil
}

// DefaultRoot returns the OS-specific common application data directory.
func DefaultRoot() string {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("ProgramData"); dir != "" {
			return dir
		}
		return filepath.Join(os.Getenv("ALLUSERSPROFILE"), "Application Data")
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return dir
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share")
	}
}

// Get returns the resolved path for name.
func (p *Paths) Get(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dir, ok := p.resolved[name]
	return dir, ok
}

// All returns a snapshot of every resolved entry sorted by name.
func (p *Paths) All() []Resolved {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Resolved, 0, len(p.resolved))
	for name, dir := range p.resolved {
		out = append(out, Resolved{Name: name, Dir: dir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetUserSettingsPath points the user settings entry at an existing directory.
func (p *Paths) SetUserSettingsPath(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathNotExist, dir)
	}
	p.mu.Lock()
	p.resolved[AppUserSettingsPath] = dir
	p.mu.Unlock()
	return nil
}

func (p *Paths) get(name string) string {
	dir, _ := p.Get(name)
	return dir
}

func (p *Paths) Root() string                 { return p.get(AppData) }
func (p *Paths) AppConfigPath() string        { return p.get(AppConfigPath) }
func (p *Paths) AppCachePath() string         { return p.get(AppCachePath) }
func (p *Paths) AppImagePath() string         { return p.get(AppImagePath) }
func (p *Paths) AppProviderCachePath() string { return p.get(AppProviderCachePath) }
func (p *Paths) CustomImagePath() string      { return p.get(CustomImagePath) }
func (p *Paths) AppPluginPath() string        { return p.get(AppPluginPath) }
func (p *Paths) PluginConfigPath() string     { return p.get(PluginConfigPath) }
func (p *Paths) AppLogPath() string           { return p.get(AppLogPath) }
func (p *Paths) AppRSSPath() string           { return p.get(AppRSSPath) }
func (p *Paths) AppPodcastPath() string       { return p.get(AppPodcastPath) }
func (p *Paths) AppLocalizationPath() string  { return p.get(AppLocalizationPath) }
func (p *Paths) AutoPlaylistPath() string     { return p.get(AutoPlaylistPath) }
func (p *Paths) AppInitialDirPath() string    { return p.get(AppInitialDirPath) }
func (p *Paths) AppUserSettingsPath() string  { return p.get(AppUserSettingsPath) }
