package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesTree(t *testing.T) {
	root := t.TempDir()

	p, err := New(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "MediaCenter"), p.AppConfigPath())
	assert.Equal(t, filepath.Join(p.AppConfigPath(), "Cache"), p.AppCachePath())
	assert.Equal(t, filepath.Join(p.AppPluginPath(), "Configurations"), p.PluginConfigPath())
	assert.Equal(t, p.AppConfigPath(), p.AppUserSettingsPath())

	for _, e := range DefaultTable {
		dir, ok := p.Get(e.Name)
		require.True(t, ok, e.Name)
		info, err := os.Stat(dir)
		require.NoError(t, err, e.Name)
		assert.True(t, info.IsDir(), e.Name)
	}
}

func TestNewFromTableRejectsForwardReference(t *testing.T) {
	table := []Entry{
		{"Child", "Parent", "child"},
		{"Parent", AppData, "parent"},
	}
	_, err := NewFromTable(t.TempDir(), table)
	require.ErrorIs(t, err, ErrUnresolvedParent)
}

func TestSetUserSettingsPath(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "nope")
	require.ErrorIs(t, p.SetUserSettingsPath(missing), ErrPathNotExist)

	dir := t.TempDir()
	require.NoError(t, p.SetUserSettingsPath(dir))
	assert.Equal(t, dir, p.AppUserSettingsPath())
}

func TestAllIsSorted(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	all := p.All()
	require.Len(t, all, len(DefaultTable)+1)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}
