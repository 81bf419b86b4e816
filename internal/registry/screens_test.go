package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testRegistry = `{
  "tenant-a": {
    "name": "Tenant A",
    "screens": [
      {"name": "Tickets", "url": "/tickets", "icon": "ticket"},
      {"name": "Admin", "url": "/admin", "icon": "settings", "adminOnly": true}
    ],
    "features": ["tickets"]
  },
  "tenant-b": {
    "screens": []
  }
}`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndLookup(t *testing.T) {
	reg, err := Load(writeRegistry(t, testRegistry))
	require.NoError(t, err)

	entry, ok := reg.Lookup("tenant-a")
	require.True(t, ok)
	require.Equal(t, "Tenant A", entry.Name)
	require.Len(t, entry.Screens, 2)

	_, ok = reg.Lookup("tenant-unknown")
	require.False(t, ok)
}

func TestScreensForFiltersAdminOnly(t *testing.T) {
	reg, err := Load(writeRegistry(t, testRegistry))
	require.NoError(t, err)

	adminScreens, ok := reg.ScreensFor("tenant-a", true)
	require.True(t, ok)
	require.Len(t, adminScreens, 2)

	userScreens, ok := reg.ScreensFor("tenant-a", false)
	require.True(t, ok)
	require.Len(t, userScreens, 1)
	require.Equal(t, "Tickets", userScreens[0].Name)
}

func TestScreensForUnknownTenant(t *testing.T) {
	reg, err := Load(writeRegistry(t, testRegistry))
	require.NoError(t, err)

	screens, ok := reg.ScreensFor("tenant-unknown", false)
	require.False(t, ok)
	require.Nil(t, screens)
}

func TestLoadMissingFileYieldsEmptyRegistry(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	_, ok := reg.Lookup("tenant-a")
	require.False(t, ok)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeRegistry(t, "{not json"))
	require.Error(t, err)
}
