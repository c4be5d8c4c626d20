package semantic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverFindsNestedYMLAndYAMLFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models", "marketing"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "orders.yml"), []byte("name: orders"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "marketing", "campaigns.yaml"), []byte("name: campaigns"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "notes.txt"), []byte("ignore me"), 0o644))

	paths, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	require.ElementsMatch(t, []string{"orders.yml", "campaigns.yaml"}, names)
}

func TestDiscoverReturnsEmptyForDirectoryWithoutModels(t *testing.T) {
	root := t.TempDir()
	paths, err := Discover(root)
	require.NoError(t, err)
	require.Empty(t, paths)
}
