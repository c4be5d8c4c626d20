package semantic

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover walks a project directory for semantic-layer model files. It
// uses doublestar rather than filepath.Glob because model trees are
// arbitrarily nested (`models/**/*.yml`) and doublestar understands `**`.
func Discover(root string) ([]string, error) {
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, "**/*.yml")
	if err != nil {
		return nil, err
	}
	yamlMatches, err := doublestar.Glob(fsys, "**/*.yaml")
	if err != nil {
		return nil, err
	}
	matches = append(matches, yamlMatches...)

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, root+string(os.PathSeparator)+m)
	}
	return out, nil
}
