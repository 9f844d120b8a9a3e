package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces a leading "~" or "~/" with the user's home directory.
// "~user" forms and paths without a tilde are returned unchanged, as is the
// input when the home directory is unknown.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !hasWindowsTilde(path) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func hasWindowsTilde(path string) bool {
	return filepath.Separator == '\\' && strings.HasPrefix(path, `~\`)
}
