package testutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Path joins parts into a platform-independent path. A leading "/" part makes
// it absolute: "/docs/a.docx" on Unix, "C:\docs\a.docx" on Windows (a bare
// "C:" would be relative to the current directory of that drive).
func Path(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	if parts[0] != "/" {
		return filepath.Join(parts...)
	}
	if runtime.GOOS == "windows" {
		return "C:\\" + filepath.Join(parts[1:]...)
	}
	return filepath.Join(parts...)
}

// Under resolves slash-separated relative paths below root, in order.
func Under(root string, rels ...string) []string {
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		out = append(out, filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/"))))
	}
	return out
}
