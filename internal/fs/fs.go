package fs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ConflictMode defines what to do when a destination path is already taken.
type ConflictMode string

const (
	ConflictRenameWithSuffix ConflictMode = "rename_with_suffix" // Pick the next free name (report_2.docx.bak)
	ConflictSkip             ConflictMode = "skip"               // Leave the existing file alone and don't proceed
	ConflictOverwrite        ConflictMode = "overwrite"          // Remove the existing file first
)

// FileSystem extends afero.Fs with the operations kpicheck needs to modify
// documents safely.
type FileSystem interface {
	afero.Fs

	// Copy copies the regular file src to dst, preserving its mode.
	// An existing dst is truncated.
	Copy(src, dst string) error

	// ResolveConflict handles an existing destination.
	// Returns (newDestPath, proceed, err). When destPath is free it is returned
	// unchanged with proceed=true.
	ResolveConflict(mode ConflictMode, destPath string) (string, bool, error)

	// Kind names the variant ("real", "dry-run", "memory", "noop") for logs and reports.
	Kind() string
}

// NewReal creates a FileSystem that performs actual filesystem operations.
func NewReal() FileSystem {
	return &RealFileSystem{
		Fs: afero.NewOsFs(),
	}
}

// NewDryRun creates a FileSystem that reads the real filesystem and keeps
// every write in memory.
func NewDryRun() FileSystem {
	return NewDryRunOver(afero.NewOsFs())
}

// NewDryRunOver layers an in-memory copy-on-write filesystem over base.
// base is never modified.
func NewDryRunOver(base afero.Fs) FileSystem {
	layer := afero.NewMemMapFs()
	cow := afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), layer)
	return &DryRunFileSystem{Fs: cow}
}

// NewMem creates an in-memory FileSystem for testing.
func NewMem() FileSystem {
	return &MemFileSystem{Fs: afero.NewMemMapFs()}
}

// NewMemTest returns a MemFileSystem for testing with access to Must* helpers.
func NewMemTest() *MemFileSystem {
	return &MemFileSystem{Fs: afero.NewMemMapFs()}
}

// BackupPath returns the conventional recovery path for a document.
func BackupPath(path string) string {
	return path + ".bak"
}

// GenerateSuffixedPath generates a path with a numeric suffix.
// For example: report.docx with suffix 2 becomes report_2.docx
// Compound extensions stay together: report.docx.bak becomes report_2.docx.bak
func GenerateSuffixedPath(path string, suffix int) string {
	dir := filepath.Dir(path)
	base, ext := splitFilenameAndExtensions(filepath.Base(path))
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, suffix, ext))
}

// splitFilenameAndExtensions splits a filename into base and extensions.
// Unlike filepath.Ext, this treats compound extensions as one unit.
// Examples:
//   - "a.docx" → ("a", ".docx")
//   - "a.docx.bak" → ("a", ".docx.bak")
//   - "a" → ("a", "")
//   - ".hidden" → (".hidden", "")
//   - ".hidden.docx" → (".hidden", ".docx")
func splitFilenameAndExtensions(filename string) (base, ext string) {
	if strings.HasPrefix(filename, ".") {
		rest := filename[1:]
		idx := strings.Index(rest, ".")
		if idx == -1 {
			return filename, ""
		}
		return filename[:idx+1], filename[idx+1:]
	}

	idx := strings.Index(filename, ".")
	if idx == -1 {
		return filename, ""
	}
	return filename[:idx], filename[idx:]
}

// resolveConflict is the shared ResolveConflict implementation. remove is
// called for ConflictOverwrite so variants can decide what removal means.
func resolveConflict(afs afero.Fs, mode ConflictMode, destPath string, remove func(string) error) (string, bool, error) {
	exists, err := afero.Exists(afs, destPath)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return destPath, true, nil
	}

	switch mode {
	case ConflictRenameWithSuffix:
		newPath := findAvailableSuffixedPath(afs, destPath)
		slog.Debug("destination exists, using suffixed path", "dest", destPath, "path", newPath)
		return newPath, true, nil

	case ConflictSkip:
		slog.Debug("skipping, destination exists", "dest", destPath)
		return destPath, false, nil

	case ConflictOverwrite:
		slog.Debug("overwriting destination", "dest", destPath)
		if err := remove(destPath); err != nil {
			return "", false, err
		}
		return destPath, true, nil

	default:
		return "", false, fmt.Errorf("unknown conflict mode: %s", mode)
	}
}

func findAvailableSuffixedPath(afs afero.Fs, destPath string) string {
	for i := 2; ; i++ {
		candidate := GenerateSuffixedPath(destPath, i)
		if _, err := afs.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
