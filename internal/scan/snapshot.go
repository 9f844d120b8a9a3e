package scan

import (
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Node represents a file or directory in the scanned tree.
type Node struct {
	Name     string
	Children []*Node
	IsDir    bool
}

// keepFunc decides whether a path below the root enters the snapshot.
// rel is slash-separated and relative to the root.
type keepFunc func(rel string, isDir bool) bool

// BuildSnapshot builds a snapshot of a directory tree.
// If recursive is false, only includes direct children. Entries rejected by
// keep are left out, and rejected directories are not descended into.
func BuildSnapshot(fs afero.Fs, root string, recursive bool, keep keepFunc) *Node {
	return buildSnapshot(fs, root, "", recursive, keep)
}

func buildSnapshot(fs afero.Fs, path, rel string, recursive bool, keep keepFunc) *Node {
	info, err := fs.Stat(path)
	if err != nil {
		slog.Warn("failed to stat path", "path", path, "error", err)
		return nil
	}

	node := &Node{
		Name:  filepath.Base(path),
		IsDir: info.IsDir(),
	}

	if !info.IsDir() {
		return node
	}

	entries, err := afero.ReadDir(fs, path)
	if err != nil {
		slog.Warn("failed to read directory", "path", path, "error", err)
		return node
	}

	// Sort entries for deterministic order
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = rel + "/" + entry.Name()
		}
		if keep != nil && !keep(childRel, entry.IsDir()) {
			continue
		}

		childPath := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			if !recursive {
				continue
			}
			if child := buildSnapshot(fs, childPath, childRel, recursive, keep); child != nil {
				node.Children = append(node.Children, child)
			}
			continue
		}
		node.Children = append(node.Children, &Node{Name: entry.Name()})
	}

	return node
}

// Files returns the paths of all files below the node, depth-first in name
// order. root is the path the snapshot was built from.
func (n *Node) Files(root string) []string {
	var files []string
	var walk func(node *Node, path string)
	walk = func(node *Node, path string) {
		for _, child := range node.Children {
			childPath := filepath.Join(path, child.Name)
			if child.IsDir {
				walk(child, childPath)
				continue
			}
			files = append(files, childPath)
		}
	}
	walk(n, root)
	return files
}
