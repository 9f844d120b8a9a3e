package fixer

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestName is the file a fix run is recorded in, inside the report directory.
const ManifestName = "fixed_files.yaml"

// Manifest records a fix run so it can be repeated or rolled back.
type Manifest struct {
	GeneratedAt time.Time       `yaml:"generated_at"`
	Period      Period          `yaml:"period"`
	DryRun      bool            `yaml:"dry_run,omitempty"`
	Files       []ManifestEntry `yaml:"files"`
}

// ManifestEntry is one attempted file.
type ManifestEntry struct {
	Path      string `yaml:"path"`
	Succeeded bool   `yaml:"succeeded"`
	Backup    string `yaml:"backup,omitempty"`
	Text      string `yaml:"text,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

// NewManifest builds the manifest of the attempted outcomes.
func NewManifest(now time.Time, period Period, dryRun bool, outcomes []Outcome) *Manifest {
	m := &Manifest{GeneratedAt: now, Period: period, DryRun: dryRun}
	for _, o := range outcomes {
		if !o.Attempted {
			continue
		}
		m.Files = append(m.Files, ManifestEntry{
			Path:      o.FilePath,
			Succeeded: o.Succeeded,
			Backup:    o.BackupPath,
			Text:      o.Text,
			Reason:    o.Reason,
		})
	}
	return m
}

// Paths returns the recorded file paths in order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Write stores the manifest as dir/fixed_files.yaml and returns its path.
func (m *Manifest) Write(afs afero.Fs, dir string) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	if err := afs.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestName)
	if err := afero.WriteFile(afs, path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadManifest reads a manifest written by Write.
func ReadManifest(afs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// LoadFixList reads the files to fix from path. It accepts a manifest or a
// plain list of paths in JSON or YAML.
func LoadFixList(afs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse fix list %s: %w", path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse fix list %s: empty document", path)
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var paths []string
		if err := doc.Decode(&paths); err != nil {
			return nil, fmt.Errorf("parse fix list %s: %w", path, err)
		}
		return paths, nil
	case yaml.MappingNode:
		var m Manifest
		if err := doc.Decode(&m); err != nil {
			return nil, fmt.Errorf("parse fix list %s: %w", path, err)
		}
		return m.Paths(), nil
	default:
		return nil, fmt.Errorf("parse fix list %s: %w", path, errors.New("expected a list of paths or a manifest"))
	}
}
