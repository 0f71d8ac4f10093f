package semantic

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// LoadManifest loads and validates a manifest from a single YAML file.
func LoadManifest(path string) (*Manifest, error) {
	m, err := decodeManifestFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifestDir loads every .yaml/.yml file under dir (non-recursive),
// merges them in filename order, and validates the result. Files are
// parsed concurrently; merge order stays deterministic.
func LoadManifestDir(dir string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no manifest files (*.yaml) found in %s", dir)
	}
	sort.Strings(paths)

	// Each goroutine writes its own slot, so the slice needs no lock.
	parts := make([]*Manifest, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			m, err := decodeManifestFile(path)
			if err != nil {
				return err
			}
			parts[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Manifest{}
	for i, part := range parts {
		merged.DataSources = append(merged.DataSources, part.DataSources...)
		merged.Metrics = append(merged.Metrics, part.Metrics...)
		if part.TimeSpine != nil {
			if merged.TimeSpine != nil {
				return nil, fmt.Errorf("%s: time_spine declared more than once", paths[i])
			}
			merged.TimeSpine = part.TimeSpine
		}
	}
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func decodeManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
