// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// overlayFile is the on-disk representation of runtime source descriptors.
// Descriptors loaded from YAML carry no derivation functions, so their
// records get generic fallback descriptions until the source is promoted
// into the compiled catalog.
type overlayFile struct {
	Sources []*Source `yaml:"sources"`
}

// LoadOverlay reads source descriptors from a YAML overlay file. Each
// descriptor is validated; the first invalid one fails the load.
func LoadOverlay(path string) ([]*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overlay file: %w", err)
	}

	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing overlay file %s: %w", path, err)
	}

	for _, src := range f.Sources {
		if src == nil {
			return nil, fmt.Errorf("%w: overlay file %s contains an empty source entry", ErrInvalidSource, path)
		}
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
	}
	return f.Sources, nil
}

// WriteOverlay writes source descriptors to a YAML overlay file that
// LoadOverlay can read back.
func WriteOverlay(path string, sources []*Source) error {
	data, err := yaml.Marshal(&overlayFile{Sources: sources})
	if err != nil {
		return fmt.Errorf("marshaling overlay file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// RegisterOverlay loads an overlay file and registers every descriptor,
// returning the number registered. Registration stops at the first
// duplicate or invalid descriptor.
func (r *Registry) RegisterOverlay(path string) (int, error) {
	sources, err := LoadOverlay(path)
	if err != nil {
		return 0, err
	}
	for i, src := range sources {
		if err := r.Register(src); err != nil {
			return i, err
		}
	}
	return len(sources), nil
}
