package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceOverride adjusts one source from the catalog file. Zero values keep
// the adapter's defaults.
type SourceOverride struct {
	Name     string `yaml:"name"`
	Enabled  *bool  `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	MaxPages int    `yaml:"max_pages"`
	DelayMs  int    `yaml:"delay_ms"`
	Browser  *bool  `yaml:"browser"`
}

// IsEnabled reports whether the source should run. Unset means enabled.
func (o SourceOverride) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// SourcesFile is the structure of sources.yaml.
type SourcesFile struct {
	Sources []SourceOverride `yaml:"sources"`
}

// Lookup returns the override for name, if any.
func (f *SourcesFile) Lookup(name string) (SourceOverride, bool) {
	if f == nil {
		return SourceOverride{}, false
	}
	for _, s := range f.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceOverride{}, false
}

// LoadSourcesFile loads the catalog at path. Returns nil if the file doesn't
// exist (not an error). Returns error if the file exists but cannot be parsed.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	seen := make(map[string]bool)
	for i, s := range file.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("sources file: entry %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("sources file: duplicate entry %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &file, nil
}
