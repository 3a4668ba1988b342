package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads the seed source list from a YAML file.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load parses and validates the sources file. A missing file is not an
// error: it yields an empty list so a fresh install starts clean.
func (l *Loader) Load() ([]SeedSource, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	for i, s := range file.Sources {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("invalid source #%d: %w", i+1, err)
		}
	}

	return file.Sources, nil
}

func validate(s SeedSource) error {
	if s.Kind != "rss" && s.Kind != "youtube" {
		return fmt.Errorf("type must be rss or youtube, got %q", s.Kind)
	}
	if s.Origin == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}
