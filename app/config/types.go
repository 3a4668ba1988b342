package config

// SourcesFile is the on-disk seed list of feed sources.
type SourcesFile struct {
	Sources []SeedSource `yaml:"sources"`
}

// SeedSource is one configured feed in the sources file.
type SeedSource struct {
	Kind     string `yaml:"type"` // rss, youtube
	Origin   string `yaml:"url"`  // feed URL or channel id
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Enabled  *bool  `yaml:"enabled"` // nil means enabled
}

// IsEnabled resolves the optional enabled flag.
func (s SeedSource) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}
