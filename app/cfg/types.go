package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	Port         string
	SourcesFile  string
	APIAccessKey string
	FeedToken    string

	// External model configuration
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Ingestion configuration
	PerSourceLimit     int
	FeedItemLimit      int
	TextBudget         int
	MinScore           int
	ClassifyFailPolicy string
	IngestInterval     int
	TranscriptLangs    []string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
