package config

const (
	defaultEndpoint = "http://localhost:8000"
	defaultPoolSize = 10

	defaultListen      = ":5001"
	defaultMaxTokens   = 512
	defaultTemperature = 0.0

	defaultClassifySize   = 128
	defaultQASize         = 32
	defaultSummaryWorkers = 32

	defaultMaxInputTokens = 6000
	defaultTemplateTokens = 250
	defaultMaxNewTokens   = 512

	defaultLogLevel = "info"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		LLM: LLMConfig{
			Endpoint: defaultEndpoint,
			PoolSize: defaultPoolSize,
		},
		Server: ServerConfig{
			Listen:      defaultListen,
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
		Batch: BatchConfig{
			ClassifySize:   defaultClassifySize,
			QASize:         defaultQASize,
			SummaryWorkers: defaultSummaryWorkers,
		},
		Query: QueryConfig{
			MaxInputTokens: defaultMaxInputTokens,
			TemplateTokens: defaultTemplateTokens,
			MaxNewTokens:   defaultMaxNewTokens,
			Truncate:       true,
		},
		Log: LogConfig{
			Level:  defaultLogLevel,
			Pretty: true,
		},
	}
}
