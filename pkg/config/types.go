package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent spyre configuration stored as config.toml
// in the .spyre/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version" mapstructure:"version"`
	LLM     LLMConfig     `toml:"llm" mapstructure:"llm"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Batch   BatchConfig   `toml:"batch" mapstructure:"batch"`
	Query   QueryConfig   `toml:"query" mapstructure:"query"`
	Prompts PromptsConfig `toml:"prompts" mapstructure:"prompts"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
}

// LLMConfig holds the inference server connection settings.
type LLMConfig struct {
	Endpoint string `toml:"endpoint,omitempty" mapstructure:"endpoint" validate:"required,http_url"`
	Model    string `toml:"model,omitempty" mapstructure:"model"`
	PoolSize uint   `toml:"pool_size,omitempty" mapstructure:"pool_size" validate:"gte=1"`

	// Timeout is a Go duration string. Empty means no client timeout.
	Timeout string `toml:"timeout,omitempty" mapstructure:"timeout" validate:"omitempty,duration"`

	// RateLimit is requests per second, 0 for unlimited.
	RateLimit float64 `toml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
}

// ServerConfig holds the forwarding server settings.
type ServerConfig struct {
	Listen      string  `toml:"listen,omitempty" mapstructure:"listen" validate:"required"`
	MaxTokens   int     `toml:"max_tokens,omitempty" mapstructure:"max_tokens" validate:"gte=1"`
	Temperature float64 `toml:"temperature" mapstructure:"temperature" validate:"gte=0"`
}

// BatchConfig sizes the batched and concurrent services.
type BatchConfig struct {
	ClassifySize   int `toml:"classify_size,omitempty" mapstructure:"classify_size" validate:"gte=1"`
	QASize         int `toml:"qa_size,omitempty" mapstructure:"qa_size" validate:"gte=1"`
	SummaryWorkers int `toml:"summary_workers,omitempty" mapstructure:"summary_workers" validate:"gte=1"`
}

// QueryConfig holds question-answering settings.
type QueryConfig struct {
	MaxInputTokens int      `toml:"max_input_tokens,omitempty" mapstructure:"max_input_tokens" validate:"gte=1"`
	TemplateTokens int      `toml:"template_tokens,omitempty" mapstructure:"template_tokens" validate:"gte=0,ltfield=MaxInputTokens"`
	MaxNewTokens   int      `toml:"max_new_tokens,omitempty" mapstructure:"max_new_tokens" validate:"gte=1"`
	StopWords      []string `toml:"stop_words,omitempty" mapstructure:"stop_words"`
	Stream         bool     `toml:"stream" mapstructure:"stream"`
	Truncate       bool     `toml:"truncate" mapstructure:"truncate"`
}

// PromptsConfig locates the prompt template file.
type PromptsConfig struct {
	Path string `toml:"path,omitempty" mapstructure:"path"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `toml:"level,omitempty" mapstructure:"level" validate:"loglevel"`
	JSON   bool   `toml:"json" mapstructure:"json"`
	Pretty bool   `toml:"pretty" mapstructure:"pretty"`

	// File, when set, also receives every record as JSON.
	File string `toml:"file,omitempty" mapstructure:"file"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"llm.endpoint":   stringKey(func(c *Config) *string { return &c.LLM.Endpoint }),
	"llm.model":      stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.pool_size":  uintKey("llm.pool_size", func(c *Config) *uint { return &c.LLM.PoolSize }),
	"llm.timeout":    stringKey(func(c *Config) *string { return &c.LLM.Timeout }),
	"llm.rate_limit": floatKey("llm.rate_limit", func(c *Config) *float64 { return &c.LLM.RateLimit }),

	"server.listen":      stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.max_tokens":  intKey("server.max_tokens", func(c *Config) *int { return &c.Server.MaxTokens }),
	"server.temperature": floatKey("server.temperature", func(c *Config) *float64 { return &c.Server.Temperature }),

	"batch.classify_size":   intKey("batch.classify_size", func(c *Config) *int { return &c.Batch.ClassifySize }),
	"batch.qa_size":         intKey("batch.qa_size", func(c *Config) *int { return &c.Batch.QASize }),
	"batch.summary_workers": intKey("batch.summary_workers", func(c *Config) *int { return &c.Batch.SummaryWorkers }),

	"query.max_input_tokens": intKey("query.max_input_tokens", func(c *Config) *int { return &c.Query.MaxInputTokens }),
	"query.template_tokens":  intKey("query.template_tokens", func(c *Config) *int { return &c.Query.TemplateTokens }),
	"query.max_new_tokens":   intKey("query.max_new_tokens", func(c *Config) *int { return &c.Query.MaxNewTokens }),
	"query.stop_words": {
		get: func(c *Config) string { return strings.Join(c.Query.StopWords, ",") },
		set: func(c *Config, v string) error {
			c.Query.StopWords = splitList(v)
			return nil
		},
	},
	"query.stream":   boolKey("query.stream", func(c *Config) *bool { return &c.Query.Stream }),
	"query.truncate": boolKey("query.truncate", func(c *Config) *bool { return &c.Query.Truncate }),

	"prompts.path": stringKey(func(c *Config) *string { return &c.Prompts.Path }),

	"log.level":  stringKey(func(c *Config) *string { return &c.Log.Level }),
	"log.json":   boolKey("log.json", func(c *Config) *bool { return &c.Log.JSON }),
	"log.pretty": boolKey("log.pretty", func(c *Config) *bool { return &c.Log.Pretty }),
	"log.file":   stringKey(func(c *Config) *string { return &c.Log.File }),
}

func stringKey(field func(*Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(*Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(*Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(*Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name string, field func(*Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
