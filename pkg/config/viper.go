package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/spyre/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable spyre reads.
const EnvPrefix = "SPYRE"

// legacyEnv maps config keys to the unprefixed variables earlier
// deployments set. The prefixed variable wins when both are set.
var legacyEnv = map[string]string{
	"llm.endpoint":  "LLM_ENDPOINT",
	"llm.model":     "LLM_MODEL",
	"server.listen": "PORT",
	"prompts.path":  "PROMPT_PATH",
	"log.level":     "LOG_LEVEL",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SPYRE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SPYRE_LLM_ENDPOINT, LLM_ENDPOINT, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SPYRE_LLM_ENDPOINT, SPYRE_BATCH_QA_SIZE, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	return v, nil
}

// Resolve decodes the effective configuration out of v and validates it.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Server.Listen = ListenAddr(cfg.Server.Listen)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ListenAddr turns a bare port, as PORT carries, into a listen address.
func ListenAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return ":" + s
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// LLM
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.pool_size", d.LLM.PoolSize)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.rate_limit", d.LLM.RateLimit)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.max_tokens", d.Server.MaxTokens)
	v.SetDefault("server.temperature", d.Server.Temperature)

	// Batch
	v.SetDefault("batch.classify_size", d.Batch.ClassifySize)
	v.SetDefault("batch.qa_size", d.Batch.QASize)
	v.SetDefault("batch.summary_workers", d.Batch.SummaryWorkers)

	// Query
	v.SetDefault("query.max_input_tokens", d.Query.MaxInputTokens)
	v.SetDefault("query.template_tokens", d.Query.TemplateTokens)
	v.SetDefault("query.max_new_tokens", d.Query.MaxNewTokens)
	v.SetDefault("query.stop_words", d.Query.StopWords)
	v.SetDefault("query.stream", d.Query.Stream)
	v.SetDefault("query.truncate", d.Query.Truncate)

	// Prompts
	v.SetDefault("prompts.path", d.Prompts.Path)

	// Log
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)
}
