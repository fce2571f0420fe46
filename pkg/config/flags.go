package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --endpoint
// on both "spyre serve" and "spyre query").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "llm.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEndpoint       = "endpoint"
	FlagModel          = "model"
	FlagPoolSize       = "pool-size"
	FlagTimeout        = "timeout"
	FlagRateLimit      = "rate-limit"
	FlagListen         = "listen"
	FlagMaxTokens      = "max-tokens"
	FlagClassifySize   = "batch-size"
	FlagQASize         = "qa-batch-size"
	FlagSummaryWorkers = "workers"
	FlagMaxInputTokens = "max-input-tokens"
	FlagMaxNewTokens   = "max-new-tokens"
	FlagStopWords      = "stop"
	FlagStream         = "stream"
	FlagTruncate       = "truncate"
	FlagPromptPath     = "prompts"
	FlagLogLevel       = "log-level"
	FlagLogJSON        = "log-json"
	FlagLogFile        = "log-file"
)

// Flags is the registry shared by every spyre command.
var Flags = FlagSet{
	FlagEndpoint:       {Name: "endpoint", Shorthand: "e", ViperKey: "llm.endpoint", Description: "Inference server base URL"},
	FlagModel:          {Name: "model", Shorthand: "m", ViperKey: "llm.model", Description: "Model name sent with every request"},
	FlagPoolSize:       {Name: "pool-size", ViperKey: "llm.pool_size", Description: "Maximum connections to the inference server"},
	FlagTimeout:        {Name: "timeout", ViperKey: "llm.timeout", Description: "Per-request timeout (e.g. 30s, empty for none)"},
	FlagRateLimit:      {Name: "rate-limit", ViperKey: "llm.rate_limit", Description: "Maximum requests per second, 0 for unlimited"},
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the server to listen on"},
	FlagMaxTokens:      {Name: "max-tokens", ViperKey: "server.max_tokens", Description: "Default max_tokens for forwarded chat requests"},
	FlagClassifySize:   {Name: "batch-size", Shorthand: "b", ViperKey: "batch.classify_size", Description: "Prompts per classification request"},
	FlagQASize:         {Name: "batch-size", Shorthand: "b", ViperKey: "batch.qa_size", Description: "Prompts per QA generation request"},
	FlagSummaryWorkers: {Name: "workers", Shorthand: "w", ViperKey: "batch.summary_workers", Description: "Maximum concurrent summary requests"},
	FlagMaxInputTokens: {Name: "max-input-tokens", ViperKey: "query.max_input_tokens", Description: "Prompt token budget used when truncating context"},
	FlagMaxNewTokens:   {Name: "max-new-tokens", ViperKey: "query.max_new_tokens", Description: "Maximum tokens to generate for an answer"},
	FlagStopWords:      {Name: "stop", ViperKey: "query.stop_words", Description: "Stop sequences (repeatable or comma-separated)"},
	FlagStream:         {Name: "stream", Shorthand: "s", ViperKey: "query.stream", Description: "Stream the answer as it is generated"},
	FlagTruncate:       {Name: "truncate", ViperKey: "query.truncate", Description: "Truncate context to the token budget"},
	FlagPromptPath:     {Name: "prompts", Shorthand: "p", ViperKey: "prompts.path", Description: "Path to the prompt template JSON file"},
	FlagLogLevel:       {Name: "log-level", ViperKey: "log.level", Description: "Log level (debug, info, warn, error)"},
	FlagLogJSON:        {Name: "log-json", ViperKey: "log.json", Description: "Emit JSON logs"},
	FlagLogFile:        {Name: "log-file", ViperKey: "log.file", Description: "Also append JSON logs to this file"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *float64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddStringSliceFlag registers a string slice flag on cmd from the given FlagSet.
func AddStringSliceFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *[]string) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetStringSlice(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringSliceVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringSliceVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only the NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
