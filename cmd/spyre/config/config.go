// Package configcmder provides the config command for managing persistent
// spyre configuration stored in the .spyre/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent spyre configuration.

Configuration is stored as config.toml in the .spyre/ directory and provides
default values for command flags. Environment variables (SPYRE_LLM_ENDPOINT,
LLM_ENDPOINT, ...) override the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  llm.endpoint, llm.model, llm.pool_size, llm.timeout, llm.rate_limit,
  server.listen, server.max_tokens, server.temperature,
  batch.classify_size, batch.qa_size, batch.summary_workers,
  query.max_input_tokens, query.template_tokens, query.max_new_tokens,
  query.stop_words, query.stream, query.truncate,
  prompts.path, log.level, log.json, log.pretty, log.file

Use subcommands to get, set, or list configuration values:
  spyre config set <key> <value>    Set a configuration value
  spyre config get <key>            Get a configuration value
  spyre config list                 List all configuration values

Examples:
  spyre config set llm.endpoint http://gpu-box:8000
  spyre config set query.stop_words "Question:,Context:"
  spyre config get llm.model
  spyre config list`

const configShortDesc string = "Manage persistent spyre configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
