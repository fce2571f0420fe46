// Package spyrecmder
package spyrecmder

import (
	"github.com/spf13/cobra"

	classifycmder "github.com/papercomputeco/spyre/cmd/spyre/classify"
	configcmder "github.com/papercomputeco/spyre/cmd/spyre/config"
	qacmder "github.com/papercomputeco/spyre/cmd/spyre/qa"
	querycmder "github.com/papercomputeco/spyre/cmd/spyre/query"
	servecmder "github.com/papercomputeco/spyre/cmd/spyre/serve"
	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	summarizecmder "github.com/papercomputeco/spyre/cmd/spyre/summarize"
	tokenizecmder "github.com/papercomputeco/spyre/cmd/spyre/tokenize"
	versioncmder "github.com/papercomputeco/spyre/cmd/version"
)

const spyreLongDesc string = `Spyre prepares documents for retrieval and answers questions over them
with a vLLM inference server.

Ingestion:
  spyre classify     Filter extracted text blocks by relevance
  spyre summarize    Summarize extracted tables
  spyre qa           Generate question/answer pairs from chunks

Answering:
  spyre query        Answer a question from retrieved documents
  spyre serve        Run the chat forwarding server

Settings are read from .spyre/config.toml, SPYRE_* environment variables
and flags, in increasing order of precedence.`

const spyreShortDesc string = "Spyre - document QA over vLLM"

func NewSpyreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "spyre",
		Short:        spyreShortDesc,
		Long:         spyreLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(setup.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(setup.FlagConfigDir, "", "Override path to the .spyre/ config directory")
	cmd.PersistentFlags().String(setup.FlagEnvFile, "", "Load environment variables from this file (default .env when present)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(classifycmder.NewClassifyCmd())
	cmd.AddCommand(summarizecmder.NewSummarizeCmd())
	cmd.AddCommand(qacmder.NewQACmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(tokenizecmder.NewTokenizeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
