// Package qacmder provides the qa command.
package qacmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/llm"
)

type qaCommander struct {
	input     string
	endpoint  string
	model     string
	batchSize int
	prompts   string
}

var qaFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagQASize,
	config.FlagPromptPath,
}

const qaLongDesc string = `Generate question/answer pairs from document chunks.

Reads a JSON array of documents ({"page_content": "...", "chunk_id": "..."})
and prints the generated pairs as JSON. Each pair carries the source text
as its context and the source chunk id. Documents in a failed batch and
replies without a "Q:" produce no pair.

Examples:
  spyre qa -i chunks.json
  spyre qa -i chunks.json --batch-size 16 > pairs.json`

const qaShortDesc string = "Generate QA pairs from documents"

func NewQACmd() *cobra.Command {
	cmder := &qaCommander{}

	cmd := &cobra.Command{
		Use:   "qa",
		Short: qaShortDesc,
		Long:  qaLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup.Load(cmd, qaFlags)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "JSON file of documents (- for stdin)")
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, config.Flags, config.FlagQASize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptPath, &cmder.prompts)

	return cmd
}

func (c *qaCommander) run(cmd *cobra.Command, env *setup.Env) error {
	var records []llm.Document
	if err := setup.ReadJSON(c.input, cmd.InOrStdin(), &records); err != nil {
		return err
	}

	svc, closeFn, err := env.OpenService(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	var pairs []llm.QAPair
	_ = setup.Progress(cmd, fmt.Sprintf("Generating QA pairs for %d documents", len(records)), func() (string, error) {
		pairs = svc.GenerateQAPairs(cmd.Context(), records)
		return fmt.Sprintf("%d pairs", len(pairs)), nil
	})
	env.Logger.Info("generated qa pairs", "documents", len(records), "pairs", len(pairs))

	return setup.WriteJSON(cmd.OutOrStdout(), pairs)
}
