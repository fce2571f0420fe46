// Package classifycmder provides the classify command.
package classifycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/llm"
)

type classifyCommander struct {
	input     string
	endpoint  string
	model     string
	batchSize int
	prompts   string
}

var classifyFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagClassifySize,
	config.FlagPromptPath,
}

const classifyLongDesc string = `Filter extracted text blocks by relevance.

Reads a JSON array of text blocks ({"text": "...", "metadata": {...}}),
asks the model whether each block is worth keeping and prints the kept
blocks as JSON. Blocks are sent in batches; when a batch fails its blocks
are kept.

Examples:
  spyre classify -i blocks.json
  cat blocks.json | spyre classify -i - --batch-size 64`

const classifyShortDesc string = "Filter text blocks by relevance"

func NewClassifyCmd() *cobra.Command {
	cmder := &classifyCommander{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: classifyShortDesc,
		Long:  classifyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup.Load(cmd, classifyFlags)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "JSON file of text blocks (- for stdin)")
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, config.Flags, config.FlagClassifySize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptPath, &cmder.prompts)

	return cmd
}

func (c *classifyCommander) run(cmd *cobra.Command, env *setup.Env) error {
	var blocks []llm.TextBlock
	if err := setup.ReadJSON(c.input, cmd.InOrStdin(), &blocks); err != nil {
		return err
	}

	svc, closeFn, err := env.OpenService(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	var kept []llm.TextBlock
	_ = setup.Progress(cmd, fmt.Sprintf("Classifying %d text blocks", len(blocks)), func() (string, error) {
		kept = svc.Filter(cmd.Context(), blocks)
		return fmt.Sprintf("%d of %d kept", len(kept), len(blocks)), nil
	})
	env.Logger.Info("classified text blocks", "total", len(blocks), "kept", len(kept))

	return setup.WriteJSON(cmd.OutOrStdout(), kept)
}
