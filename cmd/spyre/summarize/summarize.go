// Package summarizecmder provides the summarize command.
package summarizecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/rag"
)

type summarizeCommander struct {
	input    string
	endpoint string
	model    string
	workers  int
	prompts  string
}

var summarizeFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagSummaryWorkers,
	config.FlagPromptPath,
}

const summarizeLongDesc string = `Summarize extracted tables.

Reads a JSON array of tables ({"html": "...", "caption": "..."}) and prints
a JSON array with one summary per table, in input order. Tables are
summarized concurrently; a table whose summary fails gets "No summary.".

Examples:
  spyre summarize -i tables.json
  spyre summarize -i tables.json --workers 8`

const summarizeShortDesc string = "Summarize tables"

func NewSummarizeCmd() *cobra.Command {
	cmder := &summarizeCommander{}

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: summarizeShortDesc,
		Long:  summarizeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup.Load(cmd, summarizeFlags)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "JSON file of tables (- for stdin)")
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, config.Flags, config.FlagSummaryWorkers, &cmder.workers)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptPath, &cmder.prompts)

	return cmd
}

func (c *summarizeCommander) run(cmd *cobra.Command, env *setup.Env) error {
	var tables []llm.Table
	if err := setup.ReadJSON(c.input, cmd.InOrStdin(), &tables); err != nil {
		return err
	}

	svc, closeFn, err := env.OpenService(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	var summaries []string
	failed := 0
	_ = setup.Progress(cmd, fmt.Sprintf("Summarizing %d tables", len(tables)), func() (string, error) {
		summaries = svc.SummarizeTables(cmd.Context(), tables)
		for _, s := range summaries {
			if s == rag.NoSummary {
				failed++
			}
		}
		return fmt.Sprintf("%d without summary", failed), nil
	})
	env.Logger.Info("summarized tables", "total", len(tables), "failed", failed)

	return setup.WriteJSON(cmd.OutOrStdout(), summaries)
}
