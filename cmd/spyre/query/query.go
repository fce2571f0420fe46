// Package querycmder provides the query command.
package querycmder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	"github.com/papercomputeco/spyre/pkg/cliui"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/rag"
	"github.com/papercomputeco/spyre/pkg/truncate"
)

type queryCommander struct {
	question       string
	input          string
	localTokenizer bool
	raw            bool

	endpoint       string
	model          string
	maxInputTokens int
	maxNewTokens   int
	stopWords      []string
	stream         bool
	truncate       bool
	prompts        string
}

var queryFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagMaxInputTokens,
	config.FlagMaxNewTokens,
	config.FlagStopWords,
	config.FlagStream,
	config.FlagTruncate,
	config.FlagPromptPath,
}

const queryLongDesc string = `Answer a question from retrieved documents.

Reads a JSON array of documents ({"page_content": "..."}), joins them into
one context, trims the context to the token budget and asks the model the
question. The answer is rendered as markdown on a terminal and printed
as-is otherwise.

Use --stream to print the answer as it is generated. Truncation uses the
inference server's tokenizer unless --local-tokenizer is set, which counts
tokens offline with a cl100k_base encoding instead.

Examples:
  spyre query -q "What is the refund policy?" -i docs.json
  spyre query -q "Summarize the findings" -i docs.json --stream
  spyre query -q "..." -i docs.json --max-input-tokens 3000 --stop "Question:"`

const queryShortDesc string = "Answer a question from documents"

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup.Load(cmd, queryFlags)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.question, "question", "q", "", "Question to answer")
	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "JSON file of documents (- for stdin)")
	cmd.Flags().BoolVar(&cmder.localTokenizer, "local-tokenizer", false, "Count tokens locally instead of with the server tokenizer")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the answer without markdown rendering")
	_ = cmd.MarkFlagRequired("question")

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxInputTokens, &cmder.maxInputTokens)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxNewTokens, &cmder.maxNewTokens)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagStopWords, &cmder.stopWords)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStream, &cmder.stream)
	config.AddBoolFlag(cmd, config.Flags, config.FlagTruncate, &cmder.truncate)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptPath, &cmder.prompts)

	return cmd
}

func (c *queryCommander) run(cmd *cobra.Command, env *setup.Env) error {
	question := strings.TrimSpace(c.question)
	if question == "" {
		return errors.New("a question is required")
	}

	var docs []llm.Document
	if err := setup.ReadJSON(c.input, cmd.InOrStdin(), &docs); err != nil {
		return err
	}

	var tok truncate.Tokenizer
	if c.localTokenizer {
		t, err := truncate.NewTiktoken(truncate.DefaultEncoding)
		if err != nil {
			return err
		}
		tok = t
	}

	svc, closeFn, err := env.OpenService(tok)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	if env.Config.Query.Stream {
		return c.streamAnswer(cmd, env, svc, question, docs, out)
	}

	answer, err := svc.Query(cmd.Context(), question, docs)
	if err != nil {
		return err
	}
	env.Logger.Info("answered question",
		"documents", len(docs),
		"elapsed", cliui.FormatDuration(answer.Elapsed),
	)

	text := answer.Text
	if !c.raw && logger.IsTerminal(out) {
		if rendered, err := cliui.RenderMarkdown(text, cliui.Width(out)); err == nil {
			text = rendered
		}
	}

	_, err = fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return err
}

func (c *queryCommander) streamAnswer(cmd *cobra.Command, env *setup.Env, svc *rag.Service, question string, docs []llm.Document, out io.Writer) error {
	stream, err := svc.QueryStream(cmd.Context(), question, docs)
	if err != nil {
		return err
	}
	defer stream.Close()

	for delta := range stream.Deltas() {
		if _, err := io.WriteString(out, delta.Content); err != nil {
			return err
		}
	}
	fmt.Fprintln(out)

	if n := stream.ParseErrors(); n > 0 {
		env.Logger.Warn("skipped malformed stream chunks", "count", n)
	}
	return stream.Err()
}
