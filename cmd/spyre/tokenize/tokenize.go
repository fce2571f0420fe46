// Package tokenizecmder provides the tokenize command, a debugging aid for
// context budgets.
package tokenizecmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/truncate"
)

type tokenizeCommander struct {
	count          bool
	localTokenizer bool
	endpoint       string
	model          string
}

var tokenizeFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
}

const tokenizeLongDesc string = `Tokenize text with the model's tokenizer.

Prints the token ids of the given text as a JSON array, or only the
number of tokens with --count.

Examples:
  spyre tokenize "How many tokens is this?"
  spyre tokenize --count "$(cat chunk.txt)"`

const tokenizeShortDesc string = "Print the token ids of text"

func NewTokenizeCmd() *cobra.Command {
	cmder := &tokenizeCommander{}

	cmd := &cobra.Command{
		Use:   "tokenize <text>",
		Short: tokenizeShortDesc,
		Long:  tokenizeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup.Load(cmd, tokenizeFlags)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd, env, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVarP(&cmder.count, "count", "c", false, "Print only the token count")
	cmd.Flags().BoolVar(&cmder.localTokenizer, "local-tokenizer", false, "Use the local cl100k_base encoding")
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)

	return cmd
}

func (c *tokenizeCommander) run(cmd *cobra.Command, env *setup.Env, text string) error {
	var tok truncate.Tokenizer
	if c.localTokenizer {
		t, err := truncate.NewTiktoken(truncate.DefaultEncoding)
		if err != nil {
			return err
		}
		tok = t
	} else {
		client, err := env.Client()
		if err != nil {
			return err
		}
		defer client.Close()
		tok = client
	}

	tokens, err := tok.Tokenize(cmd.Context(), text)
	if err != nil {
		return err
	}

	if c.count {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), len(tokens))
		return err
	}

	return setup.WriteJSON(cmd.OutOrStdout(), tokens)
}
