package truncate

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/papercomputeco/spyre/pkg/llm"
)

// DefaultEncoding is the BPE encoding used when none is given.
const DefaultEncoding = "cl100k_base"

// Tiktoken is a local Tokenizer. Its token ids do not match the served
// model's, so it is only an approximation for offline budgeting.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encoding, err)
	}

	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Tokenize(_ context.Context, text string) ([]llm.TokenID, error) {
	return t.enc.Encode(text, nil, nil), nil
}

func (t *Tiktoken) Detokenize(_ context.Context, tokens []llm.TokenID) (string, error) {
	return t.enc.Decode(tokens), nil
}

var _ Tokenizer = (*Tiktoken)(nil)
