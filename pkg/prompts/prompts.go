// Package prompts loads the prompt templates used by the rag services from a
// JSON file and renders their "{name}" placeholders.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Template keys in the prompt file.
const (
	KeyClassify     = "llm_classify"
	KeyTableSummary = "table_summary"
	KeyQuery        = "query_vllm"
	KeyQueryStream  = "query_vllm_stream"
	KeyQAPairs      = "gen_qa_pairs"
)

var (
	ErrNotFound  = errors.New("prompt file not found")
	ErrMalformed = errors.New("malformed prompt file")
	ErrMissing   = errors.New("prompt templates missing or empty")
)

// Templates is the full set of prompt templates. Every field is required.
type Templates struct {
	// Classify takes {text}.
	Classify string `json:"llm_classify"`

	// TableSummary takes {content}.
	TableSummary string `json:"table_summary"`

	// Query and QueryStream take {context} and {question}.
	Query       string `json:"query_vllm"`
	QueryStream string `json:"query_vllm_stream"`

	// QAPairs takes {text}.
	QAPairs string `json:"gen_qa_pairs"`
}

// Templates returns t itself, so a fixed set can stand in wherever a Store is
// accepted.
func (t *Templates) Templates() *Templates {
	return t
}

// Validate reports every missing or empty template.
func (t *Templates) Validate() error {
	var missing []string
	for _, f := range []struct {
		key   string
		value string
	}{
		{KeyClassify, t.Classify},
		{KeyTableSummary, t.TableSummary},
		{KeyQuery, t.Query},
		{KeyQueryStream, t.QueryStream},
		{KeyQAPairs, t.QAPairs},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Parse decodes and validates a prompt file's contents.
func Parse(data []byte) (*Templates, error) {
	t := &Templates{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Load reads and validates the prompt file at path.
func Load(path string) (*Templates, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Render substitutes "{name}" placeholders with vars[name]. "{{" and "}}"
// render as literal braces and placeholders without a value are left as
// written, so JSON examples inside a prompt survive rendering.
func Render(tmpl string, vars map[string]string) string {
	var sb strings.Builder
	sb.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], "{{"):
			sb.WriteByte('{')
			i += 2

		case strings.HasPrefix(tmpl[i:], "}}"):
			sb.WriteByte('}')
			i += 2

		case tmpl[i] == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				sb.WriteString(tmpl[i:])
				return sb.String()
			}
			name := tmpl[i+1 : i+1+end]
			if v, ok := vars[name]; ok {
				sb.WriteString(v)
			} else {
				sb.WriteString(tmpl[i : i+end+2])
			}
			i += end + 2

		default:
			sb.WriteByte(tmpl[i])
			i++
		}
	}

	return sb.String()
}
