package llm

import "strings"

// DocumentSeparator joins retrieved documents into a single context.
const DocumentSeparator = "\n\n"

// Document is a retrieved chunk of source text.
type Document struct {
	Content  string         `json:"page_content"`
	ChunkID  string         `json:"chunk_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// JoinDocuments concatenates the documents' content in order.
func JoinDocuments(docs []Document, sep string) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, sep)
}

// TextBlock is a block of extracted text awaiting relevance classification.
type TextBlock struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Table is an extracted table awaiting summarization.
type Table struct {
	HTML    string `json:"html"`
	Caption string `json:"caption,omitempty"`
}

// QAPair is a generated question/answer pair tied back to its source chunk.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context"`
	ChunkID  string `json:"chunk_id"`
}
