// Package rag implements the document-ingestion and question-answering
// services that sit in front of the inference server: text classification,
// table summarization, QA pair generation and context-grounded queries.
package rag

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/metrics"
	"github.com/papercomputeco/spyre/pkg/prompts"
	"github.com/papercomputeco/spyre/pkg/truncate"
	"github.com/papercomputeco/spyre/pkg/vllm"
)

const (
	DefaultClassifyBatchSize = 128
	DefaultQABatchSize       = 32
	DefaultSummaryWorkers    = 32

	DefaultMaxInputTokens = 6000
	DefaultTemplateTokens = 250
	DefaultMaxNewTokens   = 512

	// RepetitionPenalty is sent with summary and query generations.
	RepetitionPenalty = 1.1

	classifyMaxTokens   = 3
	generationMaxTokens = 512
)

// Client is the subset of the inference client the services use.
// *vllm.Client implements it.
type Client interface {
	Completions(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)
	Complete(ctx context.Context, req *llm.CompletionRequest) llm.Result
	ChatCompletions(ctx context.Context, req *llm.ChatRequest) (*llm.CompletionResponse, error)
	ChatStream(ctx context.Context, req *llm.ChatRequest) (*vllm.Stream, error)
	truncate.Tokenizer
}

// TemplateSource supplies the current prompt templates. Both
// *prompts.Store and *prompts.Templates implement it.
type TemplateSource interface {
	Templates() *prompts.Templates
}

// QueryConfig controls Query and QueryStream.
type QueryConfig struct {
	// MaxInputTokens is the total prompt budget used when truncating.
	MaxInputTokens int

	// TemplateTokens is reserved for the template text around the context.
	TemplateTokens int

	MaxNewTokens int
	StopWords    []string

	// Truncate trims the joined documents to fit the budget before
	// rendering the prompt.
	Truncate bool
}

// DefaultQueryConfig returns the query settings used when none are given.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		MaxInputTokens: DefaultMaxInputTokens,
		TemplateTokens: DefaultTemplateTokens,
		MaxNewTokens:   DefaultMaxNewTokens,
		Truncate:       true,
	}
}

// Config configures a Service.
type Config struct {
	Client  Client
	Prompts TemplateSource

	// Tokenizer overrides the client for context truncation, for example
	// with a local tiktoken encoding.
	Tokenizer truncate.Tokenizer

	// Batch sizes and the summary worker bound run as one when zero.
	// Negative values select the defaults above.
	ClassifyBatchSize int
	QABatchSize       int
	SummaryWorkers    int

	Query QueryConfig

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Service runs the orchestration operations against one Client.
type Service struct {
	client    Client
	prompts   TemplateSource
	truncator *truncate.Truncator

	classifyBatchSize int
	qaBatchSize       int
	summaryWorkers    int
	query             QueryConfig

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Client == nil {
		return nil, errors.New("rag: client is required")
	}
	if cfg.Prompts == nil || cfg.Prompts.Templates() == nil {
		return nil, errors.New("rag: prompt templates are required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "rag")

	tok := cfg.Tokenizer
	if tok == nil {
		tok = cfg.Client
	}

	q := cfg.Query
	if q.MaxInputTokens <= 0 {
		q.MaxInputTokens = DefaultMaxInputTokens
	}
	if q.TemplateTokens < 0 {
		q.TemplateTokens = DefaultTemplateTokens
	}
	if q.MaxNewTokens <= 0 {
		q.MaxNewTokens = DefaultMaxNewTokens
	}

	return &Service{
		client:            cfg.Client,
		prompts:           cfg.Prompts,
		truncator:         truncate.New(tok, log),
		classifyBatchSize: orDefault(cfg.ClassifyBatchSize, DefaultClassifyBatchSize),
		qaBatchSize:       orDefault(cfg.QABatchSize, DefaultQABatchSize),
		summaryWorkers:    orDefault(cfg.SummaryWorkers, DefaultSummaryWorkers),
		query:             q,
		logger:            log,
		metrics:           cfg.Metrics,
	}, nil
}

func orDefault(v, def int) int {
	if v < 0 {
		return def
	}
	return v
}
