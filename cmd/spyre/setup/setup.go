// Package setup resolves the configuration, logger and inference client
// shared by every spyre command.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/spyre/pkg/cliui"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/dotdir"
	"github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/metrics"
	"github.com/papercomputeco/spyre/pkg/prompts"
	"github.com/papercomputeco/spyre/pkg/rag"
	"github.com/papercomputeco/spyre/pkg/truncate"
	"github.com/papercomputeco/spyre/pkg/vllm"
)

// Persistent flags registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
	FlagEnvFile   = "env-file"
)

// ErrNoPrompts is returned when no prompt template file can be located.
var ErrNoPrompts = errors.New("no prompt template file: set prompts.path or create .spyre/prompts.json")

// Env is the resolved runtime for one command invocation.
type Env struct {
	Config    *config.Config
	ConfigDir string
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics

	logFile io.Closer
}

// Load reads the env file, resolves configuration with the given registered
// flags bound on top, and builds the logger. Logs go to the command's stderr
// so stdout stays machine-readable.
func Load(cmd *cobra.Command, flagKeys []string) (*Env, error) {
	envFile, _ := cmd.Flags().GetString(FlagEnvFile)
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	configDir, _ := cmd.Flags().GetString(FlagConfigDir)
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg, err := config.Resolve(v)
	if err != nil {
		return nil, err
	}

	debug, _ := cmd.Flags().GetBool(FlagDebug)
	log, err := NewLogger(cfg.Log, debug, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	env := &Env{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    log,
	}

	if cfg.Log.File != "" {
		f, err := logger.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		env.logFile = f
		env.Logger = logger.Multi(log, fileLogger(cfg.Log, debug, f))
	}

	env.Registry = prometheus.NewRegistry()
	env.Metrics = metrics.New(env.Registry)
	return env, nil
}

// Close releases the log file, if any.
func (e *Env) Close() error {
	if e.logFile == nil {
		return nil
	}
	return e.logFile.Close()
}

// NewLogger builds the command logger. --debug wins over log.level, and
// pretty output is only used on a terminal.
func NewLogger(lc config.LogConfig, debug bool, w io.Writer) (*slog.Logger, error) {
	level, err := logger.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}

	return logger.New(
		logger.WithWriter(w),
		logger.WithLevel(level),
		logger.WithPretty(lc.Pretty && !lc.JSON && logger.IsTerminal(w)),
		logger.WithJSON(lc.JSON),
		logger.WithDebug(debug),
	), nil
}

// fileLogger writes JSON records with source locations to w. The level was
// already validated by NewLogger.
func fileLogger(lc config.LogConfig, debug bool, w io.Writer) *slog.Logger {
	level, _ := logger.ParseLevel(lc.Level)
	return logger.New(
		logger.WithWriter(w),
		logger.WithLevel(level),
		logger.WithFormat(logger.FormatJSON),
		logger.WithSource(true),
		logger.WithDebug(debug),
	)
}

// Client creates the inference client. Callers must Close it.
func (e *Env) Client() (*vllm.Client, error) {
	var timeout time.Duration
	if e.Config.LLM.Timeout != "" {
		d, err := time.ParseDuration(e.Config.LLM.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing llm.timeout: %w", err)
		}
		timeout = d
	}

	client, err := vllm.NewClient(vllm.Config{
		BaseURL:   e.Config.LLM.Endpoint,
		Model:     e.Config.LLM.Model,
		PoolSize:  int(e.Config.LLM.PoolSize),
		Timeout:   timeout,
		RateLimit: e.Config.LLM.RateLimit,
		Logger:    e.Logger,
		Metrics:   e.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("creating inference client: %w", err)
	}

	return client, nil
}

// PromptsPath returns prompts.path, falling back to prompts.json in the
// resolved .spyre/ directory.
func (e *Env) PromptsPath() (string, error) {
	if e.Config.Prompts.Path != "" {
		return e.Config.Prompts.Path, nil
	}

	path, err := dotdir.NewManager().PromptsPath(e.ConfigDir)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", ErrNoPrompts
	}
	return path, nil
}

// Prompts loads the prompt template store.
func (e *Env) Prompts() (*prompts.Store, error) {
	path, err := e.PromptsPath()
	if err != nil {
		return nil, err
	}

	store, err := prompts.NewStore(path, e.Logger)
	if err != nil {
		if errors.Is(err, prompts.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoPrompts, path)
		}
		return nil, err
	}

	return store, nil
}

// Service builds the orchestration service. tok may be nil to truncate with
// the remote tokenizer.
func (e *Env) Service(client rag.Client, templates rag.TemplateSource, tok truncate.Tokenizer) (*rag.Service, error) {
	q := e.Config.Query
	return rag.New(rag.Config{
		Client:            client,
		Prompts:           templates,
		Tokenizer:         tok,
		ClassifyBatchSize: e.Config.Batch.ClassifySize,
		QABatchSize:       e.Config.Batch.QASize,
		SummaryWorkers:    e.Config.Batch.SummaryWorkers,
		Query: rag.QueryConfig{
			MaxInputTokens: q.MaxInputTokens,
			TemplateTokens: q.TemplateTokens,
			MaxNewTokens:   q.MaxNewTokens,
			StopWords:      q.StopWords,
			Truncate:       q.Truncate,
		},
		Logger:  e.Logger,
		Metrics: e.Metrics,
	})
}

// OpenService creates the client, loads the prompt templates and builds the
// service in one step. The returned close func releases the client.
func (e *Env) OpenService(tok truncate.Tokenizer) (*rag.Service, func(), error) {
	client, err := e.Client()
	if err != nil {
		return nil, nil, err
	}

	store, err := e.Prompts()
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	svc, err := e.Service(client, store, tok)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return svc, func() { client.Close() }, nil
}

// Progress runs task behind a spinner on the command's stderr. Off a
// terminal the task just runs; the command's log lines cover it.
func Progress(cmd *cobra.Command, msg string, task cliui.Task) error {
	w := cmd.ErrOrStderr()
	if !logger.IsTerminal(w) {
		_, err := task()
		return err
	}
	return cliui.Progress(w, msg, true, task)
}

// ReadJSON decodes the file at path into v. "-" reads stdin.
func ReadJSON(path string, stdin io.Reader, v any) error {
	var r io.Reader
	switch path {
	case "":
		return errors.New("an input file is required (use - for stdin)")
	case "-":
		r = stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
