// Package servecmder provides the serve command that runs the chat
// forwarding server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/spyre/cmd/spyre/setup"
	"github.com/papercomputeco/spyre/pkg/config"
	"github.com/papercomputeco/spyre/pkg/prompts"
	"github.com/papercomputeco/spyre/proxy"
)

type serveCommander struct {
	endpoint  string
	model     string
	poolSize  uint
	timeout   string
	rateLimit float64
	listen    string
	maxTokens int
	prompts   string
	logLevel  string
	logJSON   bool
	logFile   string
}

var serveFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagPoolSize,
	config.FlagTimeout,
	config.FlagRateLimit,
	config.FlagListen,
	config.FlagMaxTokens,
	config.FlagPromptPath,
	config.FlagLogLevel,
	config.FlagLogJSON,
	config.FlagLogFile,
}

const serveLongDesc string = `Run the spyre forwarding server.

The server accepts single-turn chat requests on POST /v1/chat/completions,
relays the first message to the inference server and replies with the
generated text. Set "stream": true in the request body to receive the reply
as it is generated.

Also served:
  GET /health     Liveness check
  GET /metrics    Prometheus metrics

When a prompt template file is configured it is watched and reloaded on
change, so template edits are validated without a restart.`

const serveShortDesc string = "Run the spyre forwarding server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup.Load(cmd, serveFlags)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd.Context(), env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagPoolSize, &cmder.poolSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddFloatFlag(cmd, config.Flags, config.FlagRateLimit, &cmder.rateLimit)
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptPath, &cmder.prompts)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogLevel, &cmder.logLevel)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &cmder.logJSON)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)

	return cmd
}

func (c *serveCommander) run(parent context.Context, env *setup.Env) error {
	log := env.Logger

	client, err := env.Client()
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := proxy.New(proxy.Config{
		ListenAddr:  env.Config.Server.Listen,
		MaxTokens:   env.Config.Server.MaxTokens,
		Temperature: env.Config.Server.Temperature,
		Gatherer:    env.Registry,
	}, client, log, env.Metrics)
	if err != nil {
		return fmt.Errorf("creating forwarding server: %w", err)
	}

	store, err := env.Prompts()
	switch {
	case errors.Is(err, setup.ErrNoPrompts):
		log.Debug("no prompt template file, skipping watcher")
		store = nil
	case err != nil:
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := p.Run(); err != nil {
			return fmt.Errorf("forwarding server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return p.Close()
	})

	if store != nil {
		g.Go(func() error {
			return watchPrompts(ctx, store)
		})
	}

	log.Info("spyre serving",
		"listen", env.Config.Server.Listen,
		"endpoint", client.BaseURL(),
		"model", client.Model(),
	)

	return g.Wait()
}

func watchPrompts(ctx context.Context, store *prompts.Store) error {
	if err := store.Watch(ctx); err != nil {
		return fmt.Errorf("watching prompts: %w", err)
	}
	return nil
}
