// Package proxy serves spyre's chat forwarding endpoint. A single-turn chat
// request is relayed to the inference server and the generated text is
// returned as a plain-text body, optionally streamed as it is generated.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/spyre/pkg/llm"
	spyrelog "github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/metrics"
	"github.com/papercomputeco/spyre/pkg/utils"
	"github.com/papercomputeco/spyre/pkg/vllm"
	"github.com/papercomputeco/spyre/proxy/header"
)

const (
	RouteChat    = "/v1/chat/completions"
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	errEmptyMessages = "messages can't be empty"
)

// Client is the inference surface the forwarder needs.
type Client interface {
	Chat(ctx context.Context, req *llm.ChatRequest) llm.Result
	ChatStream(ctx context.Context, req *llm.ChatRequest) (*vllm.Stream, error)
}

// chatRequest is the inbound body. Only the first message is forwarded.
type chatRequest struct {
	Messages    []llm.Message `json:"messages"`
	MaxTokens   *int          `json:"max_tokens"`
	Temperature *float64      `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// Proxy is the forwarding server.
type Proxy struct {
	config        Config
	client        Client
	logger        *slog.Logger
	metrics       *metrics.Metrics
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy. A nil logger discards output and nil metrics
// disables instrumentation.
func New(config Config, client Client, logger *slog.Logger, m *metrics.Metrics) (*Proxy, error) {
	if client == nil {
		return nil, errors.New("inference client is required")
	}
	if logger == nil {
		logger = spyrelog.Nop()
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	p := &Proxy{
		config:        config,
		client:        client,
		logger:        logger,
		metrics:       m,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	app.Use(p.instrument)
	app.Post(RouteChat, p.handleChat)
	app.Get(RouteHealth, p.handleHealth)
	if config.Gatherer != nil {
		app.Get(RouteMetrics, adaptor.HTTPHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}

	return p, nil
}

// Run starts the server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting forwarding server", "listen", p.config.ListenAddr)
	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting forwarding server", "listen", listener.Addr().String())
	return p.server.Listener(listener)
}

// Close gracefully shuts down the server.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// instrument tags every request with an id and counts it once handled.
func (p *Proxy) instrument(c *fiber.Ctx) error {
	id := p.headerHandler.AssignRequestID(c)
	start := time.Now()

	err := c.Next()
	if err != nil {
		// Run the error handler now so the recorded status is the one sent.
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}

	status := c.Response().StatusCode()
	p.metrics.HTTPRequest(c.Route().Path, strconv.Itoa(status))
	p.logger.Debug("request served",
		"request_id", id,
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
	)
	return nil
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(llm.StatusResponse{Status: "ok"})
}

func (p *Proxy) handleChat(c *fiber.Ctx) error {
	var in chatRequest
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(in.Messages) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, errEmptyMessages)
	}

	req := p.upstreamRequest(&in)
	p.logger.Debug("forwarding chat request",
		"request_id", header.RequestID(c),
		"stream", in.Stream,
		"prompt", utils.Truncate(in.Messages[0].Content, 80),
	)

	if in.Stream {
		return p.handleStreamingChat(c, req)
	}

	res := p.client.Chat(c.UserContext(), req)
	if !res.OK() {
		p.logger.Error("upstream request failed",
			"request_id", header.RequestID(c),
			"error", res.Err,
		)
		return fiber.NewError(fiber.StatusBadGateway, res.Reason())
	}

	p.headerHandler.SetReplyHeaders(c)
	return c.Status(fiber.StatusOK).SendString(res.Text)
}

// upstreamRequest builds the inference request. The first inbound message
// is sent with the system role.
func (p *Proxy) upstreamRequest(in *chatRequest) *llm.ChatRequest {
	maxTokens := p.config.MaxTokens
	if in.MaxTokens != nil {
		maxTokens = *in.MaxTokens
	}
	temperature := p.config.Temperature
	if in.Temperature != nil {
		temperature = *in.Temperature
	}

	return &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: in.Messages[0].Content},
		},
		MaxTokens:   llm.Ptr(maxTokens),
		Temperature: llm.Ptr(temperature),
	}
}

func (p *Proxy) handleStreamingChat(c *fiber.Ctx, req *llm.ChatRequest) error {
	// Use context.Background() instead of c.UserContext() because fasthttp
	// recycles its RequestCtx after the handler returns, but the stream is
	// drained in a separate goroutine after that.
	stream, err := p.client.ChatStream(context.Background(), req)
	if err != nil {
		p.logger.Error("upstream stream failed",
			"request_id", header.RequestID(c),
			"error", err,
		)
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	p.headerHandler.SetReplyHeaders(c)

	// io.Pipe gives per-chunk flushing: pw.Write blocks until fasthttp's
	// chunked body writer has consumed the fragment.
	pr, pw := io.Pipe()
	go p.pipeStream(header.RequestID(c), stream, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// pipeStream copies generated fragments to pw until the stream ends or the
// client goes away.
func (p *Proxy) pipeStream(requestID string, stream *vllm.Stream, pw *io.PipeWriter) {
	for delta := range stream.Deltas() {
		if _, err := io.WriteString(pw, delta.Content); err != nil {
			p.logger.Debug("client closed stream", "request_id", requestID, "error", err)
			break
		}
	}

	if err := stream.Err(); err != nil {
		p.logger.Error("stream interrupted", "request_id", requestID, "error", err)
		pw.CloseWithError(err)
		return
	}
	if n := stream.ParseErrors(); n > 0 {
		p.logger.Warn("skipped malformed stream chunks", "request_id", requestID, "count", n)
	}
	pw.Close()
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}
