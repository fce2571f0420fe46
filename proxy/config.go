package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultListenAddr = ":5001"
	DefaultMaxTokens  = 512
)

// Config is the forwarding server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":5001")
	ListenAddr string

	// MaxTokens and Temperature apply when a request does not set them.
	MaxTokens   int
	Temperature float64

	// Gatherer backs GET /metrics. The route is not registered when nil.
	Gatherer prometheus.Gatherer
}
