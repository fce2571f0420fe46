// Package header sets the response headers of the spyre forwarding server.
//
// Replies are plain generated text, not JSON, and carry the headers that
// browser-based chat frontends expect from the endpoint. Every response is
// tagged with a request id so client and server logs can be correlated.
package header

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"

	// ReplyContentType is the content type of generated replies.
	ReplyContentType = "application/text"

	requestIDLocal = "request_id"
)

// replyHeaders are set on every successful reply.
var replyHeaders = map[string]string{
	"Cache-Control": "no-cache",
	"Connection":    "keep-alive",

	"Access-Control-Allow-Headers": "Content-Type",
}

// Handler manages headers on forwarding server responses.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// SetReplyHeaders marks the response as a generated text reply.
func (h *Handler) SetReplyHeaders(c *fiber.Ctx) {
	for k, v := range replyHeaders {
		c.Set(k, v)
	}
	c.Set(fiber.HeaderContentType, ReplyContentType)
}

// AssignRequestID reuses the client's request id or mints a new one, echoes
// it on the response and returns it.
func (h *Handler) AssignRequestID(c *fiber.Ctx) string {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	c.Locals(requestIDLocal, id)
	c.Set(RequestIDHeader, id)
	return id
}

// RequestID returns the id assigned to the current request, or "".
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDLocal).(string)
	return id
}
