// Package header sets the response headers of the ragstream relay.
//
// Every response carries a permissive CORS policy so browser callers can POST
// queries cross-origin. Streamed responses additionally advertise an
// unbuffered body:
//
//	Caller <-- Relay <-- RAG service
//
// The relay never forwards upstream headers; the caller-facing leg is framed
// independently of the upstream one.
package header

import (
	"github.com/gofiber/fiber/v2"
)

// Handler sets relay response headers.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

const (
	AllowOrigin  = "*"
	AllowMethods = "POST, OPTIONS"
	AllowHeaders = "Content-Type"
)

// cors is the policy sent on every response, preflight included.
var cors = [][2]string{
	{fiber.HeaderAccessControlAllowOrigin, AllowOrigin},
	{fiber.HeaderAccessControlAllowMethods, AllowMethods},
	{fiber.HeaderAccessControlAllowHeaders, AllowHeaders},
}

// stream marks a body as incrementally delivered.
var stream = [][2]string{
	// Intermediaries must not cache or coalesce a partial answer.
	{fiber.HeaderCacheControl, "no-cache"},
	{fiber.HeaderConnection, "keep-alive"},
}

// SetCORSHeaders applies the CORS policy to the response.
func (h *Handler) SetCORSHeaders(c *fiber.Ctx) {
	for _, kv := range cors {
		c.Set(kv[0], kv[1])
	}
}

// SetStreamHeaders applies the CORS policy plus the headers of a streamed
// body with the given content type.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx, contentType string) {
	h.SetCORSHeaders(c)
	c.Set(fiber.HeaderContentType, contentType)
	for _, kv := range stream {
		c.Set(kv[0], kv[1])
	}
}
