package server

import (
	"context"

	"github.com/onnwee/chat-echo/chat"
)

// Handlers holds dependencies for all HTTP handlers. The stored context is
// the application context: a session started over HTTP must outlive the
// request that started it.
type Handlers struct {
	ctx       context.Context
	ctrl      *chat.Controller
	validator *chat.LiveValidator
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, ctrl *chat.Controller, validator *chat.LiveValidator) *Handlers {
	return &Handlers{ctx: ctx, ctrl: ctrl, validator: validator}
}
