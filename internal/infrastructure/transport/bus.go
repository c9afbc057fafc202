// Package transport carries named request/response messages between clients
// and the handlers registered for them.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
)

var ErrUnknownMessage = errors.New("unknown message")

// Bus dispatches each message to its handler on a separate goroutine and
// always yields exactly one Response.
type Bus struct {
	registry output.HandlerRegistry
	logger   output.LoggerPort
}

func NewBus(registry output.HandlerRegistry, logger output.LoggerPort) *Bus {
	return &Bus{
		registry: registry,
		logger:   logger.WithField("component", "bus"),
	}
}

func (b *Bus) Has(name entity.MessageName) bool {
	_, ok := b.registry.Get(name)
	return ok
}

func (b *Bus) Send(ctx context.Context, name entity.MessageName, body json.RawMessage) entity.Response {
	h, ok := b.registry.Get(name)
	if !ok {
		return entity.Response{Error: fmt.Sprintf("%v: %s", ErrUnknownMessage, name)}
	}

	done := make(chan entity.Response, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Handler panicked", "message", name, "panic", r)
				done <- entity.Response{Error: fmt.Sprintf("handler %s panicked: %v", name, r)}
			}
		}()
		data, err := h.Handle(ctx, body)
		done <- b.respond(name, data, err)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		b.logger.Warn("Message abandoned", "message", name, "error", ctx.Err())
		return entity.Response{
			Error: fmt.Sprintf("transport: %v", ctx.Err()),
			Kind:  entity.FillErrTransport,
		}
	}
}

func (b *Bus) respond(name entity.MessageName, data any, err error) entity.Response {
	if err != nil {
		kind, _ := entity.FillErrorKindOf(err)
		b.logger.Info("Message failed", "message", name, "error", err)
		return entity.Response{Error: err.Error(), Kind: kind}
	}
	if data == nil {
		return entity.Response{Success: true}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return entity.Response{Error: fmt.Sprintf("encode %s response: %v", name, err)}
	}
	return entity.Response{Success: true, Data: raw}
}
