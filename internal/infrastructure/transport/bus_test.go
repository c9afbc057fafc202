package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"formfill/internal/application/service"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type funcHandler struct {
	name entity.MessageName
	fn   func(ctx context.Context, body json.RawMessage) (any, error)
}

func (h funcHandler) Name() entity.MessageName { return h.name }

func (h funcHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	return h.fn(ctx, body)
}

func newTestBus(handlers ...funcHandler) *Bus {
	registry := service.NewHandlerRegistry()
	for _, h := range handlers {
		registry.Register(h)
	}
	return NewBus(registry, logger.NewNop())
}

func TestBus_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := newTestBus(funcHandler{name: entity.MessageStatus, fn: func(_ context.Context, body json.RawMessage) (any, error) {
		var in struct{ Echo string }
		assert.NoError(t, json.Unmarshal(body, &in))
		return map[string]string{"echo": in.Echo}, nil
	}})

	resp := bus.Send(context.Background(), entity.MessageStatus, json.RawMessage(`{"Echo":"hi"}`))
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"echo":"hi"}`, string(resp.Data))
	assert.Empty(t, resp.Error)
}

func TestBus_NilDataHasNoPayload(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := newTestBus(funcHandler{name: entity.MessageSelectModel, fn: func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	}})

	resp := bus.Send(context.Background(), entity.MessageSelectModel, nil)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Data)
}

func TestBus_FillErrorCarriesKind(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := newTestBus(funcHandler{name: entity.MessageElementSelected, fn: func(context.Context, json.RawMessage) (any, error) {
		return nil, entity.NewFillError(entity.FillErrNoFields, errors.New("no input fields found"))
	}})

	resp := bus.Send(context.Background(), entity.MessageElementSelected, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, entity.FillErrNoFields, resp.Kind)
	assert.Contains(t, resp.Error, "no input fields found")
}

func TestBus_UnknownMessage(t *testing.T) {
	bus := newTestBus()

	resp := bus.Send(context.Background(), "nope", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, ErrUnknownMessage.Error())
	assert.False(t, bus.Has("nope"))
}

func TestBus_PanicBecomesResponse(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := newTestBus(funcHandler{name: entity.MessageStatus, fn: func(context.Context, json.RawMessage) (any, error) {
		panic("boom")
	}})

	resp := bus.Send(context.Background(), entity.MessageStatus, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "boom")
}

func TestBus_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	bus := newTestBus(funcHandler{name: entity.MessageStatus, fn: func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-release
		return "late", nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := bus.Send(ctx, entity.MessageStatus, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, entity.FillErrTransport, resp.Kind)
	assert.Contains(t, resp.Error, "transport")

	close(release)
}

func TestBus_UnencodableData(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := newTestBus(funcHandler{name: entity.MessageStatus, fn: func(context.Context, json.RawMessage) (any, error) {
		return make(chan int), nil
	}})

	resp := bus.Send(context.Background(), entity.MessageStatus, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "encode")
}
