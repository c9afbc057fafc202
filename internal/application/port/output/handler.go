package output

import (
	"context"
	"encoding/json"

	"formfill/internal/domain/entity"
)

type MessageHandler interface {
	Name() entity.MessageName
	Handle(ctx context.Context, body json.RawMessage) (any, error)
}

type HandlerRegistry interface {
	Register(handler MessageHandler)
	Get(name entity.MessageName) (MessageHandler, bool)
	Names() []entity.MessageName
}
