package service

import (
	"sort"
	"sync"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
)

var _ output.HandlerRegistry = (*HandlerRegistryImpl)(nil)

type HandlerRegistryImpl struct {
	mu       sync.RWMutex
	handlers map[entity.MessageName]output.MessageHandler
}

func NewHandlerRegistry() *HandlerRegistryImpl {
	return &HandlerRegistryImpl{
		handlers: make(map[entity.MessageName]output.MessageHandler),
	}
}

// Register replaces any handler already bound to the same name.
func (r *HandlerRegistryImpl) Register(handler output.MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.Name()] = handler
}

func (r *HandlerRegistryImpl) Get(name entity.MessageName) (output.MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

func (r *HandlerRegistryImpl) Names() []entity.MessageName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]entity.MessageName, 0, len(r.handlers))
	for name := range r.handlers {
		result = append(result, name)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
