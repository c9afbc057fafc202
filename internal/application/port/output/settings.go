package output

import "context"

// SettingsPort is a last-write-wins key/value store.
type SettingsPort interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
