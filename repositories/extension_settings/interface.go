package extension_settings

import (
	"context"
)

// Repository stores one opaque JSON settings document per extension module.
type Repository interface {
	Upsert(ctx context.Context, module string, data []byte) error
	Get(ctx context.Context, module string) ([]byte, error)
}
