package characters

import (
	"context"

	"stable_diffusion_chat/entities"
)

type Repository interface {
	Upsert(ctx context.Context, character *entities.Character) (*entities.Character, error)
	GetByKey(ctx context.Context, key string) (*entities.Character, error)
	List(ctx context.Context) ([]*entities.Character, error)
}
