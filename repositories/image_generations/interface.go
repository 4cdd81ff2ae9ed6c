package image_generations

import (
	"context"

	"stable_diffusion_chat/entities"
)

type Repository interface {
	Create(ctx context.Context, generation *entities.ImageGeneration) (*entities.ImageGeneration, error)
	GetByImagePath(ctx context.Context, imagePath string) (*entities.ImageGeneration, error)
}
