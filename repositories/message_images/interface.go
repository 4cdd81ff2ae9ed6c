package message_images

import (
	"context"

	"stable_diffusion_chat/entities"
)

type Repository interface {
	Create(ctx context.Context, images *entities.MessageImages) (*entities.MessageImages, error)
	Update(ctx context.Context, images *entities.MessageImages) (*entities.MessageImages, error)
	GetByMessageID(ctx context.Context, messageID string) (*entities.MessageImages, error)
}
