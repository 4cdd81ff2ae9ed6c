package chat_sessions

import (
	"context"

	"stable_diffusion_chat/entities"
)

type Repository interface {
	Upsert(ctx context.Context, session *entities.ChatSession) (*entities.ChatSession, error)
	GetByChannelID(ctx context.Context, channelID string) (*entities.ChatSession, error)
}
