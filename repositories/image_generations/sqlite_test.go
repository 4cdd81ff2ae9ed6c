package image_generations

import (
	"context"
	"path/filepath"
	"testing"

	"stable_diffusion_chat/databases/sqlite"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetByImagePath(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.New(ctx, sqlite.Config{Filename: filepath.Join(t.TempDir(), "test.sqlite")})
	require.NoError(t, err)
	defer db.Close()

	repo, err := NewRepository(&Config{DB: db})
	require.NoError(t, err)

	_, err = repo.GetByImagePath(ctx, "missing.png")
	assert.ErrorIs(t, err, &repositories.NotFoundError{})

	created, err := repo.Create(ctx, &entities.ImageGeneration{
		ChannelID:      "c1",
		ChatID:         "chat",
		CharacterName:  "Alice",
		Initiator:      entities.InitiatorSwipe,
		Prompt:         "a cat",
		PrefixedPrompt: "best quality, a cat",
		NegativePrompt: "blurry",
		Width:          512,
		Height:         768,
		EnableHR:       true,
		Seed:           1234,
		SamplerName:    "Euler a",
		Scheduler:      "karras",
		CfgScale:       7,
		Steps:          20,
		ImagePath:      "Alice/Alice_2024.png",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.GetByImagePath(ctx, "Alice/Alice_2024.png")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, entities.InitiatorSwipe, got.Initiator)
	assert.Equal(t, int64(1234), got.Seed)
	assert.True(t, got.EnableHR)
	assert.Equal(t, 768, got.Height)
}
