package image_generations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stable_diffusion_chat/clock"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories"
)

const insertGenerationQuery string = `
INSERT INTO image_generations (channel_id, chat_id, character_name, initiator, prompt, prefixed_prompt, negative_prompt, width, height, restore_faces, enable_hr, denoising_strength, seed, sampler_name, scheduler, cfg_scale, steps, image_path, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const getGenerationByImagePath string = `
SELECT id, channel_id, chat_id, character_name, initiator, prompt, prefixed_prompt, negative_prompt, width, height, restore_faces, enable_hr, denoising_strength, seed, sampler_name, scheduler, cfg_scale, steps, image_path, created_at
FROM image_generations WHERE image_path = ? ORDER BY id DESC LIMIT 1;
`

type sqliteRepo struct {
	dbConn *sql.DB
	clock  clock.Clock
}

type Config struct {
	DB    *sql.DB
	Clock clock.Clock
}

func NewRepository(cfg *Config) (Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	repoClock := cfg.Clock
	if repoClock == nil {
		repoClock = clock.NewClock()
	}

	newRepo := &sqliteRepo{
		dbConn: cfg.DB,
		clock:  repoClock,
	}

	return newRepo, nil
}

func (repo *sqliteRepo) Create(ctx context.Context, generation *entities.ImageGeneration) (*entities.ImageGeneration, error) {
	generation.CreatedAt = repo.clock.Now()

	res, err := repo.dbConn.ExecContext(ctx, insertGenerationQuery,
		generation.ChannelID, generation.ChatID, generation.CharacterName, string(generation.Initiator),
		generation.Prompt, generation.PrefixedPrompt, generation.NegativePrompt, generation.Width, generation.Height,
		generation.RestoreFaces, generation.EnableHR, generation.DenoisingStrength, generation.Seed,
		generation.SamplerName, generation.Scheduler, generation.CfgScale, generation.Steps,
		generation.ImagePath, generation.CreatedAt)
	if err != nil {
		return nil, err
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	generation.ID = lastID

	return generation, nil
}

func (repo *sqliteRepo) GetByImagePath(ctx context.Context, imagePath string) (*entities.ImageGeneration, error) {
	var (
		generation entities.ImageGeneration
		initiator  string
	)

	err := repo.dbConn.QueryRowContext(ctx, getGenerationByImagePath, imagePath).Scan(
		&generation.ID, &generation.ChannelID, &generation.ChatID, &generation.CharacterName, &initiator,
		&generation.Prompt, &generation.PrefixedPrompt, &generation.NegativePrompt, &generation.Width,
		&generation.Height, &generation.RestoreFaces, &generation.EnableHR, &generation.DenoisingStrength,
		&generation.Seed, &generation.SamplerName, &generation.Scheduler, &generation.CfgScale,
		&generation.Steps, &generation.ImagePath, &generation.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("image generation for %s", imagePath))
		}

		return nil, err
	}

	generation.Initiator = entities.Initiator(initiator)

	return &generation, nil
}
