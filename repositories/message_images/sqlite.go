package message_images

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"stable_diffusion_chat/clock"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories"
)

const insertMessageImagesQuery string = `
INSERT INTO message_images (message_id, channel_id, title, negative, generation_type, initiator, image, image_swipes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const updateMessageImagesQuery string = `
UPDATE message_images SET image = ?, image_swipes = ?, updated_at = ? WHERE message_id = ?;
`

const getMessageImagesByMessageID string = `
SELECT message_id, channel_id, title, negative, generation_type, initiator, image, image_swipes, created_at, updated_at
FROM message_images WHERE message_id = ?;
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

	return &sqliteRepo{
		dbConn: cfg.DB,
		clock:  repoClock,
	}, nil
}

func (repo *sqliteRepo) Create(ctx context.Context, images *entities.MessageImages) (*entities.MessageImages, error) {
	swipes, err := encodeSwipes(images.Swipes)
	if err != nil {
		return nil, err
	}

	images.CreatedAt = repo.clock.Now()
	images.UpdatedAt = images.CreatedAt

	_, err = repo.dbConn.ExecContext(ctx, insertMessageImagesQuery,
		images.MessageID, images.ChannelID, images.Title, images.Negative, images.GenerationType,
		string(images.Initiator), images.Image, swipes, images.CreatedAt, images.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return images, nil
}

func (repo *sqliteRepo) Update(ctx context.Context, images *entities.MessageImages) (*entities.MessageImages, error) {
	swipes, err := encodeSwipes(images.Swipes)
	if err != nil {
		return nil, err
	}

	images.UpdatedAt = repo.clock.Now()

	res, err := repo.dbConn.ExecContext(ctx, updateMessageImagesQuery,
		images.Image, swipes, images.UpdatedAt, images.MessageID)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		return nil, repositories.NewNotFoundError(fmt.Sprintf("images for message %s", images.MessageID))
	}

	return images, nil
}

func (repo *sqliteRepo) GetByMessageID(ctx context.Context, messageID string) (*entities.MessageImages, error) {
	var (
		images    entities.MessageImages
		initiator string
		swipes    string
	)

	err := repo.dbConn.QueryRowContext(ctx, getMessageImagesByMessageID, messageID).Scan(
		&images.MessageID, &images.ChannelID, &images.Title, &images.Negative, &images.GenerationType,
		&initiator, &images.Image, &swipes, &images.CreatedAt, &images.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("images for message %s", messageID))
		}

		return nil, err
	}

	images.Initiator = entities.Initiator(initiator)

	err = json.Unmarshal([]byte(swipes), &images.Swipes)
	if err != nil {
		return nil, fmt.Errorf("decoding swipes of message %s: %w", messageID, err)
	}

	return &images, nil
}

func encodeSwipes(swipes []string) (string, error) {
	if swipes == nil {
		swipes = []string{}
	}

	encoded, err := json.Marshal(swipes)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}
