package chat_sessions

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

const upsertSession string = `
INSERT OR REPLACE INTO chat_sessions (channel_id, chat_id, character_key, group_id, group_members, updated_at)
VALUES (?, ?, ?, ?, ?, ?);
`

const getSessionByChannelID string = `
SELECT channel_id, chat_id, character_key, group_id, group_members FROM chat_sessions WHERE channel_id = ?;
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

func (repo *sqliteRepo) Upsert(ctx context.Context, session *entities.ChatSession) (*entities.ChatSession, error) {
	members := session.Members
	if members == nil {
		members = []string{}
	}

	membersJSON, err := json.Marshal(members)
	if err != nil {
		return nil, err
	}

	_, err = repo.dbConn.ExecContext(ctx, upsertSession,
		session.ChannelID, session.ChatID, session.CharacterKey, session.GroupID, string(membersJSON), repo.clock.Now())
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (repo *sqliteRepo) GetByChannelID(ctx context.Context, channelID string) (*entities.ChatSession, error) {
	var session entities.ChatSession
	var membersJSON string

	err := repo.dbConn.QueryRowContext(ctx, getSessionByChannelID, channelID).Scan(
		&session.ChannelID, &session.ChatID, &session.CharacterKey, &session.GroupID, &membersJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("chat session for channel %s", channelID))
		}

		return nil, err
	}

	err = json.Unmarshal([]byte(membersJSON), &session.Members)
	if err != nil {
		return nil, fmt.Errorf("decoding group members: %w", err)
	}

	if len(session.Members) == 0 {
		session.Members = nil
	}

	return &session, nil
}
