package characters

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

const upsertCharacter string = `
INSERT OR REPLACE INTO characters (character_key, name, avatar_url, shared_prompt, updated_at) VALUES (?, ?, ?, ?, ?);
`

const getCharacterByKey string = `
SELECT character_key, name, avatar_url, shared_prompt FROM characters WHERE character_key = ?;
`

const listCharacters string = `
SELECT character_key, name, avatar_url, shared_prompt FROM characters ORDER BY name;
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

func (repo *sqliteRepo) Upsert(ctx context.Context, character *entities.Character) (*entities.Character, error) {
	var sharedPrompt sql.NullString

	if character.SharedPrompt != nil {
		encoded, err := json.Marshal(character.SharedPrompt)
		if err != nil {
			return nil, err
		}

		sharedPrompt = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := repo.dbConn.ExecContext(ctx, upsertCharacter,
		character.Key, character.Name, character.AvatarURL, sharedPrompt, repo.clock.Now())
	if err != nil {
		return nil, err
	}

	return character, nil
}

func (repo *sqliteRepo) GetByKey(ctx context.Context, key string) (*entities.Character, error) {
	character, err := scanCharacter(repo.dbConn.QueryRowContext(ctx, getCharacterByKey, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("character %s", key))
		}

		return nil, err
	}

	return character, nil
}

func (repo *sqliteRepo) List(ctx context.Context) ([]*entities.Character, error) {
	rows, err := repo.dbConn.QueryContext(ctx, listCharacters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*entities.Character

	for rows.Next() {
		character, scanErr := scanCharacter(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		result = append(result, character)
	}

	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row scanner) (*entities.Character, error) {
	var (
		character    entities.Character
		sharedPrompt sql.NullString
	)

	err := row.Scan(&character.Key, &character.Name, &character.AvatarURL, &sharedPrompt)
	if err != nil {
		return nil, err
	}

	if sharedPrompt.Valid && sharedPrompt.String != "" {
		var prompt entities.CharacterPrompt

		err = json.Unmarshal([]byte(sharedPrompt.String), &prompt)
		if err != nil {
			return nil, fmt.Errorf("decoding shared prompt of %s: %w", character.Key, err)
		}

		character.SharedPrompt = &prompt
	}

	return &character, nil
}
