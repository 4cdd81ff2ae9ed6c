package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const DefaultDBFile string = "sd_chat_bot.sqlite"

const getCurrentMigration string = `PRAGMA user_version;`
const setCurrentMigration string = `PRAGMA user_version = ?;`

const createExtensionSettingsTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS extension_settings (
module TEXT NOT NULL PRIMARY KEY,
data TEXT NOT NULL,
updated_at DATETIME NOT NULL
);`

const createCharactersTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS characters (
character_key TEXT NOT NULL PRIMARY KEY,
name TEXT NOT NULL,
avatar_url TEXT NOT NULL,
shared_prompt TEXT,
updated_at DATETIME NOT NULL
);`

const createChatSessionsTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS chat_sessions (
channel_id TEXT NOT NULL PRIMARY KEY,
chat_id TEXT NOT NULL,
character_key TEXT NOT NULL,
group_id TEXT NOT NULL,
updated_at DATETIME NOT NULL
);`

const createMessageImagesTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS message_images (
message_id TEXT NOT NULL PRIMARY KEY,
channel_id TEXT NOT NULL,
title TEXT NOT NULL,
negative TEXT NOT NULL,
generation_type INTEGER NOT NULL,
initiator TEXT NOT NULL,
image TEXT NOT NULL,
image_swipes TEXT NOT NULL,
created_at DATETIME NOT NULL,
updated_at DATETIME NOT NULL
);`

const createMessageImagesChannelIndexIfNotExistsQuery string = `
CREATE INDEX IF NOT EXISTS message_images_channel_index
ON message_images(channel_id);
`

const createGenerationTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS image_generations (
id INTEGER NOT NULL PRIMARY KEY,
channel_id TEXT NOT NULL,
chat_id TEXT NOT NULL,
character_name TEXT NOT NULL,
initiator TEXT NOT NULL,
prompt TEXT NOT NULL,
prefixed_prompt TEXT NOT NULL,
negative_prompt TEXT NOT NULL,
width INTEGER NOT NULL,
height INTEGER NOT NULL,
restore_faces INTEGER NOT NULL,
enable_hr INTEGER NOT NULL,
denoising_strength REAL NOT NULL,
seed INTEGER NOT NULL,
sampler_name TEXT NOT NULL,
scheduler TEXT NOT NULL,
cfg_scale REAL NOT NULL,
steps INTEGER NOT NULL,
image_path TEXT NOT NULL,
created_at DATETIME NOT NULL
);`

const createGenerationImageIndexIfNotExistsQuery string = `
CREATE INDEX IF NOT EXISTS generation_image_index
ON image_generations(image_path);
`

const addChatSessionGroupMembersQuery string = `
ALTER TABLE chat_sessions ADD COLUMN group_members TEXT NOT NULL DEFAULT '[]';
`

type migration struct {
	migrationName  string
	migrationQuery string
}

var migrations = []migration{
	{migrationName: "create extension settings table", migrationQuery: createExtensionSettingsTableIfNotExistsQuery},
	{migrationName: "create characters table", migrationQuery: createCharactersTableIfNotExistsQuery},
	{migrationName: "create chat sessions table", migrationQuery: createChatSessionsTableIfNotExistsQuery},
	{migrationName: "create message images table", migrationQuery: createMessageImagesTableIfNotExistsQuery},
	{migrationName: "add message images channel index", migrationQuery: createMessageImagesChannelIndexIfNotExistsQuery},
	{migrationName: "create generation table", migrationQuery: createGenerationTableIfNotExistsQuery},
	{migrationName: "add generation image index", migrationQuery: createGenerationImageIndexIfNotExistsQuery},
	{migrationName: "add chat session group members", migrationQuery: addChatSessionGroupMembersQuery},
}

type Config struct {
	// Filename of the database. Defaults to DefaultDBFile in the working directory.
	Filename string
}

func New(ctx context.Context, cfg Config) (*sql.DB, error) {
	filename := cfg.Filename
	if filename == "" {
		var err error

		filename, err = DBFilename()
		if err != nil {
			return nil, err
		}
	}

	err := touchDBFile(filename)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}

	err = migrate(ctx, db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var currentMigration int

	row := db.QueryRowContext(ctx, getCurrentMigration)

	err := row.Scan(&currentMigration)
	if err != nil {
		return err
	}

	requiredMigration := len(migrations)

	log.Info().
		Int("current", currentMigration).
		Int("required", requiredMigration).
		Msg("Checking DB version")

	if currentMigration < requiredMigration {
		for migrationNum := currentMigration + 1; migrationNum <= requiredMigration; migrationNum++ {
			err = execMigration(ctx, db, migrationNum)
			if err != nil {
				log.Error().Err(err).
					Int("migration", migrationNum).
					Str("name", migrations[migrationNum-1].migrationName).
					Msg("Error running migration")

				return err
			}
		}
	}

	return nil
}

func execMigration(ctx context.Context, db *sql.DB, migrationNum int) error {
	log.Info().
		Int("migration", migrationNum).
		Str("name", migrations[migrationNum-1].migrationName).
		Msg("Running migration")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	//nolint
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, migrations[migrationNum-1].migrationQuery)
	if err != nil {
		return err
	}

	setQuery := strings.Replace(setCurrentMigration, "?", strconv.Itoa(migrationNum), 1)

	_, err = tx.ExecContext(ctx, setQuery)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	return nil
}

func DBFilename() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, DefaultDBFile), nil
}

func touchDBFile(filename string) error {
	_, err := os.Stat(filename)
	if os.IsNotExist(err) {
		dirErr := os.MkdirAll(filepath.Dir(filename), 0o755)
		if dirErr != nil {
			return dirErr
		}

		file, createErr := os.Create(filename)
		if createErr != nil {
			return createErr
		}

		closeErr := file.Close()
		if closeErr != nil {
			return closeErr
		}
	}

	return nil
}
