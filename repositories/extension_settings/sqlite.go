package extension_settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stable_diffusion_chat/clock"
	"stable_diffusion_chat/repositories"
)

const upsertSetting string = `
INSERT OR REPLACE INTO extension_settings (module, data, updated_at) VALUES (?, ?, ?);
`

const getSettingByModule string = `
SELECT data FROM extension_settings WHERE module = ?;
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

func (repo *sqliteRepo) Upsert(ctx context.Context, module string, data []byte) error {
	_, err := repo.dbConn.ExecContext(ctx, upsertSetting, module, string(data), repo.clock.Now())

	return err
}

func (repo *sqliteRepo) Get(ctx context.Context, module string) ([]byte, error) {
	var data string

	err := repo.dbConn.QueryRowContext(ctx, getSettingByModule, module).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("settings for module %s", module))
		}

		return nil, err
	}

	return []byte(data), nil
}
