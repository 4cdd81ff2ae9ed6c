package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RunsMigrations(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "nested", "test.sqlite")

	db, err := New(ctx, Config{Filename: filename})
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, getCurrentMigration).Scan(&version))
	assert.Equal(t, len(migrations), version)

	for _, table := range []string{"extension_settings", "characters", "chat_sessions", "message_images", "image_generations"} {
		var name string
		err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := New(ctx, Config{Filename: filename})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(ctx, Config{Filename: filename})
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, getCurrentMigration).Scan(&version))
	assert.Equal(t, len(migrations), version)
}
