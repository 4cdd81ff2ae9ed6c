package chat_context

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"stable_diffusion_chat/databases/sqlite"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories/characters"
	"stable_diffusion_chat/repositories/chat_sessions"
	"stable_diffusion_chat/repositories/extension_settings"
	"stable_diffusion_chat/settings_manager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	resolver   Resolver
	settings   settings_manager.Manager
	characters characters.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.New(ctx, sqlite.Config{Filename: filepath.Join(t.TempDir(), "test.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settingsRepo, err := extension_settings.NewRepository(&extension_settings.Config{DB: db})
	require.NoError(t, err)

	settings, err := settings_manager.New(settings_manager.Config{Repo: settingsRepo})
	require.NoError(t, err)
	require.NoError(t, settings.Load(ctx))

	sessionRepo, err := chat_sessions.NewRepository(&chat_sessions.Config{DB: db})
	require.NoError(t, err)

	characterRepo, err := characters.NewRepository(&characters.Config{DB: db})
	require.NoError(t, err)

	counter := 0

	resolver, err := New(Config{
		Sessions:   sessionRepo,
		Characters: characterRepo,
		Settings:   settings,
		NewID: func() string {
			counter++
			return fmt.Sprintf("chat-%d", counter)
		},
	})
	require.NoError(t, err)

	return &fixture{resolver: resolver, settings: settings, characters: characterRepo}
}

func TestSession_CreatedOnFirstUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chatID, err := f.resolver.CurrentChatID(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", chatID)

	chatID, err = f.resolver.CurrentChatID(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", chatID, "the chat identity is stable")

	name, err := f.resolver.CharacterName(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, DefaultCharacterName, name)

	character, err := f.resolver.Character(ctx, "chan")
	require.NoError(t, err)
	assert.Nil(t, character)
}

func TestSetCharacter_ChangesChatAndReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.resolver.CurrentChatID(ctx, "chan")
	require.NoError(t, err)

	prompt, err := f.resolver.SetCharacter(ctx, "chan", &entities.Character{
		Key:          "alice.png",
		Name:         "Alice",
		AvatarURL:    "https://cdn/alice.png",
		SharedPrompt: &entities.CharacterPrompt{Positive: "red hair"},
	})
	require.NoError(t, err)
	assert.Equal(t, "red hair", prompt.Positive)

	after, err := f.resolver.CurrentChatID(ctx, "chan")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	name, err := f.resolver.CharacterName(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	local, err := f.resolver.CharacterPrompt(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "red hair", local.Positive)

	_, err = f.resolver.SetCharacter(ctx, "chan", nil)
	assert.ErrorIs(t, err, ErrNoCharacter)
}

func TestSetGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.SetCharacter(ctx, "chan", &entities.Character{Key: "alice.png", Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, f.settings.SetCharacterPrompt(ctx, "alice.png", "red hair"))

	require.NoError(t, f.resolver.SetGroup(ctx, "chan", "party", nil))

	name, err := f.resolver.CharacterName(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "party", name)

	prompt, err := f.resolver.CharacterPrompt(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, entities.CharacterPrompt{}, prompt, "group chats have no character prefix")

	assert.ErrorIs(t, f.resolver.ShareCharacterPrompt(ctx, "chan", true), ErrNoCharacter)

	avatar, err := f.resolver.AvatarURL(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "", avatar, "a group without members has no avatar")

	assert.Error(t, f.resolver.SetGroup(ctx, "chan", "", nil))
}

func TestAvatarURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	avatar, err := f.resolver.AvatarURL(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "", avatar, "no character selected")

	_, err = f.resolver.SetCharacter(ctx, "chan", &entities.Character{
		Key: "alice.png", Name: "Alice", AvatarURL: "https://cdn.example/alice.png",
	})
	require.NoError(t, err)

	avatar, err = f.resolver.AvatarURL(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/alice.png", avatar)

	_, err = f.characters.Upsert(ctx, &entities.Character{Key: "bob.png", Name: "Bob"})
	require.NoError(t, err)
	_, err = f.characters.Upsert(ctx, &entities.Character{Key: "carol.png", Name: "Carol", AvatarURL: "https://cdn.example/carol.png"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		members []string
		pick    int
		want    string
	}{
		{name: "picked member", members: []string{"alice.png", "carol.png"}, pick: 1, want: "https://cdn.example/carol.png"},
		{name: "skips member without avatar", members: []string{"bob.png", "alice.png"}, pick: 0, want: "https://cdn.example/alice.png"},
		{name: "skips unknown member and wraps", members: []string{"carol.png", "ghost.png"}, pick: 1, want: "https://cdn.example/carol.png"},
		{name: "nobody has an avatar", members: []string{"bob.png", "ghost.png"}, pick: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.resolver.(*resolverImpl).pickMember = func(n int) int {
				assert.Equal(t, len(tt.members), n)

				return tt.pick
			}

			require.NoError(t, f.resolver.SetGroup(ctx, "group-chan", "party", tt.members))

			avatar, err := f.resolver.AvatarURL(ctx, "group-chan")
			require.NoError(t, err)
			assert.Equal(t, tt.want, avatar)
		})
	}
}

func TestNewChat_KeepsCharacter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.SetCharacter(ctx, "chan", &entities.Character{Key: "alice.png", Name: "Alice"})
	require.NoError(t, err)

	session, err := f.resolver.NewChat(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, "chat-2", session.ChatID)
	assert.Equal(t, "alice.png", session.CharacterKey)
}

func TestShareCharacterPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.SetCharacter(ctx, "chan", &entities.Character{Key: "alice.png", Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, f.settings.SetCharacterPrompt(ctx, "alice.png", "red hair"))
	require.NoError(t, f.settings.SetCharacterNegativePrompt(ctx, "alice.png", "hat"))

	require.NoError(t, f.resolver.ShareCharacterPrompt(ctx, "chan", true))

	card, err := f.characters.GetByKey(ctx, "alice.png")
	require.NoError(t, err)
	require.NotNil(t, card.SharedPrompt)
	assert.Equal(t, entities.CharacterPrompt{Positive: "red hair", Negative: "hat"}, *card.SharedPrompt)

	// Re-selecting the character keeps the shared copy on the card.
	_, err = f.resolver.SetCharacter(ctx, "chan", &entities.Character{Key: "alice.png", Name: "Alice"})
	require.NoError(t, err)

	card, err = f.characters.GetByKey(ctx, "alice.png")
	require.NoError(t, err)
	assert.NotNil(t, card.SharedPrompt)

	require.NoError(t, f.resolver.ShareCharacterPrompt(ctx, "chan", false))

	card, err = f.characters.GetByKey(ctx, "alice.png")
	require.NoError(t, err)
	assert.Nil(t, card.SharedPrompt)
}
