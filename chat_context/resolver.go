package chat_context

import (
	"context"
	"errors"
	"math/rand"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories"
	"stable_diffusion_chat/repositories/chat_sessions"
	"stable_diffusion_chat/repositories/characters"
	"stable_diffusion_chat/settings_manager"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultCharacterName is used for files and messages in a chat without a character.
const DefaultCharacterName = "Assistant"

var ErrNoCharacter = errors.New("no character selected in this chat")

// Resolver maps a channel to its active chat: the chat identity, the character or group, and their prompts.
type Resolver interface {
	Session(ctx context.Context, channelID string) (*entities.ChatSession, error)
	CurrentChatID(ctx context.Context, channelID string) (string, error)
	// Character returns nil when the chat is a group chat or has no character.
	Character(ctx context.Context, channelID string) (*entities.Character, error)
	CharacterName(ctx context.Context, channelID string) (string, error)
	CharacterPrompt(ctx context.Context, channelID string) (entities.CharacterPrompt, error)
	// AvatarURL returns the avatar used for reference conditioning, or "" when the chat has none.
	AvatarURL(ctx context.Context, channelID string) (string, error)

	SetCharacter(ctx context.Context, channelID string, character *entities.Character) (entities.CharacterPrompt, error)
	SetGroup(ctx context.Context, channelID, groupID string, members []string) error
	NewChat(ctx context.Context, channelID string) (*entities.ChatSession, error)
	ShareCharacterPrompt(ctx context.Context, channelID string, share bool) error
}

type Config struct {
	Sessions   chat_sessions.Repository
	Characters characters.Repository
	Settings   settings_manager.Manager
	// NewID generates chat identities. Defaults to random UUIDs.
	NewID func() string
	// PickMember returns an index in [0, n). Defaults to a random pick.
	PickMember func(n int) int
}

type resolverImpl struct {
	sessions   chat_sessions.Repository
	characters characters.Repository
	settings   settings_manager.Manager
	newID      func() string
	pickMember func(n int) int
}

func New(cfg Config) (Resolver, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("missing chat sessions repository")
	}

	if cfg.Characters == nil {
		return nil, errors.New("missing characters repository")
	}

	if cfg.Settings == nil {
		return nil, errors.New("missing settings manager")
	}

	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	pickMember := cfg.PickMember
	if pickMember == nil {
		pickMember = rand.Intn
	}

	return &resolverImpl{
		sessions:   cfg.Sessions,
		characters: cfg.Characters,
		settings:   cfg.Settings,
		newID:      newID,
		pickMember: pickMember,
	}, nil
}

func (r *resolverImpl) Session(ctx context.Context, channelID string) (*entities.ChatSession, error) {
	session, err := r.sessions.GetByChannelID(ctx, channelID)
	if err == nil {
		return session, nil
	}

	if !errors.Is(err, &repositories.NotFoundError{}) {
		return nil, err
	}

	return r.sessions.Upsert(ctx, &entities.ChatSession{
		ChannelID: channelID,
		ChatID:    r.newID(),
	})
}

func (r *resolverImpl) CurrentChatID(ctx context.Context, channelID string) (string, error) {
	session, err := r.Session(ctx, channelID)
	if err != nil {
		return "", err
	}

	return session.ChatID, nil
}

func (r *resolverImpl) Character(ctx context.Context, channelID string) (*entities.Character, error) {
	session, err := r.Session(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if session.IsGroup() || session.CharacterKey == "" {
		return nil, nil
	}

	character, err := r.characters.GetByKey(ctx, session.CharacterKey)
	if errors.Is(err, &repositories.NotFoundError{}) {
		log.Warn().Str("character", session.CharacterKey).Msg("Chat refers to an unknown character")

		return nil, nil
	}

	return character, err
}

func (r *resolverImpl) CharacterName(ctx context.Context, channelID string) (string, error) {
	session, err := r.Session(ctx, channelID)
	if err != nil {
		return "", err
	}

	if session.IsGroup() {
		return session.GroupID, nil
	}

	character, err := r.Character(ctx, channelID)
	if err != nil {
		return "", err
	}

	if character == nil || character.Name == "" {
		return DefaultCharacterName, nil
	}

	return character.Name, nil
}

// CharacterPrompt returns the local prompt prefixes of the chat's character. Group chats have none.
func (r *resolverImpl) CharacterPrompt(ctx context.Context, channelID string) (entities.CharacterPrompt, error) {
	character, err := r.Character(ctx, channelID)
	if err != nil || character == nil {
		return entities.CharacterPrompt{}, err
	}

	return r.settings.CharacterPrompt(character.Key), nil
}

func (r *resolverImpl) AvatarURL(ctx context.Context, channelID string) (string, error) {
	session, err := r.Session(ctx, channelID)
	if err != nil {
		return "", err
	}

	if !session.IsGroup() {
		character, charErr := r.Character(ctx, channelID)
		if charErr != nil || character == nil {
			return "", charErr
		}

		return character.AvatarURL, nil
	}

	if len(session.Members) == 0 {
		return "", nil
	}

	// Start at a random member and take the first one with a known avatar.
	start := r.pickMember(len(session.Members))
	for offset := 0; offset < len(session.Members); offset++ {
		key := session.Members[(start+offset)%len(session.Members)]

		character, charErr := r.characters.GetByKey(ctx, key)
		if errors.Is(charErr, &repositories.NotFoundError{}) {
			continue
		}

		if charErr != nil {
			return "", charErr
		}

		if character.AvatarURL != "" {
			return character.AvatarURL, nil
		}
	}

	log.Warn().Str("group", session.GroupID).Msg("No group member has an avatar")

	return "", nil
}

// SetCharacter stores the character card, starts a new chat with it and reconciles its shared prompt.
func (r *resolverImpl) SetCharacter(ctx context.Context, channelID string, character *entities.Character) (entities.CharacterPrompt, error) {
	if character == nil || character.Key == "" {
		return entities.CharacterPrompt{}, ErrNoCharacter
	}

	existing, err := r.characters.GetByKey(ctx, character.Key)
	switch {
	case err == nil:
		// The card in storage owns the shared prompt.
		if character.SharedPrompt == nil {
			character.SharedPrompt = existing.SharedPrompt
		}
	case !errors.Is(err, &repositories.NotFoundError{}):
		return entities.CharacterPrompt{}, err
	}

	_, err = r.characters.Upsert(ctx, character)
	if err != nil {
		return entities.CharacterPrompt{}, err
	}

	_, err = r.sessions.Upsert(ctx, &entities.ChatSession{
		ChannelID:    channelID,
		ChatID:       r.newID(),
		CharacterKey: character.Key,
	})
	if err != nil {
		return entities.CharacterPrompt{}, err
	}

	log.Info().Str("channel_id", channelID).Str("character", character.Key).Msg("Switched chat character")

	return r.settings.ReconcileCharacterPrompt(ctx, character.Key, character.SharedPrompt)
}

// SetGroup starts a new group chat. Members are character keys; their avatars serve reference conditioning.
func (r *resolverImpl) SetGroup(ctx context.Context, channelID, groupID string, members []string) error {
	if groupID == "" {
		return errors.New("missing group name")
	}

	_, err := r.sessions.Upsert(ctx, &entities.ChatSession{
		ChannelID: channelID,
		ChatID:    r.newID(),
		GroupID:   groupID,
		Members:   members,
	})

	return err
}

func (r *resolverImpl) NewChat(ctx context.Context, channelID string) (*entities.ChatSession, error) {
	session, err := r.Session(ctx, channelID)
	if err != nil {
		return nil, err
	}

	session.ChatID = r.newID()

	return r.sessions.Upsert(ctx, session)
}

// ShareCharacterPrompt writes the local prompts onto the character card, or removes the shared copy.
func (r *resolverImpl) ShareCharacterPrompt(ctx context.Context, channelID string, share bool) error {
	character, err := r.Character(ctx, channelID)
	if err != nil {
		return err
	}

	if character == nil {
		return ErrNoCharacter
	}

	if share {
		prompt := r.settings.CharacterPrompt(character.Key)
		character.SharedPrompt = &prompt
	} else {
		character.SharedPrompt = nil
	}

	_, err = r.characters.Upsert(ctx, character)

	return err
}
