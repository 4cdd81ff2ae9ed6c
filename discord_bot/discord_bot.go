package discord_bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"stable_diffusion_chat/backend_options"
	"stable_diffusion_chat/chat_context"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/image_storage"
	"stable_diffusion_chat/settings_manager"
	"stable_diffusion_chat/stable_diffusion_api"
	"stable_diffusion_chat/swipe_manager"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const DefaultCommandName = "sd"

type botImpl struct {
	botSession         *discordgo.Session
	guildID            string
	commandName        string
	removeCommands     bool
	registeredCommands []*discordgo.ApplicationCommand

	messenger *Messenger
	generator image_generator.Generator
	swipes    swipe_manager.Manager
	settings  settings_manager.Manager
	options   backend_options.Loader
	chats     chat_context.Resolver
	api       stable_diffusion_api.StableDiffusionAPI

	generationsPerMinute int
	limitersMu           sync.Mutex
	limiters             map[string]*rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
}

type Config struct {
	Session         *discordgo.Session
	GuildID         string
	CommandName     string
	DevelopmentMode bool
	RemoveCommands  bool

	Messenger *Messenger
	Generator image_generator.Generator
	Swipes    swipe_manager.Manager
	Settings  settings_manager.Manager
	Options   backend_options.Loader
	Chats     chat_context.Resolver
	API       stable_diffusion_api.StableDiffusionAPI

	// GenerationsPerMinute limits generations per channel; zero disables the limit.
	GenerationsPerMinute int
}

// NewSession creates the Discord session the messenger and the bot share.
func NewSession(botToken string) (*discordgo.Session, error) {
	if botToken == "" {
		return nil, errors.New("missing bot token")
	}

	return discordgo.New("Bot " + botToken)
}

type MessengerConfig struct {
	Session *discordgo.Session
	Images  image_storage.ImageStore
	// HistoryMessages is how many channel messages are passed to the language model.
	HistoryMessages int
}

func NewMessenger(cfg MessengerConfig) (*Messenger, error) {
	if cfg.Session == nil {
		return nil, errors.New("missing discord session")
	}

	if cfg.Images == nil {
		return nil, errors.New("missing image store")
	}

	botUserID := func() string {
		if cfg.Session.State == nil || cfg.Session.State.User == nil {
			return ""
		}

		return cfg.Session.State.User.ID
	}

	return newMessenger(&sessionClient{session: cfg.Session}, cfg.Images, botUserID, cfg.HistoryMessages), nil
}

func New(cfg Config) (Bot, error) {
	if cfg.Session == nil {
		return nil, errors.New("missing discord session")
	}

	if cfg.Messenger == nil {
		return nil, errors.New("missing messenger")
	}

	if cfg.Generator == nil {
		return nil, errors.New("missing image generator")
	}

	if cfg.Swipes == nil {
		return nil, errors.New("missing swipe manager")
	}

	if cfg.Settings == nil {
		return nil, errors.New("missing settings manager")
	}

	if cfg.Options == nil {
		return nil, errors.New("missing option loader")
	}

	if cfg.Chats == nil {
		return nil, errors.New("missing chat context resolver")
	}

	if cfg.API == nil {
		return nil, errors.New("missing stable diffusion API")
	}

	commandName := cfg.CommandName
	if commandName == "" {
		commandName = DefaultCommandName
	}

	if cfg.DevelopmentMode {
		commandName = "dev_" + commandName
	}

	ctx, cancel := context.WithCancel(context.Background())

	bot := &botImpl{
		botSession:           cfg.Session,
		guildID:              cfg.GuildID,
		commandName:          commandName,
		removeCommands:       cfg.RemoveCommands,
		registeredCommands:   make([]*discordgo.ApplicationCommand, 0),
		messenger:            cfg.Messenger,
		generator:            cfg.Generator,
		swipes:               cfg.Swipes,
		settings:             cfg.Settings,
		options:              cfg.Options,
		chats:                cfg.Chats,
		api:                  cfg.API,
		generationsPerMinute: cfg.GenerationsPerMinute,
		limiters:             make(map[string]*rate.Limiter),
		ctx:                  ctx,
		cancel:               cancel,
	}

	cfg.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().Msgf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})

	err := cfg.Session.Open()
	if err != nil {
		cancel()

		return nil, err
	}

	err = bot.addCommand()
	if err != nil {
		cancel()

		return nil, err
	}

	cfg.Session.AddHandler(bot.handleInteraction)

	return bot, nil
}

func (b *botImpl) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name != b.commandName {
			log.Warn().Msgf("Unknown command '%v'", i.ApplicationCommandData().Name)

			return
		}

		b.processCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.processAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		switch i.MessageComponentData().CustomID {
		case swipeLeftID:
			b.processSwipe(s, i, swipe_manager.DirectionLeft)
		case swipeRightID:
			b.processSwipe(s, i, swipe_manager.DirectionRight)
		case stopID:
			b.processStop(s, i)
		default:
			log.Warn().Msgf("Unknown message component '%v'", i.MessageComponentData().CustomID)
		}
	}
}

func (b *botImpl) Start(ctx context.Context) {
	log.Info().Msg("Press Ctrl+C to exit")

	<-ctx.Done()

	b.cancel()
	b.generator.Stop()

	err := b.teardown()
	if err != nil {
		log.Error().Err(err).Msg("Error tearing down bot")
	}
}

func (b *botImpl) teardown() error {
	if b.removeCommands {
		for _, cmd := range b.registeredCommands {
			err := b.botSession.ApplicationCommandDelete(b.botSession.State.User.ID, b.guildID, cmd.ID)
			if err != nil {
				log.Error().Err(err).Str("command", cmd.Name).Msg("Error deleting command")
			}
		}
	}

	return b.botSession.Close()
}

func (b *botImpl) addCommand() error {
	log.Info().Msgf("Adding command '%s'...", b.commandName)

	cmd, err := b.botSession.ApplicationCommandCreate(b.botSession.State.User.ID, b.guildID, commandDefinition(b.commandName))
	if err != nil {
		log.Error().Err(err).Str("command", b.commandName).Msg("Error creating command")

		return err
	}

	b.registeredCommands = append(b.registeredCommands, cmd)

	return nil
}

// allow applies the per-channel generation limit.
func (b *botImpl) allow(channelID string) bool {
	if b.generationsPerMinute <= 0 {
		return true
	}

	b.limitersMu.Lock()
	defer b.limitersMu.Unlock()

	limiter, ok := b.limiters[channelID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(b.generationsPerMinute)), b.generationsPerMinute)
		b.limiters[channelID] = limiter
	}

	return limiter.Allow()
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Error responding to interaction")
	}
}

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, responseType discordgo.InteractionResponseType) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{Type: responseType})
	if err != nil {
		log.Error().Err(err).Msg("Error acknowledging interaction")

		return false
	}

	return true
}

func (b *botImpl) processSwipe(s *discordgo.Session, i *discordgo.InteractionCreate, direction swipe_manager.Direction) {
	if direction == swipe_manager.DirectionRight && !b.allow(i.ChannelID) {
		respond(s, i, "Too many images requested in this channel, try again in a minute.")

		return
	}

	if !deferResponse(s, i, discordgo.InteractionResponseDeferredMessageUpdate) {
		return
	}

	display := &messageDisplay{
		messenger: b.messenger,
		channelID: i.ChannelID,
		messageID: i.Message.ID,
	}

	outcome, err := b.swipes.Swipe(b.ctx, i.Message.ID, direction, display)
	if err != nil {
		log.Error().Err(err).Str("message_id", i.Message.ID).Msg("Error swiping image")

		return
	}

	log.Debug().Str("message_id", i.Message.ID).Str("outcome", string(outcome)).Msg("Swipe handled")
}

func (b *botImpl) processStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.generator.Stop() {
		respond(s, i, "Stopping image generation...")

		return
	}

	respond(s, i, "Nothing is being generated right now.")
}
