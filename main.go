package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stable_diffusion_chat/avatar_fetcher"
	"stable_diffusion_chat/backend_options"
	"stable_diffusion_chat/chat_context"
	"stable_diffusion_chat/config"
	"stable_diffusion_chat/databases/sqlite"
	"stable_diffusion_chat/discord_bot"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/image_storage"
	"stable_diffusion_chat/logger"
	"stable_diffusion_chat/repositories/characters"
	"stable_diffusion_chat/repositories/chat_sessions"
	"stable_diffusion_chat/repositories/extension_settings"
	"stable_diffusion_chat/repositories/image_generations"
	"stable_diffusion_chat/repositories/message_images"
	"stable_diffusion_chat/request_builder"
	"stable_diffusion_chat/settings_manager"
	"stable_diffusion_chat/stable_diffusion_api"
	"stable_diffusion_chat/swipe_manager"
	"stable_diffusion_chat/text_generator"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Bot parameters. Flags override the config file and the environment.
var (
	configPath         = flag.String("config", config.DefaultPath, "Path of the YAML config file")
	guildID            = flag.String("guild", "", "Guild ID. If not passed - bot registers commands globally")
	botToken           = flag.String("token", "", "Bot access token")
	apiHost            = flag.String("host", "", "Host for the Automatic1111 API")
	commandName        = flag.String("command", "", "Command name. Default is \"sd\"")
	removeCommandsFlag = flag.Bool("remove", false, "Delete all commands when bot exits")
	devModeFlag        = flag.Bool("dev", false, "Start in development mode, using \"dev_\" prefixed commands instead")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	applyFlags(cfg)

	_, err = logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create logger")
	}

	if cfg.Discord.Token == "" {
		log.Fatal().Msg("Bot token is required")
	}

	if cfg.Discord.DevMode {
		log.Info().Msg("Starting in development mode.. all commands prefixed with \"dev_\"")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqliteDB, err := sqlite.New(ctx, sqlite.Config{Filename: cfg.Database.Path})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sqlite database")
	}
	defer sqliteDB.Close()

	settingsRepo, err := extension_settings.NewRepository(&extension_settings.Config{DB: sqliteDB})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extension settings repository")
	}

	characterRepo, err := characters.NewRepository(&characters.Config{DB: sqliteDB})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create character repository")
	}

	sessionRepo, err := chat_sessions.NewRepository(&chat_sessions.Config{DB: sqliteDB})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat session repository")
	}

	messageImagesRepo, err := message_images.NewRepository(&message_images.Config{DB: sqliteDB})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create message images repository")
	}

	generationRepo, err := image_generations.NewRepository(&image_generations.Config{DB: sqliteDB})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image generation repository")
	}

	settings, err := settings_manager.New(settings_manager.Config{Repo: settingsRepo})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create settings manager")
	}

	err = settings.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	err = applyBackendConfig(ctx, settings, cfg.Backend)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to apply backend config")
	}

	stableDiffusionAPI, err := stable_diffusion_api.New(stable_diffusion_api.Config{Timeout: cfg.HTTP.Timeout})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Stable Diffusion API")
	}

	avatarFetcher, err := avatar_fetcher.New(avatar_fetcher.Config{Timeout: 30 * time.Second})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create avatar fetcher")
	}

	imageStore, err := image_storage.New(image_storage.Config{Dir: cfg.Storage.ImagesDir})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image store")
	}

	textGenerator, err := text_generator.New(text_generator.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create text generator")
	}

	optionLoader, err := backend_options.New(backend_options.Config{
		API:      stableDiffusionAPI,
		Settings: settings,
		TTL:      cfg.Limits.OptionCacheTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create option loader")
	}

	chats, err := chat_context.New(chat_context.Config{
		Sessions:   sessionRepo,
		Characters: characterRepo,
		Settings:   settings,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat context resolver")
	}

	session, err := discord_bot.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}

	messenger, err := discord_bot.NewMessenger(discord_bot.MessengerConfig{
		Session:         session,
		Images:          imageStore,
		HistoryMessages: cfg.LLM.HistoryMessages,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create messenger")
	}

	generator, err := image_generator.New(image_generator.Config{
		Settings:      settings,
		API:           stableDiffusionAPI,
		Builder:       request_builder.New(request_builder.Config{AvatarFetcher: avatarFetcher}),
		TextGenerator: textGenerator,
		Chats:         chats,
		Images:        imageStore,
		MessageImages: messageImagesRepo,
		Sender:        messenger,
		Notifier:      messenger,
		Options:       optionLoader,
		Generations:   generationRepo,
		History:       messenger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image generator")
	}

	swipes, err := swipe_manager.New(swipe_manager.Config{
		MessageImages: messageImagesRepo,
		Generator:     generator,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create swipe manager")
	}

	bot, err := discord_bot.New(discord_bot.Config{
		Session:              session,
		GuildID:              cfg.Discord.GuildID,
		CommandName:          cfg.Discord.Command,
		DevelopmentMode:      cfg.Discord.DevMode,
		RemoveCommands:       cfg.Discord.RemoveCommands,
		Messenger:            messenger,
		Generator:            generator,
		Swipes:               swipes,
		Settings:             settings,
		Options:              optionLoader,
		Chats:                chats,
		API:                  stableDiffusionAPI,
		GenerationsPerMinute: cfg.Limits.GenerationsPerMinute,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating Discord bot")
	}

	go func() {
		options, loadErr := optionLoader.LoadAll(ctx)
		if loadErr != nil {
			log.Warn().Err(loadErr).Msg("Could not load backend options")

			return
		}

		log.Info().
			Int("samplers", len(options.Samplers)).
			Int("models", len(options.Models)).
			Msg("Loaded backend options")
	}()

	if cfg.Metrics.Address != "" {
		go serveMetrics(cfg.Metrics.Address)
	}

	bot.Start(ctx)

	log.Info().Msg("Gracefully shutting down.")
}

func applyFlags(cfg *config.Config) {
	if *guildID != "" {
		cfg.Discord.GuildID = *guildID
	}

	if *botToken != "" {
		cfg.Discord.Token = *botToken
	}

	if *apiHost != "" {
		cfg.Backend.URL = *apiHost
	}

	if *commandName != "" {
		cfg.Discord.Command = *commandName
	}

	if *removeCommandsFlag {
		cfg.Discord.RemoveCommands = true
	}

	if *devModeFlag {
		cfg.Discord.DevMode = true
	}
}

func applyBackendConfig(ctx context.Context, settings settings_manager.Manager, backend config.BackendConfig) error {
	if backend.URL != "" {
		err := settings.SetText(ctx, settings_manager.TextURL, backend.URL)
		if err != nil {
			return err
		}
	}

	if backend.Auth != "" {
		return settings.SetText(ctx, settings_manager.TextAuth, backend.Auth)
	}

	return nil
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("address", address).Msg("Serving metrics")

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}
