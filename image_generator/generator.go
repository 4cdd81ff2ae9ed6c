package image_generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"stable_diffusion_chat/backend_options"
	"stable_diffusion_chat/chat_context"
	"stable_diffusion_chat/clock"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/image_storage"
	"stable_diffusion_chat/metrics"
	"stable_diffusion_chat/prompt_composer"
	"stable_diffusion_chat/repositories/image_generations"
	"stable_diffusion_chat/repositories/message_images"
	"stable_diffusion_chat/request_builder"
	"stable_diffusion_chat/settings_manager"
	"stable_diffusion_chat/stable_diffusion_api"
	"stable_diffusion_chat/text_generator"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTriggerPrompt = "Ignore previous instructions. Describe the last scene of the chat as a comma-separated list " +
		"of short visual keywords for an image generator. Only output the keywords."

	defaultProgressInterval = time.Second
	maxSeed                 = 4294967295
)

type Config struct {
	Settings      settings_manager.Manager
	API           stable_diffusion_api.StableDiffusionAPI
	Builder       request_builder.Builder
	TextGenerator text_generator.TextGenerator
	Chats         chat_context.Resolver
	Images        image_storage.ImageStore
	MessageImages message_images.Repository
	Sender        MessageSender
	Notifier      Notifier

	// Optional collaborators.
	Options          backend_options.Loader
	Generations      image_generations.Repository
	History          HistoryProvider
	Clock            clock.Clock
	ProgressInterval time.Duration
	RandomSeed       func() int64
}

type generatorImpl struct {
	settings      settings_manager.Manager
	api           stable_diffusion_api.StableDiffusionAPI
	builder       request_builder.Builder
	textGenerator text_generator.TextGenerator
	chats         chat_context.Resolver
	images        image_storage.ImageStore
	messageImages message_images.Repository
	sender        MessageSender
	notifier      Notifier
	options       backend_options.Loader
	generations   image_generations.Repository
	history       HistoryProvider
	clock         clock.Clock

	progressInterval time.Duration
	randomSeed       func() int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	state   State
}

func New(cfg Config) (Generator, error) {
	if cfg.Settings == nil {
		return nil, errors.New("missing settings manager")
	}

	if cfg.API == nil {
		return nil, errors.New("missing stable diffusion API")
	}

	if cfg.Builder == nil {
		return nil, errors.New("missing request builder")
	}

	if cfg.TextGenerator == nil {
		return nil, errors.New("missing text generator")
	}

	if cfg.Chats == nil {
		return nil, errors.New("missing chat context resolver")
	}

	if cfg.Images == nil {
		return nil, errors.New("missing image store")
	}

	if cfg.MessageImages == nil {
		return nil, errors.New("missing message images repository")
	}

	if cfg.Sender == nil {
		return nil, errors.New("missing message sender")
	}

	if cfg.Notifier == nil {
		return nil, errors.New("missing notifier")
	}

	genClock := cfg.Clock
	if genClock == nil {
		genClock = clock.NewClock()
	}

	progressInterval := cfg.ProgressInterval
	if progressInterval <= 0 {
		progressInterval = defaultProgressInterval
	}

	randomSeed := cfg.RandomSeed
	if randomSeed == nil {
		randomSeed = func() int64 { return rand.Int63n(maxSeed) }
	}

	return &generatorImpl{
		settings:         cfg.Settings,
		api:              cfg.API,
		builder:          cfg.Builder,
		textGenerator:    cfg.TextGenerator,
		chats:            cfg.Chats,
		images:           cfg.Images,
		messageImages:    cfg.MessageImages,
		sender:           cfg.Sender,
		notifier:         cfg.Notifier,
		options:          cfg.Options,
		generations:      cfg.Generations,
		history:          cfg.History,
		clock:            genClock,
		progressInterval: progressInterval,
		randomSeed:       randomSeed,
		state:            StateIdle,
	}, nil
}

func (g *generatorImpl) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

func (g *generatorImpl) setState(state State) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = state
}

func (g *generatorImpl) Stop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel == nil {
		return false
	}

	log.Info().Msg("Stopping image generation")

	g.cancel()

	return true
}

// acquire claims the single in-flight slot and installs the run's cancel func.
func (g *generatorImpl) acquire(ctx context.Context) (context.Context, func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return nil, nil, ErrGenerationInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)

	g.running = true
	g.cancel = cancel
	g.state = StateComposingPrompt

	release := func() {
		cancel()

		g.mu.Lock()
		defer g.mu.Unlock()

		g.running = false
		g.cancel = nil
	}

	return runCtx, release, nil
}

func (g *generatorImpl) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.settings.Settings().URL == "" {
		g.notifier.Notify(ctx, req.ChannelID, SeverityWarning, "Set the Stable Diffusion URL first.")

		return nil, ErrConfigurationMissing
	}

	runCtx, release, err := g.acquire(ctx)
	if err != nil {
		g.notifier.Notify(ctx, req.ChannelID, SeverityWarning, "An image is already being generated. Stop it or wait for it to finish.")

		return nil, err
	}
	defer release()

	g.ensureSelections(runCtx)

	started := g.clock.Now()
	result := &Result{}

	defer func() {
		g.setState(result.Status)

		metrics.RecordGeneration(string(req.Initiator), string(result.Status), started)

		log.Info().
			Str("channel_id", req.ChannelID).
			Str("initiator", string(req.Initiator)).
			Str("state", string(result.Status)).
			AnErr("reason", result.Err).
			Msg("Image generation finished")
	}()

	prompt, err := g.composePrompt(runCtx, req)
	if err != nil {
		if runCtx.Err() != nil {
			result.Status = StateAborted
			result.Err = ErrAborted

			return result, nil
		}

		result.Status = StateFailed
		result.Err = err

		g.notifier.Notify(ctx, req.ChannelID, SeverityError,
			"Prompt generation produced no text. Make sure the language model is reachable and try again.")

		return result, err
	}

	if req.RandomizeSeed && g.settings.Settings().Seed >= 0 {
		restore := g.settings.OverrideSeed(g.randomSeed())
		defer restore()
	}

	// Settings are read after the seed override so the request sees the temporary seed.
	settings := g.settings.Settings()

	g.setState(StateAwaitingBackend)

	image, err := g.sendGenerationRequest(ctx, runCtx, req, prompt, settings)
	switch {
	case errors.Is(err, ErrAborted):
		result.Status = StateAborted
		result.Err = err
	case err != nil:
		result.Status = StateFailed
		result.Err = err
	default:
		result.Status = StateResolved
		result.Image = image
	}

	return result, nil
}

func (g *generatorImpl) composePrompt(ctx context.Context, req Request) (string, error) {
	raw := req.Prompt

	if raw == "" {
		trigger := req.TriggerPrompt
		if trigger == "" {
			trigger = g.settings.Settings().TriggerPrompt
		}

		if trigger == "" {
			trigger = DefaultTriggerPrompt
		}

		var history []text_generator.HistoryMessage

		if g.history != nil {
			var err error

			history, err = g.history.RecentHistory(ctx, req.ChannelID)
			if err != nil {
				log.Warn().Err(err).Str("channel_id", req.ChannelID).Msg("Could not load chat history")
			}
		}

		reply, err := g.textGenerator.GenerateQuiet(ctx, trigger, history)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPromptGenerationFailed, err)
		}

		raw = reply
	}

	prompt := prompt_composer.Sanitize(raw)
	if prompt == "" {
		return "", ErrPromptGenerationFailed
	}

	return prompt, nil
}

// sendGenerationRequest covers the awaiting-backend stage. Only runCtx is cancelled by Stop; the steps
// after the backend answered use ctx so a late stop does not lose a finished image.
func (g *generatorImpl) sendGenerationRequest(
	ctx, runCtx context.Context,
	req Request,
	prompt string,
	settings *entities.GenerationSettings,
) (*GeneratedImage, error) {
	if req.Stop != nil {
		req.Stop.Show(ctx)
		defer req.Stop.Hide(ctx)
	}

	characterName := req.CharacterName
	if characterName == "" {
		name, err := g.chats.CharacterName(ctx, req.ChannelID)
		if err != nil {
			return nil, g.fail(ctx, req.ChannelID, err)
		}

		characterName = name
	}

	characterPrompt, err := g.chats.CharacterPrompt(ctx, req.ChannelID)
	if err != nil {
		return nil, g.fail(ctx, req.ChannelID, err)
	}

	macros := map[string]string{
		"char":   characterName,
		"prompt": prompt,
	}

	prefix := prompt_composer.CombinePrefixes(settings.PromptPrefix, characterPrompt.Positive, "")
	negativePrefix := prompt_composer.CombinePrefixes(settings.NegativePrompt, characterPrompt.Negative, "")

	prefixedPrompt := prompt_composer.SubstituteParams(
		prompt_composer.CombinePrefixes(prefix, prompt, prompt_composer.PromptMacro), macros)
	negativePrompt := prompt_composer.SubstituteParams(
		prompt_composer.CombinePrefixes(req.AdditionalNegative, negativePrefix, ""), macros)

	currentChatID, err := g.chats.CurrentChatID(ctx, req.ChannelID)
	if err != nil {
		return nil, g.fail(ctx, req.ChannelID, err)
	}

	avatarURL := ""
	if settings.ReferenceEnabled {
		avatarURL, err = g.chats.AvatarURL(ctx, req.ChannelID)
		if err != nil {
			return nil, g.fail(ctx, req.ChannelID, err)
		}
	}

	payload, err := g.builder.Build(runCtx, prefixedPrompt, negativePrompt, settings, avatarURL)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, ErrAborted
		}

		return nil, g.fail(ctx, req.ChannelID, err)
	}

	endpoint := stable_diffusion_api.Endpoint{URL: settings.URL, Auth: settings.Auth}

	stopProgress := g.pollProgress(runCtx, endpoint, req.OnProgress)
	resp, err := g.api.TextToImage(runCtx, endpoint, payload)
	stopProgress()

	if err != nil {
		if runCtx.Err() != nil {
			log.Info().Str("channel_id", req.ChannelID).Msg("Image generation aborted")

			return nil, ErrAborted
		}

		return nil, g.fail(ctx, req.ChannelID, fmt.Errorf("%w: %w", ErrBackendRequestFailed, err))
	}

	if len(resp.Images) == 0 || resp.Images[0] == "" {
		return nil, g.fail(ctx, req.ChannelID, ErrEmptyImageData)
	}

	chatID, err := g.chats.CurrentChatID(ctx, req.ChannelID)
	if err != nil {
		return nil, g.fail(ctx, req.ChannelID, err)
	}

	if chatID != currentChatID {
		log.Warn().Str("channel_id", req.ChannelID).Msg("Chat changed, discarding generated image")
		g.notifier.Notify(ctx, req.ChannelID, SeverityWarning, "Chat changed, generated image discarded.")

		return nil, ErrContextChanged
	}

	filename := fmt.Sprintf("%s_%s", characterName, clock.HumanizedDateTime(g.clock.Now()))

	imageRef, err := g.images.SaveBase64(ctx, resp.Images[0], characterName, filename)
	if err != nil {
		return nil, g.fail(ctx, req.ChannelID, err)
	}

	g.recordGeneration(ctx, req, characterName, prompt, prefixedPrompt, negativePrompt, imageRef, settings)

	image := &GeneratedImage{
		ChannelID:          req.ChannelID,
		CharacterName:      characterName,
		Initiator:          req.Initiator,
		GenerationType:     req.GenerationType,
		Prompt:             prompt,
		PrefixedPrompt:     prefixedPrompt,
		AdditionalNegative: req.AdditionalNegative,
		Image:              imageRef,
	}

	if req.OnImage != nil {
		err = req.OnImage(ctx, image)
	} else {
		err = g.sendMessage(ctx, image, settings)
	}

	if err != nil {
		return nil, g.fail(ctx, req.ChannelID, err)
	}

	return image, nil
}

// ensureSelections replaces a sampler or model the backend no longer offers with the first one it does.
func (g *generatorImpl) ensureSelections(ctx context.Context) {
	if g.options == nil {
		return
	}

	options, err := g.options.LoadAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load backend options before generating")

		return
	}

	settings := g.settings.Settings()
	g.ensureSelection(ctx, settings_manager.SelectionSampler, settings.Sampler, options.Samplers)
	g.ensureSelection(ctx, settings_manager.SelectionModel, settings.Model, options.ModelValues())
}

func (g *generatorImpl) ensureSelection(ctx context.Context, field settings_manager.Selection, current string, available []string) {
	if len(available) == 0 || available[0] == entities.NotApplicable || slices.Contains(available, current) {
		return
	}

	log.Warn().
		Str("field", string(field)).
		Str("selected", current).
		Str("replacement", available[0]).
		Msg("Selected option is not offered by the backend")

	err := g.settings.SetSelection(ctx, field, available[0])
	if err != nil {
		log.Error().Err(err).Str("field", string(field)).Msg("Could not replace stale selection")
	}
}

func (g *generatorImpl) fail(ctx context.Context, channelID string, err error) error {
	log.Error().Err(err).Str("channel_id", channelID).Msg("Image generation request error")

	g.notifier.Notify(ctx, channelID, SeverityError, "Image generation failed. Please try again.\n\n"+err.Error())

	return err
}

// pollProgress reports backend progress until the returned func is called.
func (g *generatorImpl) pollProgress(ctx context.Context, endpoint stable_diffusion_api.Endpoint, onProgress func(float64)) func() {
	if onProgress == nil {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		ticker := time.NewTicker(g.progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				progress, err := g.api.Progress(ctx, endpoint)
				if err != nil {
					log.Debug().Err(err).Msg("Error getting current progress")

					continue
				}

				if progress.Progress == 0 {
					continue
				}

				onProgress(progress.Progress)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func (g *generatorImpl) recordGeneration(
	ctx context.Context,
	req Request,
	characterName, prompt, prefixedPrompt, negativePrompt, imageRef string,
	settings *entities.GenerationSettings,
) {
	if g.generations == nil {
		return
	}

	chatID, _ := g.chats.CurrentChatID(ctx, req.ChannelID)

	_, err := g.generations.Create(ctx, &entities.ImageGeneration{
		ChannelID:         req.ChannelID,
		ChatID:            chatID,
		CharacterName:     characterName,
		Initiator:         req.Initiator,
		Prompt:            prompt,
		PrefixedPrompt:    prefixedPrompt,
		NegativePrompt:    negativePrompt,
		Width:             settings.Width,
		Height:            settings.Height,
		RestoreFaces:      settings.RestoreFaces,
		EnableHR:          settings.EnableHR,
		DenoisingStrength: settings.DenoisingStrength,
		Seed:              settings.Seed,
		SamplerName:       settings.Sampler,
		Scheduler:         settings.Scheduler,
		CfgScale:          settings.Scale,
		Steps:             settings.Steps,
		ImagePath:         imageRef,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error creating image generation record")
	}
}

// sendMessage posts the image as a new chat message and starts its swipe list.
func (g *generatorImpl) sendMessage(ctx context.Context, image *GeneratedImage, settings *entities.GenerationSettings) error {
	template := settings.MessageTemplate
	if template == "" {
		template = entities.DefaultMessageTemplate
	}

	content := prompt_composer.SubstituteParams(template, map[string]string{
		"char":           image.CharacterName,
		"prompt":         image.Prompt,
		"prefixedPrompt": image.PrefixedPrompt,
	})

	messageID, err := g.sender.SendImageMessage(ctx, image.ChannelID, content, image)
	if err != nil {
		return err
	}

	_, err = g.messageImages.Create(ctx, &entities.MessageImages{
		MessageID:      messageID,
		ChannelID:      image.ChannelID,
		Title:          image.Prompt,
		Negative:       image.AdditionalNegative,
		GenerationType: image.GenerationType,
		Initiator:      image.Initiator,
		Image:          image.Image,
		Swipes:         []string{image.Image},
	})
	if err != nil {
		// The message is already posted; only swiping on it is lost.
		log.Error().Err(err).Str("message_id", messageID).Msg("Could not store swipe list for image message")
	}

	return nil
}
