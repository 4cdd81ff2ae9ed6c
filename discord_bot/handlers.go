package discord_bot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"stable_diffusion_chat/backend_options"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/settings_manager"
	"stable_diffusion_chat/stable_diffusion_api"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const maxAutocompleteChoices = 25

type commandOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) commandOptions {
	optionMap := make(commandOptions, len(options))
	for _, opt := range options {
		optionMap[opt.Name] = opt
	}

	return optionMap
}

func (o commandOptions) stringValue(name string) string {
	if option, ok := o[name]; ok && option.Type == discordgo.ApplicationCommandOptionString {
		return option.StringValue()
	}

	return ""
}

func (o commandOptions) has(name string) bool {
	_, ok := o[name]

	return ok
}

func (b *botImpl) processCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case subGenerate:
		b.processGenerate(s, i, opts)
	case subStop:
		b.processStop(s, i)
	default:
		b.runSettingsCommand(s, i, func(ctx context.Context) (string, error) {
			return b.settingsCommand(ctx, i, sub.Name, opts)
		})
	}
}

// runSettingsCommand acknowledges the command privately and replaces the placeholder with the outcome.
func (b *botImpl) runSettingsCommand(s *discordgo.Session, i *discordgo.InteractionCreate, run func(ctx context.Context) (string, error)) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error().Err(err).Msg("Error acknowledging command")

		return
	}

	content, err := run(b.ctx)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", i.ChannelID).Msg("Command failed")

		content = "Error: " + err.Error()
	}

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
	if err != nil {
		log.Error().Err(err).Msg("Error editing interaction")
	}
}

func (b *botImpl) processGenerate(s *discordgo.Session, i *discordgo.InteractionCreate, opts commandOptions) {
	if !b.allow(i.ChannelID) {
		respond(s, i, "Too many images requested in this channel, try again in a minute.")

		return
	}

	if !deferResponse(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource) {
		return
	}

	status := &interactionStatus{client: b.messenger.client, interaction: i.Interaction}

	req := image_generator.Request{
		ChannelID:     i.ChannelID,
		Initiator:     entities.InitiatorWand,
		Prompt:        opts.stringValue("prompt"),
		TriggerPrompt: opts.stringValue("trigger"),
		Stop:          status,
		OnProgress:    status.Progress,
	}

	if req.Prompt != "" {
		req.Initiator = entities.InitiatorCommand
	}

	result, err := b.generator.Generate(b.ctx, req)
	if err != nil {
		status.edit("Image generation did not start: "+err.Error(), []discordgo.MessageComponent{})

		return
	}

	log.Info().Str("channel_id", i.ChannelID).Str("state", string(result.Status)).Msg("Generate command finished")
}

func (b *botImpl) settingsCommand(ctx context.Context, i *discordgo.InteractionCreate, name string, opts commandOptions) (string, error) {
	switch name {
	case subNewChat:
		_, err := b.chats.NewChat(ctx, i.ChannelID)
		if err != nil {
			return "", err
		}

		return "Started a new chat.", nil
	case subCharacter:
		return b.setCharacter(ctx, i.ChannelID, opts)
	case subGroup:
		err := b.chats.SetGroup(ctx, i.ChannelID, opts.stringValue("id"), groupMembers(opts.stringValue("members")))
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("This channel is now the group chat %q.", opts.stringValue("id")), nil
	case subShare:
		enabled := opts["enabled"].BoolValue()

		err := b.chats.ShareCharacterPrompt(ctx, i.ChannelID, enabled)
		if err != nil {
			return "", err
		}

		if enabled {
			return "Character prompt is now shared with the character card.", nil
		}

		return "Character prompt is no longer shared.", nil
	case subCharPrompt:
		return b.setCharacterPrompt(ctx, i.ChannelID, opts)
	case subSet:
		field := opts.stringValue("field")
		value := opts["value"].FloatValue()

		err := b.settings.SetNumber(ctx, field, value)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s set to %g.", field, value), nil
	case subFlag:
		flag := settings_manager.Flag(opts.stringValue("name"))
		enabled := opts["enabled"].BoolValue()

		err := b.settings.SetFlag(ctx, flag, enabled)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s set to %t.", flag, enabled), nil
	case subSeed:
		seed := opts["value"].IntValue()

		err := b.settings.SetSeed(ctx, seed)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("Seed set to %d.", seed), nil
	case subSelect:
		return b.setSelection(ctx, settings_manager.Selection(opts.stringValue("field")), opts.stringValue("value"))
	case subResolution:
		err := b.settings.SetResolution(ctx, opts.stringValue("preset"))
		if err != nil {
			return "", err
		}

		settings := b.settings.Settings()

		return fmt.Sprintf("Resolution set to %dx%d.", settings.Width, settings.Height), nil
	case subSwap:
		err := b.settings.SwapDimensions(ctx)
		if err != nil {
			return "", err
		}

		settings := b.settings.Settings()

		return fmt.Sprintf("Resolution is now %dx%d.", settings.Width, settings.Height), nil
	case subText:
		return b.setText(ctx, settings_manager.TextField(opts.stringValue("field")), opts.stringValue("value"))
	case subStyle:
		return b.applyStyle(ctx, opts.stringValue("action"), opts.stringValue("name"))
	case subPing:
		settings := b.settings.Settings()

		err := b.api.Ping(ctx, stable_diffusion_api.Endpoint{URL: settings.URL, Auth: settings.Auth})
		if err != nil {
			return "", fmt.Errorf("could not connect to %s: %w", settings.URL, err)
		}

		return "Connected to " + settings.URL + ".", nil
	case subRefresh:
		options, err := b.options.Refresh(ctx)
		if err != nil {
			return "", err
		}

		return formatOptions(options), nil
	case subShow:
		return formatSettings(b.settings.Settings()), nil
	default:
		return "", fmt.Errorf("unknown subcommand %q", name)
	}
}

func (b *botImpl) setCharacter(ctx context.Context, channelID string, opts commandOptions) (string, error) {
	character := &entities.Character{
		Key:       characterKey(opts.stringValue("key"), opts.stringValue("name"), opts.stringValue("avatar")),
		Name:      opts.stringValue("name"),
		AvatarURL: opts.stringValue("avatar"),
	}

	prompt, err := b.chats.SetCharacter(ctx, channelID, character)
	if err != nil {
		return "", err
	}

	content := fmt.Sprintf("Now chatting with %s.", character.Name)
	if prompt.Positive != "" || prompt.Negative != "" {
		content += fmt.Sprintf("\nCharacter prompt: %q, negative: %q", prompt.Positive, prompt.Negative)
	}

	return content, nil
}

func groupMembers(list string) []string {
	var members []string
	for _, member := range strings.Split(list, ",") {
		member = strings.TrimSpace(member)
		if member != "" && !slices.Contains(members, member) {
			members = append(members, member)
		}
	}

	return members
}

// characterKey keeps keys stable across renames: an explicit key wins, then the avatar file name.
func characterKey(key, name, avatarURL string) string {
	if key != "" {
		return key
	}

	if avatarURL != "" {
		base := path.Base(strings.SplitN(avatarURL, "?", 2)[0])
		if base != "." && base != "/" && base != "" {
			return base
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

func (b *botImpl) setCharacterPrompt(ctx context.Context, channelID string, opts commandOptions) (string, error) {
	character, err := b.chats.Character(ctx, channelID)
	if err != nil {
		return "", err
	}

	if character == nil {
		return "", errors.New("this channel has no character, use the character command first")
	}

	if opts.has("positive") {
		err = b.settings.SetCharacterPrompt(ctx, character.Key, opts.stringValue("positive"))
		if err != nil {
			return "", err
		}
	}

	if opts.has("negative") {
		err = b.settings.SetCharacterNegativePrompt(ctx, character.Key, opts.stringValue("negative"))
		if err != nil {
			return "", err
		}
	}

	// A shared prompt follows local edits.
	if character.SharedPrompt != nil {
		err = b.chats.ShareCharacterPrompt(ctx, channelID, true)
		if err != nil {
			return "", err
		}
	}

	prompt := b.settings.CharacterPrompt(character.Key)

	return fmt.Sprintf("Prompt for %s: %q, negative: %q", character.Name, prompt.Positive, prompt.Negative), nil
}

func selectionOptions(options *backend_options.Options, field settings_manager.Selection) []string {
	switch field {
	case settings_manager.SelectionSampler:
		return options.Samplers
	case settings_manager.SelectionScheduler:
		return options.Schedulers
	case settings_manager.SelectionUpscaler:
		return options.Upscalers
	case settings_manager.SelectionVAE:
		return options.VAEs
	case settings_manager.SelectionModel:
		return options.ModelValues()
	default:
		return nil
	}
}

func (b *botImpl) setSelection(ctx context.Context, field settings_manager.Selection, value string) (string, error) {
	options, err := b.options.LoadAll(ctx)
	if err != nil {
		return "", err
	}

	available := selectionOptions(options, field)

	// Without a usable list from the backend any value is accepted.
	if len(available) == 0 || (len(available) == 1 && available[0] == entities.NotApplicable) {
		err = b.settings.SetSelection(ctx, field, value)
	} else {
		err = b.settings.EnsureSelection(ctx, field, value, available)
	}

	if err != nil {
		return "", err
	}

	if field == settings_manager.SelectionModel {
		err = b.options.ApplyModel(ctx)
		if err != nil {
			return "", fmt.Errorf("model saved but the backend did not switch: %w", err)
		}
	}

	return fmt.Sprintf("%s set to %s.", field, value), nil
}

func (b *botImpl) setText(ctx context.Context, field settings_manager.TextField, value string) (string, error) {
	err := b.settings.SetText(ctx, field, value)
	if err != nil {
		return "", err
	}

	if field == settings_manager.TextURL || field == settings_manager.TextAuth {
		_, err = b.options.Refresh(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Could not reload backend options")
		}
	}

	if field == settings_manager.TextAuth {
		return "Credentials updated.", nil
	}

	if value == "" {
		return fmt.Sprintf("%s cleared.", field), nil
	}

	return fmt.Sprintf("%s set to %q.", field, value), nil
}

func (b *botImpl) applyStyle(ctx context.Context, action, name string) (string, error) {
	var err error

	switch action {
	case styleActionSelect:
		err = b.settings.SelectStyle(ctx, name)
	case styleActionSave:
		err = b.settings.SaveStyle(ctx, name)
	case styleActionDelete:
		err = b.settings.DeleteStyle(ctx, name)
	default:
		err = fmt.Errorf("unknown style action %q", action)
	}

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Style %q: %s done.", name, action), nil
}

func (b *botImpl) processAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	opts := optionMap(sub.Options)

	var values []string
	var query string

	for _, opt := range sub.Options {
		if opt.Focused && opt.Type == discordgo.ApplicationCommandOptionString {
			query = opt.StringValue()
		}
	}

	switch sub.Name {
	case subSelect:
		options, err := b.options.LoadAll(b.ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Could not load options for autocomplete")
		} else {
			values = selectionOptions(options, settings_manager.Selection(opts.stringValue("field")))
		}
	case subStyle:
		for _, style := range b.settings.Settings().Styles {
			values = append(values, style.Name)
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: filterChoices(values, query),
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Error responding to autocomplete")
	}
}

// filterChoices keeps the values containing query, case-insensitively, up to Discord's choice limit.
func filterChoices(values []string, query string) []*discordgo.ApplicationCommandOptionChoice {
	query = strings.ToLower(query)
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(values), maxAutocompleteChoices))

	for _, value := range values {
		if len(choices) == maxAutocompleteChoices {
			break
		}

		if value == "" || !strings.Contains(strings.ToLower(value), query) {
			continue
		}

		name := value
		if len(name) > 100 {
			name = name[:100]
		}

		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: value})
	}

	return choices
}

func formatOptions(options *backend_options.Options) string {
	return fmt.Sprintf("Loaded %d samplers, %d models, %d upscalers, %d schedulers and %d VAEs.",
		len(options.Samplers), len(options.Models), len(options.Upscalers),
		len(slices.DeleteFunc(slices.Clone(options.Schedulers), isPlaceholder)),
		len(slices.DeleteFunc(slices.Clone(options.VAEs), isPlaceholder)))
}

func isPlaceholder(value string) bool {
	return value == entities.NotApplicable || value == entities.PlaceholderVAE
}

func formatSettings(settings *entities.GenerationSettings) string {
	var sb strings.Builder

	sb.WriteString("```\n")

	for _, field := range entities.NumericFields() {
		fmt.Fprintf(&sb, "%-22s %g\n", field.Name, field.Get(settings))
	}

	fmt.Fprintf(&sb, "%-22s %d\n", "seed", settings.Seed)
	fmt.Fprintf(&sb, "%-22s %s\n", "sampler", settings.Sampler)
	fmt.Fprintf(&sb, "%-22s %s\n", "scheduler", settings.Scheduler)
	fmt.Fprintf(&sb, "%-22s %s\n", "upscaler", settings.HRUpscaler)
	fmt.Fprintf(&sb, "%-22s %s\n", "vae", settings.VAE)
	fmt.Fprintf(&sb, "%-22s %s\n", "model", settings.Model)
	fmt.Fprintf(&sb, "%-22s %t\n", "restore_faces", settings.RestoreFaces)
	fmt.Fprintf(&sb, "%-22s %t\n", "enable_hr", settings.EnableHR)
	fmt.Fprintf(&sb, "%-22s %t\n", "adetailer_face", settings.ADetailerFace)
	fmt.Fprintf(&sb, "%-22s %t\n", "reference_enabled", settings.ReferenceEnabled)
	fmt.Fprintf(&sb, "%-22s %s\n", "style", settings.Style)
	fmt.Fprintf(&sb, "%-22s %s\n", "prefix", settings.PromptPrefix)
	fmt.Fprintf(&sb, "%-22s %s\n", "negative", settings.NegativePrompt)
	fmt.Fprintf(&sb, "%-22s %s\n", "url", settings.URL)

	sb.WriteString("```")

	return sb.String()
}
