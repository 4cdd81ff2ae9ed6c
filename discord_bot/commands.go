package discord_bot

import (
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/settings_manager"

	"github.com/bwmarrin/discordgo"
)

const (
	subGenerate   = "generate"
	subStop       = "stop"
	subNewChat    = "newchat"
	subCharacter  = "character"
	subGroup      = "group"
	subShare      = "share"
	subCharPrompt = "charprompt"
	subSet        = "set"
	subFlag       = "flag"
	subSeed       = "seed"
	subSelect     = "select"
	subResolution = "resolution"
	subSwap       = "swap"
	subText       = "text"
	subStyle      = "style"
	subPing       = "ping"
	subRefresh    = "refresh"
	subShow       = "show"
)

const (
	styleActionSelect = "select"
	styleActionSave   = "save"
	styleActionDelete = "delete"
)

func stringChoices(values ...string) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(values))
	for _, value := range values {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: value, Value: value})
	}

	return choices
}

func numericFieldChoices() []*discordgo.ApplicationCommandOptionChoice {
	fields := entities.NumericFields()

	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}

	return stringChoices(names...)
}

func resolutionChoices() []*discordgo.ApplicationCommandOptionChoice {
	presets := settings_manager.Resolutions()

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(presets))
	for _, preset := range presets {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: preset.Name, Value: preset.ID})
	}

	return choices
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func commandDefinition(name string) *discordgo.ApplicationCommand {
	minSeed := -1.0

	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: "Generate images for the chat and change image generation settings",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(subGenerate, "Generate an image for the current chat",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "Use this prompt instead of asking the language model",
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "trigger",
					Description: "Instruction for the language model, replacing the configured trigger prompt",
				},
			),
			subcommand(subStop, "Stop the running image generation"),
			subcommand(subNewChat, "Start a new chat in this channel"),
			subcommand(subCharacter, "Set the character of this channel and start a new chat",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Character name",
					Required:    true,
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "avatar",
					Description: "Avatar image URL, used for reference conditioning",
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "key",
					Description: "Stable character key; defaults to the avatar file name or the name",
				},
			),
			subcommand(subGroup, "Make this channel a group chat",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "Group name",
					Required:    true,
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "members",
					Description: "Comma separated character keys; their avatars are used for reference images",
				},
			),
			subcommand(subShare, "Share the character prompt through the character card",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Share or stop sharing",
					Required:    true,
				},
			),
			subcommand(subCharPrompt, "Set the prompt prefixes of the current character",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "positive",
					Description: "Positive prefix",
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "negative",
					Description: "Negative prefix",
				},
			),
			subcommand(subSet, "Set a numeric generation setting",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "field",
					Description: "Setting",
					Required:    true,
					Choices:     numericFieldChoices(),
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "value",
					Description: "New value",
					Required:    true,
				},
			),
			subcommand(subFlag, "Turn a generation option on or off",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Option",
					Required:    true,
					Choices: stringChoices(
						string(settings_manager.FlagRestoreFaces),
						string(settings_manager.FlagEnableHR),
						string(settings_manager.FlagADetailerFace),
						string(settings_manager.FlagReferenceEnabled),
					),
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "On or off",
					Required:    true,
				},
			),
			subcommand(subSeed, "Pin the seed, -1 for random",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "value",
					Description: "Seed",
					Required:    true,
					MinValue:    &minSeed,
				},
			),
			subcommand(subSelect, "Choose a sampler, scheduler, upscaler, VAE or model",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "field",
					Description: "Setting",
					Required:    true,
					Choices: stringChoices(
						string(settings_manager.SelectionSampler),
						string(settings_manager.SelectionScheduler),
						string(settings_manager.SelectionUpscaler),
						string(settings_manager.SelectionVAE),
						string(settings_manager.SelectionModel),
					),
				},
				&discordgo.ApplicationCommandOption{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "value",
					Description:  "Option offered by the backend",
					Required:     true,
					Autocomplete: true,
				},
			),
			subcommand(subResolution, "Apply a resolution preset",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "preset",
					Description: "Preset",
					Required:    true,
					Choices:     resolutionChoices(),
				},
			),
			subcommand(subSwap, "Swap width and height"),
			subcommand(subText, "Set a prompt or connection text setting",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "field",
					Description: "Setting",
					Required:    true,
					Choices: stringChoices(
						string(settings_manager.TextPromptPrefix),
						string(settings_manager.TextNegativePrompt),
						string(settings_manager.TextTriggerPrompt),
						string(settings_manager.TextMessageTemplate),
						string(settings_manager.TextURL),
						string(settings_manager.TextAuth),
					),
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "value",
					Description: "New text, leave empty to clear",
				},
			),
			subcommand(subStyle, "Select, save or delete a style",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices:     stringChoices(styleActionSelect, styleActionSave, styleActionDelete),
				},
				&discordgo.ApplicationCommandOption{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "name",
					Description:  "Style name",
					Required:     true,
					Autocomplete: true,
				},
			),
			subcommand(subPing, "Check the connection to the image backend"),
			subcommand(subRefresh, "Reload samplers, models and other options from the backend"),
			subcommand(subShow, "Show the current generation settings"),
		},
	}
}
