package discord_bot

import "github.com/bwmarrin/discordgo"

const (
	swipeLeftID  = "sd_swipe_left"
	swipeRightID = "sd_swipe_right"
	stopID       = "sd_stop"
)

func stopButton() discordgo.Button {
	return discordgo.Button{
		Label:    "Stop",
		Style:    discordgo.DangerButton,
		CustomID: stopID,
		Emoji: discordgo.ComponentEmoji{
			Name: "⏹️",
		},
	}
}

// imageComponents are the controls under every generated image. withStop adds the stop button while a swipe
// is generating a new image.
func imageComponents(withStop bool) []discordgo.MessageComponent {
	buttons := []discordgo.MessageComponent{
		discordgo.Button{
			Style:    discordgo.SecondaryButton,
			CustomID: swipeLeftID,
			Emoji: discordgo.ComponentEmoji{
				Name: "⬅️",
			},
		},
		discordgo.Button{
			Style:    discordgo.SecondaryButton,
			CustomID: swipeRightID,
			Emoji: discordgo.ComponentEmoji{
				Name: "➡️",
			},
		},
	}

	if withStop {
		buttons = append(buttons, stopButton())
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}

func stopComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{stopButton()}},
	}
}
