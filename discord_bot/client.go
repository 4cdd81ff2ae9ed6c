package discord_bot

import "github.com/bwmarrin/discordgo"

// channelClient is the part of the Discord REST API the bot's messaging uses.
type channelClient interface {
	SendMessage(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	EditMessage(edit *discordgo.MessageEdit) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int) ([]*discordgo.Message, error)
	EditInteraction(interaction *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error)
}

type sessionClient struct {
	session *discordgo.Session
}

func (c *sessionClient) SendMessage(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return c.session.ChannelMessageSendComplex(channelID, data)
}

func (c *sessionClient) EditMessage(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return c.session.ChannelMessageEditComplex(edit)
}

func (c *sessionClient) ChannelMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	return c.session.ChannelMessages(channelID, limit, "", "", "")
}

func (c *sessionClient) EditInteraction(interaction *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return c.session.InteractionResponseEdit(interaction, edit)
}
