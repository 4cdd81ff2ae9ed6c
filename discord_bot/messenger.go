package discord_bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/image_storage"
	"stable_diffusion_chat/text_generator"

	"github.com/bwmarrin/discordgo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const defaultHistoryLimit = 20

var severityPrefixes = map[image_generator.Severity]string{
	image_generator.SeverityInfo:    "ℹ️ ",
	image_generator.SeverityWarning: "⚠️ ",
	image_generator.SeverityError:   "❌ ",
}

// Messenger posts and edits the bot's channel messages on behalf of the generator and the swipe manager.
type Messenger struct {
	client       channelClient
	images       image_storage.ImageStore
	botUserID    func() string
	historyLimit int
}

func newMessenger(client channelClient, images image_storage.ImageStore, botUserID func() string, historyLimit int) *Messenger {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	return &Messenger{
		client:       client,
		images:       images,
		botUserID:    botUserID,
		historyLimit: historyLimit,
	}
}

func (m *Messenger) Notify(_ context.Context, channelID string, severity image_generator.Severity, message string) {
	_, err := m.client.SendMessage(channelID, &discordgo.MessageSend{
		Content: severityPrefixes[severity] + message,
	})
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("Error sending notice")
	}
}

func (m *Messenger) SendImageMessage(_ context.Context, channelID, content string, image *image_generator.GeneratedImage) (string, error) {
	file, closeFile, err := m.imageFile(image.Image)
	if err != nil {
		return "", err
	}
	defer closeFile()

	message, err := m.client.SendMessage(channelID, &discordgo.MessageSend{
		Content:    content,
		Files:      []*discordgo.File{file},
		Components: imageComponents(false),
	})
	if err != nil {
		return "", fmt.Errorf("error sending image message: %w", err)
	}

	return message.ID, nil
}

// RecentHistory returns the latest text messages of the channel, oldest first.
func (m *Messenger) RecentHistory(_ context.Context, channelID string) ([]text_generator.HistoryMessage, error) {
	messages, err := m.client.ChannelMessages(channelID, m.historyLimit)
	if err != nil {
		return nil, err
	}

	botID := m.botUserID()
	history := make([]text_generator.HistoryMessage, 0, len(messages))

	// Discord lists the newest message first.
	for i := len(messages) - 1; i >= 0; i-- {
		message := messages[i]
		if message.Author == nil || message.Content == "" {
			continue
		}

		history = append(history, text_generator.HistoryMessage{
			Author:  message.Author.Username,
			Content: message.Content,
			FromBot: message.Author.ID == botID,
		})
	}

	return history, nil
}

func (m *Messenger) imageFile(reference string) (*discordgo.File, func(), error) {
	path := m.images.Path(reference)

	reader, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening image %s: %w", reference, err)
	}

	contentType := "application/octet-stream"

	detected, err := mimetype.DetectFile(path)
	if err == nil {
		contentType = detected.String()
	}

	file := &discordgo.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Reader:      reader,
	}

	return file, func() { _ = reader.Close() }, nil
}

// messageDisplay shows swipes on an existing image message and doubles as its stop control.
type messageDisplay struct {
	messenger *Messenger
	channelID string
	messageID string
}

func (d *messageDisplay) ShowImage(_ context.Context, images *entities.MessageImages) error {
	file, closeFile, err := d.messenger.imageFile(images.Image)
	if err != nil {
		return err
	}
	defer closeFile()

	edit := discordgo.NewMessageEdit(d.channelID, d.messageID)
	edit.Files = []*discordgo.File{file}
	edit.Attachments = &[]*discordgo.MessageAttachment{}
	edit.Components = imageComponents(false)

	_, err = d.messenger.client.EditMessage(edit)

	return err
}

func (d *messageDisplay) Show(context.Context) {
	d.setComponents(imageComponents(true))
}

func (d *messageDisplay) Hide(context.Context) {
	d.setComponents(imageComponents(false))
}

func (d *messageDisplay) setComponents(components []discordgo.MessageComponent) {
	edit := discordgo.NewMessageEdit(d.channelID, d.messageID)
	edit.Components = components

	_, err := d.messenger.client.EditMessage(edit)
	if err != nil {
		log.Error().Err(err).Str("message_id", d.messageID).Msg("Error editing message controls")
	}
}

// interactionStatus is the stop control and progress line of a /generate command response.
type interactionStatus struct {
	client      channelClient
	interaction *discordgo.Interaction
}

func (s *interactionStatus) Show(context.Context) {
	s.edit("Generating image...", stopComponents())
}

func (s *interactionStatus) Hide(context.Context) {
	s.edit("Image generation ended.", []discordgo.MessageComponent{})
}

func (s *interactionStatus) Progress(progress float64) {
	s.edit(fmt.Sprintf("Generating image... Progress: %.0f%%", progress*100), stopComponents())
}

func (s *interactionStatus) edit(content string, components []discordgo.MessageComponent) {
	_, err := s.client.EditInteraction(s.interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	})
	if err != nil {
		log.Error().Err(err).Str("interaction_id", s.interaction.ID).Msg("Error editing interaction")
	}
}
