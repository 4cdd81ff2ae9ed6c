package discord_bot

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/image_storage"
	"stable_diffusion_chat/text_generator"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJ"

type sentFile struct {
	name        string
	contentType string
	data        []byte
}

type fakeClient struct {
	mu sync.Mutex

	sent             []*discordgo.MessageSend
	sentFiles        []sentFile
	edits            []*discordgo.MessageEdit
	interactionEdits []*discordgo.WebhookEdit
	history          []*discordgo.Message
	err              error
}

func (f *fakeClient) readFiles(files []*discordgo.File) {
	for _, file := range files {
		data, _ := io.ReadAll(file.Reader)
		f.sentFiles = append(f.sentFiles, sentFile{name: file.Name, contentType: file.ContentType, data: data})
	}
}

func (f *fakeClient) SendMessage(_ string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	f.sent = append(f.sent, data)
	f.readFiles(data.Files)

	return &discordgo.Message{ID: "m42"}, nil
}

func (f *fakeClient) EditMessage(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, edit)
	f.readFiles(edit.Files)

	return &discordgo.Message{ID: edit.ID}, f.err
}

func (f *fakeClient) ChannelMessages(string, int) ([]*discordgo.Message, error) {
	return f.history, f.err
}

func (f *fakeClient) EditInteraction(_ *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.interactionEdits = append(f.interactionEdits, edit)

	return &discordgo.Message{}, f.err
}

func newTestMessenger(t *testing.T, client *fakeClient) (*Messenger, string) {
	t.Helper()

	images, err := image_storage.New(image_storage.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ref, err := images.SaveBase64(context.Background(), pngBase64, "Alice", "Alice_1")
	require.NoError(t, err)

	return newMessenger(client, images, func() string { return "bot" }, 0), ref
}

func buttonIDs(components []discordgo.MessageComponent) []string {
	var ids []string

	for _, component := range components {
		row, ok := component.(discordgo.ActionsRow)
		if !ok {
			continue
		}

		for _, inner := range row.Components {
			if button, ok := inner.(discordgo.Button); ok {
				ids = append(ids, button.CustomID)
			}
		}
	}

	return ids
}

func TestMessenger_Notify(t *testing.T) {
	client := &fakeClient{}
	messenger, _ := newTestMessenger(t, client)

	messenger.Notify(context.Background(), "c1", image_generator.SeverityWarning, "Chat changed")

	require.Len(t, client.sent, 1)
	assert.Equal(t, "⚠️ Chat changed", client.sent[0].Content)
}

func TestMessenger_SendImageMessage(t *testing.T) {
	client := &fakeClient{}
	messenger, ref := newTestMessenger(t, client)

	messageID, err := messenger.SendImageMessage(context.Background(), "c1", "a cat", &image_generator.GeneratedImage{Image: ref})
	require.NoError(t, err)
	assert.Equal(t, "m42", messageID)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "a cat", client.sent[0].Content)
	assert.Equal(t, []string{swipeLeftID, swipeRightID}, buttonIDs(client.sent[0].Components))

	require.Len(t, client.sentFiles, 1)
	assert.Equal(t, "Alice_1.png", client.sentFiles[0].name)
	assert.Equal(t, "image/png", client.sentFiles[0].contentType)

	expected, err := base64.StdEncoding.DecodeString(pngBase64)
	require.NoError(t, err)
	assert.Equal(t, expected, client.sentFiles[0].data)
}

func TestMessenger_SendImageMessage_Errors(t *testing.T) {
	client := &fakeClient{}
	messenger, ref := newTestMessenger(t, client)

	_, err := messenger.SendImageMessage(context.Background(), "c1", "", &image_generator.GeneratedImage{Image: "missing.png"})
	assert.Error(t, err)

	client.err = errors.New("discord down")

	_, err = messenger.SendImageMessage(context.Background(), "c1", "", &image_generator.GeneratedImage{Image: ref})
	assert.ErrorIs(t, err, client.err)
}

func TestMessenger_RecentHistory(t *testing.T) {
	client := &fakeClient{history: []*discordgo.Message{
		{Content: "newest", Author: &discordgo.User{ID: "bot", Username: "sd"}},
		{Content: "", Author: &discordgo.User{ID: "u1", Username: "ann"}},
		{Content: "no author"},
		{Content: "oldest", Author: &discordgo.User{ID: "u1", Username: "ann"}},
	}}
	messenger, _ := newTestMessenger(t, client)

	history, err := messenger.RecentHistory(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []text_generator.HistoryMessage{
		{Author: "ann", Content: "oldest"},
		{Author: "sd", Content: "newest", FromBot: true},
	}, history)
}

func TestMessageDisplay(t *testing.T) {
	client := &fakeClient{}
	messenger, ref := newTestMessenger(t, client)
	display := &messageDisplay{messenger: messenger, channelID: "c1", messageID: "m1"}

	display.Show(context.Background())
	require.NoError(t, display.ShowImage(context.Background(), &entities.MessageImages{Image: ref}))
	display.Hide(context.Background())

	require.Len(t, client.edits, 3)
	assert.Equal(t, []string{swipeLeftID, swipeRightID, stopID}, buttonIDs(client.edits[0].Components))

	shown := client.edits[1]
	assert.Equal(t, "m1", shown.ID)
	assert.Equal(t, "c1", shown.Channel)
	require.NotNil(t, shown.Attachments)
	assert.Empty(t, *shown.Attachments)
	assert.Len(t, shown.Files, 1)

	assert.Equal(t, []string{swipeLeftID, swipeRightID}, buttonIDs(client.edits[2].Components))
}

func TestInteractionStatus(t *testing.T) {
	client := &fakeClient{}
	status := &interactionStatus{client: client, interaction: &discordgo.Interaction{ID: "i1"}}

	status.Show(context.Background())
	status.Progress(0.456)
	status.Hide(context.Background())

	require.Len(t, client.interactionEdits, 3)
	assert.Equal(t, []string{stopID}, buttonIDs(*client.interactionEdits[0].Components))
	assert.Equal(t, "Generating image... Progress: 46%", *client.interactionEdits[1].Content)
	assert.Empty(t, buttonIDs(*client.interactionEdits[2].Components))
}
