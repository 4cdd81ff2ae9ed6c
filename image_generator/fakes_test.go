package image_generator

import (
	"context"
	"sync"

	"stable_diffusion_chat/backend_options"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories"
	"stable_diffusion_chat/stable_diffusion_api"
	"stable_diffusion_chat/text_generator"
)

type memorySettingsRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (r *memorySettingsRepo) Upsert(_ context.Context, module string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[module] = data

	return nil
}

func (r *memorySettingsRepo) Get(_ context.Context, module string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.data[module]
	if !ok {
		return nil, repositories.NewNotFoundError(module)
	}

	return data, nil
}

type fakeAPI struct {
	stable_diffusion_api.StableDiffusionAPI

	mu       sync.Mutex
	requests []*stable_diffusion_api.TextToImageRequest
	called   chan struct{}
	// handler decides the response; defaults to one image.
	handler func(ctx context.Context) (*stable_diffusion_api.TextToImageResponse, error)
}

func (f *fakeAPI) TextToImage(ctx context.Context, _ stable_diffusion_api.Endpoint, req *stable_diffusion_api.TextToImageRequest) (*stable_diffusion_api.TextToImageResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.called != nil {
		f.called <- struct{}{}
	}

	if f.handler != nil {
		return f.handler(ctx)
	}

	return &stable_diffusion_api.TextToImageResponse{Images: []string{pngBase64}}, nil
}

func (f *fakeAPI) Progress(context.Context, stable_diffusion_api.Endpoint) (*stable_diffusion_api.ProgressResponse, error) {
	return &stable_diffusion_api.ProgressResponse{Progress: 0.5}, nil
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

func (f *fakeAPI) lastRequest() *stable_diffusion_api.TextToImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.requests) == 0 {
		return nil
	}

	return f.requests[len(f.requests)-1]
}

type fakeTextGenerator struct {
	mu           sync.Mutex
	reply        string
	err          error
	instructions []string
}

func (f *fakeTextGenerator) GenerateQuiet(_ context.Context, instruction string, _ []text_generator.HistoryMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.instructions = append(f.instructions, instruction)

	return f.reply, f.err
}

type fakeChats struct {
	mu        sync.Mutex
	chatID    string
	name      string
	prompt    entities.CharacterPrompt
	character *entities.Character
}

func (f *fakeChats) Session(context.Context, string) (*entities.ChatSession, error) {
	return &entities.ChatSession{ChatID: f.CurrentChatIDValue()}, nil
}

func (f *fakeChats) CurrentChatIDValue() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.chatID
}

func (f *fakeChats) setChatID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chatID = id
}

func (f *fakeChats) CurrentChatID(context.Context, string) (string, error) {
	return f.CurrentChatIDValue(), nil
}

func (f *fakeChats) Character(context.Context, string) (*entities.Character, error) {
	return f.character, nil
}

func (f *fakeChats) CharacterName(context.Context, string) (string, error) {
	return f.name, nil
}

func (f *fakeChats) CharacterPrompt(context.Context, string) (entities.CharacterPrompt, error) {
	return f.prompt, nil
}

func (f *fakeChats) SetCharacter(context.Context, string, *entities.Character) (entities.CharacterPrompt, error) {
	return entities.CharacterPrompt{}, nil
}

func (f *fakeChats) AvatarURL(context.Context, string) (string, error) {
	if f.character == nil {
		return "", nil
	}

	return f.character.AvatarURL, nil
}

func (f *fakeChats) SetGroup(context.Context, string, string, []string) error {
	return nil
}

func (f *fakeChats) NewChat(context.Context, string) (*entities.ChatSession, error) {
	return nil, nil
}

func (f *fakeChats) ShareCharacterPrompt(context.Context, string, bool) error {
	return nil
}

type fakeOptions struct {
	backend_options.Loader

	options *backend_options.Options
	err     error
}

func (f *fakeOptions) LoadAll(context.Context) (*backend_options.Options, error) {
	if f.err != nil {
		return nil, f.err
	}

	if f.options == nil {
		return &backend_options.Options{}, nil
	}

	return f.options, nil
}

type memoryMessageImages struct {
	mu        sync.Mutex
	images    map[string]*entities.MessageImages
	createErr error
}

func newMemoryMessageImages() *memoryMessageImages {
	return &memoryMessageImages{images: map[string]*entities.MessageImages{}}
}

func (r *memoryMessageImages) Create(_ context.Context, images *entities.MessageImages) (*entities.MessageImages, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}

	r.images[images.MessageID] = images

	return images, nil
}

func (r *memoryMessageImages) Update(_ context.Context, images *entities.MessageImages) (*entities.MessageImages, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images[images.MessageID] = images

	return images, nil
}

func (r *memoryMessageImages) GetByMessageID(_ context.Context, messageID string) (*entities.MessageImages, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, ok := r.images[messageID]
	if !ok {
		return nil, repositories.NewNotFoundError(messageID)
	}

	return images, nil
}

type sentMessage struct {
	channelID string
	content   string
	image     *GeneratedImage
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (f *fakeSender) SendImageMessage(_ context.Context, channelID, content string, image *GeneratedImage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, sentMessage{channelID: channelID, content: content, image: image})

	return "message-1", nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.messages)
}

type notice struct {
	severity Severity
	message  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (f *fakeNotifier) Notify(_ context.Context, _ string, severity Severity, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notices = append(f.notices, notice{severity: severity, message: message})
}

func (f *fakeNotifier) severities() []Severity {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]Severity, 0, len(f.notices))
	for _, n := range f.notices {
		result = append(result, n.severity)
	}

	return result
}

type fakeStop struct {
	mu     sync.Mutex
	shown  int
	hidden int
}

func (f *fakeStop) Show(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.shown++
}

func (f *fakeStop) Hide(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hidden++
}

// smallest PNG header that type detection recognises
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJ"
