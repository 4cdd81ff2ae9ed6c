package text_generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

var ErrNoReply = errors.New("language model returned no reply")

const defaultMaxTokens = 300

// HistoryMessage is one earlier chat message given to the model as context.
type HistoryMessage struct {
	Author  string
	Content string
	FromBot bool
}

// TextGenerator runs a "quiet" prompt: an instruction answered out of band, never posted to the chat as is.
type TextGenerator interface {
	GenerateQuiet(ctx context.Context, instruction string, history []HistoryMessage) (string, error)
}

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	SystemPrompt string
}

type generatorImpl struct {
	client       *openai.Client
	model        string
	maxTokens    int
	systemPrompt string
}

func New(cfg Config) (TextGenerator, error) {
	if cfg.Model == "" {
		return nil, errors.New("missing model")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &generatorImpl{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        cfg.Model,
		maxTokens:    maxTokens,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

func (g *generatorImpl) GenerateQuiet(ctx context.Context, instruction string, history []HistoryMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)

	if g.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.systemPrompt,
		})
	}

	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}

		role := openai.ChatMessageRoleUser
		if msg.FromBot {
			role = openai.ChatMessageRoleAssistant
		}

		content := msg.Content
		if msg.Author != "" {
			content = msg.Author + ": " + content
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: instruction,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  messages,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		log.Warn().Err(err).Str("model", g.model).Msg("Quiet prompt generation failed")

		return "", fmt.Errorf("quiet prompt: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoReply
	}

	return resp.Choices[0].Message.Content, nil
}
