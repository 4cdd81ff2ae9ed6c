package image_generator

import (
	"context"
	"errors"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/text_generator"
)

type State string

const (
	StateIdle            State = "idle"
	StateComposingPrompt State = "composing-prompt"
	StateAwaitingBackend State = "awaiting-backend"
	StateResolved        State = "resolved"
	StateAborted         State = "aborted"
	StateFailed          State = "failed"
)

var (
	ErrConfigurationMissing   = errors.New("no backend URL configured")
	ErrPromptGenerationFailed = errors.New("prompt generation failed")
	ErrBackendRequestFailed   = errors.New("image generation request failed")
	ErrEmptyImageData         = errors.New("endpoint did not return image data")
	ErrContextChanged         = errors.New("chat changed during generation")
	ErrAborted                = errors.New("generation aborted")
	ErrGenerationInProgress   = errors.New("another generation is already in progress")
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier shows short user-facing notices in a channel.
type Notifier interface {
	Notify(ctx context.Context, channelID string, severity Severity, message string)
}

// StopAffordance is the visible control that lets the user cancel a running generation.
type StopAffordance interface {
	Show(ctx context.Context)
	Hide(ctx context.Context)
}

// HistoryProvider supplies recent chat messages for the prompt generation call.
type HistoryProvider interface {
	RecentHistory(ctx context.Context, channelID string) ([]text_generator.HistoryMessage, error)
}

// MessageSender posts a new chat message carrying a generated image and returns its message ID.
type MessageSender interface {
	SendImageMessage(ctx context.Context, channelID, content string, image *GeneratedImage) (string, error)
}

// GeneratedImage is what a successful run hands to the message-insertion step.
type GeneratedImage struct {
	ChannelID          string
	CharacterName      string
	Initiator          entities.Initiator
	GenerationType     int
	Prompt             string
	PrefixedPrompt     string
	AdditionalNegative string
	// Image is the stored file reference.
	Image string
}

type Request struct {
	ChannelID      string
	Initiator      entities.Initiator
	GenerationType int

	// Prompt is reused instead of asking the language model when set.
	Prompt string
	// TriggerPrompt overrides the configured trigger prompt.
	TriggerPrompt      string
	AdditionalNegative string
	// CharacterName overrides the name derived from the chat.
	CharacterName string
	// RandomizeSeed replaces a pinned seed with a random one for this run only.
	RandomizeSeed bool

	// OnImage replaces the default "post a new message" step.
	OnImage    func(ctx context.Context, image *GeneratedImage) error
	Stop       StopAffordance
	OnProgress func(progress float64)
}

type Result struct {
	Status State
	Image  *GeneratedImage
	// Err is the reason for an aborted or failed run.
	Err error
}

type Generator interface {
	// Generate runs one generation. It returns an error only when the run could not start or no prompt could
	// be produced; backend-stage outcomes are reported in Result.
	Generate(ctx context.Context, req Request) (*Result, error)
	// Stop cancels the running generation. It reports whether there was one.
	Stop() bool
	State() State
}
