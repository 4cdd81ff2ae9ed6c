package settings_manager

import (
	"context"

	"stable_diffusion_chat/entities"
)

// Selection names a setting whose value is chosen from a backend-provided option list.
type Selection string

const (
	SelectionSampler   Selection = "sampler"
	SelectionScheduler Selection = "scheduler"
	SelectionUpscaler  Selection = "upscaler"
	SelectionVAE       Selection = "vae"
	SelectionModel     Selection = "model"
)

type TextField string

const (
	TextPromptPrefix    TextField = "prefix"
	TextNegativePrompt  TextField = "negative"
	TextTriggerPrompt   TextField = "trigger"
	TextMessageTemplate TextField = "template"
	TextURL             TextField = "url"
	TextAuth            TextField = "auth"
)

type Flag string

const (
	FlagRestoreFaces     Flag = "restore_faces"
	FlagEnableHR         Flag = "enable_hr"
	FlagADetailerFace    Flag = "adetailer_face"
	FlagReferenceEnabled Flag = "reference_enabled"
)

// Manager owns the generation settings. Every mutation goes through it and is persisted before it returns.
type Manager interface {
	Load(ctx context.Context) error
	// Settings returns a snapshot that is safe to read without further locking.
	Settings() *entities.GenerationSettings

	SetNumber(ctx context.Context, name string, value float64) error
	SetSelection(ctx context.Context, field Selection, value string) error
	EnsureSelection(ctx context.Context, field Selection, value string, options []string) error
	FillEmptySelection(ctx context.Context, field Selection, options []string) error
	SetText(ctx context.Context, field TextField, value string) error
	SetFlag(ctx context.Context, flag Flag, value bool) error
	SetSeed(ctx context.Context, seed int64) error
	SetResolution(ctx context.Context, id string) error
	SwapDimensions(ctx context.Context) error

	SelectStyle(ctx context.Context, name string) error
	SaveStyle(ctx context.Context, name string) error
	DeleteStyle(ctx context.Context, name string) error

	CharacterPrompt(key string) entities.CharacterPrompt
	SetCharacterPrompt(ctx context.Context, key, positive string) error
	SetCharacterNegativePrompt(ctx context.Context, key, negative string) error
	ReconcileCharacterPrompt(ctx context.Context, key string, shared *entities.CharacterPrompt) (entities.CharacterPrompt, error)

	OverrideSeed(seed int64) (restore func())
}
