package request_builder

import (
	"context"
	"errors"
	"fmt"

	"stable_diffusion_chat/avatar_fetcher"
	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/stable_diffusion_api"

	"github.com/rs/zerolog/log"
)

const (
	ADetailerScript = "ADetailer"
	ADetailerModel  = "face_yolov8n.pt"

	ControlNetScript    = "ControlNet"
	ReferenceModule     = "reference_only"
	ReferenceModelNone  = "None"
	controlModeBalanced = 0
	resizeModeCrop      = 1
)

var ErrAvatarUnavailable = errors.New("reference image unavailable")

// Builder turns composed prompts and the current settings into a txt2img payload.
type Builder interface {
	Build(ctx context.Context, prompt, negativePrompt string, settings *entities.GenerationSettings, avatarURL string) (*stable_diffusion_api.TextToImageRequest, error)
}

type Config struct {
	// AvatarFetcher is required only when reference conditioning is enabled.
	AvatarFetcher avatar_fetcher.AvatarFetcher
}

type builderImpl struct {
	avatars avatar_fetcher.AvatarFetcher
}

func New(cfg Config) Builder {
	return &builderImpl{avatars: cfg.AvatarFetcher}
}

func (b *builderImpl) Build(ctx context.Context, prompt, negativePrompt string, settings *entities.GenerationSettings, avatarURL string) (*stable_diffusion_api.TextToImageRequest, error) {
	req := &stable_diffusion_api.TextToImageRequest{
		Prompt:              prompt,
		NegativePrompt:      negativePrompt,
		SamplerName:         settings.Sampler,
		Scheduler:           settings.Scheduler,
		Steps:               settings.Steps,
		CfgScale:            settings.Scale,
		Width:               settings.Width,
		Height:              settings.Height,
		RestoreFaces:        settings.RestoreFaces,
		EnableHR:            settings.EnableHR,
		HRUpscaler:          settings.HRUpscaler,
		HRScale:             settings.HRScale,
		HRAdditionalModules: []string{},
		DenoisingStrength:   settings.DenoisingStrength,
		HRSecondPassSteps:   settings.HRSecondPassSteps,
		OverrideSettings: stable_diffusion_api.OverrideSettings{
			ClipStopAtLastLayers: settings.ClipSkip,
		},
		OverrideSettingsRestoreAfterwards: true,
		ClipSkip:                          settings.ClipSkip,
		SaveImages:                        true,
		SendImages:                        true,
		DoNotSaveGrid:                     false,
		DoNotSaveSamples:                  false,
	}

	// A negative seed leaves the choice to the backend.
	if settings.Seed >= 0 {
		seed := settings.Seed
		req.Seed = &seed
	}

	if settings.HasValidVAE() {
		req.OverrideSettings.SDVAE = settings.VAE
		req.OverrideSettings.ForgeAdditionalModules = []string{settings.VAE}
	}

	if settings.ADetailerFace {
		addScript(req, ADetailerScript, stable_diffusion_api.AlwaysOnScript{
			Args: []any{
				true, // ad_enable
				true, // skip_img2img
				stable_diffusion_api.ADetailerArgs{ADModel: ADetailerModel},
			},
		})
	}

	if settings.ReferenceEnabled {
		unit, err := b.referenceUnit(ctx, settings, avatarURL)
		if err != nil {
			return nil, err
		}

		addScript(req, ControlNetScript, stable_diffusion_api.AlwaysOnScript{
			Args: []any{unit},
		})
	}

	return req, nil
}

func (b *builderImpl) referenceUnit(ctx context.Context, settings *entities.GenerationSettings, avatarURL string) (*stable_diffusion_api.ControlNetUnit, error) {
	if b.avatars == nil {
		return nil, fmt.Errorf("%w: no avatar fetcher configured", ErrAvatarUnavailable)
	}

	image, err := b.avatars.FetchBase64(ctx, avatarURL)
	if err != nil {
		log.Warn().Err(err).Str("avatar", avatarURL).Msg("Could not fetch reference image")

		return nil, fmt.Errorf("%w: %w", ErrAvatarUnavailable, err)
	}

	return &stable_diffusion_api.ControlNetUnit{
		Enabled:       true,
		Module:        ReferenceModule,
		Model:         ReferenceModelNone,
		Image:         image,
		Weight:        settings.ReferenceWeight,
		GuidanceStart: settings.ReferenceStart,
		GuidanceEnd:   settings.ReferenceEnd,
		ThresholdA:    settings.ReferenceFidelity,
		ControlMode:   controlModeBalanced,
		ResizeMode:    resizeModeCrop,
		PixelPerfect:  true,
	}, nil
}

func addScript(req *stable_diffusion_api.TextToImageRequest, name string, script stable_diffusion_api.AlwaysOnScript) {
	if req.AlwaysOnScripts == nil {
		req.AlwaysOnScripts = map[string]stable_diffusion_api.AlwaysOnScript{}
	}

	req.AlwaysOnScripts[name] = script
}
