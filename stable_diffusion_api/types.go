package stable_diffusion_api

// Endpoint addresses a backend. Auth is "user:password" for HTTP basic auth and may be empty.
type Endpoint struct {
	URL  string `json:"url"`
	Auth string `json:"auth"`
}

type ModelOption struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

type OverrideSettings struct {
	ClipStopAtLastLayers   int      `json:"CLIP_stop_at_last_layers"`
	SDVAE                  string   `json:"sd_vae,omitempty"`
	ForgeAdditionalModules []string `json:"forge_additional_modules,omitempty"`
}

type TextToImageRequest struct {
	Prompt                            string           `json:"prompt"`
	NegativePrompt                    string           `json:"negative_prompt"`
	SamplerName                       string           `json:"sampler_name"`
	Scheduler                         string           `json:"scheduler"`
	Steps                             int              `json:"steps"`
	CfgScale                          float64          `json:"cfg_scale"`
	Width                             int              `json:"width"`
	Height                            int              `json:"height"`
	RestoreFaces                      bool             `json:"restore_faces"`
	EnableHR                          bool             `json:"enable_hr"`
	HRUpscaler                        string           `json:"hr_upscaler"`
	HRScale                           float64          `json:"hr_scale"`
	HRAdditionalModules               []string         `json:"hr_additional_modules"`
	DenoisingStrength                 float64          `json:"denoising_strength"`
	HRSecondPassSteps                 int              `json:"hr_second_pass_steps"`
	Seed                              *int64           `json:"seed,omitempty"`
	OverrideSettings                  OverrideSettings `json:"override_settings"`
	OverrideSettingsRestoreAfterwards bool             `json:"override_settings_restore_afterwards"`
	ClipSkip                          int              `json:"clip_skip"`
	SaveImages                        bool             `json:"save_images"`
	SendImages                        bool             `json:"send_images"`
	DoNotSaveGrid                     bool             `json:"do_not_save_grid"`
	DoNotSaveSamples                  bool             `json:"do_not_save_samples"`

	// AlwaysOnScripts holds extension blocks keyed by script name (ADetailer, ControlNet).
	AlwaysOnScripts map[string]AlwaysOnScript `json:"alwayson_scripts,omitempty"`
}

type AlwaysOnScript struct {
	Args []any `json:"args"`
}

type TextToImageResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}

type ADetailerArgs struct {
	ADModel string `json:"ad_model"`
}

// ControlNetUnit is one ControlNet unit. The reference preprocessors read style fidelity from ThresholdA.
type ControlNetUnit struct {
	Enabled       bool    `json:"enabled"`
	Module        string  `json:"module"`
	Model         string  `json:"model"`
	Image         string  `json:"image"`
	Weight        float64 `json:"weight"`
	GuidanceStart float64 `json:"guidance_start"`
	GuidanceEnd   float64 `json:"guidance_end"`
	ThresholdA    float64 `json:"threshold_a"`
	ControlMode   int     `json:"control_mode"`
	ResizeMode    int     `json:"resize_mode"`
	PixelPerfect  bool    `json:"pixel_perfect"`
}

type ProgressResponse struct {
	Progress    float64 `json:"progress"`
	EtaRelative float64 `json:"eta_relative"`
}
