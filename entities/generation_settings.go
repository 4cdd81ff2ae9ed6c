package entities

const (
	DefaultPrefix   = "best quality, absurdres, aesthetic,"
	DefaultNegative = "lowres, bad anatomy, bad hands, text, error, cropped, worst quality, low quality, " +
		"normal quality, jpeg artifacts, signature, watermark, username, blurry"
	DefaultStyleName       = "Default"
	DefaultMessageTemplate = "{{prompt}}"

	// PlaceholderVAE is prepended to the backend VAE list and means "let the model decide".
	PlaceholderVAE = "Automatic"
	// NotApplicable marks an option list that could not be loaded.
	NotApplicable = "N/A"
)

type Style struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix"`
	Negative string `json:"negative"`
}

// Range bounds a numeric setting.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

func (r Range) Contains(value float64) bool {
	return value >= r.Min && value <= r.Max
}

type GenerationSettings struct {
	Scale             float64 `json:"scale"`
	Steps             int     `json:"steps"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	HRScale           float64 `json:"hr_scale"`
	DenoisingStrength float64 `json:"denoising_strength"`
	HRSecondPassSteps int     `json:"hr_second_pass_steps"`
	ClipSkip          int     `json:"clip_skip"`
	ReferenceWeight   float64 `json:"reference_weight"`
	ReferenceStart    float64 `json:"reference_start"`
	ReferenceEnd      float64 `json:"reference_end"`
	ReferenceFidelity float64 `json:"reference_fidelity"`

	Sampler    string `json:"sampler"`
	Scheduler  string `json:"scheduler"`
	HRUpscaler string `json:"hr_upscaler"`
	VAE        string `json:"vae"`
	Model      string `json:"model"`

	PromptPrefix    string `json:"prompt_prefix"`
	NegativePrompt  string `json:"negative_prompt"`
	TriggerPrompt   string `json:"trigger_prompt"`
	MessageTemplate string `json:"message_template"`
	URL             string `json:"url"`
	Auth            string `json:"auth"`

	RestoreFaces     bool `json:"restore_faces"`
	EnableHR         bool `json:"enable_hr"`
	ADetailerFace    bool `json:"adetailer_face"`
	ReferenceEnabled bool `json:"reference_enabled"`

	Seed int64 `json:"seed"`

	Style  string  `json:"style"`
	Styles []Style `json:"styles"`

	CharacterPrompts         map[string]string `json:"character_prompts"`
	CharacterNegativePrompts map[string]string `json:"character_negative_prompts"`
}

func DefaultStyles() []Style {
	return []Style{
		{
			Name:     DefaultStyleName,
			Prefix:   DefaultPrefix,
			Negative: DefaultNegative,
		},
	}
}

func NewDefaultGenerationSettings() *GenerationSettings {
	return &GenerationSettings{
		Scale:             7,
		Steps:             20,
		Width:             512,
		Height:            512,
		HRScale:           1.0,
		DenoisingStrength: 0.7,
		HRSecondPassSteps: 0,
		ClipSkip:          1,
		ReferenceWeight:   1.0,
		ReferenceStart:    0,
		ReferenceEnd:      1.0,
		ReferenceFidelity: 0.5,

		Sampler:    "DDIM",
		Scheduler:  "normal",
		HRUpscaler: "Latent",

		PromptPrefix:    DefaultPrefix,
		NegativePrompt:  DefaultNegative,
		MessageTemplate: DefaultMessageTemplate,
		URL:             "http://localhost:7860",

		Seed: -1,

		Style:  DefaultStyleName,
		Styles: DefaultStyles(),

		CharacterPrompts:         map[string]string{},
		CharacterNegativePrompts: map[string]string{},
	}
}

// Clone returns a deep copy so that callers can read a settings snapshot without holding a lock.
func (s *GenerationSettings) Clone() *GenerationSettings {
	clone := *s

	clone.Styles = make([]Style, len(s.Styles))
	copy(clone.Styles, s.Styles)

	clone.CharacterPrompts = make(map[string]string, len(s.CharacterPrompts))
	for k, v := range s.CharacterPrompts {
		clone.CharacterPrompts[k] = v
	}

	clone.CharacterNegativePrompts = make(map[string]string, len(s.CharacterNegativePrompts))
	for k, v := range s.CharacterNegativePrompts {
		clone.CharacterNegativePrompts[k] = v
	}

	return &clone
}

func (s *GenerationSettings) FindStyle(name string) (int, *Style) {
	for idx := range s.Styles {
		if s.Styles[idx].Name == name {
			return idx, &s.Styles[idx]
		}
	}

	return -1, nil
}

// HasValidVAE reports whether the configured VAE should be sent as an override.
func (s *GenerationSettings) HasValidVAE() bool {
	return s.VAE != "" && s.VAE != NotApplicable && s.VAE != PlaceholderVAE
}
