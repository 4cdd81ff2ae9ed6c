package entities

import "time"

type ImageGeneration struct {
	ID                int64     `json:"id"`
	ChannelID         string    `json:"channel_id"`
	ChatID            string    `json:"chat_id"`
	CharacterName     string    `json:"character_name"`
	Initiator         Initiator `json:"initiator"`
	Prompt            string    `json:"prompt"`
	PrefixedPrompt    string    `json:"prefixed_prompt"`
	NegativePrompt    string    `json:"negative_prompt"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	RestoreFaces      bool      `json:"restore_faces"`
	EnableHR          bool      `json:"enable_hr"`
	DenoisingStrength float64   `json:"denoising_strength"`
	Seed              int64     `json:"seed"`
	SamplerName       string    `json:"sampler_name"`
	Scheduler         string    `json:"scheduler"`
	CfgScale          float64   `json:"cfg_scale"`
	Steps             int       `json:"steps"`
	ImagePath         string    `json:"image_path"`
	CreatedAt         time.Time `json:"created_at"`
}
