package stable_diffusion_api

import "context"

type StableDiffusionAPI interface {
	Ping(ctx context.Context, endpoint Endpoint) error
	Samplers(ctx context.Context, endpoint Endpoint) ([]string, error)
	Schedulers(ctx context.Context, endpoint Endpoint) ([]string, error)
	Models(ctx context.Context, endpoint Endpoint) ([]ModelOption, error)
	VAEs(ctx context.Context, endpoint Endpoint) ([]string, error)
	Upscalers(ctx context.Context, endpoint Endpoint) ([]string, error)
	CurrentModel(ctx context.Context, endpoint Endpoint) (string, error)
	SetModel(ctx context.Context, endpoint Endpoint, model string) error
	TextToImage(ctx context.Context, endpoint Endpoint, req *TextToImageRequest) (*TextToImageResponse, error)
	Progress(ctx context.Context, endpoint Endpoint) (*ProgressResponse, error)
}
