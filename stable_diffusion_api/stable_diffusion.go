package stable_diffusion_api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingURL    = errors.New("missing backend URL")
	ErrRequestFailed = errors.New("backend request failed")
)

type apiImpl struct {
	client *resty.Client
}

type Config struct {
	Timeout time.Duration
}

func New(cfg Config) (StableDiffusionAPI, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("missing timeout")
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json; charset=UTF-8")

	return &apiImpl{
		client: client,
	}, nil
}

func (api *apiImpl) request(ctx context.Context, endpoint Endpoint) (*resty.Request, string, error) {
	host := strings.TrimSpace(endpoint.URL)
	if host == "" {
		return nil, "", ErrMissingURL
	}

	// remove trailing slash
	host = strings.TrimRight(host, "/")

	req := api.client.R().SetContext(ctx)

	if endpoint.Auth != "" {
		user, password, _ := strings.Cut(endpoint.Auth, ":")
		req.SetBasicAuth(user, password)
	}

	return req, host, nil
}

func checkResponse(resp *resty.Response, postURL string) error {
	if resp.IsError() {
		log.Warn().
			Str("url", postURL).
			Int("status", resp.StatusCode()).
			Msg("Unexpected API response")

		return fmt.Errorf("%w: %d %s", ErrRequestFailed, resp.StatusCode(), resp.String())
	}

	return nil
}

func (api *apiImpl) get(ctx context.Context, endpoint Endpoint, path string, result any) error {
	req, host, err := api.request(ctx, endpoint)
	if err != nil {
		return err
	}

	getURL := host + path

	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Get(getURL)
	if err != nil {
		log.Debug().Err(err).Str("url", getURL).Msg("Error with API request")

		return err
	}

	return checkResponse(resp, getURL)
}

func (api *apiImpl) post(ctx context.Context, endpoint Endpoint, path string, body, result any) error {
	req, host, err := api.request(ctx, endpoint)
	if err != nil {
		return err
	}

	postURL := host + path

	req.SetBody(body)

	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Post(postURL)
	if err != nil {
		log.Debug().Err(err).Str("url", postURL).Msg("Error with API request")

		return err
	}

	return checkResponse(resp, postURL)
}

func (api *apiImpl) Ping(ctx context.Context, endpoint Endpoint) error {
	return api.get(ctx, endpoint, "/internal/ping", nil)
}

type namedItem struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (api *apiImpl) Samplers(ctx context.Context, endpoint Endpoint) ([]string, error) {
	var samplers []namedItem

	err := api.get(ctx, endpoint, "/sdapi/v1/samplers", &samplers)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(samplers))
	for _, sampler := range samplers {
		names = append(names, sampler.Name)
	}

	return names, nil
}

func (api *apiImpl) Schedulers(ctx context.Context, endpoint Endpoint) ([]string, error) {
	var schedulers []namedItem

	err := api.get(ctx, endpoint, "/sdapi/v1/schedulers", &schedulers)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(schedulers))
	for _, scheduler := range schedulers {
		if scheduler.Label != "" {
			names = append(names, scheduler.Label)
		} else {
			names = append(names, scheduler.Name)
		}
	}

	return names, nil
}

type sdModel struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
}

func (api *apiImpl) Models(ctx context.Context, endpoint Endpoint) ([]ModelOption, error) {
	var models []sdModel

	err := api.get(ctx, endpoint, "/sdapi/v1/sd-models", &models)
	if err != nil {
		return nil, err
	}

	options := make([]ModelOption, 0, len(models))
	for _, model := range models {
		options = append(options, ModelOption{Text: model.Title, Value: model.Title})
	}

	return options, nil
}

type sdVAE struct {
	ModelName string `json:"model_name"`
}

func (api *apiImpl) VAEs(ctx context.Context, endpoint Endpoint) ([]string, error) {
	var vaes []sdVAE

	err := api.get(ctx, endpoint, "/sdapi/v1/sd-vae", &vaes)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(vaes))
	for _, vae := range vaes {
		names = append(names, vae.ModelName)
	}

	return names, nil
}

// Upscalers lists the latent upscale modes followed by the regular upscalers, as the hires fix accepts both.
func (api *apiImpl) Upscalers(ctx context.Context, endpoint Endpoint) ([]string, error) {
	var upscalers []namedItem

	err := api.get(ctx, endpoint, "/sdapi/v1/upscalers", &upscalers)
	if err != nil {
		return nil, err
	}

	var latentModes []namedItem

	latentErr := api.get(ctx, endpoint, "/sdapi/v1/latent-upscale-modes", &latentModes)
	if latentErr != nil {
		log.Debug().Err(latentErr).Msg("Latent upscale modes unavailable")

		latentModes = nil
	}

	names := make([]string, 0, len(upscalers)+len(latentModes))

	for _, mode := range latentModes {
		names = append(names, mode.Name)
	}

	for _, upscaler := range upscalers {
		if upscaler.Name == "None" {
			continue
		}

		names = append(names, upscaler.Name)
	}

	return names, nil
}

type optionsResponse struct {
	SDModelCheckpoint string `json:"sd_model_checkpoint"`
}

func (api *apiImpl) CurrentModel(ctx context.Context, endpoint Endpoint) (string, error) {
	options := &optionsResponse{}

	err := api.get(ctx, endpoint, "/sdapi/v1/options", options)
	if err != nil {
		return "", err
	}

	return options.SDModelCheckpoint, nil
}

func (api *apiImpl) SetModel(ctx context.Context, endpoint Endpoint, model string) error {
	if model == "" {
		return errors.New("missing model")
	}

	return api.post(ctx, endpoint, "/sdapi/v1/options", &optionsResponse{SDModelCheckpoint: model}, nil)
}

func (api *apiImpl) TextToImage(ctx context.Context, endpoint Endpoint, req *TextToImageRequest) (*TextToImageResponse, error) {
	if req == nil {
		return nil, errors.New("missing request")
	}

	respStruct := &TextToImageResponse{}

	err := api.post(ctx, endpoint, "/sdapi/v1/txt2img", req, respStruct)
	if err != nil {
		return nil, err
	}

	return respStruct, nil
}

func (api *apiImpl) Progress(ctx context.Context, endpoint Endpoint) (*ProgressResponse, error) {
	respStruct := &ProgressResponse{}

	err := api.get(ctx, endpoint, "/sdapi/v1/progress?skip_current_image=true", respStruct)
	if err != nil {
		return nil, err
	}

	return respStruct, nil
}
