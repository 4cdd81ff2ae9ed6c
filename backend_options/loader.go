package backend_options

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/metrics"
	"stable_diffusion_chat/settings_manager"
	"stable_diffusion_chat/stable_diffusion_api"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultTTL = 5 * time.Minute

// Options are the choices the backend currently offers. Lists that could not be fetched hold their fallback values.
type Options struct {
	Samplers   []string
	Models     []stable_diffusion_api.ModelOption
	Upscalers  []string
	Schedulers []string
	VAEs       []string
}

func (o *Options) ModelValues() []string {
	values := make([]string, 0, len(o.Models))
	for _, model := range o.Models {
		values = append(values, model.Value)
	}

	return values
}

type Loader interface {
	// LoadAll returns the cached options for the configured backend, fetching them if needed,
	// and fills empty selections in the settings.
	LoadAll(ctx context.Context) (*Options, error)
	// Refresh drops the cached options and loads them again.
	Refresh(ctx context.Context) (*Options, error)
	// ApplyModel switches the backend to the model stored in the settings.
	ApplyModel(ctx context.Context) error
}

type Config struct {
	API      stable_diffusion_api.StableDiffusionAPI
	Settings settings_manager.Manager
	TTL      time.Duration
}

type loaderImpl struct {
	api      stable_diffusion_api.StableDiffusionAPI
	settings settings_manager.Manager
	cache    *cache.Cache
	group    singleflight.Group
}

func New(cfg Config) (Loader, error) {
	if cfg.API == nil {
		return nil, errors.New("missing stable diffusion API")
	}

	if cfg.Settings == nil {
		return nil, errors.New("missing settings manager")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &loaderImpl{
		api:      cfg.API,
		settings: cfg.Settings,
		cache:    cache.New(ttl, 2*ttl),
	}, nil
}

func cacheKey(endpoint stable_diffusion_api.Endpoint) string {
	return endpoint.URL + "|" + endpoint.Auth
}

func (l *loaderImpl) LoadAll(ctx context.Context) (*Options, error) {
	settings := l.settings.Settings()
	endpoint := stable_diffusion_api.Endpoint{URL: settings.URL, Auth: settings.Auth}

	if endpoint.URL == "" {
		return &Options{
			Samplers:   []string{},
			Models:     []stable_diffusion_api.ModelOption{},
			Upscalers:  []string{settings.HRUpscaler},
			Schedulers: []string{entities.NotApplicable},
			VAEs:       []string{entities.NotApplicable},
		}, nil
	}

	key := cacheKey(endpoint)

	if cached, ok := l.cache.Get(key); ok {
		options := cached.(*Options)

		return options, l.fillSelections(ctx, options)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// The shared fetch outlives any single caller; each caller stops waiting on its own context.
	resultCh := l.group.DoChan(key, func() (interface{}, error) {
		if cached, ok := l.cache.Get(key); ok {
			return cached, nil
		}

		options, degraded, fetchErr := l.fetch(context.WithoutCancel(ctx), endpoint, settings.HRUpscaler)
		if fetchErr != nil {
			return nil, fetchErr
		}

		// Fallback lists are served but not cached, so a recovered backend is picked up on the next load.
		if !degraded {
			l.cache.SetDefault(key, options)
		}

		return options, nil
	})

	var result singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-resultCh:
	}

	if result.Err != nil {
		return nil, result.Err
	}

	options, ok := result.Val.(*Options)
	if !ok {
		return nil, fmt.Errorf("unexpected return type from singleflight: %T", result.Val)
	}

	return options, l.fillSelections(ctx, options)
}

func (l *loaderImpl) Refresh(ctx context.Context) (*Options, error) {
	settings := l.settings.Settings()
	l.cache.Delete(cacheKey(stable_diffusion_api.Endpoint{URL: settings.URL, Auth: settings.Auth}))

	return l.LoadAll(ctx)
}

// fetch never fails because of the backend; each list degrades to its fallback and degraded reports
// whether any did. Only cancellation is returned as an error.
func (l *loaderImpl) fetch(ctx context.Context, endpoint stable_diffusion_api.Endpoint, configuredUpscaler string) (*Options, bool, error) {
	options := &Options{}
	var degraded atomic.Bool
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		samplers, err := l.api.Samplers(egCtx, endpoint)
		if err != nil {
			logFailure("samplers", err)
			degraded.Store(true)
			samplers = []string{}
		}

		options.Samplers = samplers

		return nil
	})

	eg.Go(func() error {
		models, ok := l.fetchModels(egCtx, endpoint)
		if !ok {
			degraded.Store(true)
		}

		options.Models = models

		return nil
	})

	eg.Go(func() error {
		upscalers, err := l.api.Upscalers(egCtx, endpoint)
		if err != nil || len(upscalers) == 0 {
			logFailure("upscalers", err)
			if err != nil {
				degraded.Store(true)
			}

			upscalers = []string{configuredUpscaler}
		}

		options.Upscalers = upscalers

		return nil
	})

	eg.Go(func() error {
		schedulers, err := l.api.Schedulers(egCtx, endpoint)
		if err != nil {
			logFailure("schedulers", err)
			degraded.Store(true)
			schedulers = []string{entities.NotApplicable}
		}

		options.Schedulers = schedulers

		return nil
	})

	eg.Go(func() error {
		vaes, err := l.api.VAEs(egCtx, endpoint)
		if err != nil {
			logFailure("vaes", err)
			degraded.Store(true)
			options.VAEs = []string{entities.NotApplicable}

			return nil
		}

		options.VAEs = append([]string{entities.PlaceholderVAE}, vaes...)

		return nil
	})

	err := eg.Wait()
	if err != nil {
		return nil, false, err
	}

	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	return options, degraded.Load(), nil
}

// fetchModels reads the backend's active model into the settings before listing the models.
// ok is false when the list could not be fetched.
func (l *loaderImpl) fetchModels(ctx context.Context, endpoint stable_diffusion_api.Endpoint) ([]stable_diffusion_api.ModelOption, bool) {
	currentModel, err := l.api.CurrentModel(ctx, endpoint)
	if err != nil {
		logFailure("current_model", err)
	} else if currentModel != "" {
		err = l.settings.SetSelection(ctx, settings_manager.SelectionModel, currentModel)
		if err != nil {
			log.Error().Err(err).Msg("Could not store current model")
		}
	}

	models, err := l.api.Models(ctx, endpoint)
	if err != nil {
		logFailure("models", err)

		return []stable_diffusion_api.ModelOption{}, false
	}

	return models, true
}

func (l *loaderImpl) fillSelections(ctx context.Context, options *Options) error {
	return errors.Join(
		l.settings.FillEmptySelection(ctx, settings_manager.SelectionSampler, options.Samplers),
		l.settings.FillEmptySelection(ctx, settings_manager.SelectionModel, options.ModelValues()),
		l.settings.FillEmptySelection(ctx, settings_manager.SelectionScheduler, options.Schedulers),
		l.settings.FillEmptySelection(ctx, settings_manager.SelectionVAE, options.VAEs),
	)
}

func (l *loaderImpl) ApplyModel(ctx context.Context) error {
	settings := l.settings.Settings()
	endpoint := stable_diffusion_api.Endpoint{URL: settings.URL, Auth: settings.Auth}

	if settings.Model == "" {
		return errors.New("no model selected")
	}

	err := l.api.SetModel(ctx, endpoint, settings.Model)
	if err != nil {
		log.Error().Err(err).Str("model", settings.Model).Msg("Could not update backend model")

		return err
	}

	log.Info().Str("model", settings.Model).Msg("Model successfully updated on backend")

	// The cached current model is stale now.
	l.cache.Delete(cacheKey(endpoint))

	return nil
}

func logFailure(option string, err error) {
	metrics.RecordOptionFetchFailure(option)

	log.Warn().Err(err).Str("option", option).Msg("Could not load backend options, using fallback")
}
