package settings_manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/repositories"
	"stable_diffusion_chat/repositories/extension_settings"

	"github.com/rs/zerolog/log"
)

const DefaultModule = "rm_sd"

var (
	ErrUnknownField  = errors.New("unknown setting")
	ErrOutOfRange    = errors.New("value out of range")
	ErrUnknownOption = errors.New("unknown option")
	ErrUnknownStyle  = errors.New("unknown style")
	ErrEmptyName     = errors.New("empty name")
)

type Config struct {
	Repo extension_settings.Repository
	// Module is the key the settings document is stored under. Defaults to DefaultModule.
	Module string
}

type managerImpl struct {
	repo   extension_settings.Repository
	module string

	mu       sync.RWMutex
	settings *entities.GenerationSettings

	// The persisted seed stays in settings; an active override only shows up in snapshots.
	seedOverride      *int64
	seedOverrideToken int
}

func New(cfg Config) (Manager, error) {
	if cfg.Repo == nil {
		return nil, errors.New("missing settings repository")
	}

	module := cfg.Module
	if module == "" {
		module = DefaultModule
	}

	return &managerImpl{
		repo:     cfg.Repo,
		module:   module,
		settings: entities.NewDefaultGenerationSettings(),
	}, nil
}

func (m *managerImpl) Load(ctx context.Context) error {
	data, err := m.repo.Get(ctx, m.module)
	if err != nil && !errors.Is(err, &repositories.NotFoundError{}) {
		return err
	}

	settings := entities.NewDefaultGenerationSettings()

	if err == nil && len(data) > 0 {
		err = json.Unmarshal(data, settings)
		if err != nil {
			return fmt.Errorf("decoding settings: %w", err)
		}
	}

	if settings.CharacterPrompts == nil {
		settings.CharacterPrompts = map[string]string{}
	}

	if settings.CharacterNegativePrompts == nil {
		settings.CharacterNegativePrompts = map[string]string{}
	}

	if settings.Styles == nil {
		settings.Styles = entities.DefaultStyles()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.persistLocked(ctx, settings)
	if err != nil {
		return err
	}

	m.settings = settings

	log.Info().
		Str("module", m.module).
		Str("url", settings.URL).
		Str("style", settings.Style).
		Msg("Loaded generation settings")

	return nil
}

func (m *managerImpl) Settings() *entities.GenerationSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.settings.Clone()
	if m.seedOverride != nil {
		snapshot.Seed = *m.seedOverride
	}

	return snapshot
}

// update applies a mutation to a copy under the lock. The copy becomes current only once it is persisted.
func (m *managerImpl) update(ctx context.Context, mutate func(s *entities.GenerationSettings) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.settings.Clone()

	err := mutate(next)
	if err != nil {
		return err
	}

	return m.commitLocked(ctx, next)
}

func (m *managerImpl) commitLocked(ctx context.Context, next *entities.GenerationSettings) error {
	err := m.persistLocked(ctx, next)
	if err != nil {
		return err
	}

	m.settings = next

	return nil
}

func (m *managerImpl) persistLocked(ctx context.Context, settings *entities.GenerationSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	err = m.repo.Upsert(ctx, m.module, data)
	if err != nil {
		log.Error().Err(err).Str("module", m.module).Msg("Failed to persist settings")

		return err
	}

	return nil
}

func (m *managerImpl) SetNumber(ctx context.Context, name string, value float64) error {
	field, ok := entities.LookupNumericField(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}

	if !field.Range.Contains(value) {
		return fmt.Errorf("%w: %s must be between %g and %g", ErrOutOfRange, name, field.Range.Min, field.Range.Max)
	}

	return m.update(ctx, func(s *entities.GenerationSettings) error {
		field.Set(s, value)

		return nil
	})
}

func selectionField(s *entities.GenerationSettings, field Selection) (*string, error) {
	switch field {
	case SelectionSampler:
		return &s.Sampler, nil
	case SelectionScheduler:
		return &s.Scheduler, nil
	case SelectionUpscaler:
		return &s.HRUpscaler, nil
	case SelectionVAE:
		return &s.VAE, nil
	case SelectionModel:
		return &s.Model, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

func (m *managerImpl) SetSelection(ctx context.Context, field Selection, value string) error {
	return m.update(ctx, func(s *entities.GenerationSettings) error {
		target, err := selectionField(s, field)
		if err != nil {
			return err
		}

		*target = value

		return nil
	})
}

// EnsureSelection sets the field only when value is one of the offered options.
func (m *managerImpl) EnsureSelection(ctx context.Context, field Selection, value string, options []string) error {
	if !slices.Contains(options, value) {
		return fmt.Errorf("%w: %s %q", ErrUnknownOption, field, value)
	}

	return m.SetSelection(ctx, field, value)
}

// FillEmptySelection picks the first option for an unset field. A list led by the N/A marker selects nothing.
func (m *managerImpl) FillEmptySelection(ctx context.Context, field Selection, options []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.settings.Clone()

	target, err := selectionField(next, field)
	if err != nil {
		return err
	}

	if *target != "" || len(options) == 0 || options[0] == entities.NotApplicable {
		return nil
	}

	*target = options[0]

	err = m.commitLocked(ctx, next)
	if err != nil {
		return err
	}

	log.Info().Str("field", string(field)).Str("value", options[0]).Msg("Selected default option")

	return nil
}

func (m *managerImpl) SetText(ctx context.Context, field TextField, value string) error {
	return m.update(ctx, func(s *entities.GenerationSettings) error {
		switch field {
		case TextPromptPrefix:
			s.PromptPrefix = value
		case TextNegativePrompt:
			s.NegativePrompt = value
		case TextTriggerPrompt:
			s.TriggerPrompt = value
		case TextMessageTemplate:
			s.MessageTemplate = value
		case TextURL:
			s.URL = strings.TrimSpace(value)
		case TextAuth:
			s.Auth = value
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}

		return nil
	})
}

func (m *managerImpl) SetFlag(ctx context.Context, flag Flag, value bool) error {
	return m.update(ctx, func(s *entities.GenerationSettings) error {
		switch flag {
		case FlagRestoreFaces:
			s.RestoreFaces = value
		case FlagEnableHR:
			s.EnableHR = value
		case FlagADetailerFace:
			s.ADetailerFace = value
		case FlagReferenceEnabled:
			s.ReferenceEnabled = value
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, flag)
		}

		return nil
	})
}

func (m *managerImpl) SetSeed(ctx context.Context, seed int64) error {
	if seed < -1 {
		return fmt.Errorf("%w: seed must be -1 or a non-negative number", ErrOutOfRange)
	}

	return m.update(ctx, func(s *entities.GenerationSettings) error {
		s.Seed = seed

		return nil
	})
}

func (m *managerImpl) SetResolution(ctx context.Context, id string) error {
	resolution, ok := LookupResolution(id)
	if !ok {
		return fmt.Errorf("%w: resolution %s", ErrUnknownOption, id)
	}

	return m.update(ctx, func(s *entities.GenerationSettings) error {
		s.Width = resolution.Width
		s.Height = resolution.Height

		return nil
	})
}

func (m *managerImpl) SwapDimensions(ctx context.Context) error {
	return m.update(ctx, func(s *entities.GenerationSettings) error {
		s.Width, s.Height = s.Height, s.Width

		return nil
	})
}

func (m *managerImpl) SelectStyle(ctx context.Context, name string) error {
	return m.update(ctx, func(s *entities.GenerationSettings) error {
		_, style := s.FindStyle(name)
		if style == nil {
			log.Warn().Str("style", name).Msg("Could not find style")

			return fmt.Errorf("%w: %s", ErrUnknownStyle, name)
		}

		s.PromptPrefix = style.Prefix
		s.NegativePrompt = style.Negative
		s.Style = style.Name

		return nil
	})
}

// SaveStyle stores the current prefix and negative prompt under name, replacing an existing style of that name.
func (m *managerImpl) SaveStyle(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	return m.update(ctx, func(s *entities.GenerationSettings) error {
		_, existing := s.FindStyle(name)
		if existing != nil {
			existing.Prefix = s.PromptPrefix
			existing.Negative = s.NegativePrompt
		} else {
			s.Styles = append(s.Styles, entities.Style{
				Name:     name,
				Prefix:   s.PromptPrefix,
				Negative: s.NegativePrompt,
			})
		}

		s.Style = name

		return nil
	})
}

func (m *managerImpl) DeleteStyle(ctx context.Context, name string) error {
	return m.update(ctx, func(s *entities.GenerationSettings) error {
		idx, _ := s.FindStyle(name)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrUnknownStyle, name)
		}

		s.Styles = slices.Delete(s.Styles, idx, idx+1)

		if len(s.Styles) > 0 {
			s.Style = s.Styles[0].Name
			s.PromptPrefix = s.Styles[0].Prefix
			s.NegativePrompt = s.Styles[0].Negative
		} else {
			s.Style = ""
			s.PromptPrefix = ""
			s.NegativePrompt = ""
		}

		return nil
	})
}

func (m *managerImpl) CharacterPrompt(key string) entities.CharacterPrompt {
	if key == "" {
		return entities.CharacterPrompt{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return entities.CharacterPrompt{
		Positive: m.settings.CharacterPrompts[key],
		Negative: m.settings.CharacterNegativePrompts[key],
	}
}

func (m *managerImpl) SetCharacterPrompt(ctx context.Context, key, positive string) error {
	if key == "" {
		return ErrEmptyName
	}

	return m.update(ctx, func(s *entities.GenerationSettings) error {
		s.CharacterPrompts[key] = positive

		return nil
	})
}

func (m *managerImpl) SetCharacterNegativePrompt(ctx context.Context, key, negative string) error {
	if key == "" {
		return ErrEmptyName
	}

	return m.update(ctx, func(s *entities.GenerationSettings) error {
		s.CharacterNegativePrompts[key] = negative

		return nil
	})
}

// ReconcileCharacterPrompt copies the shared prompt into empty local fields. Non-empty local values always win.
func (m *managerImpl) ReconcileCharacterPrompt(ctx context.Context, key string, shared *entities.CharacterPrompt) (entities.CharacterPrompt, error) {
	if key == "" {
		return entities.CharacterPrompt{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	local := entities.CharacterPrompt{
		Positive: m.settings.CharacterPrompts[key],
		Negative: m.settings.CharacterNegativePrompts[key],
	}

	if shared == nil {
		return local, nil
	}

	changed := false
	next := m.settings.Clone()

	if local.Positive == "" && shared.Positive != "" {
		local.Positive = shared.Positive
		next.CharacterPrompts[key] = shared.Positive
		changed = true
	}

	if local.Negative == "" && shared.Negative != "" {
		local.Negative = shared.Negative
		next.CharacterNegativePrompts[key] = shared.Negative
		changed = true
	}

	if !changed {
		return local, nil
	}

	log.Info().Str("character", key).Msg("Populated character prompt from shared data")

	return local, m.commitLocked(ctx, next)
}

// OverrideSeed makes snapshots report seed until restore is called. The override is never persisted.
func (m *managerImpl) OverrideSeed(seed int64) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seedOverrideToken++
	token := m.seedOverrideToken
	m.seedOverride = &seed

	var once sync.Once

	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			if m.seedOverrideToken == token {
				m.seedOverride = nil
			}
		})
	}
}
