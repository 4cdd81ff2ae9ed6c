package swipe_manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/metrics"
	"stable_diffusion_chat/repositories/message_images"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MessageImages message_images.Repository
	Generator     image_generator.Generator
}

type managerImpl struct {
	messageImages message_images.Repository
	generator     image_generator.Generator

	mu      sync.Mutex
	swiping map[string]struct{}
}

func New(cfg Config) (Manager, error) {
	if cfg.MessageImages == nil {
		return nil, errors.New("missing message images repository")
	}

	if cfg.Generator == nil {
		return nil, errors.New("missing image generator")
	}

	return &managerImpl{
		messageImages: cfg.MessageImages,
		generator:     cfg.Generator,
		swiping:       make(map[string]struct{}),
	}, nil
}

func (m *managerImpl) begin(messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.swiping[messageID]; ok {
		return false
	}

	m.swiping[messageID] = struct{}{}

	return true
}

func (m *managerImpl) end(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.swiping, messageID)
}

func (m *managerImpl) Swipe(ctx context.Context, messageID string, direction Direction, display Display) (Outcome, error) {
	if direction != DirectionLeft && direction != DirectionRight {
		return OutcomeUnchanged, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	if !m.begin(messageID) {
		log.Debug().Str("message_id", messageID).Msg("Swipe already in progress")

		return OutcomeBusy, nil
	}
	defer m.end(messageID)

	images, err := m.messageImages.GetByMessageID(ctx, messageID)
	if err != nil {
		return OutcomeUnchanged, err
	}

	length := len(images.Swipes)

	current := images.CurrentIndex()
	if current < 0 {
		// The displayed image is not in the list; treat the newest entry as current.
		current = length - 1
	}

	switch {
	case direction == DirectionLeft && length == 0:
		return OutcomeUnchanged, nil
	case direction == DirectionLeft:
		return m.show(ctx, images, (current-1+length)%length, "left", display)
	case current+1 < length:
		return m.show(ctx, images, current+1, "right", display)
	default:
		return m.generate(ctx, images, display)
	}
}

func (m *managerImpl) show(ctx context.Context, images *entities.MessageImages, index int, direction string, display Display) (Outcome, error) {
	images.Image = images.Swipes[index]

	_, err := m.messageImages.Update(ctx, images)
	if err != nil {
		return OutcomeUnchanged, err
	}

	metrics.RecordSwipe(direction)

	return OutcomeMoved, display.ShowImage(ctx, images)
}

func (m *managerImpl) generate(ctx context.Context, images *entities.MessageImages, display Display) (Outcome, error) {
	req := image_generator.Request{
		ChannelID:          images.ChannelID,
		Initiator:          entities.InitiatorSwipe,
		GenerationType:     images.GenerationType,
		Prompt:             images.Title,
		AdditionalNegative: images.Negative,
		RandomizeSeed:      true,
		// The swipe list takes the image; no new message is posted.
		OnImage: func(context.Context, *image_generator.GeneratedImage) error { return nil },
	}

	if stop, ok := display.(image_generator.StopAffordance); ok {
		req.Stop = stop
	}

	result, err := m.generator.Generate(ctx, req)
	if err != nil {
		return OutcomeUnchanged, err
	}

	if result.Status != image_generator.StateResolved {
		log.Info().
			Str("message_id", images.MessageID).
			Str("state", string(result.Status)).
			Msg("Swipe generation did not produce an image")

		return OutcomeUnchanged, nil
	}

	updated := *images
	updated.Swipes = append(slices.Clone(images.Swipes), result.Image.Image)
	updated.Image = result.Image.Image

	_, err = m.messageImages.Update(ctx, &updated)
	if err != nil {
		return OutcomeUnchanged, err
	}

	metrics.RecordSwipe("generate")

	return OutcomeGenerated, display.ShowImage(ctx, &updated)
}
