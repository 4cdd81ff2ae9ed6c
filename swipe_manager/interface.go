package swipe_manager

import (
	"context"
	"errors"

	"stable_diffusion_chat/entities"
)

type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

type Outcome string

const (
	// OutcomeBusy means an earlier swipe on the same message is still resolving; nothing happened.
	OutcomeBusy Outcome = "busy"
	// OutcomeMoved means an existing image is now displayed.
	OutcomeMoved Outcome = "moved"
	// OutcomeGenerated means a new image was generated, appended and displayed.
	OutcomeGenerated Outcome = "generated"
	// OutcomeUnchanged means the list and the displayed image are as they were.
	OutcomeUnchanged Outcome = "unchanged"
)

var ErrUnknownDirection = errors.New("unknown swipe direction")

// Display renders the current image of a swipe list on its chat message.
//
// A Display that also implements image_generator.StopAffordance gets the stop control shown while a swipe
// generates a new image.
type Display interface {
	ShowImage(ctx context.Context, images *entities.MessageImages) error
}

type Manager interface {
	Swipe(ctx context.Context, messageID string, direction Direction, display Display) (Outcome, error)
}
