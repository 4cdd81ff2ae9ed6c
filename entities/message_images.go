package entities

import "time"

type Initiator string

const (
	InitiatorWand    Initiator = "wand"
	InitiatorSwipe   Initiator = "swipe"
	InitiatorCommand Initiator = "command"
)

// MessageImages is the swipe list of one chat message: every image generated for it, in order.
type MessageImages struct {
	MessageID      string    `json:"message_id"`
	ChannelID      string    `json:"channel_id"`
	Title          string    `json:"title"`
	Negative       string    `json:"negative"`
	GenerationType int       `json:"generation_type"`
	Initiator      Initiator `json:"initiator"`
	Image          string    `json:"image"`
	Swipes         []string  `json:"image_swipes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CurrentIndex finds the displayed image by value. It returns -1 if the image is not part of the list.
func (m *MessageImages) CurrentIndex() int {
	for idx, swipe := range m.Swipes {
		if swipe == m.Image {
			return idx
		}
	}

	return -1
}
