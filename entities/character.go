package entities

type CharacterPrompt struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// Character is a chat persona. SharedPrompt is the copy of the prompt prefixes stored with the character itself.
type Character struct {
	Key          string           `json:"key"`
	Name         string           `json:"name"`
	AvatarURL    string           `json:"avatar_url"`
	SharedPrompt *CharacterPrompt `json:"shared_prompt,omitempty"`
}

// ChatSession is the active chat of a channel. ChatID changes every time the chat is switched.
type ChatSession struct {
	ChannelID    string `json:"channel_id"`
	ChatID       string `json:"chat_id"`
	CharacterKey string `json:"character_key"`
	GroupID      string `json:"group_id"`
	// Members are the character keys of a group chat.
	Members []string `json:"members,omitempty"`
}

func (c *ChatSession) IsGroup() bool {
	return c.GroupID != ""
}
