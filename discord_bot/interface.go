package discord_bot

import "context"

type Bot interface {
	// Start serves interactions until ctx is done, then tears the bot down.
	Start(ctx context.Context)
}
