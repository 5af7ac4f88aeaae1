package report

import (
	"context"
	"regexp"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/chat"
)

// messageLinkPattern matches the three numeric identifiers of a message
// permalink, tolerating surrounding text.
var messageLinkPattern = regexp.MustCompile(`/(\d+)/(\d+)/(\d+)`)

// Locator identifies a message by guild, channel, and message IDs.
type Locator struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// ParseLocator extracts a message locator from free text. Returns false if
// the text does not contain a message link.
func ParseLocator(text string) (Locator, bool) {
	match := messageLinkPattern.FindStringSubmatch(text)
	if match == nil {
		return Locator{}, false
	}

	guildID, err := snowflake.Parse(match[1])
	if err != nil {
		return Locator{}, false
	}

	channelID, err := snowflake.Parse(match[2])
	if err != nil {
		return Locator{}, false
	}

	messageID, err := snowflake.Parse(match[3])
	if err != nil {
		return Locator{}, false
	}

	return Locator{GuildID: guildID, ChannelID: channelID, MessageID: messageID}, true
}

// ResolutionStatus describes the outcome of resolving a message locator.
// Missing guilds, channels, and messages are ordinary outcomes here, not
// errors: the flow turns each into a retry prompt.
type ResolutionStatus int

const (
	ResolutionFound ResolutionStatus = iota
	ResolutionGuildNotFound
	ResolutionChannelNotFound
	ResolutionMessageNotFound
	ResolutionFailed
)

// Resolution is the result of a locator lookup. Message is only valid when
// Status is ResolutionFound.
type Resolution struct {
	Status  ResolutionStatus
	Message chat.Message
}

// MessageResolver looks up a message on the chat platform.
type MessageResolver interface {
	Resolve(ctx context.Context, loc Locator) Resolution
}
