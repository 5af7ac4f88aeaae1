package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ErrMessageNotFound indicates a referenced message no longer exists on the
// platform. Callers treat this as a recoverable condition, not a failure.
var ErrMessageNotFound = errors.New("message not found")

// Message is an immutable snapshot of a chat message. The platform owns the
// message itself; the pipeline only holds copies for aggregation and review.
type Message struct {
	ID         snowflake.ID
	GuildID    snowflake.ID
	ChannelID  snowflake.ID
	AuthorID   snowflake.ID
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// JumpURL returns the permalink for the message.
func (m Message) JumpURL() string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", m.GuildID, m.ChannelID, m.ID)
}

// Quote formats the message as `author said: "content"` for embeds and
// notices, truncating long content.
func (m Message) Quote(limit int) string {
	return fmt.Sprintf("%s said: %q", m.AuthorName, Truncate(m.Content, limit))
}

// Truncate shortens a string to at most limit characters, appending an
// ellipsis when content was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
