package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/chat"
)

// restActions backs the enforcement surface with Discord REST calls.
type restActions struct {
	client bot.Client
}

func newRestActions(client bot.Client) *restActions {
	return &restActions{client: client}
}

func (a *restActions) DeleteMessage(ctx context.Context, msg chat.Message) error {
	if err := a.client.Rest().DeleteMessage(msg.ChannelID, msg.ID, rest.WithCtx(ctx)); err != nil {
		// A message already gone counts as deleted.
		if isNotFound(err) {
			return nil
		}

		return fmt.Errorf("delete message %d: %w", msg.ID, err)
	}

	return nil
}

func (a *restActions) KickUser(ctx context.Context, guildID, userID snowflake.ID) error {
	if err := a.client.Rest().RemoveMember(guildID, userID, rest.WithCtx(ctx)); err != nil {
		if isNotFound(err) {
			return nil
		}

		return fmt.Errorf("kick user %d: %w", userID, err)
	}

	return nil
}

func (a *restActions) NotifyReporter(ctx context.Context, reporterID snowflake.ID, content string) error {
	channel, err := a.client.Rest().CreateDMChannel(reporterID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}

	_, err = a.client.Rest().CreateMessage(channel.ID(),
		discord.NewMessageCreateBuilder().SetContent(content).Build(),
		rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("send reporter notice: %w", err)
	}

	return nil
}
