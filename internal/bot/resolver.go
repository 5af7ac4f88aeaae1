package bot

import (
	"context"
	"errors"
	"net/http"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/report"
	"go.uber.org/zap"
)

// restResolver resolves message links against the Discord REST API. Each
// lookup level failing with a 404 produces a distinct resolution status so
// the intake flow can tell the reporter what was wrong with their link.
type restResolver struct {
	client bot.Client
	logger *zap.Logger
}

func newRestResolver(client bot.Client, logger *zap.Logger) *restResolver {
	return &restResolver{
		client: client,
		logger: logger.Named("resolver"),
	}
}

func (r *restResolver) Resolve(ctx context.Context, loc report.Locator) report.Resolution {
	opt := rest.WithCtx(ctx)

	if _, err := r.client.Rest().GetGuild(loc.GuildID, false, opt); err != nil {
		if isNotFound(err) {
			return report.Resolution{Status: report.ResolutionGuildNotFound}
		}

		r.logger.Warn("Failed to fetch guild", zap.Uint64("guildID", uint64(loc.GuildID)), zap.Error(err))

		return report.Resolution{Status: report.ResolutionFailed}
	}

	if _, err := r.client.Rest().GetChannel(loc.ChannelID, opt); err != nil {
		if isNotFound(err) {
			return report.Resolution{Status: report.ResolutionChannelNotFound}
		}

		r.logger.Warn("Failed to fetch channel", zap.Uint64("channelID", uint64(loc.ChannelID)), zap.Error(err))

		return report.Resolution{Status: report.ResolutionFailed}
	}

	msg, err := r.client.Rest().GetMessage(loc.ChannelID, loc.MessageID, opt)
	if err != nil {
		if isNotFound(err) {
			return report.Resolution{Status: report.ResolutionMessageNotFound}
		}

		r.logger.Warn("Failed to fetch message", zap.Uint64("messageID", uint64(loc.MessageID)), zap.Error(err))

		return report.Resolution{Status: report.ResolutionFailed}
	}

	return report.Resolution{
		Status: report.ResolutionFound,
		Message: chat.Message{
			ID:         msg.ID,
			GuildID:    loc.GuildID,
			ChannelID:  msg.ChannelID,
			AuthorID:   msg.Author.ID,
			AuthorName: msg.Author.Username,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt,
		},
	}
}

// isNotFound reports whether a REST error is a Discord 404.
func isNotFound(err error) bool {
	var restErr *rest.Error
	if !errors.As(err, &restErr) {
		return false
	}

	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
