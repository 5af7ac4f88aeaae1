// Package bot hosts the Discord gateway client and routes messages and
// interactions into the moderation pipeline.
package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/ledger"
	"github.com/wardenhq/warden/internal/nlp"
	"github.com/wardenhq/warden/internal/scoring"
	"go.uber.org/zap"
)

// handlerTimeout bounds the work done for a single gateway event.
const handlerTimeout = 2 * time.Minute

// Bot connects the Discord gateway to the moderation pipeline.
type Bot struct {
	client       bot.Client
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// New initializes a Bot instance and configures the Discord client with the
// gateway intents and event listeners the pipeline needs. Message content
// intent is required to score channel traffic.
func New(
	token string,
	channelSuffix string,
	abuseLedger *ledger.Ledger,
	scorer scoring.Scorer,
	extractor nlp.Extractor,
	logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{logger: logger.Named("bot")}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentDirectMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildReady:           b.handleGuildReady,
			OnMessageCreate:        b.handleMessageCreate,
			OnMessageUpdate:        b.handleMessageUpdate,
			OnComponentInteraction: b.handleComponentInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client
	b.orchestrator = NewOrchestrator(client, abuseLedger, scorer, extractor, channelSuffix, logger)

	return b, nil
}

// Start opens the gateway connection to begin receiving events.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
}

// handleGuildReady discovers the monitored and moderator channel pairs for
// each guild as it becomes available.
func (b *Bot) handleGuildReady(event *events.GuildReady) {
	go func() {
		defer b.recoverPanic("guild ready handler")

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		channels, err := b.client.Rest().GetGuildChannels(event.Guild.ID, rest.WithCtx(ctx))
		if err != nil {
			b.logger.Error("Failed to fetch guild channels",
				zap.Uint64("guildID", uint64(event.Guild.ID)),
				zap.Error(err))

			return
		}

		b.orchestrator.RegisterGuildChannels(event.Guild.ID, channels)
	}()
}

// handleMessageCreate routes guild messages into the scoring pipeline and
// direct messages into the report intake flow.
func (b *Bot) handleMessageCreate(event *events.MessageCreate) {
	if event.Message.Author.Bot {
		return
	}

	go func() {
		defer b.recoverPanic("message create handler")

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if event.GuildID == nil {
			b.handleDirectMessage(ctx, event.Message)
			return
		}

		b.orchestrator.ProcessGuildMessage(ctx, messageFrom(event.Message, *event.GuildID))
	}()
}

// handleMessageUpdate reprocesses edited guild messages so edits cannot
// slip abusive content past the pipeline.
func (b *Bot) handleMessageUpdate(event *events.MessageUpdate) {
	if event.Message.Author.Bot || event.GuildID == nil {
		return
	}

	go func() {
		defer b.recoverPanic("message update handler")

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		b.orchestrator.ProcessGuildMessage(ctx, messageFrom(event.Message, *event.GuildID))
	}()
}

// handleDirectMessage drives the reporter's intake flow and relays the
// flow's replies back to the DM channel.
func (b *Bot) handleDirectMessage(ctx context.Context, msg discord.Message) {
	replies := b.orchestrator.ProcessDirectMessage(ctx, msg.Author.ID, msg.Content)

	for _, reply := range replies {
		_, err := b.client.Rest().CreateMessage(msg.ChannelID,
			discord.NewMessageCreateBuilder().SetContent(reply).Build(),
			rest.WithCtx(ctx))
		if err != nil {
			b.logger.Error("Failed to send DM reply",
				zap.Uint64("reporterID", uint64(msg.Author.ID)),
				zap.Error(err))

			return
		}
	}
}

// handleComponentInteraction processes moderator button presses.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	go func() {
		defer b.recoverPanic("component interaction handler")

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		start := time.Now()
		b.orchestrator.HandleComponent(ctx, event)
		b.logger.Debug("Component interaction handled",
			zap.String("customID", event.Data.CustomID()),
			zap.Duration("duration", time.Since(start)))
	}()
}

func (b *Bot) recoverPanic(where string) {
	if r := recover(); r != nil {
		b.logger.Error("Panic in "+where, zap.Any("panic", r))
	}
}

// messageFrom converts a gateway message into the pipeline's message type.
func messageFrom(msg discord.Message, guildID snowflake.ID) chat.Message {
	return chat.Message{
		ID:         msg.ID,
		GuildID:    guildID,
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.Author.ID,
		AuthorName: msg.Author.Username,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}
