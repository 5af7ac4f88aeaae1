package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/wardenhq/warden/internal/bot/constants"
	"github.com/wardenhq/warden/internal/bot/views"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/ledger"
	"github.com/wardenhq/warden/internal/nlp"
	"github.com/wardenhq/warden/internal/report"
	"github.com/wardenhq/warden/internal/review"
	"github.com/wardenhq/warden/internal/scoring"
	"github.com/wardenhq/warden/pkg/utils"
	"go.uber.org/zap"
)

// alertRecord holds the enforcement targets behind an alert's buttons.
type alertRecord struct {
	messages []chat.Message
	// authors maps each distinct author to the guild they posted in.
	authors map[snowflake.ID]snowflake.ID
	// keywords surfaced with the alert, promotable into the flagged set.
	keywords []string
}

// Orchestrator wires the scoring pipeline, abuse ledger, report intake, and
// moderation cases together and routes Discord traffic between them.
type Orchestrator struct {
	client     bot.Client
	ledger     *ledger.Ledger
	normalizer *nlp.TextNormalizer
	scorer     scoring.Scorer
	extractor  nlp.Extractor
	resolver   report.MessageResolver
	actions    review.Actions
	logger     *zap.Logger

	channelSuffix string

	mu sync.Mutex
	// watched maps each monitored channel to its moderator channel.
	watched map[snowflake.ID]snowflake.ID
	// modByGuild maps each guild to its moderator channel for case posting.
	modByGuild map[snowflake.ID]snowflake.ID
	flows      map[snowflake.ID]*report.Flow
	cases      map[string]*review.Case
	alerts     map[string]*alertRecord
}

// NewOrchestrator creates the moderation pipeline around a Discord client.
func NewOrchestrator(
	client bot.Client,
	abuseLedger *ledger.Ledger,
	scorer scoring.Scorer,
	extractor nlp.Extractor,
	channelSuffix string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		client:        client,
		ledger:        abuseLedger,
		normalizer:    nlp.NewTextNormalizer(),
		scorer:        scorer,
		extractor:     extractor,
		resolver:      newRestResolver(client, logger),
		actions:       newRestActions(client),
		logger:        logger.Named("orchestrator"),
		channelSuffix: channelSuffix,
		watched:       make(map[snowflake.ID]snowflake.ID),
		modByGuild:    make(map[snowflake.ID]snowflake.ID),
		flows:         make(map[snowflake.ID]*report.Flow),
		cases:         make(map[string]*review.Case),
		alerts:        make(map[string]*alertRecord),
	}
}

// RegisterGuildChannels pairs up monitored and moderator channels for a
// guild. A channel "group-x" is monitored when the matching "group-x-mod"
// channel exists; a configured channel suffix restricts monitoring to that
// single pair.
func (o *Orchestrator) RegisterGuildChannels(guildID snowflake.ID, channels []discord.GuildChannel) {
	byName := make(map[string]snowflake.ID, len(channels))
	for _, channel := range channels {
		if channel.Type() == discord.ChannelTypeGuildText {
			byName[channel.Name()] = channel.ID()
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	registered := 0

	for name, id := range byName {
		if !strings.HasPrefix(name, constants.WatchedChannelPrefix) ||
			strings.HasSuffix(name, constants.ModeratorChannelSuffix) {
			continue
		}

		if o.channelSuffix != "" && name != constants.WatchedChannelPrefix+o.channelSuffix {
			continue
		}

		modID, ok := byName[name+constants.ModeratorChannelSuffix]
		if !ok {
			continue
		}

		o.watched[id] = modID
		o.modByGuild[guildID] = modID
		registered++
	}

	if registered > 0 {
		o.logger.Info("Registered guild channels",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Int("pairs", registered))
	}
}

// ProcessGuildMessage runs one monitored-channel message through the
// scoring pipeline and posts any alerts that surface.
func (o *Orchestrator) ProcessGuildMessage(ctx context.Context, msg chat.Message) {
	o.mu.Lock()
	modID, monitored := o.watched[msg.ChannelID]
	o.mu.Unlock()

	if !monitored {
		return
	}

	text := o.normalizer.Normalize(utils.CompressAllWhitespace(msg.Content))
	if text == "" {
		return
	}

	var (
		scores     scoring.ScoreVector
		extraction nlp.Extraction
	)

	// Scoring and extraction run concurrently but the ingest is
	// all-or-nothing: a failure in either skips the message entirely so no
	// partial signal leaks into the aggregates.
	p := pool.New().WithContext(ctx)

	p.Go(func(ctx context.Context) error {
		result, err := o.scorer.Score(ctx, text)
		if err != nil {
			return fmt.Errorf("score message: %w", err)
		}

		scores = result

		return nil
	})

	p.Go(func(ctx context.Context) error {
		result, err := o.extractor.Extract(ctx, text)
		if err != nil {
			return fmt.Errorf("extract entities: %w", err)
		}

		extraction = result

		return nil
	})

	if err := p.Wait(); err != nil {
		o.logger.Warn("Skipped message after pipeline failure",
			zap.Uint64("messageID", uint64(msg.ID)),
			zap.Error(err))

		return
	}

	o.ledger.Ingest(msg, scores, extraction.Entities, extraction.Tokens)

	o.postUserAlerts(ctx, modID)
	o.postEntityAlerts(ctx, modID)
}

// postUserAlerts surfaces users whose flagged message count crossed the
// threshold and posts one alert per user.
func (o *Orchestrator) postUserAlerts(ctx context.Context, modID snowflake.ID) {
	for _, abuse := range o.ledger.UsersExceedingThreshold() {
		record := &alertRecord{
			messages: abuse.Messages,
			authors:  make(map[snowflake.ID]snowflake.ID),
		}
		for _, msg := range abuse.Messages {
			record.authors[msg.AuthorID] = msg.GuildID
		}

		alertID := o.registerAlert(record)

		if _, err := o.client.Rest().CreateMessage(modID,
			views.NewUserAlertBuilder(alertID, abuse, nil).Build().Build(),
			rest.WithCtx(ctx)); err != nil {
			o.logger.Error("Failed to post user alert",
				zap.Uint64("userID", uint64(abuse.UserID)),
				zap.Error(err))
			o.dropAlert(alertID)
		}
	}
}

// postEntityAlerts surfaces entities whose targeting score crossed the
// threshold, along with any keywords that characterize the campaign.
func (o *Orchestrator) postEntityAlerts(ctx context.Context, modID snowflake.ID) {
	for _, abuse := range o.ledger.EntitiesExceedingThreshold() {
		keywords := o.ledger.SurfaceKeywords(abuse.Mentions, o.ledger.KeywordThreshold())

		record := &alertRecord{
			authors:  make(map[snowflake.ID]snowflake.ID),
			keywords: keywords,
		}
		for _, mention := range abuse.Mentions {
			record.messages = append(record.messages, mention.Message)
			record.authors[mention.Message.AuthorID] = mention.Message.GuildID
		}

		alertID := o.registerAlert(record)

		if _, err := o.client.Rest().CreateMessage(modID,
			views.NewEntityAlertBuilder(alertID, abuse, keywords).Build().Build(),
			rest.WithCtx(ctx)); err != nil {
			o.logger.Error("Failed to post entity alert",
				zap.String("entity", abuse.Entity),
				zap.Error(err))
			o.dropAlert(alertID)
		}
	}
}

func (o *Orchestrator) registerAlert(record *alertRecord) string {
	alertID := uuid.New().String()

	o.mu.Lock()
	o.alerts[alertID] = record
	o.mu.Unlock()

	return alertID
}

func (o *Orchestrator) dropAlert(alertID string) {
	o.mu.Lock()
	delete(o.alerts, alertID)
	o.mu.Unlock()
}

// ProcessDirectMessage routes one reporter DM through their intake flow and
// returns the replies to send back. Completed flows become moderation cases.
func (o *Orchestrator) ProcessDirectMessage(ctx context.Context, reporterID snowflake.ID, content string) []string {
	keyword := strings.ToLower(strings.TrimSpace(content))

	o.mu.Lock()
	flow, active := o.flows[reporterID]

	if !active {
		if keyword != report.StartKeyword {
			o.mu.Unlock()

			if keyword == report.HelpKeyword {
				return []string{"Use the `report` command to begin the reporting process.\n" +
					"Use the `cancel` command to cancel the report process."}
			}

			return nil
		}

		flow = report.NewFlow(reporterID, o.resolver, o.logger)
		o.flows[reporterID] = flow
	}
	o.mu.Unlock()

	replies := flow.Handle(ctx, content)

	if flow.IsComplete() {
		o.mu.Lock()
		delete(o.flows, reporterID)
		o.mu.Unlock()

		if !flow.Cancelled() {
			o.openCase(ctx, flow.Information())
		}
	}

	return replies
}

// openCase turns a completed report into a moderation case and posts it to
// the moderator channel of the guild the reported message came from.
func (o *Orchestrator) openCase(ctx context.Context, rep report.Report) {
	reviewCase := review.NewCase(rep, o.actions, o.logger)

	o.mu.Lock()
	modID, ok := o.modByGuild[rep.Message.GuildID]
	if ok {
		o.cases[reviewCase.ID()] = reviewCase
	}
	o.mu.Unlock()

	if !ok {
		o.logger.Warn("No moderator channel for reported guild",
			zap.String("caseID", reviewCase.ID()),
			zap.Uint64("guildID", uint64(rep.Message.GuildID)))

		return
	}

	if _, err := o.client.Rest().CreateMessage(modID,
		views.NewCaseBuilder(reviewCase).Build().Build(),
		rest.WithCtx(ctx)); err != nil {
		o.logger.Error("Failed to post case",
			zap.String("caseID", reviewCase.ID()),
			zap.Error(err))
	}
}

// HandleComponent dispatches a moderator button press to the matching case
// or alert. Custom IDs are encoded as "<prefix>:<id>:<action>".
func (o *Orchestrator) HandleComponent(ctx context.Context, event *events.ComponentInteractionCreate) {
	parts := strings.SplitN(event.Data.CustomID(), ":", 3)
	if len(parts) != 3 {
		return
	}

	switch parts[0] {
	case constants.CasePrefix:
		o.handleCaseAction(ctx, event, parts[1], parts[2])
	case constants.AlertPrefix:
		o.handleAlertAction(ctx, event, parts[1], parts[2])
	}
}

func (o *Orchestrator) handleCaseAction(
	ctx context.Context, event *events.ComponentInteractionCreate, caseID, action string,
) {
	o.mu.Lock()
	reviewCase, ok := o.cases[caseID]
	o.mu.Unlock()

	if !ok {
		o.respondEphemeral(event, "This case is no longer active.")
		return
	}

	handled, err := o.applyCaseAction(ctx, reviewCase, action)
	if !handled {
		return
	}

	if err != nil {
		o.logger.Error("Case action failed",
			zap.String("caseID", caseID),
			zap.String("action", action),
			zap.Error(err))
		o.respondEphemeral(event, "That action failed. Check the logs and try again.")

		return
	}

	o.retireCase(caseID, reviewCase)

	if err := event.UpdateMessage(views.NewCaseBuilder(reviewCase).BuildUpdate().Build()); err != nil {
		o.logger.Error("Failed to update case message",
			zap.String("caseID", caseID),
			zap.Error(err))
	}
}

// applyCaseAction performs one case transition. It reports whether the
// action was recognized.
func (o *Orchestrator) applyCaseAction(ctx context.Context, reviewCase *review.Case, action string) (bool, error) {
	var err error

	switch action {
	case constants.CaseActionReview:
		reviewCase.BeginReview()
	case constants.CaseActionAuthorities:
		reviewCase.AlertAuthorities()
	case constants.CaseActionAbusive:
		reviewCase.EvaluateViolation(true)
	case constants.CaseActionNotAbusive:
		reviewCase.EvaluateViolation(false)
	case constants.CaseActionDelete:
		err = reviewCase.DeleteReported(ctx)
	case constants.CaseActionKick:
		err = reviewCase.KickReportedAuthor(ctx)
	case constants.CaseActionDeleteCamp:
		err = reviewCase.DeleteCampaign(ctx)
	case constants.CaseActionKickCamp:
		err = reviewCase.KickCampaignAuthors(ctx)
	case constants.CaseActionEscalate:
		reviewCase.EscalateSecondaryTarget()
	case constants.CaseActionNotify:
		err = reviewCase.SendReporterNotice(ctx, o.reporterNotice(reviewCase))
	case constants.CaseActionClose:
		reviewCase.WithholdReporterNotice()
	default:
		return false, nil
	}

	return true, err
}

// retireCase drops a closed case from the registry along with any still-open
// intake flow from the same reporter.
func (o *Orchestrator) retireCase(caseID string, reviewCase *review.Case) {
	if !reviewCase.Closed() {
		return
	}

	o.mu.Lock()
	delete(o.cases, caseID)
	delete(o.flows, reviewCase.Report().ReporterID)
	o.mu.Unlock()
}

func (o *Orchestrator) handleAlertAction(
	ctx context.Context, event *events.ComponentInteractionCreate, alertID, action string,
) {
	o.mu.Lock()
	record, ok := o.alerts[alertID]
	o.mu.Unlock()

	if !ok {
		o.respondEphemeral(event, "This alert has already been handled.")
		return
	}

	var outcome string

	switch action {
	case constants.AlertActionWarn:
		warned := 0

		for userID := range record.authors {
			if err := o.actions.NotifyReporter(ctx, userID, authorWarning); err != nil {
				o.logger.Warn("Failed to warn flagged author",
					zap.Uint64("userID", uint64(userID)),
					zap.Error(err))

				continue
			}

			warned++
		}

		o.respondEphemeral(event, fmt.Sprintf("Warned %d author(s). The alert remains open.", warned))

		return
	case constants.AlertActionKeywords:
		o.ledger.PromoteFlaggedTokens(record.keywords)
		o.respondEphemeral(event, fmt.Sprintf(
			"Flagged %d keyword(s) for future scoring. The alert remains open.", len(record.keywords)))

		return
	case constants.AlertActionDelete:
		deleted := 0

		for _, msg := range record.messages {
			if err := o.actions.DeleteMessage(ctx, msg); err != nil {
				o.logger.Warn("Failed to delete flagged message",
					zap.Uint64("messageID", uint64(msg.ID)),
					zap.Error(err))

				continue
			}

			deleted++
		}

		outcome = fmt.Sprintf("Deleted %d flagged message(s).", deleted)
	case constants.AlertActionKick:
		kicked := 0

		for userID, guildID := range record.authors {
			if err := o.actions.KickUser(ctx, guildID, userID); err != nil {
				o.logger.Warn("Failed to kick flagged author",
					zap.Uint64("userID", uint64(userID)),
					zap.Error(err))

				continue
			}

			kicked++
		}

		outcome = fmt.Sprintf("Kicked %d author(s).", kicked)
	case constants.AlertActionDismiss:
		outcome = "Alert dismissed without action."
	default:
		return
	}

	o.dropAlert(alertID)

	if err := event.UpdateMessage(views.ResolvedAlert(outcome).Build()); err != nil {
		o.logger.Error("Failed to update alert message", zap.Error(err))
	}
}

// authorWarning is the DM sent to each author of an alerted message when a
// moderator chooses to warn rather than remove.
const authorWarning = "Your recent messages were flagged by our content moderation team " +
	"for potentially abusive content. Please review the community guidelines. " +
	"Continued violations may result in removal from the server."

// reporterNotice is the resolution DM sent when a moderator closes a case
// with notification. Its wording follows the moderator's verdict.
func (o *Orchestrator) reporterNotice(reviewCase *review.Case) string {
	rep := reviewCase.Report()

	if !reviewCase.Violation() {
		return "Thank you for your report. Our content moderation team has reviewed the " +
			"content you flagged as `" + rep.AbuseCategory + "` and determined that it does " +
			"not violate our community guidelines, so no action was taken.\n" +
			"Consider blocking the user if you would prefer not to see their content."
	}

	return "Thank you for your report. Our content moderation team has reviewed the " +
		"content you flagged as `" + rep.AbuseCategory + "` and taken appropriate action.\n" +
		"Consider blocking the user to prevent further exposure to their content."
}

func (o *Orchestrator) respondEphemeral(event *events.ComponentInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
	if err != nil {
		o.logger.Error("Failed to respond to interaction", zap.Error(err))
	}
}
