// Package review implements the moderator-facing side of a report: each
// completed intake becomes a Case that moderators work through with
// enforcement actions until it is closed.
package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/report"
	"go.uber.org/zap"
)

// CampaignChunkLimit caps the length of each campaign message digest chunk
// so digests fit comfortably inside embed field values.
const CampaignChunkLimit = 700

// State identifies where a case sits in the moderation workflow.
type State int

const (
	StateOpened State = iota
	// StateEvaluating is the violation judgment step: the moderator decides
	// whether the reported content breaks the rules.
	StateEvaluating
	// StateActing exposes enforcement actions after a violation verdict.
	StateActing
	// StateReturning composes the rejection path after a no-violation
	// verdict; the moderator chooses to send or withhold the notice.
	StateReturning
	StateClosed
)

// Actions is the enforcement surface a case drives. The orchestrator backs
// it with Discord REST calls; tests back it with fakes.
type Actions interface {
	// DeleteMessage removes a reported message from its channel.
	DeleteMessage(ctx context.Context, msg chat.Message) error
	// KickUser removes a user from a guild.
	KickUser(ctx context.Context, guildID, userID snowflake.ID) error
	// NotifyReporter delivers a resolution notice to the reporter's DMs.
	NotifyReporter(ctx context.Context, reporterID snowflake.ID, content string) error
}

// Case tracks one report through moderation. Two moderators pressing
// buttons at the same time is expected; a mutex serializes the transitions
// and the one-shot guards make the repeated press a no-op.
type Case struct {
	mu sync.Mutex

	id      string
	state   State
	report  report.Report
	actions Actions
	logger  *zap.Logger

	openedAt time.Time

	// violation records the moderator's evaluation verdict.
	violation bool

	// campaignUnlocked is set by the first enforcement action on a campaign
	// report; campaign-wide actions become available exactly once.
	campaignUnlocked bool

	// Enforcement guards. Kicks are deduplicated per user per guild so a
	// campaign sweep never kicks the same author twice, and the one-shot
	// flags keep repeated button presses from repeating side effects.
	kickedUsers        map[snowflake.ID]struct{}
	reportedDeleted    bool
	campaignDeleted    bool
	campaignKicked     bool
	authoritiesAlerted bool
	escalated          bool
	reporterNotified   bool
}

// NewCaseID derives a unique case identifier from the reporter and the
// moment the report completed.
func NewCaseID(reporterID snowflake.ID, openedAt time.Time) string {
	return fmt.Sprintf("%d-%d-%s", reporterID, openedAt.Unix(), uuid.New().String())
}

// NewCase opens a moderation case for a completed report.
func NewCase(rep report.Report, actions Actions, logger *zap.Logger) *Case {
	openedAt := time.Now()

	return &Case{
		id:          NewCaseID(rep.ReporterID, openedAt),
		state:       StateOpened,
		report:      rep,
		actions:     actions,
		logger:      logger.Named("review_case"),
		openedAt:    openedAt,
		kickedUsers: make(map[snowflake.ID]struct{}),
	}
}

// ID returns the case identifier.
func (c *Case) ID() string { return c.id }

// State returns the case's workflow position.
func (c *Case) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Report returns the underlying report. The report is immutable after
// construction.
func (c *Case) Report() report.Report { return c.report }

// OpenedAt returns when the case was created.
func (c *Case) OpenedAt() time.Time { return c.openedAt }

// Closed reports whether the case has been resolved.
func (c *Case) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state == StateClosed
}

// AuthoritiesAlerted reports whether the imminent danger escalation fired.
func (c *Case) AuthoritiesAlerted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.authoritiesAlerted
}

// Escalated reports whether the secondary target was forwarded externally.
func (c *Case) Escalated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.escalated
}

// Violation reports the moderator's verdict. Only meaningful once the case
// has moved past StateEvaluating.
func (c *Case) Violation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.violation
}

// CampaignUnlocked reports whether campaign-wide actions are available.
func (c *Case) CampaignUnlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.campaignUnlocked
}

// ErrCaseClosed is returned by enforcement methods once the case has been
// resolved; further actions would act on already-settled content.
var ErrCaseClosed = fmt.Errorf("case is closed")

// AlertAuthorities records that message details were forwarded to local
// authorities. It fires at most once per case.
func (c *Case) AlertAuthorities() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authoritiesAlerted || c.state == StateClosed {
		return false
	}

	c.authoritiesAlerted = true
	c.logger.Warn("Forwarded case to local authorities",
		zap.String("caseID", c.id),
		zap.Uint64("reporterID", uint64(c.report.ReporterID)))

	return true
}

// BeginReview moves an opened case into the evaluation step. Subsequent
// calls are harmless so a second moderator pressing the button sees current
// state.
func (c *Case) BeginReview() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpened {
		c.state = StateEvaluating
	}
}

// EvaluateViolation records the moderator's verdict on the reported content.
// A violation moves the case into enforcement; otherwise the case moves to
// the rejection path. Re-judging after the verdict is a no-op.
func (c *Case) EvaluateViolation(violation bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEvaluating {
		return
	}

	c.violation = violation
	if violation {
		c.state = StateActing
	} else {
		c.state = StateReturning
	}
}

// DeleteReported removes the originally reported message. Retrying after a
// successful delete is a no-op.
func (c *Case) DeleteReported(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrCaseClosed
	}
	if c.reportedDeleted {
		return nil
	}

	if err := c.actions.DeleteMessage(ctx, c.report.Message); err != nil {
		return fmt.Errorf("delete reported message: %w", err)
	}

	c.reportedDeleted = true
	c.unlockCampaign()

	return nil
}

// KickReportedAuthor removes the reported message's author from the guild.
func (c *Case) KickReportedAuthor(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrCaseClosed
	}

	if err := c.kick(ctx, c.report.Message.GuildID, c.report.Message.AuthorID); err != nil {
		return err
	}

	c.unlockCampaign()

	return nil
}

// unlockCampaign makes the campaign-wide actions available. The first
// enforcement action on a campaign report triggers this exactly once.
func (c *Case) unlockCampaign() {
	if !c.report.Campaign || c.campaignUnlocked {
		return
	}

	c.campaignUnlocked = true
	c.logger.Info("Unlocked campaign actions",
		zap.String("caseID", c.id),
		zap.Int("campaignMessages", len(c.report.CampaignMessages)))
}

// DeleteCampaign removes every additional campaign message. It fires at
// most once; individual failures are logged and skipped so one stale
// message doesn't strand the rest.
func (c *Case) DeleteCampaign(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrCaseClosed
	}
	if c.campaignDeleted {
		return nil
	}

	for _, msg := range c.report.CampaignMessages {
		if err := c.actions.DeleteMessage(ctx, msg); err != nil {
			c.logger.Warn("Failed to delete campaign message",
				zap.String("caseID", c.id),
				zap.Uint64("messageID", uint64(msg.ID)),
				zap.Error(err))
		}
	}

	c.campaignDeleted = true

	return nil
}

// KickCampaignAuthors removes every distinct campaign message author,
// including the original message's author, from their guilds. Authors are
// kicked at most once per case even across repeated presses.
func (c *Case) KickCampaignAuthors(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrCaseClosed
	}
	if c.campaignKicked {
		return nil
	}

	if err := c.kick(ctx, c.report.Message.GuildID, c.report.Message.AuthorID); err != nil {
		c.logger.Warn("Failed to kick reported author",
			zap.String("caseID", c.id),
			zap.Error(err))
	}

	for _, msg := range c.report.CampaignMessages {
		if err := c.kick(ctx, msg.GuildID, msg.AuthorID); err != nil {
			c.logger.Warn("Failed to kick campaign author",
				zap.String("caseID", c.id),
				zap.Uint64("authorID", uint64(msg.AuthorID)),
				zap.Error(err))
		}
	}

	c.campaignKicked = true

	return nil
}

// EscalateSecondaryTarget forwards the targeted account's handle to the
// external platform's abuse team. It fires at most once per case and only
// when the report named a secondary target.
func (c *Case) EscalateSecondaryTarget() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.escalated || c.state == StateClosed || c.report.SecondaryTarget == "" {
		return false
	}

	c.escalated = true
	c.logger.Info("Escalated secondary target to external platform",
		zap.String("caseID", c.id),
		zap.String("handle", c.report.SecondaryTarget),
		zap.Bool("beingSilenced", c.report.BeingSilenced))

	return true
}

// SendReporterNotice notifies the reporter of the case's resolution and
// closes the case. Notifying twice is a no-op.
func (c *Case) SendReporterNotice(ctx context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reporterNotified {
		return nil
	}

	if err := c.actions.NotifyReporter(ctx, c.report.ReporterID, content); err != nil {
		return fmt.Errorf("notify reporter: %w", err)
	}

	c.reporterNotified = true
	c.close()

	return nil
}

// WithholdReporterNotice closes the case without contacting the reporter.
func (c *Case) WithholdReporterNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.close()
}

// Close resolves the case. Closing an already-closed case is a no-op.
func (c *Case) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.close()
}

func (c *Case) close() {
	if c.state == StateClosed {
		return
	}

	c.state = StateClosed
	c.logger.Info("Closed case",
		zap.String("caseID", c.id),
		zap.String("category", c.report.AbuseCategory))
}

func (c *Case) kick(ctx context.Context, guildID, userID snowflake.ID) error {
	if _, done := c.kickedUsers[userID]; done {
		return nil
	}

	if err := c.actions.KickUser(ctx, guildID, userID); err != nil {
		return fmt.Errorf("kick user %d: %w", userID, err)
	}

	c.kickedUsers[userID] = struct{}{}

	return nil
}

// CampaignDigest renders the campaign messages as quoted lines split into
// chunks no longer than CampaignChunkLimit, suitable for embed fields.
func (c *Case) CampaignDigest() []string {
	if len(c.report.CampaignMessages) == 0 {
		return nil
	}

	var (
		chunks  []string
		current string
	)

	for _, msg := range c.report.CampaignMessages {
		line := fmt.Sprintf("%s: %s\n", msg.AuthorName, msg.Content)
		if len(current)+len(line) > CampaignChunkLimit && current != "" {
			chunks = append(chunks, current)
			current = ""
		}

		// A single oversized message is truncated rather than splitting
		// mid-quote across chunks.
		if len(line) > CampaignChunkLimit {
			line = chat.Truncate(line, CampaignChunkLimit-4) + "\n"
		}

		current += line
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
