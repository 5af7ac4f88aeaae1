// Package views builds the Discord message layouts for moderation cases and
// automated abuse alerts.
package views

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/wardenhq/warden/internal/bot/constants"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/review"
)

// CaseBuilder creates the visual layout for a moderation case.
type CaseBuilder struct {
	reviewCase *review.Case
}

// NewCaseBuilder creates a new case layout builder.
func NewCaseBuilder(reviewCase *review.Case) *CaseBuilder {
	return &CaseBuilder{reviewCase: reviewCase}
}

// Build creates the initial case message posted to the moderator channel.
func (b *CaseBuilder) Build() *discord.MessageCreateBuilder {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(b.embed()).
		AddActionRow(b.components()...)
}

// BuildUpdate creates the replacement layout after a moderator action.
func (b *CaseBuilder) BuildUpdate() *discord.MessageUpdateBuilder {
	builder := discord.NewMessageUpdateBuilder().
		SetEmbeds(b.embed())

	if components := b.components(); len(components) > 0 {
		builder.AddActionRow(components...)
	} else {
		builder.ClearContainerComponents()
	}

	if rows := b.actionRows(); len(rows) > 0 {
		for _, row := range rows {
			builder.AddActionRow(row...)
		}
	}

	return builder
}

func (b *CaseBuilder) embed() discord.Embed {
	rep := b.reviewCase.Report()

	embed := discord.NewEmbedBuilder().
		SetTitle("Abuse Report").
		SetDescription(fmt.Sprintf("Case `%s` opened <t:%d:R> by <@%d>.",
			b.reviewCase.ID(), b.reviewCase.OpenedAt().Unix(), rep.ReporterID)).
		AddField("Category", rep.AbuseCategory, true).
		AddField("Author", fmt.Sprintf("<@%d>", rep.Message.AuthorID), true).
		AddField("Reported Message",
			chat.Truncate(rep.Message.Quote(constants.ReportedContentLimit), constants.ReportedContentLimit)+
				"\n"+rep.Message.JumpURL(), false)

	if rep.ImminentDanger {
		value := "The reporter indicated they are in imminent danger."
		if b.reviewCase.AuthoritiesAlerted() {
			value += " Message details have been forwarded to local authorities."
		}

		embed.AddField("Imminent Danger", value, false)
	}

	if rep.Campaign {
		embed.AddField("Targeted Harassment Campaign",
			fmt.Sprintf("The reporter flagged this message as part of a campaign with %d additional message(s).",
				len(rep.CampaignMessages)), false)

		for i, chunk := range b.reviewCase.CampaignDigest() {
			name := "Campaign Messages"
			if i > 0 {
				name = fmt.Sprintf("Campaign Messages (%d)", i+1)
			}

			embed.AddField(name, "```"+chunk+"```", false)
		}

		if rep.SecondaryTarget != "" {
			value := fmt.Sprintf("`%s`", rep.SecondaryTarget)
			if rep.BeingSilenced {
				value += " (reporter indicated this user is being silenced)"
			}

			embed.AddField("Targeted Account", value, false)
		}
	}

	switch b.reviewCase.State() {
	case review.StateClosed:
		embed.SetColor(constants.ColorResolve)
		embed.SetFooter(fmt.Sprintf("Case closed %s", time.Now().Format("Jan 2, 2006 15:04 MST")), "")
	case review.StateEvaluating:
		embed.SetColor(constants.ColorCase)
		embed.SetFooter("Evaluating content", "")
	case review.StateActing:
		embed.SetColor(constants.ColorCase)
		embed.SetFooter("Taking action", "")
	case review.StateReturning:
		embed.SetColor(constants.ColorCase)
		embed.SetFooter("No violation found", "")
	default:
		embed.SetColor(constants.ColorCase)
		embed.SetFooter("Awaiting review", "")
	}

	return embed.Build()
}

// components returns the first action row for the case's current state. The
// authorities alert rides alongside the main path until it has fired.
func (b *CaseBuilder) components() []discord.InteractiveComponent {
	var row []discord.InteractiveComponent

	switch b.reviewCase.State() {
	case review.StateOpened:
		row = []discord.InteractiveComponent{
			discord.NewPrimaryButton("Begin Review", b.customID(constants.CaseActionReview)),
		}
	case review.StateEvaluating:
		row = []discord.InteractiveComponent{
			discord.NewDangerButton("Mark Abusive", b.customID(constants.CaseActionAbusive)),
			discord.NewSecondaryButton("Mark Not Abusive", b.customID(constants.CaseActionNotAbusive)),
		}
	case review.StateActing:
		row = []discord.InteractiveComponent{
			discord.NewDangerButton("Delete Message", b.customID(constants.CaseActionDelete)),
			discord.NewDangerButton("Kick Author", b.customID(constants.CaseActionKick)),
		}
	default:
		return nil
	}

	if b.reviewCase.Report().ImminentDanger && !b.reviewCase.AuthoritiesAlerted() {
		row = append(row,
			discord.NewPrimaryButton("Alert Authorities", b.customID(constants.CaseActionAuthorities)))
	}

	return row
}

// actionRows returns the additional rows shown once a verdict is in.
func (b *CaseBuilder) actionRows() [][]discord.InteractiveComponent {
	switch b.reviewCase.State() {
	case review.StateActing:
		rep := b.reviewCase.Report()

		var rows [][]discord.InteractiveComponent

		if b.reviewCase.CampaignUnlocked() {
			row := []discord.InteractiveComponent{
				discord.NewDangerButton("Delete Campaign Messages", b.customID(constants.CaseActionDeleteCamp)),
				discord.NewDangerButton("Kick Campaign Authors", b.customID(constants.CaseActionKickCamp)),
			}

			if rep.SecondaryTarget != "" && !b.reviewCase.Escalated() {
				row = append(row,
					discord.NewPrimaryButton("Escalate Targeted Account", b.customID(constants.CaseActionEscalate)))
			}

			rows = append(rows, row)
		}

		return append(rows, []discord.InteractiveComponent{
			discord.NewSuccessButton("Notify Reporter & Close", b.customID(constants.CaseActionNotify)),
			discord.NewSecondaryButton("Close Without Notice", b.customID(constants.CaseActionClose)),
		})
	case review.StateReturning:
		return [][]discord.InteractiveComponent{{
			discord.NewSuccessButton("Send Rejection Notice", b.customID(constants.CaseActionNotify)),
			discord.NewSecondaryButton("Close Without Notice", b.customID(constants.CaseActionClose)),
		}}
	default:
		return nil
	}
}

func (b *CaseBuilder) customID(action string) string {
	return fmt.Sprintf("%s:%s:%s", constants.CasePrefix, b.reviewCase.ID(), action)
}
