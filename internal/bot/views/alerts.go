package views

import (
	"fmt"
	"sort"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/wardenhq/warden/internal/bot/constants"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/ledger"
)

// UserAlertBuilder creates the layout for an automated alert about a user
// whose flagged message count crossed the threshold.
type UserAlertBuilder struct {
	alertID  string
	abuse    ledger.UserAbuse
	keywords []string
}

// NewUserAlertBuilder creates a new user alert layout builder.
func NewUserAlertBuilder(alertID string, abuse ledger.UserAbuse, keywords []string) *UserAlertBuilder {
	return &UserAlertBuilder{
		alertID:  alertID,
		abuse:    abuse,
		keywords: keywords,
	}
}

// Build creates the alert message for the moderator channel.
func (b *UserAlertBuilder) Build() *discord.MessageCreateBuilder {
	embed := discord.NewEmbedBuilder().
		SetTitle("Suspicious User Activity").
		SetDescription(fmt.Sprintf("<@%d> has sent %d flagged message(s). Their recent history is below.",
			b.abuse.UserID, len(b.abuse.Messages))).
		SetColor(constants.ColorAlert)

	// Group the history by calendar date so moderators can see whether the
	// activity is a burst or sustained.
	byDate := make(map[string][]chat.Message)

	var dates []string

	for _, msg := range b.abuse.Messages {
		date := msg.CreatedAt.Format("Jan 2, 2006")
		if _, seen := byDate[date]; !seen {
			dates = append(dates, date)
		}

		byDate[date] = append(byDate[date], msg)
	}

	for _, date := range dates {
		var sb strings.Builder
		for _, msg := range byDate[date] {
			sb.WriteString(chat.Truncate(msg.Content, constants.QuotedContentLimit))
			sb.WriteString("\n")
		}

		embed.AddField(date, "```"+sb.String()+"```", false)
	}

	addKeywordsField(embed, b.keywords)

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		AddActionRow(alertButtons(b.alertID, "Kick User", b.keywords)...)
}

// EntityAlertBuilder creates the layout for an automated alert about an
// entity whose accumulated targeting score crossed the threshold.
type EntityAlertBuilder struct {
	alertID  string
	abuse    ledger.EntityAbuse
	keywords []string
}

// NewEntityAlertBuilder creates a new entity alert layout builder.
func NewEntityAlertBuilder(alertID string, abuse ledger.EntityAbuse, keywords []string) *EntityAlertBuilder {
	return &EntityAlertBuilder{
		alertID:  alertID,
		abuse:    abuse,
		keywords: keywords,
	}
}

// Build creates the alert message for the moderator channel.
func (b *EntityAlertBuilder) Build() *discord.MessageCreateBuilder {
	embed := discord.NewEmbedBuilder().
		SetTitle("Possible Targeted Harassment").
		SetDescription(fmt.Sprintf("`%s` is being mentioned in flagged messages across %d message(s). "+
			"This may be a coordinated harassment campaign.",
			b.abuse.Entity, len(b.abuse.Mentions))).
		SetColor(constants.ColorAlert)

	// Group mentions by author so multi-account campaigns stand out.
	byAuthor := make(map[string][]chat.Message)

	var authors []string

	for _, mention := range b.abuse.Mentions {
		author := mention.Message.AuthorName
		if _, seen := byAuthor[author]; !seen {
			authors = append(authors, author)
		}

		byAuthor[author] = append(byAuthor[author], mention.Message)
	}

	sort.Strings(authors)

	for _, author := range authors {
		var sb strings.Builder
		for _, msg := range byAuthor[author] {
			sb.WriteString(chat.Truncate(msg.Content, constants.QuotedContentLimit))
			sb.WriteString("\n")
		}

		embed.AddField(author, "```"+sb.String()+"```", false)
	}

	addKeywordsField(embed, b.keywords)

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		AddActionRow(alertButtons(b.alertID, "Kick Authors", b.keywords)...)
}

// alertButtons builds the shared enforcement row. The keyword-promotion
// button only appears when the alert surfaced keywords.
func alertButtons(alertID, kickLabel string, keywords []string) []discord.InteractiveComponent {
	buttons := []discord.InteractiveComponent{
		discord.NewPrimaryButton("Warn Authors", alertCustomID(alertID, constants.AlertActionWarn)),
		discord.NewDangerButton("Delete Messages", alertCustomID(alertID, constants.AlertActionDelete)),
		discord.NewDangerButton(kickLabel, alertCustomID(alertID, constants.AlertActionKick)),
	}

	if len(keywords) > 0 {
		buttons = append(buttons,
			discord.NewSecondaryButton("Flag Keywords", alertCustomID(alertID, constants.AlertActionKeywords)))
	}

	return append(buttons,
		discord.NewSecondaryButton("Dismiss", alertCustomID(alertID, constants.AlertActionDismiss)))
}

// ResolvedAlert creates the replacement layout once an alert is handled.
func ResolvedAlert(outcome string) *discord.MessageUpdateBuilder {
	embed := discord.NewEmbedBuilder().
		SetTitle("Alert Resolved").
		SetDescription(outcome).
		SetColor(constants.ColorResolve).
		Build()

	return discord.NewMessageUpdateBuilder().
		SetEmbeds(embed).
		ClearContainerComponents()
}

// addKeywordsField appends the surfaced keyword list when present.
func addKeywordsField(embed *discord.EmbedBuilder, keywords []string) {
	if len(keywords) == 0 {
		return
	}

	embed.AddField("Detected Keywords", "`"+strings.Join(keywords, "`, `")+"`", false)
}

func alertCustomID(alertID, action string) string {
	return fmt.Sprintf("%s:%s:%s", constants.AlertPrefix, alertID, action)
}
