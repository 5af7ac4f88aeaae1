// Package report implements the reporter-facing intake conversation: a
// finite-state machine that walks a user through identifying the offending
// message, classifying the abuse, and optionally describing a harassment
// campaign.
package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/chat"
	"go.uber.org/zap"
)

// State identifies a step of the intake conversation.
type State int

const (
	StateStart State = iota
	StateAwaitingMessage
	StateMessageConfirmation
	StateMessageIdentified
	StateImminentDanger
	StateSelectAbuse
	StateCheckCampaign
	StateAddCampaignMessages
	StateAddSecondaryTarget
	StateCheckSilencing
	StateComplete
	StateCancelled
)

// Keywords recognized by the intake conversation.
const (
	StartKeyword  = "report"
	CancelKeyword = "cancel"
	HelpKeyword   = "help"
	InfoKeyword   = "info"
	YesKeyword    = "yes"
	NoKeyword     = "no"
	DoneKeyword   = "done"
	SkipKeyword   = "skip"
)

// AbuseCategories is the fixed category list presented to reporters. Order
// matters: reporters select by 1-based index.
var AbuseCategories = []string{
	"Bullying",
	"Hate Speech",
	"Sexual Harassment",
	"Revealing Personal Information",
	"Advocating Violence",
	"Other",
}

// AbuseDefinitions maps each category to the definition shown on `info`.
var AbuseDefinitions = map[string]string{
	"Bullying":                       "Intent to harm, intimidate, or coerce (someone perceived as vulnerable).",
	"Hate Speech":                    "Abusive or threatening speech or writing that expresses prejudice against a particular group, especially on the basis of race, religion, or sexual orientation.",
	"Sexual Harassment":              "Content that depicts sexually explicit activities.",
	"Revealing Personal Information": "Content that exposes a user's personal, sensitive information without consent.",
	"Advocating Violence":            "Depiction of especially vivid, brutal and realistic acts of violence.",
	"Other":                          "General category that includes all malicious content that may be considered in violation of our guidelines.",
}

// Report is the record accumulated by a completed flow.
type Report struct {
	ReporterID       snowflake.ID
	Message          chat.Message
	ImminentDanger   bool
	AbuseCategory    string
	Campaign         bool
	CampaignMessages []chat.Message
	SecondaryTarget  string
	BeingSilenced    bool
}

// Flow is the per-reporter intake state machine. Instances are independent
// per reporter; a mutex serializes inputs so two quick DMs from the same
// reporter cannot interleave a transition.
type Flow struct {
	mu sync.Mutex

	state    State
	resolver MessageResolver
	logger   *zap.Logger

	reporterID       snowflake.ID
	message          chat.Message
	imminentDanger   bool
	abuseCategory    string
	campaign         bool
	campaignMessages []chat.Message
	secondaryTarget  string
	beingSilenced    bool
}

// NewFlow creates an intake flow for a reporter. The first Handle call
// produces the opening prompt.
func NewFlow(reporterID snowflake.ID, resolver MessageResolver, logger *zap.Logger) *Flow {
	return &Flow{
		state:      StateStart,
		resolver:   resolver,
		logger:     logger.Named("report_flow"),
		reporterID: reporterID,
	}
}

// State returns the current conversation step.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// IsComplete reports whether the conversation reached a terminal state.
func (f *Flow) IsComplete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state == StateComplete || f.state == StateCancelled
}

// Cancelled reports whether the reporter abandoned the conversation.
func (f *Flow) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state == StateCancelled
}

// Information returns the accumulated report. Only valid once the flow has
// completed without cancellation.
func (f *Flow) Information() Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Report{
		ReporterID:       f.reporterID,
		Message:          f.message,
		ImminentDanger:   f.imminentDanger,
		AbuseCategory:    f.abuseCategory,
		Campaign:         f.campaign,
		CampaignMessages: f.campaignMessages,
		SecondaryTarget:  f.secondaryTarget,
		BeingSilenced:    f.beingSilenced,
	}
}

// Handle advances the conversation with one reporter input and returns the
// prompts to relay back. It never blocks except to resolve message links,
// and resolution failures become retry prompts rather than errors. Inputs
// are serialized; a second message arriving mid-transition waits its turn.
func (f *Flow) Handle(ctx context.Context, input string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	input = strings.TrimSpace(input)
	keyword := strings.ToLower(input)

	if keyword == CancelKeyword {
		f.state = StateCancelled
		return []string{"Report cancelled."}
	}

	if keyword == HelpKeyword {
		return []string{"Follow the prompts to complete your report, or say `cancel` at any time to cancel it."}
	}

	switch f.state {
	case StateStart:
		return f.handleStart()
	case StateAwaitingMessage:
		return f.handleAwaitingMessage(ctx, input)
	case StateMessageConfirmation:
		return f.handleMessageConfirmation(keyword)
	case StateMessageIdentified:
		return f.handleMessageIdentified(keyword)
	case StateImminentDanger:
		return f.handleImminentDanger(keyword)
	case StateSelectAbuse:
		return f.handleSelectAbuse(keyword)
	case StateCheckCampaign:
		return f.handleCheckCampaign(keyword)
	case StateAddCampaignMessages:
		return f.handleAddCampaignMessages(ctx, input, keyword)
	case StateAddSecondaryTarget:
		return f.handleAddSecondaryTarget(input, keyword)
	case StateCheckSilencing:
		return f.handleCheckSilencing(keyword)
	default:
		return nil
	}
}

func (f *Flow) handleStart() []string {
	f.state = StateAwaitingMessage

	return []string{
		"Thank you for starting the reporting process. " +
			"Say `help` at any time for more information.\n\n" +
			"Please copy paste the link to the message you want to report.\n" +
			"You can obtain this link by right-clicking the message and clicking `Copy Message Link`.",
	}
}

func (f *Flow) handleAwaitingMessage(ctx context.Context, input string) []string {
	msg, prompt := f.resolveLink(ctx, input, "cancel")
	if prompt != "" {
		return []string{prompt}
	}

	f.state = StateMessageConfirmation
	f.message = msg

	return []string{
		"I found this message:",
		"```" + msg.AuthorName + ": " + msg.Content + "```",
		"Is this the content you wish to report? Reply `yes` or `no`.",
	}
}

func (f *Flow) handleMessageConfirmation(keyword string) []string {
	switch keyword {
	case YesKeyword:
		f.state = StateMessageIdentified
		return []string{
			"Thanks for confirming.",
			"Are you in imminent danger from this message? Reply `yes` or `no`.",
		}
	case NoKeyword:
		f.state = StateAwaitingMessage
		f.message = chat.Message{}

		return []string{"Sorry we weren't able to find that material. Please submit another link to the content you wish to report."}
	default:
		return []string{"Sorry, please reply with `yes` or `no`."}
	}
}

func (f *Flow) handleMessageIdentified(keyword string) []string {
	switch keyword {
	case YesKeyword:
		f.state = StateImminentDanger
		return []string{
			"Please immediately alert the local authorities by dialing 911.\n\n" +
				"Would you like us to forward the relevant message information to the authorities? Reply `yes` or `no`.",
		}
	case NoKeyword:
		f.state = StateSelectAbuse
		return []string{f.selectAbusePrompt()}
	default:
		return []string{"Sorry, please reply with `yes` or `no`."}
	}
}

func (f *Flow) handleImminentDanger(keyword string) []string {
	if keyword != YesKeyword && keyword != NoKeyword {
		return []string{"Sorry, please reply with `yes` or `no`."}
	}

	f.state = StateSelectAbuse

	var acknowledgment string
	if keyword == YesKeyword {
		f.imminentDanger = true
		acknowledgment = "We will process and send the message information to the local authorities.\n" +
			"In the meantime, please help us assess the reported content.\n"
	} else {
		acknowledgment = "Please help us assess the reported content.\n"
	}

	return []string{acknowledgment, f.selectAbusePrompt()}
}

func (f *Flow) handleSelectAbuse(keyword string) []string {
	if keyword == InfoKeyword {
		var sb strings.Builder
		for _, category := range AbuseCategories {
			sb.WriteString(fmt.Sprintf("%s: %s\n\n", category, AbuseDefinitions[category]))
		}

		return []string{sb.String()}
	}

	index, err := strconv.Atoi(keyword)
	if err != nil || index < 1 || index > len(AbuseCategories) {
		return []string{
			fmt.Sprintf("Sorry, please reply with a number between 1 and %d.\n", len(AbuseCategories)) +
				f.selectAbusePrompt(),
		}
	}

	f.abuseCategory = AbuseCategories[index-1]
	f.state = StateCheckCampaign

	return []string{
		"Is this message part of a targeted harassment campaign?\n" +
			"Reply `yes` or `no`. For more information on what qualifies, type `info`.",
	}
}

func (f *Flow) handleCheckCampaign(keyword string) []string {
	switch keyword {
	case YesKeyword:
		f.campaign = true
		f.state = StateAddCampaignMessages

		return []string{
			"If you wish to report more messages as part of this campaign, please reply " +
				"with each message link in separate messages. Once completed, " +
				"or if you have no additional messages to report, type `done`.",
		}
	case NoKeyword:
		f.state = StateComplete
		return []string{f.completionMessage()}
	case InfoKeyword:
		return []string{
			"A targeted harassment campaign is any series of messages " +
				"that qualify as abusive material aimed at a particular person or " +
				"entity. These are often performed by multiple individuals, but can " +
				"also stem from a single account.",
		}
	default:
		return []string{"Sorry, please reply with `yes`, `no`, or `info`."}
	}
}

func (f *Flow) handleAddCampaignMessages(ctx context.Context, input, keyword string) []string {
	if keyword == DoneKeyword {
		f.state = StateAddSecondaryTarget

		var sb strings.Builder
		if len(f.campaignMessages) > 0 {
			sb.WriteString("Thank you for reporting those additional messages.\n")
		}
		sb.WriteString("If you would like to add the identity of the " +
			"user being targeted to your report, please type their handle below. " +
			"If not, please type `skip`.")

		return []string{sb.String()}
	}

	msg, prompt := f.resolveLink(ctx, input, "done")
	if prompt != "" {
		return []string{prompt}
	}

	// The originally reported message and repeated links are dropped so the
	// campaign set never holds duplicates.
	if msg.ID == f.message.ID || f.hasCampaignMessage(msg.ID) {
		return []string{
			"That message is already part of this report.\n" +
				"Please reply with another message link or type `done` to finish adding messages.",
		}
	}

	f.campaignMessages = append(f.campaignMessages, msg)

	return []string{
		"The following content was identified and added to the report:\n" +
			"```" + msg.AuthorName + ": " + msg.Content + "```\n" +
			"Please reply with another message link or type `done` to finish adding messages.",
	}
}

func (f *Flow) handleAddSecondaryTarget(input, keyword string) []string {
	f.state = StateCheckSilencing

	silencingPrompt := "Is this user being silenced by the harassment campaign? " +
		"Does this threaten their open expression? Reply `yes` or `no`."

	if keyword == SkipKeyword {
		return []string{silencingPrompt}
	}

	f.secondaryTarget = input

	return []string{
		"We have identified the following account as being targeted:\n" +
			"```Handle: " + f.secondaryTarget + "```\n" +
			silencingPrompt,
	}
}

func (f *Flow) handleCheckSilencing(keyword string) []string {
	if keyword != YesKeyword && keyword != NoKeyword {
		return []string{"Sorry, please reply with `yes` or `no`."}
	}

	f.beingSilenced = keyword == YesKeyword
	f.state = StateComplete

	return []string{f.completionMessage()}
}

// resolveLink parses and resolves a message link, returning either the
// message or a retry prompt. escapeWord names the keyword that exits the
// current step, which differs between the primary link step and the
// campaign collection loop.
func (f *Flow) resolveLink(ctx context.Context, input, escapeWord string) (chat.Message, string) {
	loc, ok := ParseLocator(input)
	if !ok {
		return chat.Message{}, fmt.Sprintf("I'm sorry, I couldn't read that link. Please try again or say `%s`.", escapeWord)
	}

	resolution := f.resolver.Resolve(ctx, loc)

	switch resolution.Status {
	case ResolutionFound:
		return resolution.Message, ""
	case ResolutionGuildNotFound:
		return chat.Message{}, "I cannot accept reports of messages from guilds that I'm not in. " +
			"Please have the guild owner add me to the guild and try again."
	case ResolutionChannelNotFound:
		return chat.Message{}, fmt.Sprintf("It seems this channel was deleted or never existed. Please try again or say `%s`.", escapeWord)
	case ResolutionMessageNotFound:
		return chat.Message{}, fmt.Sprintf("It seems this message was deleted or never existed. Please try again or say `%s`.", escapeWord)
	default:
		f.logger.Warn("Message resolution failed",
			zap.Uint64("guildID", uint64(loc.GuildID)),
			zap.Uint64("messageID", uint64(loc.MessageID)))

		return chat.Message{}, fmt.Sprintf("Something went wrong looking up that message. Please try again or say `%s`.", escapeWord)
	}
}

func (f *Flow) hasCampaignMessage(id snowflake.ID) bool {
	for _, msg := range f.campaignMessages {
		if msg.ID == id {
			return true
		}
	}
	return false
}

func (f *Flow) selectAbusePrompt() string {
	var sb strings.Builder

	sb.WriteString("Please select which abuse type best matches your report (reply with the corresponding number):\n")
	for i, category := range AbuseCategories {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, category))
	}
	sb.WriteString("\nFor more information about these categories, type `info`.")

	return sb.String()
}

func (f *Flow) completionMessage() string {
	var sb strings.Builder

	sb.WriteString("Thank you for reporting.\n")
	sb.WriteString(fmt.Sprintf("The following content has been flagged for review as `%s` material:\n", f.abuseCategory))
	sb.WriteString("```" + f.message.AuthorName + ": " + f.message.Content + "```\n")

	if f.campaign {
		sb.WriteString("We have also flagged this message as part of a targeted harassment campaign.\n")

		if len(f.campaignMessages) > 0 {
			sb.WriteString("The following content will be included as part of the report:\n```")
			for _, msg := range f.campaignMessages {
				sb.WriteString(fmt.Sprintf("%s: %s\n", msg.AuthorName, msg.Content))
			}
			sb.WriteString("```\n")
		}

		if f.secondaryTarget != "" {
			sb.WriteString(fmt.Sprintf("The handle `%s` will be forwarded to the external platform's abuse review team.\n", f.secondaryTarget))
		}

		if f.beingSilenced {
			sb.WriteString("We have flagged that this user is being silenced as part of the targeted harassment campaign.\n")
		}

		sb.WriteString("\n")
	}

	sb.WriteString("Our content moderation team will review this content and assess " +
		"next steps, potentially including removing content and contacting " +
		"local authorities.\n\n" +
		"In the meantime, consider blocking the user to prevent " +
		"further exposure to their content.")

	return sb.String()
}
