// Package constants defines shared values used across the bot's views and
// interaction handlers.
package constants

// Channel name layout. The bot watches "group-<suffix>" channels and posts
// moderation traffic to the matching "group-<suffix>-mod" channel.
const (
	WatchedChannelPrefix   = "group-"
	ModeratorChannelSuffix = "-mod"
)

// Custom ID prefixes for component interactions. Custom IDs are encoded as
// "<prefix>:<id>:<action>".
const (
	CasePrefix  = "case"
	AlertPrefix = "alert"
)

// Case actions.
const (
	CaseActionReview      = "review"
	CaseActionAuthorities = "authorities"
	CaseActionAbusive     = "abusive"
	CaseActionNotAbusive  = "not_abusive"
	CaseActionDelete      = "delete"
	CaseActionKick        = "kick"
	CaseActionDeleteCamp  = "delete_campaign"
	CaseActionKickCamp    = "kick_campaign"
	CaseActionEscalate    = "escalate"
	CaseActionNotify      = "notify"
	CaseActionClose       = "close"
)

// Alert actions.
const (
	AlertActionWarn     = "warn"
	AlertActionDelete   = "delete"
	AlertActionKick     = "kick"
	AlertActionKeywords = "flag_keywords"
	AlertActionDismiss  = "dismiss"
)

// Embed colors.
const (
	ColorCase    = 0xED4245 // red, open moderation cases
	ColorAlert   = 0xFEE75C // yellow, automated abuse alerts
	ColorInfo    = 0x5865F2 // blurple, neutral notices
	ColorResolve = 0x57F287 // green, resolved cases
)

// Content display limits for embed fields.
const (
	ReportedContentLimit = 325
	QuotedContentLimit   = 240
)
