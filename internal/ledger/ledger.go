// Package ledger holds the streaming abuse-aggregation state: per-user
// flagged-message counts, per-entity harassment scores, corpus-wide token
// document frequencies, and the moderator-promoted flagged-keyword set.
package ledger

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/scoring"
	"go.uber.org/zap"
)

const (
	// DefaultScoreThreshold is the per-attribute score at or above which a
	// message counts as abusive.
	DefaultScoreThreshold = 0.8
	// DefaultEntityScoreThreshold is the cumulative harassment score at
	// which an entity is surfaced to moderators.
	DefaultEntityScoreThreshold = 10
	// DefaultUserMessageThreshold sets how many flagged messages a user
	// accumulates before being surfaced. The count resets on surfacing, so
	// the alert fires on every Nth flagged message.
	DefaultUserMessageThreshold = 5
	// DefaultKeywordThreshold is the TF-IDF score above which a token is
	// surfaced as a campaign keyword.
	DefaultKeywordThreshold = 0.08
)

// Config carries the ledger thresholds.
type Config struct {
	ScoreThreshold       float64
	EntityScoreThreshold float64
	UserMessageThreshold int
	KeywordThreshold     float64
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:       DefaultScoreThreshold,
		EntityScoreThreshold: DefaultEntityScoreThreshold,
		UserMessageThreshold: DefaultUserMessageThreshold,
		KeywordThreshold:     DefaultKeywordThreshold,
	}
}

// Mention records a single message that referenced an entity, together with
// its token sequence for later keyword surfacing.
type Mention struct {
	Message chat.Message
	Tokens  []string
}

// UserAbuse pairs a surfaced user with their flagged message history.
type UserAbuse struct {
	UserID   snowflake.ID
	Messages []chat.Message
}

// EntityAbuse pairs a surfaced entity with its mention history.
type EntityAbuse struct {
	Entity   string
	Mentions []Mention
}

// Ledger is the aggregation core. One instance serves the whole process;
// all state is in memory and lost on restart. Methods are safe for
// concurrent use, but external scoring must happen before Ingest is called
// so no lock is held across a network call.
type Ledger struct {
	mu sync.Mutex

	cfg    Config
	logger *zap.Logger

	totalMessages int
	docFrequency  map[string]int
	flaggedTokens map[string]struct{}

	userMessages map[snowflake.ID][]chat.Message
	userCounts   map[snowflake.ID]int

	entityScores   map[string]float64
	entityMentions map[string][]Mention
}

// New creates an empty ledger.
func New(cfg Config, logger *zap.Logger) *Ledger {
	return &Ledger{
		cfg:            cfg,
		logger:         logger.Named("ledger"),
		docFrequency:   make(map[string]int),
		flaggedTokens:  make(map[string]struct{}),
		userMessages:   make(map[snowflake.ID][]chat.Message),
		userCounts:     make(map[snowflake.ID]int),
		entityScores:   make(map[string]float64),
		entityMentions: make(map[string][]Mention),
	}
}

// Ingest folds one scored message into the aggregates. The update is
// all-or-nothing per message: callers must only invoke it once scoring and
// extraction have both succeeded.
//
// A message is flagged when any attribute crosses the score threshold OR
// any token belongs to the flagged-keyword set. A flagged message adds to
// each mentioned entity the number of flagged-set tokens it contains plus
// one point per campaign attribute crossing its own threshold. Keeping the
// two conditions separate lets keyword-driven campaigns accumulate entity
// score without every contributing message being a raw toxicity spike.
func (l *Ledger) Ingest(msg chat.Message, scores scoring.ScoreVector, entities []string, tokens []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Corpus stats count every ingested message, abusive or not. Tokens are
	// counted once per message.
	l.totalMessages++

	distinct := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		distinct[token] = struct{}{}
	}
	for token := range distinct {
		l.docFrequency[token]++
	}

	flaggedTokenHits := 0
	for _, token := range tokens {
		if _, ok := l.flaggedTokens[token]; ok {
			flaggedTokenHits++
		}
	}

	flagged := flaggedTokenHits > 0 || scores.AnyAtLeast(l.cfg.ScoreThreshold)
	if !flagged {
		return
	}

	contribution := float64(flaggedTokenHits) +
		float64(scores.CountAtLeast(scoring.CampaignAttributes, l.cfg.ScoreThreshold))

	for _, entity := range entities {
		l.entityScores[entity] += contribution
		l.entityMentions[entity] = append(l.entityMentions[entity], Mention{
			Message: msg,
			Tokens:  tokens,
		})
	}

	l.userMessages[msg.AuthorID] = append(l.userMessages[msg.AuthorID], msg)
	l.userCounts[msg.AuthorID]++

	l.logger.Debug("Flagged message ingested",
		zap.Uint64("authorID", uint64(msg.AuthorID)),
		zap.Int("entityCount", len(entities)),
		zap.Float64("entityContribution", contribution))
}

// UsersExceedingThreshold surfaces every user whose running flagged-message
// count reached the threshold, paired with their full message history. The
// running count resets as a side effect, so calling twice without new
// ingestion returns nothing the second time.
func (l *Ledger) UsersExceedingThreshold() []UserAbuse {
	l.mu.Lock()
	defer l.mu.Unlock()

	var surfaced []UserAbuse

	for userID, count := range l.userCounts {
		if count < l.cfg.UserMessageThreshold {
			continue
		}

		history := make([]chat.Message, len(l.userMessages[userID]))
		copy(history, l.userMessages[userID])

		surfaced = append(surfaced, UserAbuse{UserID: userID, Messages: history})
		l.userCounts[userID] = 0
	}

	return surfaced
}

// EntitiesExceedingThreshold surfaces every entity whose cumulative
// harassment score reached the threshold, paired with its mention history.
// The score resets to zero as a side effect so stale score cannot
// re-trigger the alert; mention history is retained.
func (l *Ledger) EntitiesExceedingThreshold() []EntityAbuse {
	l.mu.Lock()
	defer l.mu.Unlock()

	var surfaced []EntityAbuse

	for entity, score := range l.entityScores {
		if score < l.cfg.EntityScoreThreshold {
			continue
		}

		mentions := make([]Mention, len(l.entityMentions[entity]))
		copy(mentions, l.entityMentions[entity])

		surfaced = append(surfaced, EntityAbuse{Entity: entity, Mentions: mentions})
		l.entityScores[entity] = 0
	}

	return surfaced
}

// PromoteFlaggedTokens adds tokens to the flagged-keyword set. Promotion
// affects future ingestion only.
func (l *Ledger) PromoteFlaggedTokens(tokens []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, token := range tokens {
		l.flaggedTokens[token] = struct{}{}
	}

	l.logger.Info("Flagged tokens promoted", zap.Int("count", len(tokens)))
}

// KeywordThreshold returns the configured TF-IDF surfacing threshold.
func (l *Ledger) KeywordThreshold() float64 {
	return l.cfg.KeywordThreshold
}

// TotalMessages returns how many messages have been successfully ingested.
func (l *Ledger) TotalMessages() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.totalMessages
}

// DocumentFrequency returns how many ingested messages contained the token.
func (l *Ledger) DocumentFrequency(token string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.docFrequency[token]
}
