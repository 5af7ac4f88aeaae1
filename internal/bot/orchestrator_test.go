package bot

import (
	"context"
	"fmt"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/bot/constants"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/ledger"
	"github.com/wardenhq/warden/internal/nlp"
	"github.com/wardenhq/warden/internal/report"
	"github.com/wardenhq/warden/internal/review"
	"github.com/wardenhq/warden/internal/scoring"
	"go.uber.org/zap"
)

type stubScorer struct {
	scores scoring.ScoreVector
	err    error
}

func (s *stubScorer) Score(context.Context, string) (scoring.ScoreVector, error) {
	return s.scores, s.err
}

type stubExtractor struct {
	entities []string
	err      error
}

func (s *stubExtractor) Extract(_ context.Context, text string) (nlp.Extraction, error) {
	if s.err != nil {
		return nlp.Extraction{}, s.err
	}

	return nlp.Extraction{Entities: s.entities, Tokens: nlp.Tokenize(text)}, nil
}

type stubActions struct{}

func (stubActions) DeleteMessage(context.Context, chat.Message) error          { return nil }
func (stubActions) KickUser(context.Context, snowflake.ID, snowflake.ID) error { return nil }
func (stubActions) NotifyReporter(context.Context, snowflake.ID, string) error { return nil }

func newTestOrchestrator(scorer scoring.Scorer, extractor nlp.Extractor) *Orchestrator {
	return &Orchestrator{
		ledger:     ledger.New(ledger.DefaultConfig(), zap.NewNop()),
		normalizer: nlp.NewTextNormalizer(),
		scorer:     scorer,
		extractor:  extractor,
		actions:    stubActions{},
		logger:     zap.NewNop(),
		watched:    map[snowflake.ID]snowflake.ID{10: 11},
		modByGuild: map[snowflake.ID]snowflake.ID{1: 11},
		flows:      make(map[snowflake.ID]*report.Flow),
		cases:      make(map[string]*review.Case),
		alerts:     make(map[string]*alertRecord),
	}
}

func watchedMessage() chat.Message {
	return chat.Message{
		ID:         3,
		GuildID:    1,
		ChannelID:  10,
		AuthorID:   50,
		AuthorName: "author",
		Content:    "hello there",
	}
}

func TestProcessGuildMessageServiceFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		scorer    *stubScorer
		extractor *stubExtractor
	}{
		{
			name:      "scorer failure",
			scorer:    &stubScorer{err: fmt.Errorf("scorer unavailable")},
			extractor: &stubExtractor{},
		},
		{
			name:      "extractor failure",
			scorer:    &stubScorer{scores: scoring.ScoreVector{"TOXICITY": 0.1}},
			extractor: &stubExtractor{err: fmt.Errorf("model not loaded")},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := newTestOrchestrator(tt.scorer, tt.extractor)
			o.ProcessGuildMessage(context.Background(), watchedMessage())

			// A failed pipeline must not leave partial aggregates behind.
			assert.Zero(t, o.ledger.TotalMessages())
			assert.Zero(t, o.ledger.DocumentFrequency("hello"))
		})
	}
}

func TestProcessGuildMessageIngestsOnSuccess(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(
		&stubScorer{scores: scoring.ScoreVector{"TOXICITY": 0.1}},
		&stubExtractor{},
	)
	o.ProcessGuildMessage(context.Background(), watchedMessage())

	assert.Equal(t, 1, o.ledger.TotalMessages())
	assert.Equal(t, 1, o.ledger.DocumentFrequency("hello"))
}

func TestProcessGuildMessageIgnoresUnwatchedChannel(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(
		&stubScorer{scores: scoring.ScoreVector{"TOXICITY": 0.1}},
		&stubExtractor{},
	)

	msg := watchedMessage()
	msg.ChannelID = 99

	o.ProcessGuildMessage(context.Background(), msg)
	assert.Zero(t, o.ledger.TotalMessages())
}

func TestProcessDirectMessageSingleFlowPerReporter(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&stubScorer{}, &stubExtractor{})

	replies := o.ProcessDirectMessage(context.Background(), 99, "report")
	require.NotEmpty(t, replies)
	require.Len(t, o.flows, 1)

	first := o.flows[99]

	// A second "report" is treated as input to the active flow, not the
	// start of a new one.
	replies = o.ProcessDirectMessage(context.Background(), 99, "report")
	require.NotEmpty(t, replies)
	require.Len(t, o.flows, 1)
	assert.Same(t, first, o.flows[99])
}

func TestProcessDirectMessageOutsideFlow(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&stubScorer{}, &stubExtractor{})

	assert.Nil(t, o.ProcessDirectMessage(context.Background(), 99, "hello?"))
	assert.Empty(t, o.flows)

	replies := o.ProcessDirectMessage(context.Background(), 99, "help")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "report")
	assert.Empty(t, o.flows)
}

func TestCaseClosurePurgesReporterFlow(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&stubScorer{}, &stubExtractor{})

	rep := report.Report{
		ReporterID:    99,
		Message:       watchedMessage(),
		AbuseCategory: "Bullying",
	}
	reviewCase := review.NewCase(rep, stubActions{}, zap.NewNop())

	o.cases[reviewCase.ID()] = reviewCase
	o.flows[99] = report.NewFlow(99, nil, zap.NewNop())

	handled, err := o.applyCaseAction(context.Background(), reviewCase, constants.CaseActionReview)
	require.True(t, handled)
	require.NoError(t, err)

	// Still open: nothing is purged yet.
	o.retireCase(reviewCase.ID(), reviewCase)
	assert.Len(t, o.cases, 1)
	assert.Len(t, o.flows, 1)

	handled, err = o.applyCaseAction(context.Background(), reviewCase, constants.CaseActionClose)
	require.True(t, handled)
	require.NoError(t, err)
	require.True(t, reviewCase.Closed())

	o.retireCase(reviewCase.ID(), reviewCase)
	assert.Empty(t, o.cases)
	assert.Empty(t, o.flows)
}

func TestApplyCaseActionUnknown(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&stubScorer{}, &stubExtractor{})
	reviewCase := review.NewCase(report.Report{ReporterID: 99}, stubActions{}, zap.NewNop())

	handled, err := o.applyCaseAction(context.Background(), reviewCase, "made_up")
	assert.False(t, handled)
	assert.NoError(t, err)
}
