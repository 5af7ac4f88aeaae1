package review_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/report"
	"github.com/wardenhq/warden/internal/review"
	"go.uber.org/zap"
)

// fakeActions records enforcement calls.
type fakeActions struct {
	deleted  []snowflake.ID
	kicked   []snowflake.ID
	notified []string
}

func (f *fakeActions) DeleteMessage(_ context.Context, msg chat.Message) error {
	f.deleted = append(f.deleted, msg.ID)
	return nil
}

func (f *fakeActions) KickUser(_ context.Context, _, userID snowflake.ID) error {
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeActions) NotifyReporter(_ context.Context, _ snowflake.ID, content string) error {
	f.notified = append(f.notified, content)
	return nil
}

func campaignReport() report.Report {
	return report.Report{
		ReporterID:    99,
		Message:       chat.Message{ID: 3, GuildID: 1, ChannelID: 2, AuthorID: 50, AuthorName: "offender", Content: "bad"},
		AbuseCategory: "Bullying",
		Campaign:      true,
		CampaignMessages: []chat.Message{
			{ID: 4, GuildID: 1, ChannelID: 2, AuthorID: 50, AuthorName: "offender", Content: "more"},
			{ID: 5, GuildID: 1, ChannelID: 2, AuthorID: 51, AuthorName: "second", Content: "piling on"},
		},
		SecondaryTarget: "@victim",
	}
}

func TestCaseLifecycle(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())

	assert.Equal(t, review.StateOpened, c.State())
	assert.NotEmpty(t, c.ID())

	c.BeginReview()
	assert.Equal(t, review.StateEvaluating, c.State())

	// BeginReview is safe to repeat.
	c.BeginReview()
	assert.Equal(t, review.StateEvaluating, c.State())

	c.EvaluateViolation(true)
	assert.Equal(t, review.StateActing, c.State())
	assert.True(t, c.Violation())

	// The verdict sticks; re-judging is a no-op.
	c.EvaluateViolation(false)
	assert.Equal(t, review.StateActing, c.State())
	assert.True(t, c.Violation())

	require.NoError(t, c.SendReporterNotice(context.Background(), "resolved"))
	assert.True(t, c.Closed())
	assert.Equal(t, []string{"resolved"}, actions.notified)

	// Closing again is a no-op, and enforcement after close is refused.
	c.Close()
	assert.ErrorIs(t, c.DeleteReported(context.Background()), review.ErrCaseClosed)
	assert.ErrorIs(t, c.KickReportedAuthor(context.Background()), review.ErrCaseClosed)
}

func TestCaseRejectionPath(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())

	c.BeginReview()
	c.EvaluateViolation(false)
	assert.Equal(t, review.StateReturning, c.State())
	assert.False(t, c.Violation())

	require.NoError(t, c.SendReporterNotice(context.Background(), "no violation"))
	assert.True(t, c.Closed())
	assert.Equal(t, []string{"no violation"}, actions.notified)
}

func TestCaseCampaignUnlock(t *testing.T) {
	t.Parallel()

	t.Run("first enforcement action unlocks", func(t *testing.T) {
		t.Parallel()

		c := review.NewCase(campaignReport(), &fakeActions{}, zap.NewNop())
		c.BeginReview()
		c.EvaluateViolation(true)
		assert.False(t, c.CampaignUnlocked())

		require.NoError(t, c.DeleteReported(context.Background()))
		assert.True(t, c.CampaignUnlocked())

		require.NoError(t, c.KickReportedAuthor(context.Background()))
		assert.True(t, c.CampaignUnlocked())
	})

	t.Run("non-campaign report never unlocks", func(t *testing.T) {
		t.Parallel()

		rep := campaignReport()
		rep.Campaign = false
		rep.CampaignMessages = nil

		c := review.NewCase(rep, &fakeActions{}, zap.NewNop())
		c.BeginReview()
		c.EvaluateViolation(true)

		require.NoError(t, c.DeleteReported(context.Background()))
		assert.False(t, c.CampaignUnlocked())
	})
}

func TestCaseDeleteIdempotent(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())
	c.BeginReview()
	c.EvaluateViolation(true)

	require.NoError(t, c.DeleteReported(context.Background()))
	require.NoError(t, c.DeleteReported(context.Background()))
	assert.Equal(t, []snowflake.ID{3}, actions.deleted)
}

func TestCaseKickDeduplication(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())
	c.BeginReview()
	c.EvaluateViolation(true)

	require.NoError(t, c.KickReportedAuthor(context.Background()))

	// The reported author also wrote a campaign message; the sweep must not
	// kick them twice, and repeating the sweep must not kick anyone again.
	require.NoError(t, c.KickCampaignAuthors(context.Background()))
	require.NoError(t, c.KickCampaignAuthors(context.Background()))

	assert.Equal(t, []snowflake.ID{50, 51}, actions.kicked)
}

func TestCaseCampaignDeleteOnce(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())
	c.BeginReview()
	c.EvaluateViolation(true)

	require.NoError(t, c.DeleteCampaign(context.Background()))
	require.NoError(t, c.DeleteCampaign(context.Background()))

	assert.Equal(t, []snowflake.ID{4, 5}, actions.deleted)
}

func TestCaseEscalation(t *testing.T) {
	t.Parallel()

	t.Run("fires once with a target", func(t *testing.T) {
		t.Parallel()

		c := review.NewCase(campaignReport(), &fakeActions{}, zap.NewNop())
		assert.True(t, c.EscalateSecondaryTarget())
		assert.False(t, c.EscalateSecondaryTarget())
		assert.True(t, c.Escalated())
	})

	t.Run("refuses without a target", func(t *testing.T) {
		t.Parallel()

		rep := campaignReport()
		rep.SecondaryTarget = ""

		c := review.NewCase(rep, &fakeActions{}, zap.NewNop())
		assert.False(t, c.EscalateSecondaryTarget())
	})
}

func TestCaseAlertAuthoritiesOnce(t *testing.T) {
	t.Parallel()

	c := review.NewCase(campaignReport(), &fakeActions{}, zap.NewNop())
	assert.True(t, c.AlertAuthorities())
	assert.False(t, c.AlertAuthorities())
	assert.True(t, c.AuthoritiesAlerted())
}

func TestCaseWithholdNotice(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())
	c.BeginReview()

	c.WithholdReporterNotice()
	assert.True(t, c.Closed())
	assert.Empty(t, actions.notified)
}

func TestCampaignDigestChunking(t *testing.T) {
	t.Parallel()

	rep := campaignReport()
	rep.CampaignMessages = nil

	// Enough long messages to force multiple chunks.
	for i := 0; i < 10; i++ {
		rep.CampaignMessages = append(rep.CampaignMessages, chat.Message{
			ID:         snowflake.ID(10 + i),
			AuthorName: "spammer",
			Content:    strings.Repeat("x", 200),
		})
	}

	c := review.NewCase(rep, &fakeActions{}, zap.NewNop())

	chunks := c.CampaignDigest()
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), review.CampaignChunkLimit)
		assert.NotEmpty(t, chunk)
	}
}

func TestCampaignDigestEmpty(t *testing.T) {
	t.Parallel()

	rep := campaignReport()
	rep.CampaignMessages = nil

	c := review.NewCase(rep, &fakeActions{}, zap.NewNop())
	assert.Nil(t, c.CampaignDigest())
}

func TestCaseConcurrentKicks(t *testing.T) {
	t.Parallel()

	actions := &fakeActions{}
	c := review.NewCase(campaignReport(), actions, zap.NewNop())
	c.BeginReview()
	c.EvaluateViolation(true)

	// Two moderators racing the kick buttons must still kick each author at
	// most once.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			assert.NoError(t, c.KickReportedAuthor(context.Background()))
		}()

		go func() {
			defer wg.Done()
			assert.NoError(t, c.KickCampaignAuthors(context.Background()))
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []snowflake.ID{50, 51}, actions.kicked)
}
