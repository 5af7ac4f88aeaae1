package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wardenhq/warden/internal/chat"
	"github.com/wardenhq/warden/internal/ledger"
	"github.com/wardenhq/warden/internal/scoring"
	"go.uber.org/zap"
)

func TestSurfaceKeywords(t *testing.T) {
	t.Parallel()

	t.Run("empty subset yields nothing", func(t *testing.T) {
		t.Parallel()

		l := ledger.New(ledger.DefaultConfig(), zap.NewNop())
		assert.Nil(t, l.SurfaceKeywords(nil, ledger.DefaultKeywordThreshold))
	})

	t.Run("distinctive tokens surface, common ones do not", func(t *testing.T) {
		t.Parallel()

		l := ledger.New(ledger.DefaultConfig(), zap.NewNop())

		// Build a corpus of ten messages. Every message contains "the";
		// only two contain "kiwi".
		for i := 0; i < 10; i++ {
			tokens := []string{"the", "weather"}
			if i < 2 {
				tokens = []string{"the", "attack", "kiwi"}
			}

			l.Ingest(newMessage(uint64(i+1), 100, "msg"), scoring.ScoreVector{}, nil, tokens)
		}

		mentions := []ledger.Mention{
			{Message: chat.Message{ID: 1}, Tokens: []string{"the", "attack", "kiwi"}},
			{Message: chat.Message{ID: 2}, Tokens: []string{"the", "attack", "kiwi"}},
		}

		keywords := l.SurfaceKeywords(mentions, ledger.DefaultKeywordThreshold)

		// tf("kiwi") = 2/6, idf = ln(10/2): well above the threshold.
		// "the" appears in every document, so its idf is zero.
		assert.Contains(t, keywords, "kiwi")
		assert.Contains(t, keywords, "attack")
		assert.NotContains(t, keywords, "the")
	})

	t.Run("unknown tokens are skipped", func(t *testing.T) {
		t.Parallel()

		l := ledger.New(ledger.DefaultConfig(), zap.NewNop())

		l.Ingest(newMessage(1, 100, "msg"), scoring.ScoreVector{}, nil, []string{"known"})

		// "ghost" never appeared in the corpus; dividing by its zero
		// document frequency must not happen.
		mentions := []ledger.Mention{
			{Message: chat.Message{ID: 1}, Tokens: []string{"ghost"}},
		}

		assert.Empty(t, l.SurfaceKeywords(mentions, ledger.DefaultKeywordThreshold))
	})
}
