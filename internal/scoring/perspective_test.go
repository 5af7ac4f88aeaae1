package scoring_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/scoring"
	"go.uber.org/zap"
)

const analyzeResponse = `{
	"attributeScores": {
		"TOXICITY": {"summaryScore": {"value": 0.91}},
		"SEVERE_TOXICITY": {"summaryScore": {"value": 0.42}},
		"IDENTITY_ATTACK": {"summaryScore": {"value": 0.13}},
		"THREAT": {"summaryScore": {"value": 0.07}},
		"SEXUALLY_EXPLICIT": {"summaryScore": {"value": 0.02}}
	}
}`

func newClient(t *testing.T, handler http.HandlerFunc) *scoring.PerspectiveClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return scoring.NewPerspectiveClient(server.URL, "test-key", 5*time.Second, 2, zap.NewNop())
}

func TestPerspectiveScore(t *testing.T) {
	t.Parallel()

	t.Run("parses attribute scores", func(t *testing.T) {
		t.Parallel()

		var gotBody atomic.Value

		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotBody.Store(string(body))

			assert.Equal(t, "test-key", r.URL.Query().Get("key"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(analyzeResponse))
		})

		scores, err := client.Score(context.Background(), "you are awful")
		require.NoError(t, err)

		assert.InDelta(t, 0.91, scores[scoring.AttributeToxicity], 1e-9)
		assert.InDelta(t, 0.42, scores[scoring.AttributeSevereToxicity], 1e-9)
		assert.Len(t, scores, 5)

		body, _ := gotBody.Load().(string)
		assert.Contains(t, body, `"you are awful"`)
		assert.Contains(t, body, `"doNotStore":true`)

		for _, attr := range scoring.RequestedAttributes {
			assert.Contains(t, body, attr)
		}
	})

	t.Run("client error is not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "invalid api key", http.StatusBadRequest)
		})

		_, err := client.Score(context.Background(), "text")
		require.ErrorIs(t, err, scoring.ErrScoreRejected)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "try later", http.StatusInternalServerError)
				return
			}

			_, _ = w.Write([]byte(analyzeResponse))
		})

		scores, err := client.Score(context.Background(), "text")
		require.NoError(t, err)
		assert.Len(t, scores, 5)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestScoreVector(t *testing.T) {
	t.Parallel()

	v := scoring.ScoreVector{
		scoring.AttributeToxicity:       0.85,
		scoring.AttributeThreat:         0.8,
		scoring.AttributeIdentityAttack: 0.79,
	}

	assert.True(t, v.AnyAtLeast(0.8))
	assert.False(t, v.AnyAtLeast(0.9))

	assert.Equal(t, 2, v.CountAtLeast(scoring.CampaignAttributes, 0.8))
	assert.Equal(t, 0, scoring.ScoreVector{}.CountAtLeast(scoring.CampaignAttributes, 0.8))
}
