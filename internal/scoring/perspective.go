package scoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/wardenhq/warden/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrScoreFailed wraps failures of the scoring service call. Callers must
	// skip the affected message without touching aggregate state.
	ErrScoreFailed = errors.New("failed to score message text")
	// ErrScoreRejected indicates the service rejected the request itself
	// (bad key, malformed text). Not retried.
	ErrScoreRejected = errors.New("scoring request rejected")
)

// PerspectiveClient calls a Perspective-style comment-analysis HTTP API.
// Requests are bounded by a weighted semaphore so a burst of channel traffic
// cannot exhaust the service quota.
type PerspectiveClient struct {
	http     *http.Client
	endpoint string
	apiKey   string
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewPerspectiveClient creates a scorer backed by the comment-analysis API.
func NewPerspectiveClient(
	endpoint, apiKey string, timeout time.Duration, maxConcurrent int64, logger *zap.Logger,
) *PerspectiveClient {
	return &PerspectiveClient{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		sem:      semaphore.NewWeighted(maxConcurrent),
		logger:   logger.Named("perspective"),
	}
}

type analyzeRequest struct {
	Comment             comment             `json:"comment"`
	Languages           []string            `json:"languages"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	DoNotStore          bool                `json:"doNotStore"`
}

type comment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// Score sends the text to the analysis service and returns the score for
// every requested attribute. On any failure no partial vector is returned.
func (c *PerspectiveClient) Score(ctx context.Context, text string) (ScoreVector, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoreFailed, err)
	}
	defer c.sem.Release(1)

	attributes := make(map[string]struct{}, len(RequestedAttributes))
	for _, attr := range RequestedAttributes {
		attributes[attr] = struct{}{}
	}

	body, err := sonic.Marshal(analyzeRequest{
		Comment:             comment{Text: text},
		Languages:           []string{"en"},
		RequestedAttributes: attributes,
		DoNotStore:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoreFailed, err)
	}

	scores, err := utils.WithRetry(ctx, func() (ScoreVector, error) {
		return c.doAnalyze(ctx, body)
	}, utils.GetScoringRetryOptions())
	if err != nil {
		c.logger.Warn("Scoring call failed", zap.Error(err))
		return nil, err
	}

	return scores, nil
}

// doAnalyze performs a single request attempt.
func (c *PerspectiveClient) doAnalyze(ctx context.Context, body []byte) (ScoreVector, error) {
	url := c.endpoint + "?key=" + c.apiKey

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrScoreFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoreFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrScoreFailed, err)
	}

	// Client errors are not retried; the request will not get better.
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return nil, backoff.Permanent(fmt.Errorf("%w: HTTP %d: %s", ErrScoreRejected, resp.StatusCode, string(respBody)))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrScoreFailed, resp.StatusCode, string(respBody))
	}

	var parsed analyzeResponse
	if err := sonic.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %w", ErrScoreFailed, err)
	}

	scores := make(ScoreVector, len(parsed.AttributeScores))
	for attr, attrScore := range parsed.AttributeScores {
		scores[attr] = attrScore.SummaryScore.Value
	}

	return scores, nil
}
