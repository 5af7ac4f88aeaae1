package nlp

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
)

// ErrExtractFailed wraps failures of the entity-recognition service call.
var ErrExtractFailed = errors.New("failed to extract entities")

// NERClient calls a named-entity-recognition sidecar service over HTTP.
// The service runs the actual language model; this client only shuttles
// text in and entity spans out.
type NERClient struct {
	http     *http.Client
	endpoint string
	logger   *zap.Logger
}

// NewNERClient creates an extractor backed by an NER sidecar service.
func NewNERClient(endpoint string, timeout time.Duration, logger *zap.Logger) *NERClient {
	return &NERClient{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		logger:   logger.Named("ner"),
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Entities []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
	} `json:"entities"`
	Tokens []string `json:"tokens"`
}

// Extract returns the distinct person/group entity names found in the text
// along with the lowercase token sequence.
func (c *NERClient) Extract(ctx context.Context, text string) (Extraction, error) {
	body, err := sonic.Marshal(extractRequest{Text: text})
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	parsed, err := utils.WithRetry(ctx, func() (extractResponse, error) {
		return c.doExtract(ctx, body)
	}, utils.GetScoringRetryOptions())
	if err != nil {
		c.logger.Warn("Entity extraction call failed", zap.Error(err))
		return Extraction{}, err
	}

	// Keep person/group entities, dropping duplicate names.
	seen := make(map[string]struct{}, len(parsed.Entities))
	entities := make([]string, 0, len(parsed.Entities))

	for _, entity := range parsed.Entities {
		if entity.Label != LabelPerson && entity.Label != LabelGroup {
			continue
		}
		if _, ok := seen[entity.Text]; ok {
			continue
		}
		seen[entity.Text] = struct{}{}
		entities = append(entities, entity.Text)
	}

	tokens := parsed.Tokens
	if len(tokens) == 0 {
		tokens = Tokenize(text)
	}

	return Extraction{Entities: entities, Tokens: tokens}, nil
}

// doExtract performs a single request attempt.
func (c *NERClient) doExtract(ctx context.Context, body []byte) (extractResponse, error) {
	var parsed extractResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return parsed, backoff.Permanent(fmt.Errorf("%w: %w", ErrExtractFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return parsed, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return parsed, fmt.Errorf("%w: failed to read response body: %w", ErrExtractFailed, err)
	}

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return parsed, backoff.Permanent(fmt.Errorf("%w: HTTP %d: %s", ErrExtractFailed, resp.StatusCode, string(respBody)))
	}

	if resp.StatusCode != http.StatusOK {
		return parsed, fmt.Errorf("%w: HTTP %d: %s", ErrExtractFailed, resp.StatusCode, string(respBody))
	}

	if err := sonic.Unmarshal(respBody, &parsed); err != nil {
		return parsed, fmt.Errorf("%w: failed to parse JSON response: %w", ErrExtractFailed, err)
	}

	return parsed, nil
}
