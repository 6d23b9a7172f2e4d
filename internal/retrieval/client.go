package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is the HTTP client for the retrieval service. The service owns
// embedding and vector search; this side sends plain text.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) SearchKnowledge(ctx context.Context, query string, topK int) ([]KnowledgeChunk, error) {
	if topK <= 0 {
		topK = 3
	}
	req := struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}{Query: query, TopK: topK}

	var resp struct {
		Chunks []KnowledgeChunk `json:"chunks"`
	}
	if err := c.post(ctx, "/v1/knowledge/search", req, &resp); err != nil {
		return nil, fmt.Errorf("error searching knowledge: %v", err)
	}
	return resp.Chunks, nil
}

func (c *Client) Recommend(ctx context.Context, prefs Preferences, topN int) ([]Recommendation, error) {
	if topN <= 0 {
		topN = 3
	}
	req := struct {
		Preferences Preferences `json:"preferences"`
		TopN        int         `json:"top_n"`
	}{Preferences: prefs, TopN: topN}

	var resp struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := c.post(ctx, "/v1/recommendations", req, &resp); err != nil {
		return nil, fmt.Errorf("error getting recommendations: %v", err)
	}
	return resp.Recommendations, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling retrieval service: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("retrieval service returned non-200",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("retrieval service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %v", err)
	}
	return nil
}
