package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// Client calls deployed scan and analyze functions under the retry policy.
type Client struct {
	scanURL    string
	analyzeURL string
	httpClient *http.Client
	retry      *RetryController
}

// NewClient creates a Client. httpClient may be nil.
func NewClient(scanURL, analyzeURL string, httpClient *http.Client, retry *RetryController) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if retry == nil {
		retry = NewRetryController(0, 0)
	}
	return &Client{scanURL: scanURL, analyzeURL: analyzeURL, httpClient: httpClient, retry: retry}
}

// Scan calls the folder-scanner endpoint.
func (c *Client) Scan(ctx context.Context, link string, onRetry func(attempt int)) (*models.ScanFolderResponse, error) {
	var out models.ScanFolderResponse
	if err := c.post(ctx, c.scanURL, models.ScanFolderRequest{Link: link}, &out, onRetry); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze calls the evidence-analyzer endpoint.
func (c *Client) Analyze(ctx context.Context, req models.AnalyzeRequest, onRetry func(attempt int)) (*models.AnalyzeResponse, error) {
	var out models.AnalyzeResponse
	if err := c.post(ctx, c.analyzeURL, req, &out, onRetry); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, url string, in, out any, onRetry func(attempt int)) error {
	if url == "" {
		return badRequestError(fmt.Errorf("endpoint URL is not configured"))
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return internalError(fmt.Errorf("marshal request: %w", err))
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return internalError(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return transientError(fmt.Errorf("POST %s: %w", url, err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return transientError(fmt.Errorf("read response: %w", err))
		}
		return decodeResponse(resp.StatusCode, body, out)
	}, onRetry)
}

// decodeResponse maps an endpoint reply onto out or onto the error
// taxonomy. 429 and gateway failures are retryable regardless of body.
func decodeResponse(status int, body []byte, out any) error {
	bodyErr := decodeJSONBody(body)

	switch status {
	case http.StatusTooManyRequests:
		return rateLimitedError(fmt.Errorf("endpoint returned 429: %s", snippet(strings.TrimSpace(string(body)))))
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return transientError(fmt.Errorf("endpoint returned %d: %s", status, snippet(strings.TrimSpace(string(body)))))
	}
	if bodyErr != nil {
		return bodyErr
	}
	if status < 200 || status >= 300 {
		return classifyStatus(status, fmt.Errorf("endpoint returned %d", status))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return schemaViolationError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
