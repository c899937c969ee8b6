// Package falqueue implements the asynchronous request/poll/result
// protocol of the fal.run queue API: submit a generation job, poll its
// status until a terminal state, then fetch the result text.
package falqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/logging"
)

// DefaultQueueURL routes requests through the OpenRouter adapter on the
// fal.run queue.
const DefaultQueueURL = "https://queue.fal.run/openrouter/router"

// DefaultPollInterval is the fixed delay between status polls.
const DefaultPollInterval = 2 * time.Second

// Job states reported by the queue. Anything not listed here is
// non-terminal and polling continues.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Options configures a Client.
type Options struct {
	// QueueURL overrides DefaultQueueURL.
	QueueURL string

	// Credential authenticates every request via the "Key" scheme. The
	// client never sources or caches it itself.
	Credential string

	// Model names the remote model route, e.g. "qwen/qwen-2.5-72b-instruct".
	Model string

	// Sampling parameters sent with every submission.
	Temperature float64
	MaxTokens   int

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	// HTTPClient overrides the default retrying transport, mainly for
	// tests.
	HTTPClient *retryablehttp.Client
}

// Client drives one generation job at a time against the queue. It holds
// no local state beyond its configuration.
type Client struct {
	http         *retryablehttp.Client
	queueURL     string
	credential   string
	model        string
	temperature  float64
	maxTokens    int
	pollInterval time.Duration
}

// New creates a queue client from opts.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = retryablehttp.NewClient()
		// Transient connection failures and 5xx responses are retried at
		// the transport level; job-level state is handled by the poll loop.
		httpClient.RetryMax = 2
		httpClient.RetryWaitMin = 500 * time.Millisecond
		httpClient.RetryWaitMax = 2 * time.Second
		httpClient.HTTPClient.Timeout = 30 * time.Second
		httpClient.Logger = nil
	}

	queueURL := opts.QueueURL
	if queueURL == "" {
		queueURL = DefaultQueueURL
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Client{
		http:         httpClient,
		queueURL:     queueURL,
		credential:   opts.Credential,
		model:        opts.Model,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxTokens,
		pollInterval: pollInterval,
	}
}

type submitRequest struct {
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Prompt       string  `json:"prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type resultResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// Generate submits one job and blocks until it reaches a terminal state,
// polling at the configured interval. Non-terminal states never abort the
// job; cancellation comes only from ctx. On success it returns the trimmed
// result text.
func (c *Client) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	logger := logging.FromContext(ctx)

	body, err := c.post(ctx, c.queueURL, submitRequest{
		Model:        c.model,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("submitting job: %w", err)
	}

	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", fmt.Errorf("%w: decoding submit response: %w", ErrTransport, err)
	}
	if submitted.RequestID == "" {
		return "", fmt.Errorf("%w: submit response missing request_id", ErrTransport)
	}

	logger.Debug().Str("request_id", submitted.RequestID).Msg("job submitted")

	if err := c.waitTerminal(ctx, submitted.RequestID); err != nil {
		return "", err
	}

	body, err = c.get(ctx, c.resultURL(submitted.RequestID))
	if err != nil {
		return "", fmt.Errorf("fetching result: %w", err)
	}

	var result resultResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decoding result response: %w", ErrTransport, err)
	}
	if result.Error != "" {
		return "", &ResultError{Message: result.Error}
	}

	return strings.TrimSpace(result.Output), nil
}

// waitTerminal polls the job status until COMPLETED, returning an error on
// FAILED/CANCELLED or when ctx is cancelled. All other states keep the
// loop alive indefinitely.
func (c *Client) waitTerminal(ctx context.Context, requestID string) error {
	logger := logging.FromContext(ctx)
	statusURL := c.statusURL(requestID)

	lastState := ""
	for {
		body, err := c.get(ctx, statusURL)
		if err != nil {
			return fmt.Errorf("polling status: %w", err)
		}

		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("%w: decoding status response: %w", ErrTransport, err)
		}

		if status.Status != lastState {
			logger.Debug().
				Str("request_id", requestID).
				Str("state", status.Status).
				Msg("job state changed")
			lastState = status.Status
		}

		switch status.Status {
		case StatusCompleted:
			return nil
		case StatusFailed, StatusCancelled:
			return &JobFailedError{Status: status.Status, Payload: string(body)}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) statusURL(requestID string) string {
	return fmt.Sprintf("%s/requests/%s/status", c.queueURL, requestID)
}

func (c *Client) resultURL(requestID string) string {
	return fmt.Sprintf("%s/requests/%s", c.queueURL, requestID)
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, data)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// do performs one authenticated request and returns the response body. Any
// failure of the channel itself is wrapped in ErrTransport.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reqBody any
	if body != nil {
		reqBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Key "+c.credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s %s returned %d: %s",
			ErrTransport, method, url, resp.StatusCode, truncate(string(data), 200))
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
