package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"subflow/internal/faults"
	"subflow/internal/ratelimit"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
	maxResponseBody    = 10 << 20
)

// Config captures the settings required to talk to the completion API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client issues chat completion requests. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter paces requests through a shared token bucket. A nil limiter
// leaves the client unthrottled.
func WithLimiter(limiter *ratelimit.TokenBucket) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewClient constructs a completion client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	return client
}

// Complete sends one chat completion request and returns the assistant
// text. Errors carry a fault category, so callers can hand them straight
// back to the pipeline.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", faults.New(faults.InvalidInput, "llm complete: both prompts required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	}
	return c.completionContent(ctx, payload, "llm complete")
}

// HealthCheck issues a fast ping to verify the API key and model before a
// run starts.
func (c *Client) HealthCheck(ctx context.Context) error {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: `Respond with {"ok":true}`},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	content, err := c.completionContent(ctx, payload, "llm health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeResponseJSON(content, &parsed); err != nil {
		return faults.Wrap(faults.Parse, "llm health: parse payload", err)
	}
	if !parsed.OK {
		return faults.New(faults.ExternalService, "llm health: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

func (c *Client) completionContent(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", faults.Errorf(faults.Auth, "%s: api key required", op)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", faults.Wrap(faults.Cancelled, op, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", faults.Wrap(faults.InvalidInput, op+": encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", faults.Wrap(faults.InvalidInput, op+": build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", faults.Wrap(faults.Network, op+": read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(op, resp, respBody)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", faults.Wrap(faults.Parse, op+": decode response", err)
	}
	if completion.Error != nil && completion.Error.Message != "" {
		return "", faults.Errorf(faults.ExternalService, "%s: api error: %s", op, completion.Error.Message)
	}

	content, finishReason, refusal := extractContent(completion)
	if content == "" {
		if refusal != "" {
			return "", faults.Errorf(faults.Content, "%s: model refused: %s", op, refusal)
		}
		return "", faults.Errorf(faults.ExternalService, "%s: empty content (finish_reason=%q)", op, finishReason)
	}
	return content, nil
}

func extractContent(completion chatCompletionResponse) (content, finishReason, refusal string) {
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
		}
		for _, candidate := range []string{choice.Message.Content, choice.Delta.Content, choice.Text} {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return trimmed, finishReason, refusal
			}
		}
	}
	return "", finishReason, refusal
}

func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return faults.Wrap(faults.Cancelled, op, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return faults.Wrap(faults.Timeout, op+": request timed out", err)
	}
	return faults.Wrap(faults.Network, op+": request failed", err)
}

func classifyStatus(op string, resp *http.Response, body []byte) error {
	snippet := summarizeBody(body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return faults.RateLimited(
			fmt.Sprintf("%s: http 429: %s", op, snippet),
			parseRetryAfter(resp.Header.Get("Retry-After")),
			nil,
		)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return faults.Errorf(faults.Auth, "%s: http %d: %s", op, resp.StatusCode, snippet)
	case resp.StatusCode == http.StatusBadRequest:
		return faults.Errorf(faults.InvalidInput, "%s: http 400: %s", op, snippet)
	case resp.StatusCode == http.StatusRequestTimeout:
		return faults.Errorf(faults.Timeout, "%s: http 408: %s", op, snippet)
	default:
		return faults.Errorf(faults.ExternalService, "%s: http %d: %s", op, resp.StatusCode, snippet)
	}
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func summarizeBody(body []byte) string {
	const max = 200
	text := strings.TrimSpace(string(body))
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
