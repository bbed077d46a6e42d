package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	Contents         []content         `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls one Gemini model. Build one client per model identifier and
// order them in an llm.Chain to get model fallback.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	http      *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at a different API host (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithMaxOutputTokens caps the response length.
func WithMaxOutputTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClients builds one client per model, preserving order and skipping blanks.
func NewClients(apiKey string, models []string, opts ...Option) []*Client {
	var out []*Client
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, NewClient(apiKey, m, opts...))
	}
	return out
}

func (c *Client) SourceName() string {
	return "gemini/" + c.model
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}
	body := geminiRequest{
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: prompt}},
			},
		},
	}
	if c.maxTokens > 0 {
		body.GenerationConfig = &generationConfig{MaxOutputTokens: c.maxTokens}
	}
	return c.generateContent(ctx, body)
}

func (c *Client) generateContent(ctx context.Context, body geminiRequest) (string, error) {
	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model),
		fmt.Sprintf("%s/v1/models/%s:generateContent", c.baseURL, c.model),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		text, err := c.call(ctx, ep, data)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (c *Client) call(ctx context.Context, url string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels in a header; URLs end up in transport errors and logs.
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var gr geminiResponse
	parseErr := json.Unmarshal(bodyBytes, &gr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && gr.Error != nil && gr.Error.Message != "" {
			return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode, gr.Error.Message)
		}
		return "", fmt.Errorf("gemini http %d", resp.StatusCode)
	}
	if parseErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text part in response")
	}
	return b.String(), nil
}
