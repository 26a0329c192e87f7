package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const ClaudeAPIURL = "https://api.anthropic.com/v1/messages"
const ClaudeAPIVersion = "2023-06-01"

// ClaudeClient wraps the Anthropic Messages API
type ClaudeClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

// NewClaudeClient creates a client bound to one model. Deadlines come from
// the caller's context.
func NewClaudeClient(apiKey, model string) *ClaudeClient {
	return &ClaudeClient{
		apiKey:     apiKey,
		model:      model,
		url:        ClaudeAPIURL,
		httpClient: &http.Client{},
	}
}

// SetBaseURL points the client at another host, keeping the /v1/messages path.
func (c *ClaudeClient) SetBaseURL(base string) {
	c.url = strings.TrimRight(base, "/") + "/v1/messages"
}

// ClaudeRequest represents a request to the Claude API
type ClaudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []ClaudeMessage `json:"messages"`
}

// ClaudeMessage represents a message in the Claude API
type ClaudeMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ClaudeResponse represents a response from the Claude API
type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ClaudeError represents an error from the Claude API
type ClaudeError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message.
func (c *ClaudeClient) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	resp, err := c.SendMessage(ctx, "", []ClaudeMessage{{Role: "user", Content: prompt}}, maxOutputTokens)
	if err != nil {
		return "", wrapUpstream(ctx, ProviderAnthropic, err)
	}
	return resp.Text(), nil
}

// SendMessage sends a message list to Claude and returns the decoded response
func (c *ClaudeClient) SendMessage(ctx context.Context, systemPrompt string, messages []ClaudeMessage, maxTokens int) (*ClaudeResponse, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	request := ClaudeRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  messages,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", ClaudeAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var claudeErr ClaudeError
		if err := json.Unmarshal(body, &claudeErr); err == nil && claudeErr.Error.Message != "" {
			return nil, fmt.Errorf("Claude API error: %s - %s", claudeErr.Error.Type, claudeErr.Error.Message)
		}
		return nil, fmt.Errorf("Claude API error: status %d - %s", resp.StatusCode, string(body))
	}

	var claudeResp ClaudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &claudeResp, nil
}

// Text concatenates the text blocks of the response.
func (r *ClaudeResponse) Text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// wrapUpstream tags a provider failure, marking deadline expiry as a timeout.
func wrapUpstream(ctx context.Context, p Provider, err error) error {
	timeout := ctx.Err() == context.DeadlineExceeded
	return &UpstreamError{Provider: p, Timeout: timeout, Err: err}
}
