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

const MistralAPIURL = "https://api.mistral.ai/v1/chat/completions"

// MistralClient talks to Mistral's OpenAI-compatible chat completions endpoint.
type MistralClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

func NewMistralClient(apiKey, model string) *MistralClient {
	return &MistralClient{
		apiKey:     apiKey,
		model:      model,
		url:        MistralAPIURL,
		httpClient: &http.Client{},
	}
}

// SetBaseURL points the client at another host, keeping the /v1/chat/completions path.
func (c *MistralClient) SetBaseURL(base string) {
	c.url = strings.TrimRight(base, "/") + "/v1/chat/completions"
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *MistralClient) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	text, err := c.complete(ctx, prompt, maxOutputTokens)
	if err != nil {
		return "", wrapUpstream(ctx, ProviderMistral, err)
	}
	return text, nil
}

func (c *MistralClient) complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}
	payload, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: maxOutputTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return "", fmt.Errorf("Mistral API error: %s", apiErr.Message)
		}
		return "", fmt.Errorf("Mistral API error: status %d - %s", resp.StatusCode, string(body))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("Mistral API returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
