// Package openai calls the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/ene/pkg/llm"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Completer implements llm.Completer against the OpenAI API.
type Completer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New creates an OpenAI-backed completer.
func New(apiKey, model, baseURL string) *Completer {
	return &Completer{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Completer) Name() string { return "openai" }

// Complete sends one chat completion request and returns the assistant text.
func (c *Completer) Complete(ctx context.Context, creq llm.CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if creq.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: creq.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: creq.User})

	request := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: creq.Temperature,
		MaxTokens:   creq.MaxTokens,
	}
	if creq.JSON {
		request.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	target := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("openai error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}
