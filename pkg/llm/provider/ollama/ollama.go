// Package ollama calls a local Ollama server's chat API.
package ollama

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
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// Completer implements llm.Completer against an Ollama server.
type Completer struct {
	model   string
	baseURL string
	client  *http.Client
}

// New creates an Ollama-backed completer.
func New(model, baseURL string) *Completer {
	return &Completer{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Completer) Name() string { return "ollama" }

// Complete sends one non-streaming chat request and returns the reply text.
func (c *Completer) Complete(ctx context.Context, creq llm.CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if creq.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: creq.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: creq.User})

	request := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}
	if creq.JSON {
		request.Format = "json"
	}
	if creq.Temperature != 0 || creq.MaxTokens != 0 {
		request.Options = &chatOptions{
			Temperature: creq.Temperature,
			NumPredict:  creq.MaxTokens,
		}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	target := c.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama error: %s", response.Error)
	}

	return response.Message.Content, nil
}
