package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaHost is where a local Ollama listens.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaClient is a Completer for a local Ollama server.
type OllamaClient struct {
	host        string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOllamaClient creates an OllamaClient. An empty host means
// DefaultOllamaHost.
func NewOllamaClient(host, model string, temperature float64, timeout time.Duration) *OllamaClient {
	if host == "" {
		host = DefaultOllamaHost
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		host:        strings.TrimRight(host, "/"),
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Complete implements Completer.
func (c *OllamaClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  false,
		Options: ollamaOptions{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Backend: "ollama", Code: resp.StatusCode}
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama: %s", result.Error)
	}
	if result.Message.Content == "" {
		return "", fmt.Errorf("ollama returned an empty message")
	}
	return result.Message.Content, nil
}

// IsHealthy reports whether the server answers /api/tags.
func (c *OllamaClient) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
