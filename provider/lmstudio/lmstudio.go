package lmstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/provider"
)

// Client talks to an LM Studio (OpenAI-compatible) chat-completions server.
// Readiness and the resolved model id are process-scoped state with an
// init-once, read-many lifecycle: populated on first successful check and
// never invalidated within a run.
type Client struct {
	cfg        config.LMStudioConfig
	httpClient *http.Client
	logger     *log.Logger

	mu            sync.Mutex
	ready         bool
	resolvedModel string
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// New creates a new LM Studio client.
func New(cfg config.LMStudioConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.New(log.Writer(), "[LMSTUDIO] ", log.LstdFlags),
	}
}

// EnsureReady checks that the model server answers /models, polling until
// the configured startup timeout. The positive result is cached for the
// remainder of the run.
func (c *Client) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	deadline := time.Now().Add(c.cfg.StartupTimeout)
	for {
		if c.probe(ctx) {
			c.ready = true
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("model server not reachable at %s within %v", c.cfg.BaseURL, c.cfg.StartupTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.StartupPoll):
		}
	}
}

func (c *Client) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ResolveModel returns the model id to generate with: the configured one if
// set, otherwise the first non-embedding model the server advertises. The
// resolution is cached for the remainder of the run.
func (c *Client) ResolveModel(ctx context.Context) (string, error) {
	if c.cfg.Model != "" {
		return c.cfg.Model, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolvedModel != "" {
		return c.resolvedModel, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("models endpoint returned status: %d", resp.StatusCode)
	}

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", fmt.Errorf("failed to parse models listing: %w", err)
	}
	if len(listing.Data) == 0 {
		return "", fmt.Errorf("model server advertises no models")
	}
	for _, item := range listing.Data {
		if item.ID != "" && !strings.Contains(strings.ToLower(item.ID), "embed") {
			c.resolvedModel = item.ID
			break
		}
	}
	if c.resolvedModel == "" {
		c.resolvedModel = listing.Data[0].ID
	}
	c.logger.Printf("resolved model: %s", c.resolvedModel)
	return c.resolvedModel, nil
}

// ChatCompletion sends one chat-completion request and returns the raw
// assistant reply text.
func (c *Client) ChatCompletion(ctx context.Context, req provider.ChatRequest) (string, error) {
	model, err := c.ResolveModel(ctx)
	if err != nil {
		return "", err
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.User})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

var _ provider.Chat = (*Client)(nil)
