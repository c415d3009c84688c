// Package openai implements llm.Provider using the OpenAI-compatible chat
// completions protocol, adapted from the teacher's internal/llm/openai
// client. Both model tiers (fast/strong) are separate *Client instances
// sharing this same implementation.
package openai

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/abhishec/purple-agent/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Client implements llm.Provider over an OpenAI-compatible HTTP API.
type Client struct {
	client *openailib.Client
	config *Config
}

// NewClient creates a new OpenAI-compatible client for one model tier.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	httpTimeout := time.Duration(config.HTTPTimeout) * time.Second
	clientConfig.HTTPClient = &http.Client{Timeout: httpTimeout}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Call sends messages to the LLM and returns the complete response,
// retrying a failed call up to config.MaxRetries times.
func (c *Client) Call(ctx context.Context, messages []llm.Message, opts ...llm.CallOptions) (llm.Message, error) {
	if len(messages) == 0 {
		return llm.Message{}, fmt.Errorf("no messages to send")
	}

	openaiMsgs := make([]openailib.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMsgs[i] = openailib.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: openaiMsgs,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if llm.DetectThinkingCapability(c.config.Model).SupportsNativeThinking {
		req.ReasoningEffort = "medium"
	}
	if len(opts) > 0 {
		if opts[0].Temperature != nil {
			req.Temperature = *opts[0].Temperature
		}
		if opts[0].TopP != nil {
			req.TopP = *opts[0].TopP
		}
	}

	var resp openailib.ChatCompletionResponse
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if attempt < c.config.MaxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Printf("[LLM:%s] Retry %d/%d after %v, error: %v", c.config.TierName, attempt+1, c.config.MaxRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return llm.Message{}, ctx.Err()
			}
		}
	}

	if lastErr != nil {
		return llm.Message{}, fmt.Errorf("LLM call failed after %d retries: %w", c.config.MaxRetries, lastErr)
	}
	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("no choices returned from LLM")
	}

	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

// Name returns the provider/model identifier.
func (c *Client) Name() string {
	return fmt.Sprintf("openai-compatible:%s(%s)", c.config.TierName, c.config.Model)
}
