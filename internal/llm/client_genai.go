package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adscribe/internal/logging"

	"google.golang.org/genai"
)

// GenAIClient implements Client for Google Gemini via the genai SDK.
type GenAIClient struct {
	client          *genai.Client
	model           string
	temperature     float64
	maxOutputTokens int
	timeout         time.Duration
}

// NewGenAIClient creates a new Gemini client.
func NewGenAIClient(cfg Config) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	maxTokens := cfg.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client:          client,
		model:           model,
		temperature:     cfg.Temperature,
		maxOutputTokens: maxTokens,
		timeout:         timeout,
	}, nil
}

// Complete sends a prompt and returns the completion text.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logging.Get(logging.CategoryAPI).Debug("GenAI completion request: model=%s, prompt=%d chars", c.model, len(prompt))

	temp := float32(c.temperature)
	result, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: int32(c.maxOutputTokens),
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}

	return strings.TrimSpace(text), nil
}
