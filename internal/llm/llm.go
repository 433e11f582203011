// Package llm wraps the OpenAI-compatible chat and embedding endpoints.
// The base URL is configurable so any compatible provider works.
package llm

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"newsmosaic/internal/config"
	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single chat call. Zero values fall back to configuration.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Response is the model's reply.
type Response struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
}

// ChatClient is the language-model chat port.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts Options) (Response, error)
}

// Embedder is the language-model embedding port.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Client talks to an OpenAI-compatible endpoint for both chat and embeddings.
type Client struct {
	api      *openai.Client
	chatCfg  config.ChatConfig
	embedCfg config.EmbeddingConfig
}

// NewClient creates a client from configuration. The API key is required.
func NewClient(chatCfg config.ChatConfig, embedCfg config.EmbeddingConfig) (*Client, error) {
	if chatCfg.Key == "" {
		return nil, fmt.Errorf("LM_CHAT_KEY not set: %w", core.ErrConfigMissing)
	}

	apiCfg := openai.DefaultConfig(chatCfg.Key)
	if chatCfg.BaseURL != "" {
		apiCfg.BaseURL = chatCfg.BaseURL
	}

	return &Client{
		api:      openai.NewClientWithConfig(apiCfg),
		chatCfg:  chatCfg,
		embedCfg: embedCfg,
	}, nil
}

// Chat sends a chat-completion request and returns the reply.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (Response, error) {
	model := opts.Model
	if model == "" {
		model = c.chatCfg.Model
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.chatCfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.chatCfg.MaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w: %v", core.ErrUpstreamUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion returned no choices: %w", core.ErrParseFailed)
	}

	return Response{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// Complete is a single-prompt convenience over Chat.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, Options{})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Embed returns one dense vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embedCfg.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w: %v", core.ErrUpstreamUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		logger.Warn("embedding count mismatch", "want", len(texts), "got", len(resp.Data))
	}

	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int {
	return c.embedCfg.Dimension
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
